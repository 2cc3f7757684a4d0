package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/lessonforge/lessonforge-golang/internal/models"
	"google.golang.org/api/option"
)

// WorksheetService holds the Gemini client used to generate worksheets.
type WorksheetService struct {
	Client *genai.Client
}

// NewWorksheetService initializes the Gemini client.
func NewWorksheetService(apiKey string) (*WorksheetService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &WorksheetService{Client: client}, nil
}

// Close releases the underlying client.
func (s *WorksheetService) Close() error {
	return s.Client.Close()
}

// GeneratedWorksheet is the parsed, normalized model output.
type GeneratedWorksheet struct {
	Title     string            `json:"title"`
	Exercises []models.Exercise `json:"exercises"`
}

// GenerateWorksheet sends the prompt to the model and parses its JSON
// response. Returns the worksheet, the total token count reported by the
// model, and an error.
func (s *WorksheetService) GenerateWorksheet(ctx context.Context, prompt string) (*GeneratedWorksheet, int, error) {
	// 1. Pick the model (dynamic configuration with a fallback default).
	modelName := os.Getenv("GEMINI_MODEL")
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	model := s.Client.GenerativeModel(modelName)

	// 2. Force a JSON response so parsing does not depend on the model
	// resisting the urge to add prose around the payload.
	model.GenerationConfig.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	// 3. Execute.
	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, 0, fmt.Errorf("error generating worksheet: %w", err)
	}

	totalTokens := 0
	if res.UsageMetadata != nil {
		totalTokens = int(res.UsageMetadata.TotalTokenCount)
	}

	if len(res.Candidates) == 0 || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, totalTokens, fmt.Errorf("model returned no candidates")
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, totalTokens, fmt.Errorf("unexpected response part type %T", res.Candidates[0].Content.Parts[0])
	}

	// 4. Decode and normalize. The model occasionally wraps leaf values
	// in {"text": ...} objects; DeepFixTextObjects flattens those before
	// we decode into the typed shape.
	var tree interface{}
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		return nil, totalTokens, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	tree = DeepFixTextObjects(tree)

	normalized, err := json.Marshal(tree)
	if err != nil {
		return nil, totalTokens, err
	}

	var ws GeneratedWorksheet
	if err := json.Unmarshal(normalized, &ws); err != nil {
		return nil, totalTokens, fmt.Errorf("model response has unexpected shape: %w", err)
	}
	if ws.Title == "" || len(ws.Exercises) == 0 {
		return nil, totalTokens, fmt.Errorf("model response missing title or exercises")
	}

	return &ws, totalTokens, nil
}

const systemInstruction = `
You are a lesson-planning assistant for language teachers.
Respond with a single JSON object of this exact shape:
{"title": string, "exercises": [{"type": string, "title": string,
"instructions": string, "items": [string], "solution": string,
"durationMins": number}]}
Rules: no markdown, no commentary, JSON only. Exercise durations must
sum to roughly the requested lesson length.
`
