package ai

import (
	"strings"
	"testing"

	"github.com/lessonforge/lessonforge-golang/internal/models"
)

func TestBuildPromptIncludesAllFields(t *testing.T) {
	req := models.WorksheetRequest{
		DurationMinutes: 45,
		Level:           "B1",
		Topic:           "Ordering food",
		Goal:            "Use modal verbs in requests",
		Preferences:     []string{"gap fill", "role play"},
		FreeText:        "Two students are absolute beginners.",
		Formality:       5,
	}

	prompt := BuildPrompt(req)

	for _, want := range []string{
		"45-minute lesson",
		"B1",
		"Ordering food",
		"modal verbs",
		"gap fill, role play",
		"strictly formal address (Sie)",
		"absolute beginners",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	req := models.WorksheetRequest{
		DurationMinutes: 30,
		Level:           "A2",
		Topic:           "Weather",
		Goal:            "Small talk",
		Formality:       3,
	}

	prompt := BuildPrompt(req)

	if strings.Contains(prompt, "Preferred exercise styles") {
		t.Fatalf("prompt should omit preferences when none are set:\n%s", prompt)
	}
	if strings.Contains(prompt, "Additional teacher notes") {
		t.Fatalf("prompt should omit notes when free text is empty:\n%s", prompt)
	}
}

func TestBuildPromptUnknownFormalityFallsBackToNeutral(t *testing.T) {
	req := models.WorksheetRequest{
		DurationMinutes: 30,
		Level:           "A1",
		Topic:           "Colors",
		Goal:            "Vocabulary",
		Formality:       0,
	}

	if !strings.Contains(BuildPrompt(req), "neutral register") {
		t.Fatalf("unknown formality should fall back to neutral register")
	}
}
