package ai

import (
	"fmt"
	"strings"

	"github.com/lessonforge/lessonforge-golang/internal/models"
)

// formalityLabels maps the 1..5 form scale to register instructions.
var formalityLabels = map[int]string{
	1: "very casual, informal address (du)",
	2: "casual but classroom-appropriate",
	3: "neutral register",
	4: "polite and professional",
	5: "strictly formal address (Sie)",
}

// BuildPrompt formats the lesson form into the natural-language
// instruction sent to the model.
func BuildPrompt(req models.WorksheetRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a worksheet for a %d-minute lesson.\n", req.DurationMinutes)
	fmt.Fprintf(&b, "Learner level: %s.\n", req.Level)
	fmt.Fprintf(&b, "Topic: %s.\n", req.Topic)
	fmt.Fprintf(&b, "Lesson goal: %s.\n", req.Goal)

	if len(req.Preferences) > 0 {
		fmt.Fprintf(&b, "Preferred exercise styles: %s.\n", strings.Join(req.Preferences, ", "))
	}

	label, ok := formalityLabels[req.Formality]
	if !ok {
		label = formalityLabels[3]
	}
	fmt.Fprintf(&b, "Register: %s.\n", label)

	if req.FreeText != "" {
		fmt.Fprintf(&b, "Additional teacher notes: %s\n", req.FreeText)
	}

	return b.String()
}
