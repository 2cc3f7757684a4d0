package handlers

import (
	"database/sql"

	"github.com/lessonforge/lessonforge-golang/internal/ai"
	"github.com/lessonforge/lessonforge-golang/internal/events"
	"github.com/lessonforge/lessonforge-golang/internal/ratelimit"
)

// Handlers struct holds all dependencies for our handlers.
// Everything is an injected instance, constructed once in main.
type Handlers struct {
	DB        *sql.DB
	AIService *ai.WorksheetService
	Limiter   *ratelimit.Limiter
	Bus       *events.Bus

	// Stripe webhook signing secret. The API key itself is set globally
	// on the stripe package at startup.
	WebhookSecret string
}
