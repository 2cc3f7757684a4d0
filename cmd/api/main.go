package main

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lessonforge/lessonforge-golang/internal/ai"
	"github.com/lessonforge/lessonforge-golang/internal/database"
	"github.com/lessonforge/lessonforge-golang/internal/events"
	"github.com/lessonforge/lessonforge-golang/internal/handlers"
	"github.com/lessonforge/lessonforge-golang/internal/middleware"
	"github.com/lessonforge/lessonforge-golang/internal/ratelimit"
	"github.com/lessonforge/lessonforge-golang/internal/routes"
	"github.com/stripe/stripe-go/v79"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	// 1. --- Database Connection ---
	db, err := database.OpenDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 2. --- AI Service Initialization ---
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Fatal("CRITICAL ERROR: GEMINI_API_KEY environment variable is not set.")
	}

	aiService, err := ai.NewWorksheetService(geminiKey)
	if err != nil {
		log.Fatalf("Failed to initialize AI Service: %v", err)
	}
	defer aiService.Close()

	// 3. --- Payment Provider ---
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Fatal("CRITICAL ERROR: STRIPE_SECRET_KEY environment variable is not set.")
	}
	stripe.Key = stripeKey

	// 4. --- In-Process Services ---
	// The rate limiter and the event bus are explicit instances injected
	// into the handlers, not package-level globals. The limiter state is
	// local to this process; running more than one instance behind a load
	// balancer needs that state externalized first (see DESIGN.md).
	limiter := ratelimit.NewLimiter(ratelimit.DefaultWindows())
	bus := events.NewBus()

	// --- Application Setup ---
	// We inject ALL dependencies into the Handlers struct.
	app := &handlers.Handlers{
		DB:            db,
		AIService:     aiService,
		Limiter:       limiter,
		Bus:           bus,
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
	}

	identity := middleware.IdentityPolicy{
		// Visitors get an anonymous session on their first gated request,
		// mirroring the old auto-sign-in behavior of the web client.
		AutoAnonymous: os.Getenv("AUTO_ANONYMOUS") != "false",
	}

	// --- 5. Background Worker (Cron) ---
	// Runs in a separate goroutine: prunes stale rate-limit windows and
	// clears share tokens that are past their expiry timestamp.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		log.Println("🕒 Background Worker Started: pruning rate-limit windows and expired share tokens...")

		for range ticker.C {
			limiter.Sweep(time.Now())
			if err := app.ExpireStaleShareTokens(); err != nil {
				log.Printf("Warning: share token sweep failed: %v", err)
			}
		}
	}()

	// --- Router Setup ---
	router := routes.SetupRouter(app, identity)

	// --- Start Server ---
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting LessonForge API server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
