package routes

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/lessonforge/lessonforge-golang/internal/handlers"
	"github.com/lessonforge/lessonforge-golang/internal/middleware"
)

// CORSMiddleware tells the browser that the configured frontend origin
// may talk to us, including the Authorization header for JWTs and the
// X-Session-Token header the identity middleware may set.
func CORSMiddleware() gin.HandlerFunc {
	origin := os.Getenv("FRONTEND_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Session-Token")

		// Preflight OPTIONS gets an empty 204.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers, identity middleware.IdentityPolicy) *gin.Engine {
	router := gin.Default()

	router.Use(CORSMiddleware())

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Auth Routes (Public) ---
		v1.POST("/register", middleware.ResolveIdentity(h.DB, middleware.IdentityPolicy{}), h.Register)
		v1.POST("/login", h.Login)
		v1.POST("/auth/anonymous", middleware.ResolveIdentity(h.DB, middleware.IdentityPolicy{}), h.StartAnonymousSession)

		// --- Public Plan & Share Routes ---
		v1.GET("/plans", h.GetPlans)
		v1.GET("/shared/:token", h.GetSharedWorksheet)

		// --- Payment Webhook (Public, signature-checked) ---
		v1.POST("/payments/webhook", h.StripeWebhook)

		// --- Identity-Resolved Routes ---
		// These run with the configured anonymous-bootstrap policy.
		// Demo mode (no identity) is allowed through; individual
		// handlers decide what demo callers may do.
		resolved := v1.Group("/")
		resolved.Use(middleware.ResolveIdentity(h.DB, identity))
		{
			// --- Generation Pipeline ---
			resolved.POST("/worksheets/generate", h.GenerateWorksheet)

			// --- Token Ledger ---
			resolved.GET("/tokens/balance", h.GetMyTokenBalance)

			// --- Payment Verification & Events ---
			resolved.POST("/payments/checkout", h.CreateCheckoutSession)
			resolved.POST("/payments/verify", h.VerifyPayment)
			resolved.GET("/events/payments", h.StreamPaymentEvents)

			// --- Login-Required Routes ---
			auth := resolved.Group("/")
			auth.Use(middleware.RequireAuth())
			{
				auth.GET("/profile/me", h.GetMe)
				auth.GET("/tokens/history", h.GetMyTokenHistory)
				auth.GET("/subscriptions/me", h.GetMySubscription)

				// --- Worksheet Routes ---
				auth.POST("/worksheets", h.CreateWorksheet)
				auth.GET("/worksheets", h.GetMyWorksheets)
				auth.GET("/worksheets/:id", h.GetWorksheet)
				auth.PUT("/worksheets/:id", h.UpdateWorksheet)
				auth.POST("/worksheets/:id/share", h.ShareWorksheet)
				auth.DELETE("/worksheets/:id", h.DeleteWorksheet)

				// --- Notification Routes ---
				auth.GET("/notifications", h.GetMyNotifications)
				auth.PATCH("/notifications/:id/read", h.MarkNotificationAsRead)
			}
		}
	}

	return router
}
