package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lessonforge/lessonforge-golang/internal/events"
	"github.com/lessonforge/lessonforge-golang/internal/ratelimit"
)

// newGenerationRouter wires the handler with a real limiter but no DB or
// AI client: the tested paths (admission, validation) return before
// either is touched.
func newGenerationRouter(limiter *ratelimit.Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handlers{Limiter: limiter, Bus: events.NewBus()}
	router := gin.New()
	router.POST("/v1/worksheets/generate", h.GenerateWorksheet)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestGenerateRejectsMalformedInput(t *testing.T) {
	router := newGenerationRouter(ratelimit.NewLimiter(ratelimit.DefaultWindows()))

	// Missing required fields must be rejected before any external call.
	resp := postJSON(router, "/v1/worksheets/generate", `{"topic": "Weather"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid form, got %d", resp.Code)
	}
}

func TestGenerateRejectsOutOfRangeFormality(t *testing.T) {
	router := newGenerationRouter(ratelimit.NewLimiter(ratelimit.DefaultWindows()))

	resp := postJSON(router, "/v1/worksheets/generate",
		`{"durationMinutes": 45, "level": "B1", "topic": "Weather", "goal": "Small talk", "formality": 9}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for formality out of range, got %d", resp.Code)
	}
}

func TestGenerateRateLimitReturns429WithRetryAfter(t *testing.T) {
	// One request per hour: the second call in a row must be rejected
	// at admission, before validation even runs.
	limiter := ratelimit.NewLimiter([]ratelimit.Window{{Duration: time.Hour, Max: 1}})
	router := newGenerationRouter(limiter)

	// First request passes admission and dies on validation (400).
	if resp := postJSON(router, "/v1/worksheets/generate", `{}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("first request: expected 400, got %d", resp.Code)
	}

	resp := postJSON(router, "/v1/worksheets/generate", `{}`)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "retryAfter") {
		t.Fatalf("429 body missing retryAfter: %s", resp.Body.String())
	}
}
