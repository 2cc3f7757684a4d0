package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/lessonforge/lessonforge-golang/internal/ai"
	"github.com/lessonforge/lessonforge-golang/internal/middleware"
	"github.com/lessonforge/lessonforge-golang/internal/models"
)

// GenerateWorksheet is the handler for POST /v1/worksheets/generate.
// Admission order matters: rate limiter first, then input validation,
// then the token gate, and only then the (expensive) model call.
func (h *Handlers) GenerateWorksheet(c *gin.Context) {
	// 1. --- Rate Limit Admission ---
	// Keyed by user id when we have one, client IP otherwise.
	userID, hasUser := middleware.UserIDFromContext(c)
	key := c.ClientIP()
	if hasUser {
		key = "user:" + strconv.FormatInt(userID, 10)
	}

	allowed, retryAfter := h.Limiter.Allow(key, time.Now())
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "Too many generation requests. Please wait before trying again.",
			"retryAfter": int(retryAfter.Seconds()) + 1,
		})
		return
	}

	// 2. --- Parse & Validate Input ---
	// Validation failures are reported before any external call.
	var input models.WorksheetRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 3. --- Token Gate ---
	// Registered and anonymous users alike spend tokens. A pure demo
	// request (no identity at all) is admitted by the rate limiter
	// alone and its worksheet is persisted without an owner.
	if hasUser {
		balance, err := h.GetTokenBalance(h.DB, userID)
		if err != nil {
			log.Printf("Warning: token gate read failed for user %d: %v", userID, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not verify token balance. Please retry."})
			return
		}
		if balance <= 0 {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "No generation tokens remaining. Purchase a pack to continue."})
			return
		}
	}

	// 4. --- Build Prompt & Call the Model ---
	prompt := ai.BuildPrompt(input)

	generated, tokensUsed, err := h.AIService.GenerateWorksheet(c.Request.Context(), prompt)
	if err != nil {
		log.Printf("🤖 Generation failed (key=%s): %v", key, err)
		h.notifyFailure(userID, hasUser, "Worksheet generation failed. Please try again in a moment.")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Generation service unavailable. Please retry."})
		return
	}

	// 5. --- Persist the Worksheet ---
	// Generation is the privileged insert path: it bypasses the
	// per-user worksheet quota that applies to manual imports.
	formData, _ := json.Marshal(input)
	ws := &models.Worksheet{
		ID:        uuid.NewString(),
		Title:     generated.Title,
		Slug:      slug.Make(generated.Title),
		Status:    models.WorksheetStatusCreated,
		Exercises: generated.Exercises,
		Prompt:    prompt,
		FormData:  string(formData),
	}
	if hasUser {
		ws.UserID = &userID
	}

	if err := h.insertWorksheet(ws, true); err != nil {
		// Persistence failure degrades to returning the content with a
		// null id; the client is expected to tolerate it.
		log.Printf("Warning: worksheet persist failed: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"worksheet": gin.H{
				"id":        nil,
				"title":     generated.Title,
				"exercises": generated.Exercises,
			},
			"tokensUsed": tokensUsed,
		})
		return
	}

	// 6. --- Consume the Token ---
	// Spent only after a successful generation, referencing the
	// worksheet it paid for. The conditional decrement in ConsumeToken
	// keeps a racing double-spend from pushing the balance below 0.
	if hasUser {
		tx, err := h.DB.Begin()
		if err == nil {
			defer tx.Rollback()
			spent, consumeErr := h.ConsumeToken(tx, userID, ws.ID)
			if consumeErr != nil {
				log.Printf("Warning: token consumption failed for user %d: %v", userID, consumeErr)
			} else if !spent {
				// Raced to zero between the gate and here. The
				// generation already happened, so just log it.
				log.Printf("Warning: user %d balance hit 0 before consumption", userID)
			} else if err := tx.Commit(); err != nil {
				log.Printf("Warning: token consumption commit failed for user %d: %v", userID, err)
			}
		}
	}

	// 7. --- Send Response ---
	c.JSON(http.StatusCreated, gin.H{
		"worksheet":  ws,
		"tokensUsed": tokensUsed,
	})
}

// civilianWorksheetQuota caps non-privileged inserts per user. Privileged
// paths (the generation pipeline itself) bypass it.
const civilianWorksheetQuota = 200

// insertWorksheet writes a worksheet row. With bypassQuota false the
// owner's live (non-deleted) worksheet count is checked first.
func (h *Handlers) insertWorksheet(ws *models.Worksheet, bypassQuota bool) error {
	if !bypassQuota && ws.UserID != nil {
		var count int
		err := h.DB.QueryRow(`
			SELECT COUNT(*) FROM worksheets
			WHERE user_id = ? AND deleted_at IS NULL`, *ws.UserID).Scan(&count)
		if err != nil {
			return err
		}
		if count >= civilianWorksheetQuota {
			return errWorksheetQuotaExceeded
		}
	}

	exercises, err := json.Marshal(ws.Exercises)
	if err != nil {
		return err
	}

	now := time.Now()
	ws.CreatedAt = now
	ws.UpdatedAt = now

	_, err = h.DB.Exec(`
		INSERT INTO worksheets
		(id, user_id, title, slug, status, exercises, prompt, form_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ID, ws.UserID, ws.Title, ws.Slug, ws.Status, exercises, ws.Prompt, ws.FormData, now, now)
	return err
}

// notifyFailure records a retry-later notification for the user, if there
// is one. Failures here are logged and swallowed: the notification is a
// courtesy, not part of the request contract.
func (h *Handlers) notifyFailure(userID int64, hasUser bool, message string) {
	if !hasUser {
		return
	}
	if err := h.AddNotification(h.DB, userID, models.NotificationKindError, message, ""); err != nil {
		log.Printf("Warning: failed to write failure notification: %v", err)
	}
}
