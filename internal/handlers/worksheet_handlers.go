package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/lessonforge/lessonforge-golang/internal/middleware"
	"github.com/lessonforge/lessonforge-golang/internal/models"
)

var errWorksheetQuotaExceeded = errors.New("worksheet quota exceeded")

// Share links stay valid for a week; after that IsShared reports false
// and the background sweep clears the token.
const shareTokenTTL = 7 * 24 * time.Hour

//
// --- Worksheet Handlers ---
//

// CreateWorksheet is the handler for POST /v1/worksheets.
// This is the non-privileged insert path (manual import), so the
// per-user quota applies.
func (h *Handlers) CreateWorksheet(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)

	var input struct {
		Title     string            `json:"title" binding:"required,max=200"`
		Exercises []models.Exercise `json:"exercises" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws := &models.Worksheet{
		ID:        uuid.NewString(),
		UserID:    &userID,
		Title:     input.Title,
		Slug:      slug.Make(input.Title),
		Status:    models.WorksheetStatusCreated,
		Exercises: input.Exercises,
	}

	if err := h.insertWorksheet(ws, false); err != nil {
		if errors.Is(err, errWorksheetQuotaExceeded) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Worksheet limit reached. Delete old worksheets to import new ones."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save worksheet"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"worksheet": ws})
}

// GetMyWorksheets is the handler for GET /v1/worksheets.
// Soft-deleted worksheets are excluded from both the list and the count.
func (h *Handlers) GetMyWorksheets(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)

	rows, err := h.DB.Query(`
		SELECT id, title, slug, status, share_token, share_token_expiry, created_at, updated_at
		FROM worksheets
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 100`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}
	defer rows.Close()

	worksheets := []*models.Worksheet{}
	for rows.Next() {
		var ws models.Worksheet
		if err := rows.Scan(
			&ws.ID,
			&ws.Title,
			&ws.Slug,
			&ws.Status,
			&ws.ShareToken,
			&ws.ShareTokenExpiry,
			&ws.CreatedAt,
			&ws.UpdatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan worksheet row"})
			return
		}
		worksheets = append(worksheets, &ws)
	}
	if err = rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating worksheet rows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"worksheets": worksheets,
		"count":      len(worksheets),
	})
}

// GetWorksheet is the handler for GET /v1/worksheets/:id.
// Only the owner can fetch a worksheet by id; public access goes
// through the share-token route instead.
func (h *Handlers) GetWorksheet(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)
	worksheetID := c.Param("id")

	ws, err := h.loadWorksheet(`id = ? AND user_id = ? AND deleted_at IS NULL`, worksheetID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Worksheet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"worksheet": ws,
		"isShared":  ws.IsShared(time.Now()),
	})
}

// GetSharedWorksheet is the handler for GET /v1/shared/:token (public).
// An expired share token behaves exactly like a missing one.
func (h *Handlers) GetSharedWorksheet(c *gin.Context) {
	token := c.Param("token")

	ws, err := h.loadWorksheet(`share_token = ? AND deleted_at IS NULL`, token)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Shared worksheet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}

	if !ws.IsShared(time.Now()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "This share link has expired"})
		return
	}

	// Strip provenance for the public view.
	ws.Prompt = ""
	ws.FormData = ""
	c.JSON(http.StatusOK, gin.H{"worksheet": ws})
}

// UpdateWorksheet is the handler for PUT /v1/worksheets/:id.
// Any successful edit moves the worksheet into the "edited" status.
func (h *Handlers) UpdateWorksheet(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)
	worksheetID := c.Param("id")

	var input struct {
		Title     string            `json:"title" binding:"required,max=200"`
		Exercises []models.Exercise `json:"exercises" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exercises, err := json.Marshal(input.Exercises)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode exercises"})
		return
	}

	result, err := h.DB.Exec(`
		UPDATE worksheets
		SET title = ?, slug = ?, exercises = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		input.Title, slug.Make(input.Title), exercises, models.WorksheetStatusEdited,
		time.Now(), worksheetID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update worksheet"})
		return
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check affected rows"})
		return
	}
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Worksheet not found or you do not have permission to update it"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Worksheet updated"})
}

// ShareWorksheet is the handler for POST /v1/worksheets/:id/share.
// Mints a fresh share token with a one-week expiry; re-sharing simply
// rotates the token.
func (h *Handlers) ShareWorksheet(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)
	worksheetID := c.Param("id")

	token := uuid.NewString()
	expiry := time.Now().Add(shareTokenTTL)

	result, err := h.DB.Exec(`
		UPDATE worksheets
		SET share_token = ?, share_token_expiry = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		token, expiry, models.WorksheetStatusShared, time.Now(), worksheetID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to share worksheet"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Worksheet not found or you do not have permission to share it"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shareToken": token,
		"expiresAt":  expiry,
	})
}

// DeleteWorksheet is the handler for DELETE /v1/worksheets/:id.
// Soft delete: the row stays but drops out of every list and count.
func (h *Handlers) DeleteWorksheet(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)
	worksheetID := c.Param("id")

	result, err := h.DB.Exec(`
		UPDATE worksheets
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		time.Now(), time.Now(), worksheetID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete worksheet"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Worksheet not found or you do not have permission to delete it"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Worksheet deleted"})
}

// ExpireStaleShareTokens clears tokens past their expiry. Called from the
// background worker; the read path does not depend on it because
// IsShared checks the timestamp anyway.
func (h *Handlers) ExpireStaleShareTokens() error {
	_, err := h.DB.Exec(`
		UPDATE worksheets
		SET share_token = NULL, share_token_expiry = NULL
		WHERE share_token IS NOT NULL AND share_token_expiry < ?`,
		time.Now())
	return err
}

// loadWorksheet fetches one full worksheet row by an arbitrary WHERE clause.
func (h *Handlers) loadWorksheet(where string, args ...interface{}) (*models.Worksheet, error) {
	var (
		ws        models.Worksheet
		exercises []byte
	)
	err := h.DB.QueryRow(`
		SELECT id, user_id, title, slug, status, exercises, prompt, form_data,
		       share_token, share_token_expiry, created_at, updated_at
		FROM worksheets
		WHERE `+where, args...).Scan(
		&ws.ID,
		&ws.UserID,
		&ws.Title,
		&ws.Slug,
		&ws.Status,
		&exercises,
		&ws.Prompt,
		&ws.FormData,
		&ws.ShareToken,
		&ws.ShareTokenExpiry,
		&ws.CreatedAt,
		&ws.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(exercises) > 0 {
		if err := json.Unmarshal(exercises, &ws.Exercises); err != nil {
			return nil, err
		}
	}
	return &ws, nil
}
