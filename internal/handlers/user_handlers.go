package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lessonforge/lessonforge-golang/internal/auth"
	"github.com/lessonforge/lessonforge-golang/internal/middleware"
	"github.com/lessonforge/lessonforge-golang/internal/models"
)

//
// --- Auth & Account Handlers ---
//

// StartAnonymousSession is the handler for POST /v1/auth/anonymous.
// Explicit anonymous bootstrap for clients that want a session up front
// instead of relying on the AutoAnonymous middleware policy.
func (h *Handlers) StartAnonymousSession(c *gin.Context) {
	// If the caller already has a session, hand it back instead of
	// minting a second identity.
	if userID, ok := middleware.UserIDFromContext(c); ok {
		c.JSON(http.StatusOK, gin.H{
			"userId":    userID,
			"anonymous": c.GetBool(middleware.CtxIsAnonymous),
		})
		return
	}

	// Same bootstrap the AutoAnonymous middleware runs: user row plus
	// starter token balance in one transaction.
	userID, token, err := middleware.BootstrapAnonymous(h.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"userId":    userID,
		"anonymous": true,
		"token":     token,
	})
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"max=100"`
}

// Register is the handler for POST /v1/register.
// When the caller holds an anonymous session, that user row is upgraded
// in place so their worksheets and token balance carry over.
func (h *Handlers) Register(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Reject Duplicate Emails ---
	var existing int64
	err := h.DB.QueryRow("SELECT id FROM users WHERE email = ?", input.Email).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
		return
	}

	// 3. --- Hash the Password ---
	var password models.Password
	if err := password.Set(input.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	var displayName *string
	if input.DisplayName != "" {
		displayName = &input.DisplayName
	}

	// 4. --- Upgrade or Create ---
	if id, ok := middleware.UserIDFromContext(c); ok && c.GetBool(middleware.CtxIsAnonymous) {
		_, err = h.DB.Exec(`
			UPDATE users
			SET anonymous = FALSE, email = ?, password_hash = ?, display_name = ?,
			    updated_at = ?, version = version + 1
			WHERE id = ? AND anonymous = TRUE`,
			input.Email, password.Hash, displayName, time.Now(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade account"})
			return
		}

		token, err := auth.GenerateToken(id, false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Account registered. Your worksheets and tokens were kept.",
			"userId":  id,
			"token":   token,
		})
		return
	}

	res, err := h.DB.Exec(`
		INSERT INTO users (anonymous, status, email, password_hash, display_name, created_at, updated_at, version)
		VALUES (FALSE, 'active', ?, ?, ?, ?, ?, 1)`,
		input.Email, password.Hash, displayName, time.Now(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}
	newID, _ := res.LastInsertId()

	token, err := auth.GenerateToken(newID, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session token"})
		return
	}

	// 5. --- Send Success Response ---
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account registered successfully.",
		"userId":  newID,
		"token":   token,
	})
}

// LoginInput is the login form.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login is the handler for POST /v1/login.
func (h *Handlers) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		userID int64
		hash   sql.NullString
		status string
	)
	err := h.DB.QueryRow(`
		SELECT id, password_hash, status FROM users
		WHERE email = ? AND anonymous = FALSE`, input.Email).
		Scan(&userID, &hash, &status)
	if err != nil {
		// Same message for unknown email and bad password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if status != "active" {
		c.JSON(http.StatusForbidden, gin.H{"error": "This account is not active"})
		return
	}

	password := models.Password{Hash: hash.String}
	matches, err := password.Matches(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify password"})
		return
	}
	if !matches {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(userID, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId": userID,
		"token":  token,
	})
}

// GetMe is the handler for GET /v1/profile/me.
func (h *Handlers) GetMe(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)

	var user models.User
	err := h.DB.QueryRow(`
		SELECT id, anonymous, status, email, display_name, created_at, updated_at
		FROM users WHERE id = ?`, userID).Scan(
		&user.ID, &user.Anonymous, &user.Status, &user.Email,
		&user.DisplayName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
