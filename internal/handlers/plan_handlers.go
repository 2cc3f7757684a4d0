package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lessonforge/lessonforge-golang/internal/middleware"
	"github.com/lessonforge/lessonforge-golang/internal/models"
)

// GetPlans is the handler for GET /v1/plans (public).
// Lists the purchasable one-time packs and subscription plans.
func (h *Handlers) GetPlans(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT id, name, description, type, price, duration_days, tokens_included, created_at, updated_at
		FROM plans
		WHERE is_public = 1
		ORDER BY price ASC`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		var plan models.Plan
		if err := rows.Scan(
			&plan.ID,
			&plan.Name,
			&plan.Description,
			&plan.Type,
			&plan.Price,
			&plan.DurationDays,
			&plan.TokensIncluded,
			&plan.CreatedAt,
			&plan.UpdatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan plan row"})
			return
		}
		plan.IsPublic = true
		plans = append(plans, &plan)
	}
	if err = rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating plan rows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// GetMySubscription is the handler for GET /v1/subscriptions/me.
// Returns the caller's most recent active subscription, if any.
func (h *Handlers) GetMySubscription(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)

	var sub models.UserSubscription
	err := h.DB.QueryRow(`
		SELECT s.id, s.user_id, s.plan_id, s.status, s.expires_at, s.created_at, s.updated_at, p.name
		FROM user_subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.user_id = ? AND s.status = 'active' AND s.expires_at > NOW()
		ORDER BY s.expires_at DESC
		LIMIT 1`, userID).Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status,
		&sub.ExpiresAt, &sub.CreatedAt, &sub.UpdatedAt, &sub.PlanName)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"subscription": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}
