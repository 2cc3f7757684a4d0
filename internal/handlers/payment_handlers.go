package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lessonforge/lessonforge-golang/internal/events"
	"github.com/lessonforge/lessonforge-golang/internal/middleware"
	"github.com/lessonforge/lessonforge-golang/internal/models"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

//
// --- Validation Helpers ---
//

// isUUIDShaped validates ids that should be UUIDs. Short legacy ids are
// let through; anything UUID-length must actually parse as one.
func isUUIDShaped(s string) bool {
	if len(s) != 36 {
		return len(s) > 0 && len(s) <= 64
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// isValidRedirectURL accepts only well-formed absolute http(s) URLs.
func isValidRedirectURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

//
// --- Payment Handlers ---
//

// CheckoutInput is the request body for creating a checkout session.
type CheckoutInput struct {
	WorksheetID string `json:"worksheetId" binding:"required"`
	PlanID      int64  `json:"planId" binding:"required"`
	SuccessURL  string `json:"successUrl" binding:"required"`
	CancelURL   string `json:"cancelUrl" binding:"required"`
}

// CreateCheckoutSession is the handler for POST /v1/payments/checkout.
// Validates identifiers and redirect URLs, creates a Stripe Checkout
// Session for the chosen plan, and records a pending payment row keyed
// by the session id.
func (h *Handlers) CreateCheckoutSession(c *gin.Context) {
	userID, hasUser := middleware.UserIDFromContext(c)
	if !hasUser {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	// 1. --- Parse & Validate Input ---
	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !isUUIDShaped(input.WorksheetID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "worksheetId is not a valid identifier"})
		return
	}
	if !isValidRedirectURL(input.SuccessURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "successUrl must be a well-formed absolute URL"})
		return
	}
	if !isValidRedirectURL(input.CancelURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cancelUrl must be a well-formed absolute URL"})
		return
	}

	// 2. --- Load the Plan ---
	var plan models.Plan
	err := h.DB.QueryRow(`
		SELECT id, name, type, price, duration_days, tokens_included, stripe_price_id
		FROM plans
		WHERE id = ? AND is_public = 1`, input.PlanID).Scan(
		&plan.ID, &plan.Name, &plan.Type, &plan.Price,
		&plan.DurationDays, &plan.TokensIncluded, &plan.StripePriceID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}

	// 3. --- Create the Stripe Session ---
	mode := stripe.CheckoutSessionModePayment
	if plan.Type == models.PlanTypeSubscription {
		mode = stripe.CheckoutSessionModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
		Metadata: map[string]string{
			"worksheetId": input.WorksheetID,
			"userId":      strconv.FormatInt(userID, 10),
			"planId":      strconv.FormatInt(plan.ID, 10),
		},
	}

	sess, err := session.New(params)
	if err != nil {
		log.Printf("stripe checkout session failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session. Please try again."})
		return
	}

	// 4. --- Record the Pending Payment ---
	_, err = h.DB.Exec(`
		INSERT INTO payments
		(session_id, user_id, worksheet_id, plan_id, status, tokens_granted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, userID, input.WorksheetID, plan.ID,
		models.PaymentStatusPending, plan.TokensIncluded, time.Now(), time.Now())
	if err != nil {
		log.Printf("Warning: failed to record pending payment %s: %v", sess.ID, err)
		// The Stripe session exists either way. Without a row,
		// activation for this session will fail loudly instead of
		// granting tokens blind, which is the safer failure.
	}

	// 5. --- Send Response ---
	c.JSON(http.StatusOK, gin.H{
		"sessionId": sess.ID,
		"url":       sess.URL,
	})
}

// VerifyInput is the request body for payment verification.
type VerifyInput struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// VerifyPayment is the handler for POST /v1/payments/verify.
// Confirms a checkout session with the provider, then activates it.
// Activation is idempotent: re-verifying an already-active session
// reports success without granting tokens a second time.
//
// The two failure messages are deliberately distinct so the client can
// tell "your payment did not go through" from "we could not check".
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var input VerifyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 1. --- Confirm with the Provider ---
	sess, err := session.Get(input.SessionID, nil)
	if err != nil {
		log.Printf("stripe session lookup failed for %s: %v", input.SessionID, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"message": "Could not reach the payment provider. Please try again in a moment.",
		})
		return
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"success": false,
			"message": "Payment verification failed. If you were charged, please contact support.",
		})
		return
	}

	// 2. --- Activate (Idempotent) ---
	result, err := h.activatePayment(sess.ID)
	if err != nil {
		log.Printf("payment activation failed for %s: %v", sess.ID, err)
		if errors.Is(err, errPaymentNotRecorded) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"success": false,
				"message": "Payment verification failed. If you were charged, please contact support.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Your payment was received but could not be activated. Please retry; contact support if this persists.",
		})
		return
	}

	// 3. --- Send Response ---
	resp := gin.H{
		"success": true,
		"message": "Payment confirmed",
	}
	if result.Subscription != nil {
		resp["subscription"] = result.Subscription
	}
	c.JSON(http.StatusOK, resp)
}

// StripeWebhook is the handler for POST /v1/payments/webhook.
// Completed checkout sessions run the same activation path as client
// verification, so whichever arrives first wins and the other no-ops.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if h.WebhookSecret == "" {
		log.Printf("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		h.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session payload"})
			return
		}
		if _, err := h.activatePayment(sess.ID); err != nil {
			log.Printf("webhook activation failed for %s: %v", sess.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to activate payment"})
			return
		}
	default:
		// Intentionally ignore unhandled events.
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// errPaymentNotRecorded means the provider confirmed a session we never
// wrote a payment row for. That is a failed verification, not a retry case.
var errPaymentNotRecorded = errors.New("no payment recorded for checkout session")

// activationResult reports what activation did.
type activationResult struct {
	AlreadyActive bool
	Subscription  *models.UserSubscription
}

// activatePayment flips a pending payment to active exactly once,
// granting its tokens and (for subscription plans) creating the
// subscription row, all inside one transaction. The SELECT ... FOR UPDATE
// on the unique session id is what makes concurrent webhook + client
// verification safe: the loser of the race sees status = active and
// grants nothing.
func (h *Handlers) activatePayment(sessionID string) (*activationResult, error) {
	tx, err := h.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		payment models.Payment
		userID  sql.NullInt64
		wsID    sql.NullString
	)
	err = tx.QueryRow(`
		SELECT id, session_id, user_id, worksheet_id, plan_id, status, tokens_granted
		FROM payments
		WHERE session_id = ?
		FOR UPDATE`, sessionID).Scan(
		&payment.ID, &payment.SessionID, &userID, &wsID,
		&payment.PlanID, &payment.Status, &payment.TokensGranted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s: %w", sessionID, errPaymentNotRecorded)
		}
		return nil, err
	}

	if payment.Status == models.PaymentStatusActive {
		// Second verification of the same session: success, no grant.
		return &activationResult{AlreadyActive: true}, nil
	}
	if !userID.Valid {
		return nil, errors.New("payment has no user attached")
	}

	// 1. Flip the status.
	_, err = tx.Exec(`
		UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`,
		models.PaymentStatusActive, time.Now(), payment.ID)
	if err != nil {
		return nil, err
	}

	// 2. Grant the tokens.
	if err := h.GrantTokens(tx, userID.Int64, payment.TokensGranted, sessionID); err != nil {
		return nil, err
	}

	// 3. Subscription plans also get a subscription row.
	var subscription *models.UserSubscription
	var planType string
	var durationDays int
	err = tx.QueryRow(`SELECT type, duration_days FROM plans WHERE id = ?`, payment.PlanID).
		Scan(&planType, &durationDays)
	if err != nil {
		return nil, err
	}
	if planType == models.PlanTypeSubscription {
		expiresAt := time.Now().AddDate(0, 0, durationDays)
		res, err := tx.Exec(`
			INSERT INTO user_subscriptions (user_id, plan_id, status, expires_at, created_at, updated_at)
			VALUES (?, ?, 'active', ?, ?, ?)`,
			userID.Int64, payment.PlanID, expiresAt, time.Now(), time.Now())
		if err != nil {
			return nil, err
		}
		subID, _ := res.LastInsertId()
		subscription = &models.UserSubscription{
			ID:        subID,
			UserID:    userID.Int64,
			PlanID:    payment.PlanID,
			Status:    "active",
			ExpiresAt: expiresAt,
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// 4. Broadcast after commit so observers never see a grant that
	// later rolled back.
	h.Bus.Publish(events.PaymentComplete{
		WorksheetID: wsID.String,
		SessionID:   sessionID,
	})

	return &activationResult{Subscription: subscription}, nil
}
