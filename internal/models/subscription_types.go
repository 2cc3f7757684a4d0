package models

import "time"

// Payment statuses. A payment row is created when a checkout session is
// opened and flips to active exactly once, on first successful
// verification. Re-verifying an active session is a no-op.
const (
	PaymentStatusPending = "pending"
	PaymentStatusActive  = "active"
	PaymentStatusFailed  = "failed"
)

// Payment defines the model for the 'payments' table.
// SessionID is the provider-issued checkout session id and is UNIQUE,
// which is what makes verification idempotent.
type Payment struct {
	ID            int64     `json:"id" db:"id"`
	SessionID     string    `json:"sessionId" db:"session_id"`
	UserID        *int64    `json:"userId,omitempty" db:"user_id"`
	WorksheetID   *string   `json:"worksheetId,omitempty" db:"worksheet_id"`
	PlanID        int64     `json:"planId" db:"plan_id"`
	Status        string    `json:"status" db:"status"`
	TokensGranted int       `json:"tokensGranted" db:"tokens_granted"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// UserSubscription defines the model for the 'user_subscriptions' table
type UserSubscription struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	PlanID    int64     `json:"planId" db:"plan_id"`
	Status    string    `json:"status" db:"status"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Populated by handlers for responses, not stored.
	PlanName string `json:"planName,omitempty" db:"-"`
}
