package models

import "time"

// Plan types.
const (
	PlanTypeOneTime      = "one_time"
	PlanTypeSubscription = "subscription"
)

// Plan defines the model for the 'plans' table.
// A plan is either a one-time worksheet pack or a recurring subscription;
// both carry the number of generation tokens they grant on activation.
type Plan struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	Type           string    `json:"type" db:"type"`
	Price          float64   `json:"price" db:"price"`
	DurationDays   int       `json:"durationDays" db:"duration_days"`
	TokensIncluded int       `json:"tokensIncluded" db:"tokens_included"`
	StripePriceID  string    `json:"-" db:"stripe_price_id"`
	IsPublic       bool      `json:"isPublic" db:"is_public"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}
