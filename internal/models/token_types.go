package models

import (
	"database/sql"
	"time"
)

// TokenBalance is the model for the 'token_balances' table.
// One token buys one worksheet generation. The row is the source of
// truth; anything a client caches must be re-fetched after payments.
type TokenBalance struct {
	UserID    int64     `json:"userId" db:"user_id"`
	Balance   int       `json:"balance" db:"balance"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// TokenTransaction is the model for the 'token_transactions' table
type TokenTransaction struct {
	ID        int64          `json:"id" db:"id"`
	UserID    int64          `json:"userId" db:"user_id"`
	Type      string         `json:"type" db:"type"`     // e.g., grant, consume
	Amount    int            `json:"amount" db:"amount"` // Positive (grant) or negative (consume)
	Reference sql.NullString `json:"reference,omitempty" db:"reference"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}
