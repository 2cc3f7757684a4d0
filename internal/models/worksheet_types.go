package models

import (
	"time"
)

// Worksheet statuses.
const (
	WorksheetStatusCreated = "created"
	WorksheetStatusEdited  = "edited"
	WorksheetStatusShared  = "shared"
)

// Worksheet is the model for the 'worksheets' table.
// OwnerID is NULL for demo/anonymous generations, so it is a pointer.
type Worksheet struct {
	ID     string `json:"id" db:"id"`
	UserID *int64 `json:"userId,omitempty" db:"user_id"`
	Title  string `json:"title" db:"title"`
	Slug   string `json:"slug" db:"slug"`
	Status string `json:"status" db:"status"`

	// Generated content plus provenance: the prompt we sent and the
	// raw form data it was built from.
	Exercises []Exercise `json:"exercises" db:"-"`
	Prompt    string     `json:"-" db:"prompt"`
	FormData  string     `json:"-" db:"form_data"`

	// Share token: a capability string granting time-limited read
	// access without authentication.
	ShareToken       *string    `json:"shareToken,omitempty" db:"share_token"`
	ShareTokenExpiry *time.Time `json:"shareTokenExpiry,omitempty" db:"share_token_expiry"`

	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// Exercise is one block of a generated worksheet.
type Exercise struct {
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Instructions string   `json:"instructions"`
	Items        []string `json:"items,omitempty"`
	Solution     string   `json:"solution,omitempty"`
	DurationMins int      `json:"durationMins,omitempty"`
}

// IsShared reports whether the worksheet currently has a live share token.
// A token past its expiry timestamp no longer counts as shared.
func (w *Worksheet) IsShared(now time.Time) bool {
	if w.ShareToken == nil || *w.ShareToken == "" {
		return false
	}
	if w.ShareTokenExpiry == nil {
		return false
	}
	return now.Before(*w.ShareTokenExpiry)
}
