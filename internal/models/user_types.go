package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User Model with Pointers for Nullable Fields.
// Anonymous visitors get a row too (no email, no password) so the token
// ledger and worksheets have a stable id to hang off before sign-up.
type User struct {
	ID           int64   `json:"id" db:"id"`
	Anonymous    bool    `json:"anonymous" db:"anonymous"`
	Status       string  `json:"status" db:"status"`
	Email        *string `json:"email,omitempty" db:"email"`
	PasswordHash *string `json:"-" db:"password_hash"`
	DisplayName  *string `json:"displayName,omitempty" db:"display_name"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	Version   int       `json:"-" db:"version"`
}

// Password Helper (Standard)
type Password struct {
	Plaintext *string
	Hash      string
}

func (p *Password) Set(plaintextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Hash = string(hash)
	p.Plaintext = &plaintextPassword
	return nil
}

func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(plaintextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
