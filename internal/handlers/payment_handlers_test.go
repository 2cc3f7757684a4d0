package handlers

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lessonforge/lessonforge-golang/internal/models"
)

func TestIsUUIDShaped(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"real uuid", "d9428888-122b-11e1-b85c-61cd3cbb3210", true},
		{"uuid-length garbage", "d9428888-122b-11e1-b85c-61cd3cbb321z", false},
		{"short legacy id", "ws_1234", true},
		{"empty", "", false},
		{"too long", string(make([]byte, 80)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUUIDShaped(tt.id); got != tt.want {
				t.Fatalf("isUUIDShaped(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIsValidRedirectURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"https", "https://app.example.com/billing/success", true},
		{"http", "http://localhost:5173/success", true},
		{"relative", "/billing/success", false},
		{"no scheme", "app.example.com/success", false},
		{"ftp", "ftp://example.com/x", false},
		{"empty", "", false},
		{"garbage", "ht tp://broken", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidRedirectURL(tt.url); got != tt.want {
				t.Fatalf("isValidRedirectURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestActivatePaymentAlreadyActiveGrantsNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	defer db.Close()

	// Re-verifying an already-active session must return success without
	// touching the payment row or the token ledger. Any UPDATE or INSERT
	// here would be a double grant.
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "session_id", "user_id", "worksheet_id", "plan_id", "status", "tokens_granted"}).
		AddRow(1, "cs_test_1", 42, nil, 3, models.PaymentStatusActive, 50)
	mock.ExpectQuery("SELECT id, session_id, user_id").
		WithArgs("cs_test_1").
		WillReturnRows(rows)
	mock.ExpectRollback()

	h := &Handlers{DB: db}
	result, err := h.activatePayment("cs_test_1")
	if err != nil {
		t.Fatalf("activatePayment returned error: %v", err)
	}
	if !result.AlreadyActive {
		t.Fatal("expected AlreadyActive for a second verification")
	}
	if result.Subscription != nil {
		t.Fatal("expected no subscription on a second verification")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("second verification touched the database: %v", err)
	}
}

func TestActivatePaymentUnknownSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, session_id, user_id").
		WithArgs("cs_missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	h := &Handlers{DB: db}
	_, err = h.activatePayment("cs_missing")
	if !errors.Is(err, errPaymentNotRecorded) {
		t.Fatalf("expected errPaymentNotRecorded, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
