package handlers

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lessonforge/lessonforge-golang/internal/models"
)

func TestAddNotificationNullsEmptyLink(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(int64(5), models.NotificationKindInfo, "hello", sql.NullString{}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	h := &Handlers{DB: db}
	if err := h.AddNotification(h.DB, 5, models.NotificationKindInfo, "hello", ""); err != nil {
		t.Fatalf("AddNotification returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNotifyFailureWritesErrorNotification(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(int64(5), models.NotificationKindError, "generation failed", sql.NullString{}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	h := &Handlers{DB: db}
	h.notifyFailure(5, true, "generation failed")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNotifyFailureSkipsDemoRequests(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	defer db.Close()

	// No expectations: a demo request must write nothing.
	h := &Handlers{DB: db}
	h.notifyFailure(0, false, "generation failed")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("demo failure wrote a notification: %v", err)
	}
}
