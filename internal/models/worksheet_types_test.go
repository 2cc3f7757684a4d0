package models

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestIsShared(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no token", func(t *testing.T) {
		w := &Worksheet{}
		if w.IsShared(now) {
			t.Fatalf("worksheet without share token should not be shared")
		}
	})

	t.Run("live token", func(t *testing.T) {
		expiry := now.Add(time.Hour)
		w := &Worksheet{ShareToken: strPtr("tok"), ShareTokenExpiry: &expiry}
		if !w.IsShared(now) {
			t.Fatalf("worksheet with unexpired token should be shared")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expiry := now.Add(-time.Minute)
		w := &Worksheet{ShareToken: strPtr("tok"), ShareTokenExpiry: &expiry}
		if w.IsShared(now) {
			t.Fatalf("worksheet with expired token should not be shared")
		}
	})

	t.Run("token without expiry", func(t *testing.T) {
		w := &Worksheet{ShareToken: strPtr("tok")}
		if w.IsShared(now) {
			t.Fatalf("share token without an expiry should not count as shared")
		}
	})
}
