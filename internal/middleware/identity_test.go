package middleware

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lessonforge/lessonforge-golang/internal/auth"
)

func newIdentityRouter(policy IdentityPolicy) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ResolveIdentity(nil, policy))
	router.GET("/whoami", func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"demo": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": userID, "anonymous": c.GetBool(CtxIsAnonymous)})
	})
	router.GET("/protected", RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestValidTokenResolvesIdentity(t *testing.T) {
	router := newIdentityRouter(IdentityPolicy{})

	token, err := auth.GenerateToken(42, false)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); !contains(body, `"userId":42`) {
		t.Fatalf("identity not resolved: %s", body)
	}
}

func TestAnonymousClaimSurvivesRoundTrip(t *testing.T) {
	router := newIdentityRouter(IdentityPolicy{})

	token, err := auth.GenerateToken(7, true)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if body := resp.Body.String(); !contains(body, `"anonymous":true`) {
		t.Fatalf("anon flag lost: %s", body)
	}
}

func TestGarbageTokenFallsBackToDemo(t *testing.T) {
	router := newIdentityRouter(IdentityPolicy{})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("demo mode should not reject, got %d", resp.Code)
	}
	if body := resp.Body.String(); !contains(body, `"demo":true`) {
		t.Fatalf("expected demo mode, got %s", body)
	}
}

func TestRequireAuthRejectsDemoMode(t *testing.T) {
	router := newIdentityRouter(IdentityPolicy{})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

func TestBootstrapAnonymousSeedsStarterBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	defer db.Close()

	// A new anonymous user and their starter tokens are one transaction:
	// no visitor may exist who can never generate.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("INSERT INTO token_balances").
		WithArgs(int64(9), StarterTokenGrant, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO token_transactions").
		WithArgs(int64(9), StarterTokenGrant, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	userID, token, err := BootstrapAnonymous(db)
	if err != nil {
		t.Fatalf("BootstrapAnonymous returned error: %v", err)
	}
	if userID != 9 {
		t.Fatalf("expected user id 9, got %d", userID)
	}

	id, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("issued session token does not validate: %v", err)
	}
	if id.UserID != 9 || !id.Anonymous {
		t.Fatalf("expected anonymous identity for user 9, got %+v", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("bootstrap skipped the starter grant: %v", err)
	}
}

func TestBootstrapAnonymousRollsBackOnGrantFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("INSERT INTO token_balances").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	if _, _, err := BootstrapAnonymous(db); err == nil {
		t.Fatal("expected an error when the starter grant fails")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
