package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/api/middleware"
	"github.com/openmargin/margin/internal/security"
)

func newTestJWTManager() *security.JWTManager {
	return security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute, 7*24*time.Hour)
}

func TestAuthenticateValidToken(t *testing.T) {
	manager := newTestJWTManager()
	userID := uuid.New()

	token, err := manager.GenerateAccessToken(userID, "user@example.com")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	var gotUser uuid.UUID
	var gotEmail string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = middleware.GetUserID(r.Context())
		gotEmail, _ = middleware.GetUserEmail(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware.NewAuthMiddleware(manager).Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if gotUser != userID {
		t.Errorf("expected user %s in context, got %s", userID, gotUser)
	}
	if gotEmail != "user@example.com" {
		t.Errorf("expected email in context, got %q", gotEmail)
	}
}

func TestAuthenticateMissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	middleware.NewAuthMiddleware(newTestJWTManager()).Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc123")
	rec := httptest.NewRecorder()

	middleware.NewAuthMiddleware(newTestJWTManager()).Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	manager := newTestJWTManager()

	_, refreshToken, _, err := manager.GenerateTokenPair(uuid.New(), "user@example.com")
	if err != nil {
		t.Fatalf("failed to generate token pair: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	rec := httptest.NewRecorder()

	middleware.NewAuthMiddleware(manager).Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	middleware.NewRateLimitMiddleware(nil).Limit(next).ServeHTTP(rec, req)

	if !called {
		t.Error("expected request to pass through with no limiter configured")
	}
}
