package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sessionauth "github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/ledger"
	"github.com/MrEthical07/sessionauth/stores/memory"
)

// newTestEngine builds an engine without Redis: lockout and throttles
// are disabled and the revocation ledger lives in memory.
func newTestEngine(t *testing.T) *sessionauth.Engine {
	t.Helper()

	cfg := sessionauth.DefaultConfig()
	cfg.JWT.AccessTTL = time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Lockout.Enabled = false
	cfg.Security.EnableIPThrottle = false
	cfg.Security.EnableRefreshThrottle = false

	memLedger := ledger.NewMemoryLedger(0)
	t.Cleanup(memLedger.Close)

	engine, err := sessionauth.New().
		WithConfig(cfg).
		WithAccountStore(memory.NewStore()).
		WithLedger(memLedger).
		Build()
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func login(t *testing.T, engine *sessionauth.Engine) sessionauth.TokenPair {
	t.Helper()
	ctx := context.Background()

	if _, err := engine.Signup(ctx, sessionauth.NewAccount{
		Email:    "alice@example.com",
		Password: "correct horse battery",
		Role:     "admin",
	}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	result, err := engine.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return result.Tokens
}

func TestGuardAllowsValidToken(t *testing.T) {
	engine := newTestEngine(t)
	tokens := login(t, engine)

	var sawResult *sessionauth.AuthResult
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawResult, _ = AuthResultFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if sawResult == nil || sawResult.UserID == "" {
		t.Fatal("auth result missing from request context")
	}
}

func TestGuardRejectsMissingOrBadToken(t *testing.T) {
	engine := newTestEngine(t)

	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without a valid token")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestGuardRejectsRevokedToken(t *testing.T) {
	engine := newTestEngine(t)
	tokens := login(t, engine)

	if err := engine.Logout(context.Background(), tokens.AccessToken, tokens.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with a revoked token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	engine := newTestEngine(t)
	tokens := login(t, engine)

	admin := Guard(engine)(RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	auditor := Guard(engine)(RequireRole("auditor")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with the wrong role")
	})))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("matching role: status = %d, want 204", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/auditor", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec = httptest.NewRecorder()
	auditor.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: status = %d, want 403", rec.Code)
	}
}
