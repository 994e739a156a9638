package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "test",
	}
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestAccessRoundTrip(t *testing.T) {
	m := newTestManager(t, testConfig())

	token, expiresAt, err := m.CreateAccess("user-1", "admin")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expiry not in the future")
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	m := newTestManager(t, testConfig())

	token, _, err := m.CreateRefresh("user-1")
	if err != nil {
		t.Fatalf("CreateRefresh: %v", err)
	}

	claims, err := m.ParseRefresh(token)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != "" {
		t.Fatalf("refresh token must not carry a role, got %q", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("missing jti")
	}
}

func TestTypeMismatchRejected(t *testing.T) {
	m := newTestManager(t, testConfig())

	access, _, err := m.CreateAccess("user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	refresh, _, err := m.CreateRefresh("user-1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.ParseRefresh(access); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("access as refresh: got %v", err)
	}
	if _, err := m.ParseAccess(refresh); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("refresh as access: got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTTL = time.Millisecond
	cfg.RefreshTTL = time.Hour
	cfg.Leeway = 0
	m := newTestManager(t, cfg)

	token, _, err := m.CreateAccess("user-1", "")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("got %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	m := newTestManager(t, testConfig())

	token, _, err := m.CreateAccess("user-1", "")
	if err != nil {
		t.Fatal(err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.ParseAccess(tampered); !errors.Is(err, ErrInvalid) {
		t.Fatalf("got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	m := newTestManager(t, testConfig())

	other := testConfig()
	other.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	m2 := newTestManager(t, other)

	token, _, err := m.CreateAccess("user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m2.ParseAccess(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("got %v", err)
	}
}

func TestUniqueTokensPerMint(t *testing.T) {
	m := newTestManager(t, testConfig())

	first, _, err := m.CreateRefresh("user-1")
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := m.CreateRefresh("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("two mints produced identical tokens")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.SigningMethod = MethodEd25519
	cfg.PrivateKey = priv
	cfg.PublicKey = pub
	m := newTestManager(t, cfg)

	token, _, err := m.CreateAccess("user-1", "member")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}

func TestManagerConfigValidation(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshTTL = time.Second
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected error for refresh TTL shorter than access TTL")
	}

	cfg = testConfig()
	cfg.PrivateKey = nil
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected error for missing hs256 key")
	}
}
