package sessionauth

import (
	"context"
	"errors"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	engine, _, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	ctx := context.Background()
	user, err := engine.Signup(ctx, NewAccount{
		Email:    "Bob@Example.com",
		Password: "a-long-enough-password",
		Role:     "member",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Email != "bob@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}

	if _, err := engine.Login(ctx, "bob@example.com", "a-long-enough-password"); err != nil {
		t.Fatalf("login after signup: %v", err)
	}
}

func TestSignupDuplicateIdentifier(t *testing.T) {
	engine, _, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	ctx := context.Background()
	input := NewAccount{Email: "bob@example.com", Password: "a-long-enough-password"}

	if _, err := engine.Signup(ctx, input); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, err := engine.Signup(ctx, input); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate signup: got %v", err)
	}
}

func TestSignupPasswordPolicy(t *testing.T) {
	engine, _, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	_, err := engine.Signup(context.Background(), NewAccount{
		Email:    "bob@example.com",
		Password: "short",
	})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	engine, store, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	account, pair := loginPair(t, engine, store)
	ctx := context.Background()

	if err := engine.ChangePassword(ctx, account.ID, "wrong-current-pass", "another-long-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current: got %v", err)
	}
	if err := engine.ChangePassword(ctx, account.ID, "correct-password-123", "correct-password-123"); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("reuse: got %v", err)
	}
	if err := engine.ChangePassword(ctx, account.ID, "correct-password-123", "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("policy: got %v", err)
	}

	if err := engine.ChangePassword(ctx, account.ID, "correct-password-123", "another-long-password"); err != nil {
		t.Fatalf("change: %v", err)
	}

	// Standing refresh token is invalidated by the change.
	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReplayed) {
		t.Fatalf("old refresh after change: got %v", err)
	}

	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password: got %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "another-long-password"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestSuspendAndReinstate(t *testing.T) {
	engine, store, _, done := newTestEngine(t, engineTestConfig())
	defer done()

	account, pair := loginPair(t, engine, store)
	ctx := context.Background()

	if err := engine.Suspend(ctx, account.ID); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("suspended login: got %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("suspended refresh: got %v", err)
	}

	if err := engine.Reinstate(ctx, account.ID); err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); err != nil {
		t.Fatalf("reinstated login: %v", err)
	}
}
