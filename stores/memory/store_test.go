package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sessionauth "github.com/MrEthical07/sessionauth"
)

func seed(t *testing.T, s *Store) *sessionauth.Account {
	t.Helper()

	account := &sessionauth.Account{
		ID:                  "user-1",
		Email:               "alice@example.com",
		PasswordHash:        "hash",
		Role:                "member",
		EmailVerified:       true,
		CurrentRefreshToken: "refresh-0",
		CreatedAt:           time.Now(),
	}
	if err := s.Create(context.Background(), account); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return account
}

func TestCreateAndLookup(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	byEmail, err := s.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	byID, err := s.GetByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byEmail.ID != byID.ID || byEmail.Email != byID.Email {
		t.Fatal("lookups disagree")
	}

	if _, err := s.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, sessionauth.ErrAccountNotFound) {
		t.Fatalf("got %v, want ErrAccountNotFound", err)
	}
	if _, err := s.GetByID(ctx, "user-404"); !errors.Is(err, sessionauth.ErrAccountNotFound) {
		t.Fatalf("got %v, want ErrAccountNotFound", err)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	s := NewStore()
	seed(t, s)

	dup := &sessionauth.Account{ID: "user-2", Email: "alice@example.com"}
	if err := s.Create(context.Background(), dup); !errors.Is(err, sessionauth.ErrAccountExists) {
		t.Fatalf("got %v, want ErrAccountExists", err)
	}
}

func TestReturnedAccountIsACopy(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	got, err := s.GetByID(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	got.PasswordHash = "tampered"

	again, err := s.GetByID(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.PasswordHash != "hash" {
		t.Fatal("mutating a returned account changed stored state")
	}
}

func TestSwapRefreshToken(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	ok, err := s.SwapRefreshToken(ctx, "user-1", "refresh-0", "refresh-1")
	if err != nil {
		t.Fatalf("SwapRefreshToken: %v", err)
	}
	if !ok {
		t.Fatal("swap with matching current value failed")
	}

	// The old value no longer matches.
	ok, err = s.SwapRefreshToken(ctx, "user-1", "refresh-0", "refresh-2")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("swap with stale current value succeeded")
	}

	account, err := s.GetByID(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if account.CurrentRefreshToken != "refresh-1" {
		t.Fatalf("stored token = %q, want refresh-1", account.CurrentRefreshToken)
	}

	if _, err := s.SwapRefreshToken(ctx, "user-404", "x", "y"); !errors.Is(err, sessionauth.ErrAccountNotFound) {
		t.Fatalf("got %v, want ErrAccountNotFound", err)
	}
}

func TestSwapRefreshTokenSingleWinner(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	const racers = 16
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.SwapRefreshToken(ctx, "user-1", "refresh-0", "next")
			if err != nil {
				t.Errorf("SwapRefreshToken: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("%d racers won the swap, want exactly 1", wins.Load())
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	if err := s.SetRefreshToken(ctx, "user-1", "refresh-9"); err != nil {
		t.Fatal(err)
	}
	account, _ := s.GetByID(ctx, "user-1")
	if account.CurrentRefreshToken != "refresh-9" {
		t.Fatalf("stored token = %q", account.CurrentRefreshToken)
	}

	if err := s.ClearRefreshToken(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	account, _ = s.GetByID(ctx, "user-1")
	if account.CurrentRefreshToken != "" {
		t.Fatal("token not cleared")
	}
}

func TestAccountFieldUpdates(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	if err := s.UpdatePasswordHash(ctx, "user-1", "hash-2"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetEmailVerified(ctx, "user-1", false); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := s.SetSuspended(ctx, "user-1", &now); err != nil {
		t.Fatal(err)
	}

	account, _ := s.GetByID(ctx, "user-1")
	if account.PasswordHash != "hash-2" || account.EmailVerified || !account.Suspended() {
		t.Fatalf("updates not applied: %+v", account)
	}

	if err := s.SetSuspended(ctx, "user-1", nil); err != nil {
		t.Fatal(err)
	}
	account, _ = s.GetByID(ctx, "user-1")
	if account.Suspended() {
		t.Fatal("suspension not cleared")
	}

	if err := s.UpdatePasswordHash(ctx, "user-404", "x"); !errors.Is(err, sessionauth.ErrAccountNotFound) {
		t.Fatalf("got %v, want ErrAccountNotFound", err)
	}
}
