// Package memory provides an in-process AccountStore for tests and
// single-node deployments. All mutations run under one mutex, which
// makes SwapRefreshToken a true compare-and-set.
package memory

import (
	"context"
	"sync"
	"time"

	sessionauth "github.com/MrEthical07/sessionauth"
)

// Store holds accounts in two maps, by ID and by normalized email.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*sessionauth.Account
	byEmail map[string]*sessionauth.Account
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]*sessionauth.Account),
		byEmail: make(map[string]*sessionauth.Account),
	}
}

func cloneAccount(a *sessionauth.Account) *sessionauth.Account {
	out := *a
	if a.SuspendedAt != nil {
		t := *a.SuspendedAt
		out.SuspendedAt = &t
	}
	return &out
}

// Create inserts an account, rejecting duplicate emails.
func (s *Store) Create(_ context.Context, account *sessionauth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[account.Email]; exists {
		return sessionauth.ErrAccountExists
	}

	stored := cloneAccount(account)
	s.byID[stored.ID] = stored
	s.byEmail[stored.Email] = stored
	return nil
}

// GetByEmail returns a copy of the account for email.
func (s *Store) GetByEmail(_ context.Context, email string) (*sessionauth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byEmail[email]
	if !ok {
		return nil, sessionauth.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

// GetByID returns a copy of the account for id.
func (s *Store) GetByID(_ context.Context, id string) (*sessionauth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, sessionauth.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return sessionauth.ErrAccountNotFound
	}
	account.PasswordHash = passwordHash
	return nil
}

// SetRefreshToken unconditionally overwrites the stored refresh token.
func (s *Store) SetRefreshToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return sessionauth.ErrAccountNotFound
	}
	account.CurrentRefreshToken = token
	return nil
}

// SwapRefreshToken replaces current with next only while the stored
// value still equals current.
func (s *Store) SwapRefreshToken(_ context.Context, id, current, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return false, sessionauth.ErrAccountNotFound
	}
	if account.CurrentRefreshToken != current {
		return false, nil
	}
	account.CurrentRefreshToken = next
	return true, nil
}

// ClearRefreshToken empties the stored refresh token.
func (s *Store) ClearRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return sessionauth.ErrAccountNotFound
	}
	account.CurrentRefreshToken = ""
	return nil
}

// SetEmailVerified flips the verification flag.
func (s *Store) SetEmailVerified(_ context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return sessionauth.ErrAccountNotFound
	}
	account.EmailVerified = verified
	return nil
}

// SetSuspended marks or clears the suspension timestamp.
func (s *Store) SetSuspended(_ context.Context, id string, suspendedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return sessionauth.ErrAccountNotFound
	}
	if suspendedAt != nil {
		t := *suspendedAt
		account.SuspendedAt = &t
	} else {
		account.SuspendedAt = nil
	}
	return nil
}
