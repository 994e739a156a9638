package sessionauth

import (
	"context"
	"time"
)

// Account is the credential-store record the engine operates on. The
// store owns persistence; the engine owns the semantics of every field.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	Role          string
	EmailVerified bool
	SuspendedAt   *time.Time
	// CurrentRefreshToken is the single valid refresh token for the
	// account. A presented refresh token that verifies cryptographically
	// but does not equal this value exactly is a replay.
	CurrentRefreshToken string
	CreatedAt           time.Time
}

// Suspended reports whether the account is currently suspended.
func (a *Account) Suspended() bool {
	return a != nil && a.SuspendedAt != nil
}

// NewAccount is the input to Engine.Signup.
type NewAccount struct {
	Email    string
	Password string
	Role     string
}

// TokenPair is one issued access/refresh pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult is the outcome of validating an access token.
type AuthResult struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// User is the caller-facing view of an account, returned by login,
// refresh, and Me. It never exposes the password hash or refresh token.
type User struct {
	ID            string
	Email         string
	Role          string
	EmailVerified bool
	CreatedAt     time.Time
}

func (a *Account) user() User {
	return User{
		ID:            a.ID,
		Email:         a.Email,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
	}
}

// AccountStore is the external credential store. Implementations must
// make SwapRefreshToken an atomic compare-and-set: of any number of
// concurrent swaps presenting the same current value, exactly one may
// succeed. Lookups for missing accounts return ErrAccountNotFound.
type AccountStore interface {
	Create(ctx context.Context, account *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	// SetRefreshToken unconditionally overwrites the stored refresh
	// token, superseding any prior value. Used on login.
	SetRefreshToken(ctx context.Context, id, token string) error
	// SwapRefreshToken replaces current with next only if the stored
	// value still equals current. Returns false when another writer won.
	SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	SetSuspended(ctx context.Context, id string, suspendedAt *time.Time) error
}
