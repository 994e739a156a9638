package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	sessionauth "github.com/MrEthical07/sessionauth"
)

// Store implements sessionauth.AccountStore on PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE accounts (
//	    id                    UUID PRIMARY KEY,
//	    email                 TEXT NOT NULL UNIQUE,
//	    password_hash         TEXT NOT NULL,
//	    role                  TEXT NOT NULL DEFAULT '',
//	    email_verified        BOOLEAN NOT NULL DEFAULT FALSE,
//	    suspended_at          TIMESTAMPTZ,
//	    current_refresh_token TEXT NOT NULL DEFAULT '',
//	    created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Store struct{ db *DB }

// NewStore constructs an account store over db.
func NewStore(db *DB) *Store { return &Store{db: db} }

const accountColumns = `id, email, password_hash, role, email_verified, suspended_at, current_refresh_token, created_at`

// Create inserts an account row.
func (s *Store) Create(ctx context.Context, a *sessionauth.Account) error {
	const q = `
INSERT INTO accounts (id, email, password_hash, role, email_verified, suspended_at, current_refresh_token, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Pool.Exec(ctx, q,
		a.ID, a.Email, a.PasswordHash, a.Role, a.EmailVerified, a.SuspendedAt, a.CurrentRefreshToken, a.CreatedAt)
	if isUniqueViolation(err) {
		return sessionauth.ErrAccountExists
	}
	return err
}

func scanAccount(row pgx.Row) (*sessionauth.Account, error) {
	var a sessionauth.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role,
		&a.EmailVerified, &a.SuspendedAt, &a.CurrentRefreshToken, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sessionauth.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByEmail selects an account by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*sessionauth.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(s.db.Pool.QueryRow(ctx, q, email))
}

// GetByID selects an account by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*sessionauth.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.Pool.QueryRow(ctx, q, id))
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	const q = `UPDATE accounts SET password_hash = $2 WHERE id = $1`
	tag, err := s.db.Pool.Exec(ctx, q, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sessionauth.ErrAccountNotFound
	}
	return nil
}

// SetRefreshToken unconditionally overwrites the stored refresh token.
func (s *Store) SetRefreshToken(ctx context.Context, id, token string) error {
	const q = `UPDATE accounts SET current_refresh_token = $2 WHERE id = $1`
	tag, err := s.db.Pool.Exec(ctx, q, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sessionauth.ErrAccountNotFound
	}
	return nil
}

// SwapRefreshToken is the rotation compare-and-set. The WHERE clause
// pins the current value, so of any number of concurrent swaps exactly
// one updates a row.
func (s *Store) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	const q = `
UPDATE accounts
SET current_refresh_token = $3
WHERE id = $1 AND current_refresh_token = $2`
	tag, err := s.db.Pool.Exec(ctx, q, id, current, next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClearRefreshToken empties the stored refresh token.
func (s *Store) ClearRefreshToken(ctx context.Context, id string) error {
	const q = `UPDATE accounts SET current_refresh_token = '' WHERE id = $1`
	tag, err := s.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sessionauth.ErrAccountNotFound
	}
	return nil
}

// SetEmailVerified flips the verification flag.
func (s *Store) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	const q = `UPDATE accounts SET email_verified = $2 WHERE id = $1`
	tag, err := s.db.Pool.Exec(ctx, q, id, verified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sessionauth.ErrAccountNotFound
	}
	return nil
}

// SetSuspended marks or clears the suspension timestamp.
func (s *Store) SetSuspended(ctx context.Context, id string, suspendedAt *time.Time) error {
	const q = `UPDATE accounts SET suspended_at = $2 WHERE id = $1`
	tag, err := s.db.Pool.Exec(ctx, q, id, suspendedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sessionauth.ErrAccountNotFound
	}
	return nil
}
