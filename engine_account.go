package sessionauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/sessionauth/audit"
)

// Signup creates an account. The identifier is normalized before storage
// and duplicate identifiers surface ErrAccountExists.
func (e *Engine) Signup(ctx context.Context, input NewAccount) (*User, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if len(input.Password) < e.config.Password.MinLength {
		return nil, ErrPasswordPolicy
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.store.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, audit.ActionSignup, false, "", email, ErrAccountExists)
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, audit.ActionSignup, true, account.ID, email, nil)

	user := account.user()
	return &user, nil
}

// ChangePassword verifies the current password, applies policy to the
// new one, and stores a fresh hash. The stored refresh token is cleared
// and both presented tokens should be revoked by a following Logout if
// the caller wants all sessions ended.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	account, err := e.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(current, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, audit.ActionPasswordChange, false, userID, account.Email, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	if len(next) < e.config.Password.MinLength {
		e.metricInc(MetricPasswordChangeFailure)
		return ErrPasswordPolicy
	}
	if next == current {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, audit.ActionPasswordChange, false, userID, account.Email, ErrPasswordReuse)
		return ErrPasswordReuse
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Invalidate the standing refresh token so stolen pairs minted under
	// the old password stop rotating.
	if err := e.store.ClearRefreshToken(ctx, userID); err != nil {
		e.logger.Warn("refresh token clear failed", zap.String("user_id", userID), zap.Error(err))
	}

	if e.lockout != nil {
		if err := e.lockout.RecordSuccess(ctx, account.Email); err != nil {
			e.logger.Warn("lockout reset failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, audit.ActionPasswordChange, true, userID, account.Email, nil)
	return nil
}

// MarkEmailVerified flips the verification flag for an account.
func (e *Engine) MarkEmailVerified(ctx context.Context, userID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.SetEmailVerified(ctx, userID, true); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Suspend blocks logins and refreshes for the account and clears its
// standing refresh token so existing sessions die at access expiry.
func (e *Engine) Suspend(ctx context.Context, userID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	now := time.Now().UTC()
	if err := e.store.SetSuspended(ctx, userID, &now); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.store.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, ErrAccountNotFound) {
		e.logger.Warn("refresh token clear failed", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// Reinstate lifts a suspension.
func (e *Engine) Reinstate(ctx context.Context, userID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.SetSuspended(ctx, userID, nil); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
