package sessionauth

import "errors"

var (
	// ErrInvalidCredentials covers wrong password and unknown identifier
	// alike, so callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked reports that the lockout guard is refusing logins.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountSuspended reports a suspended account.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrEmailUnverified reports that login requires email verification.
	ErrEmailUnverified = errors.New("email unverified")
	// ErrAccountNotFound reports a missing account record.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists reports a duplicate identifier on signup.
	ErrAccountExists = errors.New("account already exists")
	// ErrTokenInvalid reports a token that fails verification.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired reports a structurally valid token past expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenTypeMismatch reports a token used outside its typ claim.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrTokenReplayed reports a refresh token that no longer matches the
	// stored value, or a revoked token presented again.
	ErrTokenReplayed = errors.New("token replay detected")
	// ErrStorageConflict reports a lost refresh rotation race. Callers
	// treat it as a replay.
	ErrStorageConflict = errors.New("storage conflict")
	// ErrStoreUnavailable reports a transient backend failure.
	ErrStoreUnavailable = errors.New("storage backend unavailable")
	// ErrLoginRateLimited reports the per-IP login throttle firing.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited reports the per-subject refresh throttle firing.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrUnauthorized is the generic rejection for failed validation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPasswordPolicy reports a password below the configured minimum.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse reports a password change to the same password.
	ErrPasswordReuse = errors.New("new password must differ from current password")
	// ErrEngineNotReady reports use of an unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
