package sessionauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/sessionauth/audit"
	"github.com/MrEthical07/sessionauth/internal/limiters"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/ledger"
	"github.com/MrEthical07/sessionauth/password"
)

// Engine is the authentication core: credential verification, token pair
// issuance and rotation, replay detection, and lockout. Build one through
// the Builder and share it; every method is safe for concurrent use.
type Engine struct {
	config   Config
	store    AccountStore
	ledger   ledger.Ledger
	lockout  *limiters.LockoutGuard
	throttle *rate.Throttle
	hasher   *password.Hasher
	tokens   *jwt.Manager
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   *zap.Logger
}

// LoginResult is the outcome of a successful login or refresh.
type LoginResult struct {
	User   User
	Tokens TokenPair
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events discarded due to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login verifies credentials and issues a fresh token pair. The new
// refresh token supersedes any previously stored one; the old value is
// not revoked explicitly because it can no longer pass the stored-value
// equality check. Wrong password and unknown identifier return the same
// ErrInvalidCredentials, and both count toward lockout.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	// The lockout check runs before any password comparison, and for
	// identifiers without an account too, so lockout behavior cannot be
	// used to probe which accounts exist.
	if e.lockout != nil {
		if err := e.lockout.CheckAllowed(ctx, email); err != nil {
			if errors.Is(err, limiters.ErrLocked) {
				e.metricInc(MetricLoginLocked)
				e.emitAudit(ctx, audit.ActionLogin, false, "", email, ErrAccountLocked)
				return nil, ErrAccountLocked
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if e.throttle != nil {
		if err := e.throttle.AllowLogin(ctx, ip); err != nil {
			if errors.Is(err, rate.ErrThrottled) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, audit.ActionLogin, false, "", email, ErrLoginRateLimited)
				return nil, ErrLoginRateLimited
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	account, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, e.failLogin(ctx, email)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if plaintext == "" {
		return nil, e.failLogin(ctx, email)
	}

	ok, err := e.hasher.Verify(plaintext, account.PasswordHash)
	if err != nil {
		if errors.Is(err, password.ErrMalformedHash) {
			e.logger.Warn("unreadable password hash", zap.String("user_id", account.ID))
			return nil, e.failLogin(ctx, email)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, e.failLogin(ctx, email)
	}

	if account.Suspended() {
		e.emitAudit(ctx, audit.ActionLogin, false, account.ID, email, ErrAccountSuspended)
		return nil, ErrAccountSuspended
	}
	if e.config.Security.RequireVerifiedEmail && !account.EmailVerified {
		e.emitAudit(ctx, audit.ActionLogin, false, account.ID, email, ErrEmailUnverified)
		return nil, ErrEmailUnverified
	}

	if e.config.Password.RehashOnLogin {
		e.rehashIfWeaker(ctx, account, plaintext)
	}

	if e.lockout != nil {
		if err := e.lockout.RecordSuccess(ctx, email); err != nil {
			e.logger.Warn("lockout reset failed", zap.String("user_id", account.ID), zap.Error(err))
		}
	}

	pair, err := e.mintPair(account)
	if err != nil {
		return nil, err
	}

	if err := e.store.SetRefreshToken(ctx, account.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, audit.ActionLogin, true, account.ID, email, nil)

	return &LoginResult{User: account.user(), Tokens: *pair}, nil
}

// failLogin records one lockout failure for identifier and returns the
// caller-facing error. Crossing the threshold surfaces ErrAccountLocked.
func (e *Engine) failLogin(ctx context.Context, identifier string) error {
	e.metricInc(MetricLoginFailure)

	if e.lockout != nil {
		_, err := e.lockout.RecordFailure(ctx, identifier)
		if errors.Is(err, limiters.ErrLocked) {
			e.metricInc(MetricLoginLocked)
			e.emitAudit(ctx, audit.ActionLockout, false, "", identifier, ErrAccountLocked)
			return ErrAccountLocked
		}
		if err != nil {
			e.logger.Warn("lockout record failed", zap.Error(err))
		}
	}

	e.emitAudit(ctx, audit.ActionLogin, false, "", identifier, ErrInvalidCredentials)
	return ErrInvalidCredentials
}

func (e *Engine) rehashIfWeaker(ctx context.Context, account *Account, plaintext string) {
	needs, err := e.hasher.NeedsRehash(account.PasswordHash)
	if err != nil || !needs {
		return
	}

	rehashed, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.String("user_id", account.ID), zap.Error(err))
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, account.ID, rehashed); err != nil {
		e.logger.Warn("password rehash store failed", zap.String("user_id", account.ID), zap.Error(err))
		return
	}
	account.PasswordHash = rehashed
}

func (e *Engine) mintPair(account *Account) (*TokenPair, error) {
	access, accessExp, err := e.tokens.CreateAccess(account.ID, account.Role)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := e.tokens.CreateRefresh(account.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh rotates the token pair. The presented token must verify, match
// the stored current refresh token exactly, and be absent from the
// revocation ledger. The rotation itself is a compare-and-set on the
// store: of two concurrent refreshes with the same token, exactly one
// wins; the loser gets ErrStorageConflict and must treat it as a replay.
func (e *Engine) Refresh(ctx context.Context, presented string) (*LoginResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.ParseRefresh(presented)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		mapped := mapTokenError(err)
		e.emitAudit(ctx, audit.ActionRefresh, false, "", "", mapped)
		return nil, mapped
	}

	if e.throttle != nil {
		if err := e.throttle.AllowRefresh(ctx, claims.Subject); err != nil {
			if errors.Is(err, rate.ErrThrottled) {
				e.metricInc(MetricRefreshRateLimited)
				e.emitAudit(ctx, audit.ActionRefresh, false, claims.Subject, "", ErrRefreshRateLimited)
				return nil, ErrRefreshRateLimited
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	account, err := e.store.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, audit.ActionRefresh, false, claims.Subject, "", ErrUnauthorized)
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if account.Suspended() {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.ActionRefresh, false, account.ID, account.Email, ErrAccountSuspended)
		return nil, ErrAccountSuspended
	}

	// A token that verifies cryptographically but is not the stored
	// current value has already been rotated away: a replay.
	if account.CurrentRefreshToken == "" || presented != account.CurrentRefreshToken {
		e.metricInc(MetricRefreshReplay)
		e.emitAudit(ctx, audit.ActionRefresh, false, account.ID, account.Email, ErrTokenReplayed)
		return nil, ErrTokenReplayed
	}

	// Ledger check catches tokens revoked by explicit logout before the
	// store cleared them. Defense in depth behind the equality check.
	revoked, err := e.ledger.Contains(ctx, presented)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		e.metricInc(MetricRefreshReplay)
		e.emitAudit(ctx, audit.ActionRefresh, false, account.ID, account.Email, ErrTokenReplayed)
		return nil, ErrTokenReplayed
	}

	pair, err := e.mintPair(account)
	if err != nil {
		return nil, err
	}

	swapped, err := e.store.SwapRefreshToken(ctx, account.ID, presented, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !swapped {
		e.metricInc(MetricRefreshConflict)
		e.emitAudit(ctx, audit.ActionRefresh, false, account.ID, account.Email, ErrStorageConflict)
		return nil, ErrStorageConflict
	}

	// Best effort: the equality check above already rejects the
	// superseded token, the ledger entry only widens coverage across
	// processes that have not observed the swap yet.
	if claims.ExpiresAt != nil {
		if err := e.ledger.Record(ctx, presented, claims.ExpiresAt.Time); err != nil {
			e.logger.Warn("ledger record failed", zap.String("user_id", account.ID), zap.Error(err))
		}
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, audit.ActionRefresh, true, account.ID, account.Email, nil)

	return &LoginResult{User: account.user(), Tokens: *pair}, nil
}

// Logout revokes both tokens until their natural expiry and clears the
// stored refresh token. Unparsable tokens are skipped, so a second
// logout with the same tokens is harmless.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	var subject string

	if accessToken != "" {
		if claims, err := e.tokens.ParseAccess(accessToken); err == nil {
			subject = claims.Subject
			if claims.ExpiresAt != nil {
				if err := e.ledger.Record(ctx, accessToken, claims.ExpiresAt.Time); err != nil {
					return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
				}
			}
		}
	}

	if refreshToken != "" {
		if claims, err := e.tokens.ParseRefresh(refreshToken); err == nil {
			subject = claims.Subject
			if claims.ExpiresAt != nil {
				if err := e.ledger.Record(ctx, refreshToken, claims.ExpiresAt.Time); err != nil {
					return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
				}
			}
		}
	}

	if subject != "" {
		if err := e.store.ClearRefreshToken(ctx, subject); err != nil && !errors.Is(err, ErrAccountNotFound) {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, audit.ActionLogout, true, subject, "", nil)
	return nil
}

// Validate verifies an access token and consults the revocation ledger,
// so explicit logout takes effect immediately.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()

	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, mapTokenError(err)
	}

	revoked, err := e.ledger.Contains(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		e.metricInc(MetricValidateFailure)
		return nil, ErrTokenReplayed
	}

	e.metricInc(MetricValidateSuccess)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	result := &AuthResult{
		UserID: claims.Subject,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// Me validates the access token and loads the caller's account.
func (e *Engine) Me(ctx context.Context, accessToken string) (*User, error) {
	result, err := e.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	account, err := e.store.GetByID(ctx, result.UserID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	user := account.user()
	return &user, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTypeMismatch):
		return ErrTokenTypeMismatch
	default:
		return ErrTokenInvalid
	}
}
