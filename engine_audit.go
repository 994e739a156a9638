package sessionauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionauth/audit"
)

type auditErrorCode string

const (
	auditErrInvalidCredentials auditErrorCode = "invalid_credentials"
	auditErrLocked             auditErrorCode = "account_locked"
	auditErrSuspended          auditErrorCode = "account_suspended"
	auditErrUnverified         auditErrorCode = "email_unverified"
	auditErrRateLimited        auditErrorCode = "rate_limited"
	auditErrTokenInvalid       auditErrorCode = "invalid_token"
	auditErrTokenExpired       auditErrorCode = "token_expired"
	auditErrReplay             auditErrorCode = "token_replay"
	auditErrConflict           auditErrorCode = "storage_conflict"
	auditErrDuplicate          auditErrorCode = "duplicate"
	auditErrPasswordPolicy     auditErrorCode = "password_policy"
	auditErrPasswordReuse      auditErrorCode = "password_reuse"
	auditErrUnavailable        auditErrorCode = "backend_unavailable"
	auditErrInternal           auditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(ctx context.Context, action string, success bool, userID, email string, err error) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if code := classifyAuditError(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func classifyAuditError(err error) auditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrLocked
	case errors.Is(err, ErrAccountSuspended):
		return auditErrSuspended
	case errors.Is(err, ErrEmailUnverified):
		return auditErrUnverified
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenReplayed):
		return auditErrReplay
	case errors.Is(err, ErrStorageConflict):
		return auditErrConflict
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenTypeMismatch),
		errors.Is(err, ErrUnauthorized):
		return auditErrTokenInvalid
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
