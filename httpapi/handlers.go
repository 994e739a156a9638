// Package httpapi exposes the engine's four authentication endpoints as
// JSON over HTTP. Transport concerns stay here; all semantics live in
// the engine.
package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	sessionauth "github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/middleware"
)

// Handler serves the /auth endpoints.
type Handler struct {
	engine *sessionauth.Engine
	logger *zap.Logger
}

// NewHandler wires the endpoints around engine. A nil logger is replaced
// with a no-op one.
func NewHandler(engine *sessionauth.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, logger: logger}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/signup", h.signup)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("POST /auth/logout", h.logout)
	mux.Handle("GET /auth/me", middleware.Guard(h.engine)(http.HandlerFunc(h.me)))
}

type userPayload struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Role          string `json:"role,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

type tokensPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

func toUserPayload(u sessionauth.User) userPayload {
	return userPayload{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}
}

func toTokensPayload(t sessionauth.TokenPair) tokensPayload {
	return tokensPayload{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.AccessExpiresAt.Unix(),
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := sessionauth.WithClientIP(r.Context(), clientIP(r))
	result, err := h.engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":   toUserPayload(result.User),
		"tokens": toTokensPayload(result.Tokens),
	})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := sessionauth.WithClientIP(r.Context(), clientIP(r))
	user, err := h.engine.Signup(ctx, sessionauth.NewAccount{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserPayload(*user)})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := sessionauth.WithClientIP(r.Context(), clientIP(r))
	result, err := h.engine.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	tokens := toTokensPayload(result.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"expiresAt":    tokens.ExpiresAt,
		"user":         toUserPayload(result.User),
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	// The body is optional on logout.
	_ = json.NewDecoder(r.Body).Decode(&req)

	access := bearerToken(r.Header.Get("Authorization"))

	ctx := sessionauth.WithClientIP(r.Context(), clientIP(r))
	if err := h.engine.Logout(ctx, access, req.RefreshToken); err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	access := bearerToken(r.Header.Get("Authorization"))
	user, err := h.engine.Me(r.Context(), access)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": toUserPayload(*user)})
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionauth.ErrInvalidCredentials),
		errors.Is(err, sessionauth.ErrTokenInvalid),
		errors.Is(err, sessionauth.ErrTokenExpired),
		errors.Is(err, sessionauth.ErrTokenTypeMismatch),
		errors.Is(err, sessionauth.ErrTokenReplayed),
		errors.Is(err, sessionauth.ErrStorageConflict),
		errors.Is(err, sessionauth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, sessionauth.ErrAccountLocked):
		writeError(w, http.StatusLocked, "account locked")
	case errors.Is(err, sessionauth.ErrAccountSuspended),
		errors.Is(err, sessionauth.ErrEmailUnverified):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, sessionauth.ErrLoginRateLimited),
		errors.Is(err, sessionauth.ErrRefreshRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many requests")
	case errors.Is(err, sessionauth.ErrAccountExists):
		writeError(w, http.StatusConflict, "account already exists")
	case errors.Is(err, sessionauth.ErrPasswordPolicy):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("auth request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func bearerToken(value string) string {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return ""
	}
	return value[len(bearer):]
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
