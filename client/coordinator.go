// Package client implements the caller-side refresh coordinator: a
// single-flight gate guaranteeing that any number of requests that
// concurrently observe an expired or rejected access token trigger
// exactly one refresh call, with every other request waiting for its
// outcome.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	sessionauth "github.com/MrEthical07/sessionauth"
)

var (
	// ErrNoSession reports that no session is established.
	ErrNoSession = errors.New("no active session")
	// ErrSessionExpired reports a terminal refresh failure. The caller
	// must re-authenticate.
	ErrSessionExpired = errors.New("session expired")
	// ErrRetriesExhausted reports that transient refresh failures hit the
	// retry ceiling. The durable refresh token is kept; a later attempt
	// may still succeed.
	ErrRetriesExhausted = errors.New("refresh retries exhausted")
)

// TokenStore persists the refresh token across process restarts. The
// access token stays in memory only.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, refreshToken string) error
	Clear(ctx context.Context) error
}

// RefreshFunc calls the server's refresh endpoint with the durable token.
type RefreshFunc func(ctx context.Context, refreshToken string) (*sessionauth.TokenPair, error)

// Config assembles a Coordinator.
type Config struct {
	Refresh RefreshFunc
	Store   TokenStore
	// AccessTTL is the nominal access token lifetime, used to arm the
	// proactive refresh timer.
	AccessTTL time.Duration
	// ProactiveFraction of AccessTTL at which the proactive refresh
	// fires. Defaults to 0.875.
	ProactiveFraction float64
	// MaxRetries bounds transient-failure retries per refresh.
	MaxRetries int
	// Backoff is the delay before each transient retry, doubled per
	// attempt.
	Backoff time.Duration
	// CallTimeout bounds a single refresh call so a hung network is
	// classified as transient instead of blocking waiters forever.
	CallTimeout time.Duration
	// IsTerminal classifies refresh errors. Terminal failures end the
	// session; everything else is retried. Defaults to treating the
	// sessionauth token and credential rejections as terminal.
	IsTerminal func(error) bool
	Logger     *zap.Logger
}

type outcome struct {
	token        string
	refreshToken string
	err          error
}

// Coordinator serializes refreshes for one session. All methods are safe
// for concurrent use.
type Coordinator struct {
	cfg Config

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	lastRefresh time.Time
	refreshing  bool
	waiters     []chan outcome
	generation  uint64
	timer       *time.Timer
	closed      bool
}

// NewCoordinator validates cfg and returns an idle Coordinator. Call
// SetSession after login to arm it.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Refresh == nil {
		return nil, errors.New("refresh function required")
	}
	if cfg.Store == nil {
		return nil, errors.New("token store required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access TTL must be positive")
	}
	if cfg.ProactiveFraction <= 0 || cfg.ProactiveFraction >= 1 {
		cfg.ProactiveFraction = 0.875
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.IsTerminal == nil {
		cfg.IsTerminal = defaultIsTerminal
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Coordinator{cfg: cfg}, nil
}

func defaultIsTerminal(err error) bool {
	return errors.Is(err, sessionauth.ErrUnauthorized) ||
		errors.Is(err, sessionauth.ErrTokenInvalid) ||
		errors.Is(err, sessionauth.ErrTokenExpired) ||
		errors.Is(err, sessionauth.ErrTokenTypeMismatch) ||
		errors.Is(err, sessionauth.ErrTokenReplayed) ||
		errors.Is(err, sessionauth.ErrStorageConflict) ||
		errors.Is(err, sessionauth.ErrInvalidCredentials) ||
		errors.Is(err, sessionauth.ErrAccountSuspended)
}

// SetSession installs a freshly issued pair after login, persists the
// refresh token, and arms the proactive timer.
func (c *Coordinator) SetSession(ctx context.Context, pair sessionauth.TokenPair) error {
	if err := c.cfg.Store.Save(ctx, pair.RefreshToken); err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = pair.AccessToken
	c.expiresAt = pair.AccessExpiresAt
	c.lastRefresh = time.Now()
	c.armTimerLocked()
	c.mu.Unlock()
	return nil
}

// AccessToken returns the current in-memory access token, empty when no
// session is active.
func (c *Coordinator) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// OnUnauthorized is the entry point for a request that was rejected with
// unauthorized. If a refresh is already in flight the caller waits for
// its outcome; otherwise this caller becomes the sole refresher. The
// returned token is the new access token to retry with.
func (c *Coordinator) OnUnauthorized(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan outcome, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case out := <-ch:
			return out.token, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	c.refreshing = true
	gen := c.generation
	c.mu.Unlock()

	out := c.runRefresh(ctx, gen)
	return out.token, out.err
}

// OnWake re-checks session freshness after the host process regains
// foreground visibility or network connectivity. If more than half the
// access lifetime has elapsed since the last refresh, an out-of-band
// refresh is started in the background.
func (c *Coordinator) OnWake() {
	c.mu.Lock()
	stale := c.accessToken != "" && time.Since(c.lastRefresh) > c.cfg.AccessTTL/2
	c.mu.Unlock()

	if stale {
		c.triggerBackground()
	}
}

// Logout clears all local session state. An in-flight refresh is left to
// finish, but its result is discarded. The durable refresh token is
// removed from the store.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	c.accessToken = ""
	c.expiresAt = time.Time{}
	c.stopTimerLocked()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome{err: ErrSessionExpired}
	}

	return c.cfg.Store.Clear(ctx)
}

// Close stops the proactive timer. The coordinator must not be reused.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()
}

// triggerBackground starts a refresh unless one is already running.
func (c *Coordinator) triggerBackground() {
	c.mu.Lock()
	if c.refreshing || c.closed || c.accessToken == "" {
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	gen := c.generation
	c.mu.Unlock()

	go c.runRefresh(context.Background(), gen)
}

// runRefresh is the sole refresher: it retries transient failures with
// doubling backoff up to the configured ceiling, then settles every
// waiter with the final outcome.
func (c *Coordinator) runRefresh(ctx context.Context, gen uint64) outcome {
	refreshToken, err := c.cfg.Store.Load(ctx)
	if err != nil || refreshToken == "" {
		return c.settle(gen, outcome{err: ErrNoSession}, false)
	}

	backoff := c.cfg.Backoff
	var lastErr error

	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		pair, err := c.cfg.Refresh(callCtx, refreshToken)
		cancel()

		if err == nil {
			return c.settle(gen, outcome{token: pair.AccessToken, refreshToken: pair.RefreshToken}, false)
		}

		if c.cfg.IsTerminal(err) {
			c.cfg.Logger.Info("refresh rejected, session terminated", zap.Error(err))
			return c.settle(gen, outcome{err: ErrSessionExpired}, true)
		}

		lastErr = err
		if attempt >= c.cfg.MaxRetries {
			break
		}

		c.cfg.Logger.Warn("transient refresh failure, retrying",
			zap.Int("attempt", attempt+1), zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return c.settle(gen, outcome{err: ctx.Err()}, false)
		}
		backoff *= 2
	}

	// Retries exhausted. Waiters fail, but the durable token survives:
	// a later user action may refresh successfully.
	c.cfg.Logger.Warn("refresh retries exhausted", zap.Error(lastErr))
	return c.settle(gen, outcome{err: ErrRetriesExhausted}, false)
}

// settle publishes the outcome to all waiters and updates state, unless
// the session generation moved on (logout during flight), in which case
// the result is discarded.
func (c *Coordinator) settle(gen uint64, out outcome, terminal bool) outcome {
	c.mu.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil

	stale := gen != c.generation
	if !stale {
		if out.err == nil {
			c.accessToken = out.token
			c.lastRefresh = time.Now()
			c.expiresAt = time.Now().Add(c.cfg.AccessTTL)
			c.armTimerLocked()
		} else if terminal {
			c.accessToken = ""
			c.expiresAt = time.Time{}
			c.stopTimerLocked()
		}
	}
	c.mu.Unlock()

	if stale {
		out = outcome{err: ErrSessionExpired}
	}

	// Persist only when the session is still the one this refresh was
	// started for. A refresh finishing after logout must not resurrect
	// the cleared token.
	if !stale && out.err == nil && out.refreshToken != "" {
		if err := c.cfg.Store.Save(context.Background(), out.refreshToken); err != nil {
			c.cfg.Logger.Warn("refresh token persist failed", zap.Error(err))
		}
	}

	for _, ch := range waiters {
		ch <- out
	}

	if terminal && !stale {
		if err := c.cfg.Store.Clear(context.Background()); err != nil {
			c.cfg.Logger.Warn("refresh token clear failed", zap.Error(err))
		}
	}
	return out
}

// armTimerLocked schedules the proactive refresh before natural expiry.
// Caller holds c.mu.
func (c *Coordinator) armTimerLocked() {
	c.stopTimerLocked()
	if c.closed {
		return
	}
	delay := time.Duration(float64(c.cfg.AccessTTL) * c.cfg.ProactiveFraction)
	c.timer = time.AfterFunc(delay, c.triggerBackground)
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
