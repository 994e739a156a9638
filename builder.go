package sessionauth

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/sessionauth/audit"
	"github.com/MrEthical07/sessionauth/internal/limiters"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/ledger"
	"github.com/MrEthical07/sessionauth/password"
)

// Builder assembles an Engine. Configure it with the With* methods and
// call Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  AccountStore
	ledger ledger.Ledger
	sink   audit.Sink
	logger *zap.Logger

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the lockout guard, throttles,
// and the default revocation ledger.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the external credential store.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithLedger overrides the default Redis-backed revocation ledger.
func (b *Builder) WithLedger(l ledger.Ledger) *Builder {
	b.ledger = l
	return b
}

// WithAuditSink sets the sink receiving audit events. Auditing must also
// be enabled in the configuration.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the zap logger for best-effort failure reporting.
// Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles counter collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("account store required")
	}
	if b.redis == nil && (cfg.Lockout.Enabled || cfg.Security.EnableIPThrottle ||
		cfg.Security.EnableRefreshThrottle || b.ledger == nil) {
		return nil, errors.New("redis client required")
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Params{
		MemoryKB:    cfg.Password.Memory,
		Iterations:  cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltBytes:   cfg.Password.SaltLength,
		KeyBytes:    cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		store:   b.store,
		ledger:  b.ledger,
		hasher:  hasher,
		tokens:  tokens,
		metrics: NewMetrics(cfg.Metrics),
		logger:  b.logger,
	}
	if engine.logger == nil {
		engine.logger = zap.NewNop()
	}
	if engine.ledger == nil {
		engine.ledger = ledger.NewRedisLedger(b.redis)
	}

	if cfg.Lockout.Enabled {
		engine.lockout = limiters.NewLockoutGuard(b.redis, limiters.LockoutConfig{
			Enabled:   true,
			Threshold: cfg.Lockout.Threshold,
			Window:    cfg.Lockout.Window,
			Duration:  cfg.Lockout.Duration,
		})
	}

	if cfg.Security.EnableIPThrottle || cfg.Security.EnableRefreshThrottle {
		throttleCfg := rate.Config{}
		if cfg.Security.EnableIPThrottle {
			throttleCfg.LoginLimit = cfg.Security.MaxLoginAttempts
			throttleCfg.LoginWindow = cfg.Security.LoginCooldown
		}
		if cfg.Security.EnableRefreshThrottle {
			throttleCfg.RefreshLimit = cfg.Security.MaxRefreshAttempts
			throttleCfg.RefreshWindow = cfg.Security.RefreshCooldown
		}
		engine.throttle = rate.New(b.redis, throttleCfg)
	}

	if cfg.Audit.Enabled {
		sink := b.sink
		if sink == nil {
			sink = audit.NewZapSink(engine.logger)
		}
		engine.audit = audit.NewDispatcher(audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink)
	}

	b.built = true
	return engine, nil
}
