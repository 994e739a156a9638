package sessionauth

import (
	"errors"
	"time"
)

// Config is the full engine configuration. Configure once through the
// Builder, then treat as immutable.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig controls token minting and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// PasswordConfig holds argon2id cost parameters and policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinLength is the minimum password byte length accepted on signup
	// and password change.
	MinLength int
	// RehashOnLogin upgrades hashes minted with weaker parameters the
	// next time the password verifies.
	RehashOnLogin bool
}

// LockoutConfig controls the failed-login lockout guard.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

// SecurityConfig controls enumeration resistance and request throttles.
type SecurityConfig struct {
	// RequireVerifiedEmail refuses login until the email is verified.
	RequireVerifiedEmail  bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the Builder starts from.
// Adjust the fields that matter and pass the result to WithConfig.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:        65536,
			Time:          3,
			Parallelism:   2,
			SaltLength:    16,
			KeyLength:     32,
			MinLength:     10,
			RehashOnLogin: true,
		},
		Lockout: LockoutConfig{
			Enabled:   true,
			Threshold: 5,
			Window:    15 * time.Minute,
			Duration:  15 * time.Minute,
		},
		Security: SecurityConfig{
			RequireVerifiedEmail:  false,
			EnableIPThrottle:      true,
			MaxLoginAttempts:      20,
			LoginCooldown:         15 * time.Minute,
			EnableRefreshThrottle: true,
			MaxRefreshAttempts:    20,
			RefreshCooldown:       time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks cross-field consistency before the engine is built.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("jwt access TTL must be positive")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt refresh TTL must be positive")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("jwt refresh TTL must not be shorter than access TTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires both private and public keys")
		}
	default:
		return errors.New("unsupported jwt signing method")
	}

	if c.Password.MinLength < 8 {
		return errors.New("password minimum length must be >= 8")
	}

	if c.Lockout.Enabled {
		if c.Lockout.Threshold < 2 {
			return errors.New("lockout threshold must be >= 2")
		}
		if c.Lockout.Window <= 0 {
			return errors.New("lockout window must be positive")
		}
		if c.Lockout.Duration <= 0 {
			return errors.New("lockout duration must be positive")
		}
	}

	if c.Security.EnableIPThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("login throttle limit must be positive")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("login throttle cooldown must be positive")
		}
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("refresh throttle limit must be positive")
		}
		if c.Security.RefreshCooldown <= 0 {
			return errors.New("refresh throttle cooldown must be positive")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}

	return nil
}
