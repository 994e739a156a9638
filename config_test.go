package sessionauth

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults with hs256 secret",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero access TTL",
			mutate:  func(c *Config) { c.JWT.AccessTTL = 0 },
			wantErr: "access TTL",
		},
		{
			name:    "refresh shorter than access",
			mutate:  func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL / 2 },
			wantErr: "refresh TTL",
		},
		{
			name:    "short hs256 secret",
			mutate:  func(c *Config) { c.JWT.PrivateKey = []byte("short") },
			wantErr: "32 bytes",
		},
		{
			name:    "unknown signing method",
			mutate:  func(c *Config) { c.JWT.SigningMethod = "rs512" },
			wantErr: "signing method",
		},
		{
			name:    "weak password minimum",
			mutate:  func(c *Config) { c.Password.MinLength = 4 },
			wantErr: "minimum length",
		},
		{
			name:    "lockout threshold of one",
			mutate:  func(c *Config) { c.Lockout.Threshold = 1 },
			wantErr: "threshold",
		},
		{
			name:    "lockout without duration",
			mutate:  func(c *Config) { c.Lockout.Duration = 0 },
			wantErr: "duration",
		},
		{
			name:    "throttle without limit",
			mutate:  func(c *Config) { c.Security.MaxLoginAttempts = 0 },
			wantErr: "throttle limit",
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantErr: "buffer size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("want error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigCloneIsolatesKeys(t *testing.T) {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	cloned := cloneConfig(cfg)
	cloned.JWT.PrivateKey[0] = 'X'

	if cfg.JWT.PrivateKey[0] == 'X' {
		t.Fatal("clone shares key backing array")
	}
}

func TestDefaultConfigLockout(t *testing.T) {
	cfg := defaultConfig()
	if !cfg.Lockout.Enabled || cfg.Lockout.Threshold != 5 {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Lockout)
	}
	if cfg.Lockout.Duration != 15*time.Minute {
		t.Fatalf("unexpected lockout duration: %v", cfg.Lockout.Duration)
	}
}
