// Command sessionauthd serves the authentication endpoints over HTTP,
// backed by PostgreSQL for accounts and Redis for lockout, throttling,
// and the revocation ledger.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	sessionauth "github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/httpapi"
	"github.com/MrEthical07/sessionauth/stores/postgres"
)

func main() {
	// Local development reads .env; in production the variables come
	// from the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("sessionauthd failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	addr := envOr("SESSIONAUTH_ADDR", ":8080")
	dsn := os.Getenv("SESSIONAUTH_DATABASE_DSN")
	if dsn == "" {
		return errors.New("SESSIONAUTH_DATABASE_DSN is required")
	}
	secret := os.Getenv("SESSIONAUTH_JWT_SECRET")
	if len(secret) < 32 {
		return errors.New("SESSIONAUTH_JWT_SECRET must be at least 32 bytes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     envOr("SESSIONAUTH_REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("SESSIONAUTH_REDIS_PASSWORD"),
	})
	defer func() { _ = redisClient.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return err
	}

	cfg := configFromEnv(secret)

	engine, err := sessionauth.New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithAccountStore(postgres.NewStore(db)).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	mux := http.NewServeMux()
	httpapi.NewHandler(engine, logger).Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func configFromEnv(secret string) sessionauth.Config {
	cfg := sessionauth.DefaultConfig()
	cfg.JWT.AccessTTL = envDuration("SESSIONAUTH_ACCESS_TTL", 15*time.Minute)
	cfg.JWT.RefreshTTL = envDuration("SESSIONAUTH_REFRESH_TTL", 7*24*time.Hour)
	cfg.JWT.PrivateKey = []byte(secret)
	cfg.JWT.Issuer = envOr("SESSIONAUTH_ISSUER", "sessionauthd")
	cfg.Password.MinLength = envInt("SESSIONAUTH_PASSWORD_MIN_LENGTH", 10)
	cfg.Lockout.Threshold = envInt("SESSIONAUTH_LOCKOUT_THRESHOLD", 5)
	cfg.Lockout.Window = envDuration("SESSIONAUTH_LOCKOUT_WINDOW", 15*time.Minute)
	cfg.Lockout.Duration = envDuration("SESSIONAUTH_LOCKOUT_DURATION", 15*time.Minute)
	cfg.Security.RequireVerifiedEmail = envBool("SESSIONAUTH_REQUIRE_VERIFIED_EMAIL", false)
	cfg.Security.MaxLoginAttempts = envInt("SESSIONAUTH_LOGIN_THROTTLE", 20)
	cfg.Security.MaxRefreshAttempts = envInt("SESSIONAUTH_REFRESH_THROTTLE", 20)
	cfg.Audit.Enabled = envBool("SESSIONAUTH_AUDIT", true)
	cfg.Metrics.Enabled = envBool("SESSIONAUTH_METRICS", true)
	cfg.Metrics.EnableLatencyHistograms = cfg.Metrics.Enabled
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
