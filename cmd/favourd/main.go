// Command favourd runs the favour service: the HTTP API backed by a favour
// store and an evidence blob store.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/favourlabs/favour/pkg/api"
	"github.com/favourlabs/favour/pkg/blob"
	"github.com/favourlabs/favour/pkg/config"
	"github.com/favourlabs/favour/pkg/identity"
	"github.com/favourlabs/favour/pkg/observability"
	"github.com/favourlabs/favour/pkg/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("favourd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if cfg.Profile != "" {
		profile, err := config.LoadProfile(cfg.ProfilesDir, cfg.Profile)
		if err != nil {
			return fmt.Errorf("load deployment profile: %w", err)
		}
		profile.Apply(cfg)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	if cfg.Profile != "" {
		logger.Info("deployment profile applied", "profile", cfg.Profile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = os.Getenv("OTEL_ENABLED") == "true"
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	if cfg.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET must be set")
	}
	tokens, err := identity.NewTokenManager([]byte(cfg.AuthSecret))
	if err != nil {
		return fmt.Errorf("init token manager: %w", err)
	}

	st, cleanup, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer cleanup()

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	var idem api.IdempotencyStorer
	if cfg.RedisAddr != "" {
		idem = api.NewRedisIdempotencyStore(cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0, 24*time.Hour)
		logger.Info("idempotency store: redis", "addr", cfg.RedisAddr)
	} else {
		mem := api.NewIdempotencyStore(24 * time.Hour)
		defer mem.Close()
		idem = mem
		logger.Info("idempotency store: memory")
	}

	limiter := api.NewGlobalRateLimiter(cfg.RateRPS, cfg.RateBurst)
	defer limiter.Close()

	svc := api.NewFavourService(st, blobs, logger.With("component", "api"))
	handler := api.NewRouter(svc, api.RouterConfig{
		Tokens:      tokens,
		RateLimiter: limiter,
		Idempotency: idem,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("favourd listening", "port", cfg.Port, "store", cfg.StoreType)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	return srv.Shutdown(shutdownCtx)
}

// openBlobStore prefers the profile's blob section; without one, selection
// falls back to the BLOB_* environment variables.
func openBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.Blob.Type == "" {
		return blob.NewStoreFromEnv(ctx)
	}
	return blob.NewStore(ctx, blob.Config{
		Type:     blob.StoreType(cfg.Blob.Type),
		DataDir:  cfg.Blob.DataDir,
		Bucket:   cfg.Blob.Bucket,
		Region:   cfg.Blob.Region,
		Endpoint: cfg.Blob.Endpoint,
		Prefix:   cfg.Blob.Prefix,
	})
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreType {
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresStore(db), func() { _ = db.Close() }, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		st, err := store.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return st, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
	}
}

func logLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
