// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carterperez-dev/sessionguard/internal/admin"
	"github.com/carterperez-dev/sessionguard/internal/auth"
	"github.com/carterperez-dev/sessionguard/internal/config"
	"github.com/carterperez-dev/sessionguard/internal/core"
	"github.com/carterperez-dev/sessionguard/internal/health"
	"github.com/carterperez-dev/sessionguard/internal/server"
	"github.com/carterperez-dev/sessionguard/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else if telemetry.Enabled() {
		logger.Info("tracing enabled", "endpoint", cfg.Otel.Endpoint)
	}

	if cfg.Database.MigrateOnStart {
		if migErr := core.Migrate(ctx, cfg.Database); migErr != nil {
			return migErr
		}
		logger.Info("database migrations applied", "driver", cfg.Database.Driver)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"driver", cfg.Database.Driver,
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	clock := core.SystemClock{}

	hasher, err := core.NewHasher(core.DefaultHashParams())
	if err != nil {
		return err
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT, clock)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.KeyID(),
	)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo, clock)
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(auth.ServiceConfig{
		Store:    userSvc,
		Tokens:   auth.NewRepository(db.DB),
		JWT:      jwtManager,
		Hasher:   hasher,
		Denylist: core.NewDenylist(redis.Client),
		Clock:    clock,
		Policy:   auth.DefaultPasswordPolicy(),
		Notifier: auth.NewLogNotifier(logger),
		Auth:     cfg.Auth,
		JWTCfg:   cfg.JWT,
	})
	authHandler := auth.NewHandler(authSvc)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis, Optional: true},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Probes: []admin.Probe{
			{Name: "database", Ping: db.Ping, Stats: func() any { return db.Stats() }},
			{Name: "redis", Ping: redis.Ping, Stats: func() any { return redis.PoolStats() }},
		},
		Sessions: authSvc,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	mountRoutes(srv.Router(), routes{
		cfg:      cfg,
		logger:   logger,
		redis:    redis.Client,
		verifier: authSvc,
		jwks:     jwtManager.JWKSHandler(),
		health:   healthHandler,
		auth:     authHandler,
		users:    userHandler,
		admin:    adminHandler,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// setupLogger writes to stdout in the configured format. Unknown levels
// fall back to info.
func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
