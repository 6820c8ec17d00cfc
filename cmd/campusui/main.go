package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/campusworks/campus-ui-api/config"
	"github.com/campusworks/campus-ui-api/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := bootstrap.InitLogger(cfg.Observability)

	if err := run(ctx, cfg, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) error {
	logger.InfoContext(ctx, "starting campus-ui-api",
		"auth_mode", cfg.Auth.Mode,
		"backend", cfg.Backend.BaseURL,
		"audit_db", cfg.Postgres.Enabled,
		"profile_cache", cfg.Redis.Enabled,
		"dev", cfg.IsDev)

	db, redisClient, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if db != nil {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}
		if redisClient != nil {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}
	}()

	session, err := bootstrap.BuildSessionService(bootstrap.SessionOptions{
		Config:      cfg,
		RedisClient: redisClient,
		DB:          db,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build session service: %w", err)
	}

	server, err := bootstrap.StartHTTPServer(bootstrap.HTTPServerOptions{
		Config:  cfg,
		Session: session,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	return bootstrap.ShutdownHTTPServer(ctx, server, cfg.HTTP.ShutdownTimeout, logger)
}

// initInfrastructure connects the optional audit database and profile
// cache. Both are feature-flagged; the service runs without either.
//
//nolint:ireturn // returning redis.UniversalClient keeps cluster support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	var db *sql.DB
	if cfg.Postgres.Enabled {
		var err error
		db, err = bootstrap.ConnectDB(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
	} else {
		logger.InfoContext(ctx, "audit database disabled; audit events go to the log")
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = bootstrap.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			if db != nil {
				if cerr := db.Close(); cerr != nil {
					logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
				}
			}
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
	} else {
		logger.InfoContext(ctx, "profile cache disabled; profile reads hit the backend")
	}

	return db, redisClient, nil
}
