// Package main provides the API server entry point for the bond service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/bond-service/internal/api"
	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/config"
	"github.com/bond-service/internal/isin"
	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/service"
	"github.com/bond-service/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server exited with error")
	}
	logger.Info("Server stopped")
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer postgres.Close()

	if err := storage.RunMigrations(cfg.Database.Postgres.PostgresURL(), cfg.Database.Postgres.MigrationsPath); err != nil {
		return err
	}

	redis, err := storage.NewRedisCache(ctx, &cfg.Database.Redis)
	if err != nil {
		return err
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	userRepo := storage.NewUserRepository(postgres)
	portfolioRepo := storage.NewPortfolioRepository(postgres)
	bondRepo := storage.NewBondRepository(postgres)

	// ISIN registry, cached in Redis
	var validator isin.Validator = isin.Disabled{}
	if cfg.ISIN.Enabled {
		cache := storage.NewCacheService(redis, cfg.ISIN.CacheTTL)
		validator = isin.NewClient(cfg.ISIN, cache)
		logger.WithField("url", cfg.ISIN.BaseURL).Info("ISIN validation enabled")
	} else {
		logger.Warn("ISIN validation disabled; every ISIN is accepted")
	}

	// Initialize services
	tokens := auth.NewTokenService(cfg.Auth)
	userService := service.NewUserService(userRepo, auth.NewPasswordHasher(cfg.Auth.BcryptCost))
	portfolioService := service.NewPortfolioService(portfolioRepo)
	bondService := service.NewBondService(bondRepo, portfolioRepo, validator)
	analysisService := service.NewAnalysisService(portfolioRepo, bondRepo)

	server := api.NewServer(&api.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    2 * cfg.Server.ReadTimeout,
		UserRPS:        cfg.RateLimit.UserRPS,
		SuperuserRPS:   cfg.RateLimit.SuperuserRPS,
		Burst:          cfg.RateLimit.Burst,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, tokens, userService, portfolioService, bondService, analysisService, map[string]api.HealthChecker{
		"postgres": postgres,
		"redis":    redis,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
