package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/pageza/recipe-assistant/backend/config"
	"github.com/pageza/recipe-assistant/backend/internal/database"
	"github.com/pageza/recipe-assistant/backend/internal/logging"
	"github.com/pageza/recipe-assistant/backend/internal/maintenance"
	"github.com/pageza/recipe-assistant/backend/internal/server"
	"github.com/pageza/recipe-assistant/backend/internal/service"
)

func main() {
	// A missing .env is fine outside local development
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.OpenGorm(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("failed to close database pool", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return err
	}

	deps := server.Dependencies{
		DB: db,
		Provider: service.NewLLMService(service.LLMConfig{
			APIKey:        cfg.AIAPIKey,
			APIURL:        cfg.AIAPIURL,
			Model:         cfg.AIModel,
			Timeout:       cfg.AITimeout,
			MaxConcurrent: cfg.AIMaxConcurrent,
		}, logger),
	}

	redisClient, err := database.NewRedisClient(cfg, logger)
	if err != nil {
		// Drafts and rate limits fall back to process memory
		logger.Warn("redis unavailable", "error", err)
	} else if redisClient != nil {
		deps.Redis = redisClient
		defer redisClient.Close()
	}

	var monitor *maintenance.Monitor
	statsDB, err := database.New(cfg, logger)
	if err != nil {
		logger.Warn("database monitor disabled", "error", err)
	} else {
		defer statsDB.Close()
		monitor = maintenance.NewMonitor(statsDB.DB)
		deps.Stats = monitor
		deps.Health = statsDB
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SchedulerEnabled {
		scheduler, err := newScheduler(ctx, cfg, logger, monitor)
		if err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	srv := server.New(cfg, logger, deps)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newScheduler(ctx context.Context, cfg *config.Config, logger *slog.Logger, monitor *maintenance.Monitor) (*maintenance.Scheduler, error) {
	s3cfg, err := config.NewS3Config(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var uploader maintenance.Uploader
	if s3cfg != nil {
		uploader = s3cfg
	}

	backups := maintenance.NewBackupService(maintenance.BackupConfigFromConfig(cfg), maintenance.ExecRunner{}, uploader, logger)

	var stats maintenance.TableStatsSource
	if monitor != nil {
		stats = monitor
	}
	scheduler := maintenance.NewScheduler(backups, stats, logger)
	if err := scheduler.Start(ctx, cfg.BackupSchedule, cfg.MaintenanceCron); err != nil {
		return nil, err
	}
	return scheduler, nil
}
