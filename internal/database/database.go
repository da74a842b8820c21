package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pageza/recipe-assistant/backend/config"
)

// DB is a plain database/sql handle on the lib/pq driver. It always connects to Postgres
// directly, bypassing PgBouncer, and backs the pg_stat monitor.
type DB struct {
	*sql.DB
}

// New creates the direct database connection
func New(cfg *config.Config, logger *slog.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DirectDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// The monitor only ever needs a couple of sessions
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	logger.Info("connected to database for monitoring", "host", cfg.DBHost, "port", cfg.DBPort)
	return &DB{db}, nil
}

// HealthCheck checks if the database is accessible
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// OpenGorm creates the application's pooled GORM handle. It is constructed once by the process
// entry point and closed on shutdown.
func OpenGorm(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	dialector := postgres.New(postgres.Config{
		DSN: cfg.DSN(),
		// PgBouncer in transaction mode cannot hold prepared statements
		PreferSimpleProtocol: cfg.UsePgBouncer,
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(logger, config.GetEnvironment() == config.Development),
		TranslateError: true,
		PrepareStmt:    !cfg.UsePgBouncer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PostgreSQL")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get PostgreSQL sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DBMinConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "failed to ping PostgreSQL")
	}

	logger.Info("database pool ready",
		"pgbouncer", cfg.UsePgBouncer,
		"min_conns", cfg.DBMinConns,
		"max_conns", cfg.DBMaxConns,
	)
	return db, nil
}

// Close releases the pool behind a GORM handle
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
