package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

type gormSlogLogger struct {
	logger        *slog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger routes GORM output through slog. Record-not-found is never logged as an error.
func NewGormLogger(base *slog.Logger, verbose bool) logger.Interface {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	return &gormSlogLogger{
		logger:        base,
		level:         level,
		slowThreshold: slowQueryThreshold,
	}
}

func (l *gormSlogLogger) LogMode(level logger.LogLevel) logger.Interface {
	cloned := *l
	cloned.level = level
	return &cloned
}

func (l *gormSlogLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...), "source", "gorm")
	}
}

func (l *gormSlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...), "source", "gorm")
	}
}

func (l *gormSlogLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...), "source", "gorm")
	}
}

func (l *gormSlogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.logger.LogAttrs(ctx, slog.LevelError, "query failed",
			slog.Duration("elapsed", elapsed), slog.Int64("rows", rows), slog.String("sql", sql),
			slog.String("error", err.Error()))
	case elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.logger.LogAttrs(ctx, slog.LevelWarn, "slow query",
			slog.Duration("elapsed", elapsed), slog.Int64("rows", rows), slog.String("sql", sql))
	case l.level >= logger.Info:
		sql, rows := fc()
		l.logger.LogAttrs(ctx, slog.LevelDebug, "query",
			slog.Duration("elapsed", elapsed), slog.Int64("rows", rows), slog.String("sql", sql))
	}
}
