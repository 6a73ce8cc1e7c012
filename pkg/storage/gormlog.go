package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = time.Second

// GormLogger routes gorm logs into slog.
type GormLogger struct {
	log      *slog.Logger
	LogLevel logger.LogLevel
}

// NewGormLogger creates a GormLogger that reports warnings and errors.
func NewGormLogger(l *slog.Logger) *GormLogger {
	return &GormLogger{
		log:      l,
		LogLevel: logger.Warn,
	}
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.log.InfoContext(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.log.WarnContext(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.log.ErrorContext(ctx, msg, "data", data)
	}
}

// Trace logs failed and slow statements; everything else goes to debug.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"sql", sql,
		"rows", rows,
		"time_ms", float64(elapsed.Nanoseconds()) / 1e6,
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= logger.Error:
		l.log.ErrorContext(ctx, "sql failed", append(fields, "error", err)...)
	case elapsed > slowQueryThreshold && l.LogLevel >= logger.Warn:
		l.log.WarnContext(ctx, "slow sql", append(fields, "threshold", slowQueryThreshold)...)
	default:
		l.log.DebugContext(ctx, "sql", fields...)
	}
}
