package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger adapts a slog.Logger to GORM's logger.Interface.
// SQL statements are logged at debug level, slow queries and query errors at warn.
type GormLogger struct {
	logger        *slog.Logger
	slowThreshold time.Duration
}

// NewGormLogger creates a new GORM logger adapter.
// Use a slowThreshold of 0 to disable slow query warnings.
func NewGormLogger(logger *slog.Logger, slowThreshold time.Duration) *GormLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormLogger{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

// LogMode returns the adapter itself; levels are controlled by the slog handler.
func (a *GormLogger) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return a
}

// Info logs GORM informational messages at debug level.
func (a *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	a.logger.DebugContext(ctx, fmt.Sprintf(msg, data...))
}

// Warn logs warning messages.
func (a *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	a.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
}

// Error logs error messages.
func (a *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	a.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
}

// Trace logs SQL queries and their execution details.
func (a *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		a.logger.WarnContext(ctx, "query error",
			"sql", sql,
			"rows_affected", rows,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)

	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		a.logger.WarnContext(ctx, "slow query",
			"sql", sql,
			"rows_affected", rows,
			"duration_ms", elapsed.Milliseconds(),
			"threshold", a.slowThreshold)

	default:
		a.logger.DebugContext(ctx, "sql query",
			"sql", sql,
			"rows_affected", rows,
			"duration_ms", elapsed.Milliseconds())
	}
}
