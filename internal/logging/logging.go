// Package logging configures slog for ParkPulse. The process logger writes
// JSON to stdout; each service additionally gets its own rotated JSON file
// under main.log.path.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tphakala/parkpulse/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below debug and is used for per-ride sampling detail.
const LevelTrace = slog.Level(-8)

var defaultLevelVar = new(slog.LevelVar)

// replaceLevelNames prints LevelTrace as TRACE instead of DEBUG-4.
func replaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

func newJSONHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
}

// Init installs the stdout JSON logger as the slog default.
func Init() {
	SetOutput(os.Stdout)
}

// SetLevel sets the minimum level of the default logger.
func SetLevel(level slog.Level) {
	defaultLevelVar.Set(level)
}

// SetOutput redirects the default logger, e.g. to a buffer in tests.
func SetOutput(w io.Writer) {
	slog.SetDefault(slog.New(newJSONHandler(w, defaultLevelVar)))
}

// Info logs through the default logger.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs through the default logger.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs through the default logger.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// rotationLimits maps the configured rotation onto lumberjack limits.
func rotationLimits(logConf conf.LogConfig) (maxSizeMB, maxBackups, maxAgeDays int) {
	maxSizeMB, maxBackups, maxAgeDays = 100, 3, 28

	if mb := int(logConf.MaxSize / (1024 * 1024)); mb > 0 {
		maxSizeMB = mb
	}

	switch logConf.Rotation {
	case conf.RotationDaily:
		maxAgeDays, maxBackups = 1, 30
	case conf.RotationWeekly:
		maxAgeDays, maxBackups = 7, 4
	case conf.RotationSize, "":
	default:
		slog.Warn("Unknown log rotation type, using size-based defaults", "rotation", logConf.Rotation)
	}
	return maxSizeMB, maxBackups, maxAgeDays
}

// NewFileLogger returns a JSON logger writing to filePath with rotation taken
// from the loaded settings. Every record carries a service attribute. The
// returned function closes the file.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	var logConf conf.LogConfig
	if settings := conf.GetSettings(); settings != nil {
		logConf = settings.Main.Log
	}
	maxSizeMB, maxBackups, maxAge := rotationLimits(logConf)

	w := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
	}

	return slog.New(newJSONHandler(w, level)).With("service", serviceName), w.Close, nil
}

// NewServiceLogger returns the file logger of a service. When the file cannot
// be opened the service logs nowhere rather than failing startup.
func NewServiceLogger(serviceName string, level slog.Leveler) *slog.Logger {
	path := conf.ServiceLogPath(conf.GetSettings(), serviceName)

	logger, _, err := NewFileLogger(path, serviceName, level)
	if err != nil {
		Error("Failed to initialize file logger", "service", serviceName, "error", err)
		return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: level})).With("service", serviceName)
	}
	return logger
}
