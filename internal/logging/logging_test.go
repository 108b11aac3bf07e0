package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/parkpulse/internal/conf"
	"gorm.io/gorm"
)

func TestNewFileLoggerWritesJSONWithService(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sampler.log")

	logger, closeFn, err := NewFileLogger(path, "sampler", slog.LevelDebug)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	logger.Info("sampling run finished", "new_samples", 12)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"sampler"`)
	assert.Contains(t, string(data), `"new_samples":12`)
}

func TestNewFileLoggerRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crowd.log")

	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)

	logger, closeFn, err := NewFileLogger(path, "crowd", levelVar)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	logger.Info("hidden")
	logger.Warn("visible")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}

func TestRotationLimits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		conf        conf.LogConfig
		wantSize    int
		wantBackups int
		wantAge     int
	}{
		{"daily", conf.LogConfig{Rotation: conf.RotationDaily}, 100, 30, 1},
		{"weekly", conf.LogConfig{Rotation: conf.RotationWeekly}, 100, 4, 7},
		{"size from config", conf.LogConfig{Rotation: conf.RotationSize, MaxSize: 20 * 1024 * 1024}, 20, 3, 28},
		{"unset", conf.LogConfig{}, 100, 3, 28},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, backups, age := rotationLimits(tt.conf)
			assert.Equal(t, tt.wantSize, size)
			assert.Equal(t, tt.wantBackups, backups)
			assert.Equal(t, tt.wantAge, age)
		})
	}
}

func TestCustomLevelNames(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level:       LevelTrace,
		ReplaceAttr: replaceLevelNames,
	}))

	logger.Log(context.Background(), LevelTrace, "trace message")

	assert.Contains(t, buf.String(), `"level":"TRACE"`)
}

func TestGormLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := NewGormLogger(logger, 100*time.Millisecond)
	sqlFn := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("normal query at debug", func(t *testing.T) {
		buf.Reset()
		adapter.Trace(context.Background(), time.Now(), sqlFn, nil)
		assert.Contains(t, buf.String(), `"level":"DEBUG"`)
		assert.Contains(t, buf.String(), "sql query")
	})

	t.Run("slow query at warn", func(t *testing.T) {
		buf.Reset()
		adapter.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)
		assert.Contains(t, buf.String(), "slow query")
		assert.Contains(t, buf.String(), `"level":"WARN"`)
	})

	t.Run("error at warn", func(t *testing.T) {
		buf.Reset()
		adapter.Trace(context.Background(), time.Now(), sqlFn, errors.New("constraint failed"))
		assert.Contains(t, buf.String(), "query error")
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		buf.Reset()
		adapter.Trace(context.Background(), time.Now(), sqlFn, gorm.ErrRecordNotFound)
		assert.False(t, strings.Contains(buf.String(), "query error"))
	})
}
