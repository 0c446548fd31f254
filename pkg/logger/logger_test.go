package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGet_BeforeInit(t *testing.T) {
	mu.Lock()
	globalLogger = nil
	mu.Unlock()

	log := Get()
	require.NotNil(t, log)
	// no-op logger must not panic
	log.Info("hello", zap.String("k", "v"))
}

func TestInit(t *testing.T) {
	err := Init(&Config{Level: "debug", ServiceName: "losmax-test", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, Get().Zap())
	Sync()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level       string
		development bool
		want        zapcore.Level
	}{
		{"debug", false, zapcore.DebugLevel},
		{"INFO", false, zapcore.InfoLevel},
		{"warning", false, zapcore.WarnLevel},
		{"error", true, zapcore.ErrorLevel},
		{"development", true, zapcore.DebugLevel},
		{"production", false, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.level, tt.development))
		})
	}
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := New(zap.New(core)).With(zap.String("user_id", "u1"))

	log.Warn("socket send failed")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "socket send failed", entries[0].Message)
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])
}
