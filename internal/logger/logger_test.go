package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"diarium/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("production config at requested level", func(t *testing.T) {
		log, err := New(config.LogConfig{Level: "warn", Environment: "production"})
		require.NoError(t, err)
		defer log.Sync()

		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("development is the default environment", func(t *testing.T) {
		log, err := New(config.LogConfig{Level: "debug", Environment: "local"})
		require.NoError(t, err)
		defer log.Sync()

		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		log, err := New(config.LogConfig{Level: "chatty"})
		require.NoError(t, err)
		defer log.Sync()

		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	})
}
