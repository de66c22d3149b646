package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	tests := map[LogLevel]zap.AtomicLevel{
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"INFO":    zap.NewAtomicLevelAt(zap.InfoLevel),
		"warn":    zap.NewAtomicLevelAt(zap.WarnLevel),
		"warning": zap.NewAtomicLevelAt(zap.WarnLevel),
		"error":   zap.NewAtomicLevelAt(zap.ErrorLevel),
		"bogus":   zap.NewAtomicLevelAt(zap.InfoLevel),
	}
	for in, want := range tests {
		assert.Equal(t, want.Level(), parseLevel(in), string(in))
	}
}

func TestNewLoggers(t *testing.T) {
	l, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	c, err := NewConsoleLogger("warn")
	require.NoError(t, err)
	assert.False(t, c.Core().Enabled(zap.InfoLevel))
	assert.True(t, c.Core().Enabled(zap.WarnLevel))
}
