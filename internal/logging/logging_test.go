package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		"info":   zapcore.InfoLevel,
		" warn ": zapcore.WarnLevel,
		"ERROR":  zapcore.ErrorLevel,
	} {
		l, err := New(in)
		require.NoError(t, err, in)
		require.True(t, l.Core().Enabled(want), in)
		if want > zapcore.DebugLevel {
			require.False(t, l.Core().Enabled(want-1), in)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("verbose")
	require.Error(t, err)
	require.Contains(t, err.Error(), "logging")
}
