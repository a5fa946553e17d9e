package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"Warn", zapcore.WarnLevel, false},
		{"ERROR", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestZapLoggerBindCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	bound := logger.Bind("stage", "TR")
	bound.Info("agent_invoke_started", "attempt", 1)
	logger.Warn("prompt_file_missing")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "agent_invoke_started", entries[0].Message)
	assert.Equal(t, "TR", entries[0].ContextMap()["stage"])
	assert.EqualValues(t, 1, entries[0].ContextMap()["attempt"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.NotContains(t, entries[1].ContextMap(), "stage")
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Bind("k", "v").Error("y")
	})
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New("shout")
	require.Error(t, err)
}
