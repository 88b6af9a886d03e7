package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &zapLogger{logger: zap.New(core), level: level}, logs
}

func TestRelay_ForwardsAllLevels(t *testing.T) {
	t.Parallel()

	target, logs := observedLogger(zapcore.DebugLevel)
	relay := NewRelay(target)

	relay.Debug("d", String("k", "v"))
	relay.Info("i")
	relay.Warn("w")
	relay.Error("e")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "d", entries[0].Message)
	require.Len(t, entries[0].Context, 1)
	assert.Equal(t, "k", entries[0].Context[0].Key)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestRelay_ForwardsScopes(t *testing.T) {
	t.Parallel()

	target, logs := observedLogger(zapcore.InfoLevel)
	relay := NewRelay(target).With(String("resource", "edge"))

	relay.Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Context, 1)
	assert.Equal(t, "resource", entries[0].Context[0].Key)
	assert.Equal(t, "edge", entries[0].Context[0].String)
}

func TestRelay_ForwardsSeverityChecks(t *testing.T) {
	t.Parallel()

	target, _ := observedLogger(zapcore.WarnLevel)
	relay := NewRelay(target)

	assert.False(t, relay.Enabled(DebugLevel))
	assert.False(t, relay.Enabled(InfoLevel))
	assert.True(t, relay.Enabled(WarnLevel))
	assert.True(t, relay.Enabled(ErrorLevel))
}

func TestRelay_NilTarget(t *testing.T) {
	t.Parallel()

	relay := NewRelay(nil)
	require.NotNil(t, relay)
	relay.Info("dropped")
	assert.False(t, relay.Enabled(ErrorLevel))
}
