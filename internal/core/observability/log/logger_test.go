package log

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo,
		"warning": LevelWarn, "error": LevelError, " fatal ": LevelFatal,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core, LevelInfo)

	l.Debug("hidden")
	l.Info("pose", Float64("x", 1.5), Int("beams", 3), Float64s("reading", []float64{1, 2}), Error(errors.New("boom")))
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, "pose", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, 1.5, ctx["x"])
	assert.Equal(t, int64(3), ctx["beams"])
	assert.Equal(t, "boom", ctx["error"])

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	l.Debug("shown")
	assert.Equal(t, 2, logs.Len())
}

func TestLoggerWithContextAddsRunID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core, LevelDebug)

	ctx := ContextWithRunID(context.Background(), "run-1")
	l.WithContext(ctx).Info("step")
	l.WithContext(context.Background()).Info("plain")

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "run-1", all[0].ContextMap()["run_id"])
	assert.NotContains(t, all[1].ContextMap(), "run_id")
}

func TestNopLoggerDiscards(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Info("nothing")
		l.With(String("k", "v")).Warn("still nothing")
	})
}
