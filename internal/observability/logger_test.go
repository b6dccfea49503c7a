package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/netatmo-bridge/internal/config"
)

func TestTintLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tintLevel(tt.in))
		})
	}
}

func TestNewLogger_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: "warn", LogFormat: format, SourceName: "netatmo.pi"})

			assert.Same(t, logger, slog.Default())
			assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
			assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
		})
	}
}

func TestNewTintLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newTintLogger(&buf, "debug")

	logger.Debug("event delivered", "channel", "temperature")

	assert.Contains(t, buf.String(), "event delivered")
	assert.Contains(t, buf.String(), "temperature")
}

func TestNewMetricsForTesting_Unregistered(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.EventsEmitted.Add(2)
	b.Cycles.WithLabelValues(OutcomeSuccess).Inc()

	assert.NotSame(t, a.EventsEmitted, b.EventsEmitted)
}
