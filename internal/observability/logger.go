package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/lmittmann/tint"

	"github.com/couchcryptid/netatmo-bridge/internal/config"
)

// NewLogger builds the service logger from config and installs it as the
// slog default. LOG_FORMAT=text selects the colourised tint handler for
// local runs; anything else goes through the shared JSON logger.
func NewLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	if strings.EqualFold(cfg.LogFormat, "text") {
		logger = newTintLogger(os.Stdout, cfg.LogLevel)
	} else {
		logger = sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	logger = logger.With("source", cfg.SourceName)
	slog.SetDefault(logger)
	return logger
}

func newTintLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      tintLevel(level),
		TimeFormat: time.Kitchen,
	}))
}

// tintLevel accepts the same LOG_LEVEL values as the shared logger.
func tintLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		s = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
