// Package logsink delivers change events as structured log records. It is
// useful for dry runs and when no bus is available.
package logsink

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/netatmo-bridge/internal/domain"
)

type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger.With("component", "logsink")}
}

// Publish writes one info record per event. It fails only when ctx is done.
func (s *Sink) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "change event",
		slog.String("device", event.Device),
		slog.String("channel", event.Channel),
		slog.Float64("value", event.Value),
		slog.String("unit", event.Unit),
		slog.String("observed_at", event.ObservedAt.UTC().Format(time.RFC3339)),
	)
	return nil
}
