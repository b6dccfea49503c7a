package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/netatmo-bridge/internal/domain"
)

// EventSink delivers one change event to the bus and returns once the bus
// has acknowledged it.
type EventSink interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

// DispatchError reports the first failed delivery of a dispatch run.
type DispatchError struct {
	// Completed is the number of events delivered before the failure.
	Completed int
	Event     domain.ChangeEvent
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("deliver %s/%s after %d events: %v", e.Event.Device, e.Event.Channel, e.Completed, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Dispatcher forwards change events to a sink strictly one at a time.
type Dispatcher struct {
	sink   EventSink
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher for sink.
func NewDispatcher(sink EventSink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, logger: logger}
}

// Dispatch publishes events in order, waiting for each acknowledgment before
// sending the next. It stops at the first failure and returns a
// *DispatchError; remaining events are neither retried nor sent.
// The returned count is the number of events delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, events []domain.ChangeEvent) (int, error) {
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return i, &DispatchError{Completed: i, Event: ev, Err: err}
		}
		if err := d.sink.Publish(ctx, ev); err != nil {
			return i, &DispatchError{Completed: i, Event: ev, Err: err}
		}
		d.logger.Debug("event delivered",
			"device", ev.Device,
			"channel", ev.Channel,
			"value", ev.Value,
			"unit", ev.Unit,
		)
	}
	return len(events), nil
}
