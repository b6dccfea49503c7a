package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/netatmo-bridge/internal/domain"
	"github.com/couchcryptid/netatmo-bridge/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrCycleInFlight is returned when a cycle is requested while another one
// has not finished yet.
var ErrCycleInFlight = errors.New("polling cycle already in flight")

// SnapshotFetcher reads the current state of every station device.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (domain.Snapshot, error)
}

// Options tunes a Pipeline. Zero values fall back to defaults.
type Options struct {
	Aliases  domain.Aliases
	Interval time.Duration
	Clock    clockwork.Clock
}

// CycleResult counts the events of one polling cycle.
type CycleResult struct {
	Emitted   int `json:"emitted"`
	Delivered int `json:"delivered"`
}

// Pipeline orchestrates the fetch-diff-dispatch polling loop.
type Pipeline struct {
	fetcher    SnapshotFetcher
	engine     *domain.Engine
	dispatcher *Dispatcher
	aliases    domain.Aliases
	interval   time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	cycleMu sync.Mutex
	ready   atomic.Bool
}

// New creates a Pipeline that diffs through engine and publishes to sink.
func New(fetcher SnapshotFetcher, engine *domain.Engine, sink EventSink, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Aliases == nil {
		opts.Aliases = domain.Aliases{}
	}
	return &Pipeline{
		fetcher:    fetcher,
		engine:     engine,
		dispatcher: NewDispatcher(sink, logger),
		aliases:    opts.Aliases,
		interval:   opts.Interval,
		clock:      opts.Clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a cycle has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no polling cycle has completed yet")
	}
	return nil
}

// State exposes the device state table for read-only inspection.
func (p *Pipeline) State() *domain.StateTable {
	return p.engine.State()
}

// Run polls immediately, then every interval, until ctx is cancelled.
// Cycle failures are logged and do not stop the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval.String())
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.runScheduled(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.runScheduled(ctx)
		}
	}
}

func (p *Pipeline) runScheduled(ctx context.Context) {
	_, err := p.RunCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleInFlight):
		p.logger.Warn("previous cycle still running, skipping")
	case ctx.Err() != nil:
		// shutting down
	default:
		var de *DispatchError
		if errors.As(err, &de) {
			p.logger.Error("cycle failed", "error", err, "completed", de.Completed)
			return
		}
		p.logger.Error("cycle failed", "error", err)
	}
}

// RunCycle performs one fetch-diff-dispatch cycle. It never overlaps with
// another cycle: a concurrent call returns ErrCycleInFlight immediately.
//
// A fetch or diff failure leaves the state table untouched. A delivery
// failure stops the cycle; the returned error wraps a *DispatchError and the
// result reports how many events were delivered before it.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleResult, error) {
	if !p.cycleMu.TryLock() {
		p.metrics.CyclesSkipped.Inc()
		return CycleResult{}, ErrCycleInFlight
	}
	defer p.cycleMu.Unlock()

	start := p.clock.Now()
	p.logger.Debug("cycle started")

	snapshot, err := p.fetcher.FetchSnapshot(ctx)
	p.metrics.FetchDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.Cycles.WithLabelValues(observability.OutcomeFetchError).Inc()
		return CycleResult{}, fmt.Errorf("fetch snapshot: %w", err)
	}

	events, err := p.engine.Diff(snapshot, p.aliases)
	if err != nil {
		p.metrics.Cycles.WithLabelValues(observability.OutcomeDiffError).Inc()
		return CycleResult{}, fmt.Errorf("diff snapshot: %w", err)
	}
	p.metrics.EventsEmitted.Add(float64(len(events)))
	p.metrics.DevicesTracked.Set(float64(p.engine.State().Len()))

	result := CycleResult{Emitted: len(events)}
	delivered, err := p.dispatcher.Dispatch(ctx, events)
	result.Delivered = delivered
	p.metrics.EventsDelivered.Add(float64(delivered))
	if err != nil {
		p.metrics.Cycles.WithLabelValues(observability.OutcomeDispatchError).Inc()
		return result, fmt.Errorf("dispatch: %w", err)
	}

	p.metrics.Cycles.WithLabelValues(observability.OutcomeSuccess).Inc()
	p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("cycle complete", "emitted", result.Emitted, "delivered", result.Delivered)
	return result, nil
}
