package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/netatmo-bridge/internal/domain"
	"github.com/couchcryptid/netatmo-bridge/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeEvents() []domain.ChangeEvent {
	return []domain.ChangeEvent{
		{Device: "d", Channel: "battery", Value: 50, Unit: "%"},
		{Device: "d", Channel: "temperature", Value: 21, Unit: "°C"},
		{Device: "d", Channel: "humidity", Value: 48, Unit: "%"},
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := pipeline.NewDispatcher(sink, discardLogger())

	n, err := d.Dispatch(context.Background(), threeEvents())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, threeEvents(), sink.published())
}

func TestDispatcher_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("broker unavailable")
	sink := &recordingSink{failAt: 2, err: boom}
	d := pipeline.NewDispatcher(sink, discardLogger())

	n, err := d.Dispatch(context.Background(), threeEvents())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, boom)

	var de *pipeline.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Completed)
	assert.Equal(t, "temperature", de.Event.Channel)

	assert.Equal(t, 2, sink.attempts(), "third event must not be attempted")
	assert.Len(t, sink.published(), 1)
}

func TestDispatcher_EmptySequence(t *testing.T) {
	sink := &recordingSink{}
	d := pipeline.NewDispatcher(sink, discardLogger())

	n, err := d.Dispatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, sink.attempts())
}

func TestDispatcher_CancelledContext(t *testing.T) {
	sink := &recordingSink{}
	d := pipeline.NewDispatcher(sink, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := d.Dispatch(ctx, threeEvents())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sink.attempts())
}

func TestDispatcher_NeverConcurrent(t *testing.T) {
	sink := &recordingSink{trackInFlight: true}
	d := pipeline.NewDispatcher(sink, discardLogger())

	events := make([]domain.ChangeEvent, 0, 50)
	for i := 0; i < 50; i++ {
		events = append(events, domain.ChangeEvent{Device: "d", Channel: "noise", Value: float64(i)})
	}

	_, err := d.Dispatch(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, int32(1), sink.maxInFlight.Load())
}
