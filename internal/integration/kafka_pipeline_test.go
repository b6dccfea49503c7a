//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/netatmo-bridge/internal/adapter/kafka"
	"github.com/couchcryptid/netatmo-bridge/internal/adapter/netatmo"
	"github.com/couchcryptid/netatmo-bridge/internal/config"
	"github.com/couchcryptid/netatmo-bridge/internal/domain"
	"github.com/couchcryptid/netatmo-bridge/internal/observability"
	"github.com/couchcryptid/netatmo-bridge/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "test-netatmo-changes"

// publishedMessage holds a deserialized message read from the topic.
type publishedMessage struct {
	Event   domain.ChangeEvent
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.ChangeEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal message")

	return publishedMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

type fixtureFetcher struct{}

func (fixtureFetcher) FetchSnapshot(_ context.Context) (domain.Snapshot, error) {
	f, err := os.Open(filepath.Join("..", "adapter", "netatmo", "testdata", "getstationsdata.json"))
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer f.Close()
	return netatmo.DecodeStationsData(f)
}

// TestKafkaWriter verifies one event round-trips through Kafka with its key
// and headers.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic, SourceName: "netatmo.test"}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	event := domain.ChangeEvent{
		Device:     "living-room",
		Channel:    "temperature",
		Value:      21.4,
		Unit:       "°C",
		ObservedAt: time.Unix(1714125000, 0).UTC(),
	}
	require.NoError(t, writer.Publish(ctx, event))

	pm := readPublished(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "living-room", pm.Key)
	assert.Equal(t, "temperature", pm.Headers["channel"])
	assert.Equal(t, "°C", pm.Headers["unit"])
	assert.Equal(t, "netatmo.test", pm.Headers["source"])
	assert.Equal(t, event, pm.Event)
}

// TestPipelineEndToEnd runs polling cycles over a captured station response
// and checks that exactly the first cycle's changes reach the topic, in order.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic, SourceName: "netatmo.test"}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	now := time.Date(2024, 4, 26, 10, 0, 0, 0, time.UTC)
	engine := domain.NewEngine(domain.NewStateTable(), clockwork.NewFakeClockAt(now))
	p := pipeline.New(fixtureFetcher{}, engine, writer, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{
		Aliases: domain.Aliases{"02:00:00:00:00:02": "garden"},
	})

	result, err := p.RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, pipeline.CycleResult{Emitted: 18, Delivered: 18}, result)

	result, err = p.RunCycle(ctx)
	require.NoError(t, err)
	require.Zero(t, result.Emitted)

	consumer := newConsumer(t, broker)
	received := make([]publishedMessage, 0, 18)
	for len(received) < 18 {
		received = append(received, readPublished(ctx, t, consumer))
	}

	assert.Equal(t, "temperature", received[0].Event.Channel)
	assert.Equal(t, "70:ee:50:00:00:01", received[0].Key)
	assert.Equal(t, "garden", received[6].Key)
	assert.Equal(t, "battery", received[6].Event.Channel)
	assert.Equal(t, 66.0, received[6].Event.Value)
	assert.True(t, now.Equal(received[6].Event.ObservedAt))
	for _, pm := range received {
		assert.Equal(t, pm.Event.Device, pm.Key)
		assert.Equal(t, pm.Event.Channel, pm.Headers["channel"])
	}

	// The second cycle produced nothing new.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no further messages")
}
