package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/couchcryptid/netatmo-bridge/internal/config"
	"github.com/couchcryptid/netatmo-bridge/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes change events to a Kafka topic, one acknowledged
// message at a time. It implements pipeline.EventSink.
type Writer struct {
	writer messageWriter
	source string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    1,
	}
	return &Writer{writer: w, source: cfg.SourceName, logger: logger}
}

// Publish writes one event and returns once the brokers acknowledged it.
// Events are keyed by device so each device keeps its order on one partition.
func (w *Writer) Publish(ctx context.Context, event domain.ChangeEvent) error {
	msg, err := serializeToMessage(event, w.source)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s/%s: %w", event.Device, event.Channel, err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.logger.Debug("closing kafka writer")
	return w.writer.Close()
}

// serializeToMessage marshals a ChangeEvent into a Kafka message.
func serializeToMessage(event domain.ChangeEvent, source string) (kafkago.Message, error) {
	out, err := domain.SerializeChangeEvent(event)
	if err != nil {
		return kafkago.Message{}, err
	}

	keys := make([]string, 0, len(out.Headers))
	for k := range out.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, 0, len(keys)+1)
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(out.Headers[k])})
	}
	headers = append(headers, kafkago.Header{Key: "source", Value: []byte(source)})

	return kafkago.Message{
		Key:     out.Key,
		Value:   out.Value,
		Headers: headers,
	}, nil
}
