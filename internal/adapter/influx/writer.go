package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/couchcryptid/netatmo-bridge/internal/config"
	"github.com/couchcryptid/netatmo-bridge/internal/domain"
)

const defaultPingTimeout = 5 * time.Second

// ErrConnectionFailed is returned when the server cannot be reached at startup.
var ErrConnectionFailed = errors.New("influxdb: connection failed")

// Writer stores change events as points, one blocking write per event.
// It implements pipeline.EventSink.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	source   string
	logger   *slog.Logger
}

// Connect creates the client and verifies the server answers a ping.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Writer, error) {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, influxdb2.DefaultOptions())

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	logger.Info("influxdb connected", "url", cfg.InfluxURL, "org", cfg.InfluxOrg, "bucket", cfg.InfluxBucket)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		source:   cfg.SourceName,
		logger:   logger,
	}, nil
}

// Publish writes the event and returns once the server accepted it.
func (w *Writer) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if err := w.writeAPI.WritePoint(ctx, toPoint(event, w.source)); err != nil {
		return fmt.Errorf("influxdb write %s/%s: %w", event.Device, event.Channel, err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.logger.Debug("closing influxdb client")
	w.client.Close()
	return nil
}

// toPoint maps an event to measurement=channel, tags device/unit/source and
// a single value field.
func toPoint(event domain.ChangeEvent, source string) *write.Point {
	return write.NewPoint(
		event.Channel,
		map[string]string{
			"device": event.Device,
			"unit":   event.Unit,
			"source": source,
		},
		map[string]interface{}{"value": event.Value},
		event.ObservedAt.UTC(),
	)
}
