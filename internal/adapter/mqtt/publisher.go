package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/netatmo-bridge/internal/config"
	"github.com/couchcryptid/netatmo-bridge/internal/domain"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
)

// Publisher sends change events as retained MQTT messages.
// It implements pipeline.EventSink.
type Publisher struct {
	client pahomqtt.Client
	topics Topics
	qos    byte
	source string
	logger *slog.Logger
}

// Connect dials the broker. The bridge announces itself online on every
// successful connection, including automatic reconnects, and the broker
// publishes an offline status on its behalf if the connection drops.
func Connect(cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	p := newPublisher(nil, Topics{Prefix: cfg.MQTTTopicPrefix}, cfg.MQTTQoS, cfg.SourceName, logger)
	p.client = pahomqtt.NewClient(p.clientOptions(cfg))

	token := p.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return p, nil
}

func newPublisher(client pahomqtt.Client, topics Topics, qos byte, source string, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, topics: topics, qos: qos, source: source, logger: logger}
}

// Publish sends one event to {prefix}/{device}/{channel} and waits for the
// broker acknowledgment, bounded by ctx and the publish timeout.
func (p *Publisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	topic := p.topics.Channel(event.Device, event.Channel)
	if !validTopic(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	out, err := domain.SerializeChangeEvent(event)
	if err != nil {
		return err
	}

	token := p.client.Publish(topic, p.qos, true, out.Value)
	timer := time.NewTimer(defaultPublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close announces a graceful shutdown and disconnects.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	if p.client.IsConnectionOpen() {
		p.publishStatus(p.client, "offline")
	}
	p.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// onConnect runs on paho's goroutine after each (re)connect. After an unclean
// drop the broker has published the will, so the retained status reads
// offline until it is republished here.
func (p *Publisher) onConnect(c pahomqtt.Client) {
	p.logger.Info("mqtt connected")
	p.publishStatus(c, "online")
}

func (p *Publisher) publishStatus(c pahomqtt.Client, status string) {
	token := c.Publish(p.topics.Status(p.source), p.qos, true, statusPayload(status, p.source))
	if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
		p.logger.Warn("mqtt status publish failed", "status", status, "error", token.Error())
	}
}

func (p *Publisher) clientOptions(cfg *config.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(p.topics.Status(p.source), statusPayload("offline", p.source), p.qos, true)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.logger.Warn("mqtt connection lost", "error", err)
	})
	opts.SetOnConnectHandler(p.onConnect)
	return opts
}

func statusPayload(status, source string) string {
	return fmt.Sprintf(`{"status":%q,"source":%q}`, status, source)
}
