package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Sink kinds selectable with SINK.
const (
	SinkKafka    = "kafka"
	SinkMQTT     = "mqtt"
	SinkInfluxDB = "influxdb"
	SinkLog      = "log"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	PollInterval time.Duration

	NetatmoBaseURL      string
	NetatmoClientID     string
	NetatmoClientSecret string
	NetatmoUsername     string
	NetatmoPassword     string
	NetatmoRefreshToken string
	NetatmoTimeout      time.Duration

	// DeviceAliases is either inline "raw=friendly" pairs or a path to a
	// YAML/JSON map file. See LoadAliases.
	DeviceAliases string
	SourceName    string

	Sink string

	KafkaBrokers []string
	KafkaTopic   string

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
	MQTTQoS         byte
	MQTTUsername    string
	MQTTPassword    string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}

	netatmoTimeout, err := parsePositiveDuration("NETATMO_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	mqttPort, err := strconv.Atoi(sharedcfg.EnvOrDefault("MQTT_PORT", "1883"))
	if err != nil || mqttPort <= 0 || mqttPort > 65535 {
		return nil, errors.New("invalid MQTT_PORT")
	}

	mqttQoS, err := strconv.Atoi(sharedcfg.EnvOrDefault("MQTT_QOS", "1"))
	if err != nil || mqttQoS < 0 || mqttQoS > 2 {
		return nil, errors.New("invalid MQTT_QOS (must be 0, 1, or 2)")
	}

	cfg := &Config{
		PollInterval: pollInterval,

		NetatmoBaseURL:      strings.TrimRight(sharedcfg.EnvOrDefault("NETATMO_BASE_URL", "https://api.netatmo.com"), "/"),
		NetatmoClientID:     os.Getenv("NETATMO_CLIENT_ID"),
		NetatmoClientSecret: os.Getenv("NETATMO_CLIENT_SECRET"),
		NetatmoUsername:     os.Getenv("NETATMO_USERNAME"),
		NetatmoPassword:     os.Getenv("NETATMO_PASSWORD"),
		NetatmoRefreshToken: os.Getenv("NETATMO_REFRESH_TOKEN"),
		NetatmoTimeout:      netatmoTimeout,

		DeviceAliases: strings.TrimSpace(os.Getenv("DEVICE_ALIASES")),
		SourceName:    sharedcfg.EnvOrDefault("SOURCE_NAME", defaultSourceName()),

		Sink: strings.ToLower(sharedcfg.EnvOrDefault("SINK", SinkKafka)),

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "netatmo-changes"),

		MQTTBroker:      sharedcfg.EnvOrDefault("MQTT_BROKER", "localhost"),
		MQTTPort:        mqttPort,
		MQTTClientID:    sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "netatmo-bridge"),
		MQTTTopicPrefix: strings.Trim(sharedcfg.EnvOrDefault("MQTT_TOPIC_PREFIX", "netatmo"), "/"),
		MQTTQoS:         byte(mqttQoS),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),

		InfluxURL:    sharedcfg.EnvOrDefault("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    os.Getenv("INFLUX_ORG"),
		InfluxBucket: sharedcfg.EnvOrDefault("INFLUX_BUCKET", "netatmo"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.NetatmoClientID == "" || c.NetatmoClientSecret == "" {
		return errors.New("NETATMO_CLIENT_ID and NETATMO_CLIENT_SECRET are required")
	}
	hasPassword := c.NetatmoUsername != "" && c.NetatmoPassword != ""
	if !hasPassword && c.NetatmoRefreshToken == "" {
		return errors.New("NETATMO_REFRESH_TOKEN or NETATMO_USERNAME and NETATMO_PASSWORD are required")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (allowed: json, text)", c.LogFormat)
	}

	switch c.Sink {
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required")
		}
	case SinkMQTT:
		if c.MQTTBroker == "" {
			return errors.New("MQTT_BROKER is required")
		}
	case SinkInfluxDB:
		if c.InfluxToken == "" || c.InfluxOrg == "" {
			return errors.New("INFLUX_TOKEN and INFLUX_ORG are required for the influxdb sink")
		}
	case SinkLog:
	default:
		return fmt.Errorf("invalid SINK %q (allowed: kafka, mqtt, influxdb, log)", c.Sink)
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// defaultSourceName is "netatmo." followed by the short host name.
func defaultSourceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "netatmo"
	}
	if i := strings.Index(host, "."); i > 0 {
		host = host[:i]
	}
	return "netatmo." + host
}
