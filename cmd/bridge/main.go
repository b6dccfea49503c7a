package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/netatmo-bridge/internal/adapter/httpadapter"
	"github.com/couchcryptid/netatmo-bridge/internal/adapter/influx"
	kafkaadapter "github.com/couchcryptid/netatmo-bridge/internal/adapter/kafka"
	"github.com/couchcryptid/netatmo-bridge/internal/adapter/logsink"
	mqttadapter "github.com/couchcryptid/netatmo-bridge/internal/adapter/mqtt"
	"github.com/couchcryptid/netatmo-bridge/internal/adapter/netatmo"
	"github.com/couchcryptid/netatmo-bridge/internal/config"
	"github.com/couchcryptid/netatmo-bridge/internal/domain"
	"github.com/couchcryptid/netatmo-bridge/internal/observability"
	"github.com/couchcryptid/netatmo-bridge/internal/pipeline"
)

// Exit statuses of run. A sink that cannot be reached exits 2, distinct
// from a configuration error.
const (
	exitOK          = 0
	exitConfig      = 1
	exitSinkFailure = 2
)

type closableSink interface {
	pipeline.EventSink
	Close() error
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitConfig
	}

	logger := observability.NewLogger(cfg)

	aliases, err := config.LoadAliases(cfg.DeviceAliases)
	if err != nil {
		logger.Error("failed to load device aliases", "error", err)
		return exitConfig
	}
	logger.Info("device aliases loaded", "count", len(aliases))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := newSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create sink", "sink", cfg.Sink, "error", err)
		return exitSinkFailure
	}
	logger.Info("sink ready", "sink", cfg.Sink)

	fetcher := netatmo.NewClient(cfg.NetatmoBaseURL, netatmo.Credentials{
		ClientID:     cfg.NetatmoClientID,
		ClientSecret: cfg.NetatmoClientSecret,
		Username:     cfg.NetatmoUsername,
		Password:     cfg.NetatmoPassword,
		RefreshToken: cfg.NetatmoRefreshToken,
	}, cfg.NetatmoTimeout, logger)

	metrics := observability.NewMetrics()
	engine := domain.NewEngine(domain.NewStateTable(), nil)
	p := pipeline.New(fetcher, engine, sink, logger, metrics, pipeline.Options{
		Aliases:  aliases,
		Interval: cfg.PollInterval,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start polling.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if err := sink.Close(); err != nil {
		logger.Error("sink close error", "sink", cfg.Sink, "error", err)
	}

	logger.Info("shutdown complete")
	return exitOK
}

func newSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (closableSink, error) {
	switch cfg.Sink {
	case config.SinkKafka:
		return kafkaadapter.NewWriter(cfg, logger), nil
	case config.SinkMQTT:
		return mqttadapter.Connect(cfg, logger)
	case config.SinkInfluxDB:
		return influx.Connect(ctx, cfg, logger)
	case config.SinkLog:
		return nopCloser{logsink.New(logger)}, nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}

type nopCloser struct {
	pipeline.EventSink
}

func (nopCloser) Close() error { return nil }
