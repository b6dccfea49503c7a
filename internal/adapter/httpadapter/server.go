package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/netatmo-bridge/internal/domain"
	"github.com/couchcryptid/netatmo-bridge/internal/pipeline"
)

// Bridge is the part of the polling pipeline the HTTP surface drives.
type Bridge interface {
	sharedobs.ReadinessChecker
	RunCycle(ctx context.Context) (pipeline.CycleResult, error)
	State() *domain.StateTable
}

// Server exposes health, readiness, metrics, device state and a manual poll
// trigger over HTTP.
type Server struct {
	httpServer *http.Server
	bridge     Bridge
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /devices and /poll routes.
func NewServer(addr string, bridge Bridge, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		bridge: bridge,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(bridge))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /devices", s.handleDevices)
	mux.HandleFunc("GET /devices/{id}", s.handleDevice)
	mux.HandleFunc("POST /poll", s.handlePoll)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.bridge.State().Dump())
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, ok := s.bridge.State().Lookup(id)
	if !ok {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown device " + id})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, state)
}

// handlePoll detaches the cycle from the request so a client hanging up
// cannot abort delivery of events already committed to state.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	result, err := s.bridge.RunCycle(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		sharedobs.WriteJSON(w, http.StatusOK, result)
	case errors.Is(err, pipeline.ErrCycleInFlight):
		sharedobs.WriteJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("manual poll failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusBadGateway, map[string]any{
			"error":     err.Error(),
			"emitted":   result.Emitted,
			"delivered": result.Delivered,
		})
	}
}
