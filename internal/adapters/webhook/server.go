// Package webhook exposes the signal intake over HTTP. Upstream signal
// producers POST their payloads here; the server only decodes and hands
// them to the signal handler.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"polyPaperBot/internal/domain"
	"polyPaperBot/internal/ports"
	"polyPaperBot/internal/telemetry"

	"github.com/go-chi/chi/v5"
)

// Config holds configuration for the webhook server.
type Config struct {
	ListenAddr string
	Handler    ports.SignalHandler
	Logger     ports.Logger
	// Metrics, when set, is served read-only at GET /metrics.
	Metrics *telemetry.Hub
}

// Server accepts trade signals over HTTP.
type Server struct {
	srv     *http.Server
	handler ports.SignalHandler
	logger  ports.Logger
	metrics *telemetry.Hub
}

// New creates the webhook server. It does not start listening.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("signal handler is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	addr := cfg.ListenAddr
	if addr == "" {
		addr = ":8099"
	}

	s := &Server{handler: cfg.Handler, logger: cfg.Logger, metrics: cfg.Metrics}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Post("/signal", s.handleSignal)
	if s.metrics != nil {
		r.Get("/metrics", s.handleMetrics)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s, nil
}

// Run listens until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Webhook server listening", map[string]interface{}{"addr": s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, err, "Webhook server shutdown error")
			return err
		}
		s.logger.Info(context.Background(), "Webhook server stopped")
		return nil
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var sig domain.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		s.logger.Warn(r.Context(), "Rejected malformed signal payload", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed signal payload"})
		return
	}
	if sig.Action == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action is required"})
		return
	}

	result, err := s.handler.HandleSignal(r.Context(), sig)
	if err != nil {
		s.logger.Error(r.Context(), err, "Signal handling failed", map[string]interface{}{"action": string(sig.Action), "tradeID": sig.TradeID})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	status := http.StatusOK
	if !result.OK && result.Reason == domain.ReasonNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
