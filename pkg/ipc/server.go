// Package ipc hosts the endpoint the external telephony process delivers
// call-state events to, plus small read-only endpoints for health, metrics,
// and the current call list.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nhooyr.io/websocket"

	"github.com/odvcencio/dialtone/pkg/audioroute"
	"github.com/odvcencio/dialtone/pkg/calls"
)

// Notifier is the producer-facing surface of the call handler. Every method
// is non-blocking and never fails from the transport's perspective.
type Notifier interface {
	NotifyCallUpdated(call calls.Call)
	NotifyCallsUpdated(snapshot []calls.Call)
	NotifyIncomingCall(call calls.Call, textResponses []string)
	NotifyCallDisconnected(call calls.Call)
	NotifyAudioModeChanged(route audioroute.Route, muted bool)
	NotifySupportedAudioModeChanged(mask audioroute.Route)
	NotifyBringToForeground()
}

// CallView exposes the current call list for read-only endpoints.
type CallView interface {
	Snapshot() []calls.Call
}

// Config controls the IPC server behavior.
type Config struct {
	BindAddress    string
	PublicMetrics  bool
	AllowedOrigins []string
	Version        string
}

// Server hosts a JSON/HTTP + WebSocket endpoint for the telephony process.
type Server struct {
	cfg      Config
	notifier Notifier
	view     CallView
	logger   *slog.Logger
}

// NewServer constructs a server that forwards decoded frames to notifier.
func NewServer(cfg Config, notifier Notifier, view CallView, logger *slog.Logger) *Server {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1:4490"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		notifier: notifier,
		view:     view,
		logger:   logger.With(slog.String("component", "ipc")),
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/calls", s.handleCalls)
		r.Post("/events", s.handleEvent)
		r.Get("/events/stream", s.handleEventStream)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	s.logger.Info("ipc listening", slog.String("addr", listener.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.PublicMetrics {
		http.NotFound(w, r)
		return
	}
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	if s.view == nil {
		respondJSON(w, http.StatusOK, []calls.Call{})
		return
	}
	respondJSON(w, http.StatusOK, s.view.Snapshot())
}

// handleEvent accepts one JSON frame per request. Useful for tooling and
// tests; the telephony process itself uses the stream endpoint.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var frame wireFrame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		metricFramesRejected.Inc()
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := frame.apply(s.notifier); err != nil {
		metricFramesRejected.Inc()
		respondError(w, http.StatusBadRequest, err)
		return
	}
	metricFramesReceived.WithLabelValues(frame.Type).Inc()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleEventStream upgrades to WebSocket and consumes JSON frames until the
// peer disconnects. A malformed or unknown frame is skipped, not fatal: the
// peer may speak a newer protocol revision, and dropping the link would cost
// every subsequent event too.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn("stream upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	metricStreamsActive.Inc()
	defer metricStreamsActive.Dec()
	s.logger.Info("event stream connected", slog.String("remote", r.RemoteAddr))

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.logger.Info("event stream closed",
				slog.String("remote", r.RemoteAddr),
				slog.Any("reason", err))
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			metricFramesRejected.Inc()
			s.logger.Warn("skipping malformed frame", slog.Any("error", err))
			continue
		}
		if err := frame.apply(s.notifier); err != nil {
			metricFramesRejected.Inc()
			s.logger.Warn("skipping frame", slog.String("type", frame.Type), slog.Any("error", err))
			continue
		}
		metricFramesReceived.WithLabelValues(frame.Type).Inc()
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
