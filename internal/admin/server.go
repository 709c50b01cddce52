package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goodtune/breaktime/internal/budget"
	"github.com/goodtune/breaktime/internal/storage"
	"github.com/rs/zerolog"
)

// Config holds the settings API configuration.
type Config struct {
	ListenAddr string
}

// PhaseSource reports the phase the background tracker last observed. The
// tracker itself implements it.
type PhaseSource interface {
	Phase() budget.Phase
}

// NavigationSink receives page navigation events pushed by the focus agent.
// The tracker itself implements it.
type NavigationSink interface {
	HandleNavigation(ctx context.Context, url string)
}

// Tracker is what the API needs from the background tracker.
type Tracker interface {
	PhaseSource
	NavigationSink
}

// Server is the settings/status HTTP API. It is the only writer of the
// budget and rule configuration; usage and break state belong to the
// tracker and are read-only here.
type Server struct {
	config   Config
	state    storage.StateStore
	tracker  Tracker
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates the settings API server.
func NewServer(cfg Config, state storage.StateStore, tracker Tracker, logger zerolog.Logger) *Server {
	s := &Server{
		config:  cfg,
		state:   state,
		tracker: tracker,
		logger:  logger.With().Str("component", "admin").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/config", s.handleGetConfig)
	r.Put("/api/config", s.handlePutConfig)
	r.Get("/api/rules", s.handleListRules)
	r.Post("/api/rules", s.handleAddRule)
	r.Delete("/api/rules", s.handleRemoveRule)
	r.Post("/api/events/navigation", s.handleNavigationEvent)

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router (for tests).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the settings API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting settings API server")

	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Settings API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the settings API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping settings API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("settings API server shutdown: %w", err)
	}

	return nil
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
