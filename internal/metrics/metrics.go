package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracker metrics
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaktime_ticks_total",
			Help: "Total tracker evaluations, by resulting phase",
		},
		[]string{"phase"},
	)

	TrackedSecondsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "breaktime_tracked_seconds_total",
			Help: "Total seconds accumulated against the budget",
		},
	)

	WarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "breaktime_warnings_total",
			Help: "Total low-budget warning notifications emitted",
		},
	)

	BreaksStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "breaktime_breaks_started_total",
			Help: "Total break windows created",
		},
	)

	RedirectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "breaktime_redirects_total",
			Help: "Total navigations commanded to the break destination",
		},
	)

	// Fault metrics
	StorageFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaktime_storage_faults_total",
			Help: "Storage read/write failures, by operation",
		},
		[]string{"op"},
	)

	PageFaults = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "breaktime_page_faults_total",
			Help: "Focused page inspection/navigation failures",
		},
	)

	// State gauges
	TimeSpentMS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "breaktime_time_spent_ms",
			Help: "Accumulated milliseconds in the current tracking cycle",
		},
	)

	BreakActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "breaktime_break_active",
			Help: "1 while a break window is active, else 0",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		TicksTotal,
		TrackedSecondsTotal,
		WarningsTotal,
		BreaksStartedTotal,
		RedirectsTotal,
		StorageFaults,
		PageFaults,
		TimeSpentMS,
		BreakActive,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
