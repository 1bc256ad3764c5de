// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/holomush/plugkit/internal/plugin"
	"github.com/holomush/plugkit/internal/signal"
)

// ReadinessChecker returns whether the application finished starting up.
type ReadinessChecker func() bool

// pluginFailures counts plugins skipped during startup, by phase.
// Package level so the application can record failures without a Server.
var pluginFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plugkit_startup_plugin_failures_total",
		Help: "Total number of plugins skipped at startup by phase",
	},
	[]string{"phase"},
)

// pluginsDiscovered tracks how many script plugins the last discovery found.
var pluginsDiscovered = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "plugkit_startup_plugins_discovered",
		Help: "Number of script plugins found by the last discovery",
	},
)

// RecordPluginFailure increments the startup failure counter for phase
// ("load" or "instantiate"). Activation failures are counted by
// plugkit_plugin_transitions_total.
func RecordPluginFailure(phase string) {
	pluginFailures.WithLabelValues(phase).Inc()
}

// RecordPluginsDiscovered sets the discovered plugins gauge.
func RecordPluginsDiscovered(n int) {
	pluginsDiscovered.Set(float64(n))
}

// Metrics contains process level plugkit metrics.
type Metrics struct {
	BuildInfo *prometheus.GaugeVec
}

// NewMetrics creates the plugkit metrics and registers them, together with
// the signal and plugin package metrics, with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plugkit_build_info",
				Help: "Build information; the value is always 1",
			},
			[]string{"version", "commit"},
		),
	}

	reg.MustRegister(m.BuildInfo)
	reg.MustRegister(pluginFailures)
	reg.MustRegister(pluginsDiscovered)
	signal.RegisterMetrics(reg)
	plugin.RegisterMetrics(reg)

	return m
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBuildInfo publishes version and commit as plugkit_build_info.
func WithBuildInfo(version, commit string) Option {
	return func(s *Server) {
		s.metrics.BuildInfo.WithLabelValues(version, commit).Set(1)
	}
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	log        *slog.Logger
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (e.g., "127.0.0.1:9100", ":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker, opts ...Option) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
		isReady:  readinessChecker,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics returns the process level metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start begins serving observability endpoints.
// The returned channel receives any error the HTTP server hits after Start
// returns, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.In("observability").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.In("observability").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Local httpSrv: a later Start must not race on s.httpServer.
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.log.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.log.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Still running; allow another Stop.
			s.running.Store(true)
			return oops.In("observability").With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	s.log.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 once the application is ready, 503 before.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
