// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker reports whether startup has finished.
type ReadinessChecker func() bool

// Metrics contains process-level pluginhost metrics.
type Metrics struct {
	BuildInfo *prometheus.GaugeVec
	StartTime prometheus.Gauge
}

// NewMetrics creates and registers process-level metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pluginhost_build_info",
				Help: "Build information, always 1",
			},
			[]string{"version"},
		),
		StartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pluginhost_start_time_seconds",
			Help: "Unix time the host started",
		}),
	}

	reg.MustRegister(m.BuildInfo)
	reg.MustRegister(m.StartTime)

	return m
}

// Server serves metrics, health probes and an optional status document.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	status     func() any
	running    atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithCollectors runs each register function against the server's
// registry. Package metrics expose their RegisterMetrics this way.
func WithCollectors(register ...func(prometheus.Registerer)) Option {
	return func(s *Server) {
		for _, fn := range register {
			fn(s.registry)
		}
	}
}

// WithVersion records version in pluginhost_build_info.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.metrics.BuildInfo.WithLabelValues(version).Set(1)
	}
}

// WithStatus serves the value returned by fn as JSON on /status.
func WithStatus(fn func() any) Option {
	return func(s *Server) { s.status = fn }
}

// NewServer creates an observability server for addr ("host:port"). A nil
// readiness checker always reports ready. Metrics go to a private registry
// that also carries the Go runtime and process collectors.
func NewServer(addr string, readinessChecker ReadinessChecker, opts ...Option) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := NewMetrics(registry)
	metrics.StartTime.SetToCurrentTime()

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Metrics returns the process-level metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registerer returns the registry served on /metrics.
func (s *Server) Registerer() prometheus.Registerer {
	return s.registry
}

// Start listens on the configured address and serves /metrics, the
// health probes and, when configured, /status. Errors from the serve loop
// after Start returns are delivered on the returned channel, which is
// closed when the loop exits.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		err := httpSrv.Serve(listener)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		slog.Error("observability server error", "error", err)
		errCh <- err
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	if s.status != nil {
		mux.HandleFunc("/status", s.handleStatus)
	}
	return mux
}

// Stop shuts the HTTP server down. Stopping a server that is not running
// is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.With("addr", s.Addr()).Wrapf(err, "shutdown observability server")
	}
	slog.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.isReady != nil && !s.isReady() {
		writeText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	body, err := json.Marshal(s.status())
	if err != nil {
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write(append(body, '\n'))
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	//nolint:errcheck // client may disconnect
	io.WriteString(w, msg+"\n")
}
