// Package status serves the local observability surface: the latest run
// snapshot as JSON (the dashboard the operator refreshes between cycles)
// and Prometheus counters for anything that wants to scrape them.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"profilewatch/store"
)

// Server implements the runner's Observer and exposes what it observes
// over HTTP.
type Server struct {
	logger *slog.Logger
	srv    *http.Server

	reg   *prometheus.Registry
	items *prometheus.CounterVec
	runs  *prometheus.CounterVec
	quota prometheus.Counter

	mu   sync.RWMutex
	last *store.RunMetrics
}

// New creates a status server.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	s := &Server{
		logger: logger,
		reg:    reg,
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilewatch_items_total",
			Help: "Items processed, by reconciliation outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilewatch_runs_total",
			Help: "Completed runs, by trigger kind.",
		}, []string{"trigger"}),
		quota: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilewatch_quota_warnings_total",
			Help: "Quota signals received from the backing store.",
		}),
	}
	reg.MustRegister(s.items, s.runs, s.quota,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return s
}

// ItemProcessed records one item outcome.
func (s *Server) ItemProcessed(decision string, failed bool) {
	if failed {
		s.items.WithLabelValues("failed").Inc()
		return
	}
	s.items.WithLabelValues(decision).Inc()
}

// CycleFinished records a run snapshot and makes it the one /status serves.
func (s *Server) CycleFinished(m store.RunMetrics) {
	s.runs.WithLabelValues(string(m.Trigger)).Inc()
	s.mu.Lock()
	s.last = &m
	s.mu.Unlock()
}

// QuotaWarning counts a quota signal.
func (s *Server) QuotaWarning() {
	s.quota.Inc()
}

func (s *Server) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	return r
}

// Start begins serving on addr. It returns immediately; serve errors other
// than a clean shutdown are logged.
func (s *Server) Start(addr string) {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status: serve failed", "addr", addr, "error", err)
		}
	}()
	s.logger.Info("status: listening", "addr", addr)
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) {
	if s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("status: shutdown", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if last == nil {
		w.Write([]byte(`{"state":"no run completed yet"}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"run_number": last.RunNumber,
		"started_at": last.StartedAt.Format(time.RFC3339),
		"duration":   last.Duration.String(),
		"trigger":    string(last.Trigger),
		"total":      last.Total,
		"succeeded":  last.Succeeded,
		"failed":     last.Failed,
		"new":        last.New,
		"updated":    last.Updated,
		"unchanged":  last.Unchanged,
	})
}
