// Package http exposes the query API: event search, export, stats, manual
// refresh, and the operational endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
	"github.com/couchcryptid/crisis-aggregator/internal/store"
)

// Refresher triggers an on-demand refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
	Ready() bool
}

// Server exposes the aggregation engine over HTTP.
type Server struct {
	httpServer *http.Server
	store      *store.Store
	refresher  Refresher
	logger     *slog.Logger
}

// NewServer wires the API routes. Query endpoints read committed store
// state only; nothing here can observe a cycle in progress.
func NewServer(addr string, st *store.Store, refresher Refresher, logger *slog.Logger) *Server {
	s := &Server{
		store:     st,
		refresher: refresher,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/events/{id}", s.handleEvent)
		r.Get("/export", s.handleExport)
		r.Get("/stats", s.handleStats)
		r.Post("/refresh", s.handleRefresh)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready once the store holds a committed state, either
// from a restored snapshot or the first completed cycle.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.refresher.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleEvents is the filtered event search. All filters combine with AND;
// results rank by severity then recency.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.Filter{
		Region:       q.Get("region"),
		Text:         q.Get("q"),
		IncludeStale: q.Get("include_stale") == "true",
	}
	if c := q.Get("category"); c != "" {
		filter.Category = domain.ParseCategory(c)
	}
	if sev := q.Get("min_severity"); sev != "" {
		filter.MinSeverity = domain.ParseSeverity(sev)
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	events := s.store.Search(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(events),
		"degraded": s.store.Degraded(),
		"events":   events,
	})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Export())
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

// handleRefresh triggers a cycle and waits for it. A concurrent cycle maps
// to 409 so callers know the data is already being refreshed.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.refresher.Refresh(r.Context())
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		writeError(w, http.StatusConflict, "refresh already in progress")
	case err != nil:
		s.logger.Error("manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "refreshed",
			"last_refresh_at": s.store.LastRefreshAt(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
