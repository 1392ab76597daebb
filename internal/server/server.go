// Package server exposes the year data cache over a local JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/cache"
	"github.com/colthorp/ordo-cli-go/internal/core"
	"github.com/colthorp/ordo-cli-go/internal/export"
	appLog "github.com/colthorp/ordo-cli-go/internal/log"
)

// Server is the local HTTP API.
type Server struct {
	manager   *cache.Manager
	refresher *Refresher
	router    chi.Router
}

// New creates a new server. refresher may be nil.
func New(manager *cache.Manager, refresher *Refresher) *Server {
	s := &Server{
		manager:   manager,
		refresher: refresher,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/year/{year}", s.handleYear)
		r.Get("/year/{year}/ics", s.handleYearICS)
		r.Get("/month/{year}/{month}", s.handleMonth)
		r.Get("/days/{year}", s.handleDays)
		r.Get("/cache", s.handleCacheInfo)
		r.Delete("/cache", s.handleCacheClear)
		r.Delete("/cache/{year}", s.handleCacheClearYear)
	})

	s.router = r
}

// Handler returns the router (for testing and embedding).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, running the refresher alongside.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.refresher != nil {
		if err := s.refresher.Start(); err != nil {
			return err
		}
		defer s.refresher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		appLog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": core.Version})
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	data, ok := s.loadYear(w, r, year)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleYearICS(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	data, ok := s.loadYear(w, r, year)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=ordo-"+strconv.Itoa(year)+".ics")
	if err := export.WriteICS(w, year, data, export.ICSOptions{}); err != nil {
		appLog.Error("ics export failed", err, "year", year)
	}
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1-12")
		return
	}

	data, err := s.manager.GetYear(r.Context(), year)
	if err != nil {
		writeLoadError(w, err)
		return
	}

	days := make([]api.DayRecord, 0)
	for _, key := range core.MonthDateKeys(year, time.Month(month)) {
		if rec, ok := data[key]; ok {
			days = append(days, rec)
		}
	}
	if len(days) == 0 {
		writeError(w, http.StatusNotFound, cache.ErrNoData.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.MonthResponse{Year: year, Month: month, Days: days})
}

func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	var keys []string
	for _, k := range strings.Split(r.URL.Query().Get("dates"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	writeJSON(w, http.StatusOK, s.manager.CachedSlice(year, keys))
}

func (s *Server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Info())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.manager.Invalidate()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCacheClearYear(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	s.manager.Invalidate(year)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadYear fetches year and writes the error response on failure.
func (s *Server) loadYear(w http.ResponseWriter, r *http.Request, year int) (cache.YearMapping, bool) {
	data, err := s.manager.GetYear(r.Context(), year)
	if err != nil {
		writeLoadError(w, err)
		return nil, false
	}
	if len(data) == 0 {
		writeError(w, http.StatusNotFound, cache.ErrNoData.Error())
		return nil, false
	}
	return data, true
}

// --- Helpers ---

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := core.ParseYear(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return year, true
}

func writeLoadError(w http.ResponseWriter, err error) {
	switch {
	case api.IsConnectivityError(err):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("encode response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through appLog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
