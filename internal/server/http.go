package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"TxLedger/internal/ingestion"
	"TxLedger/internal/observability"
	"TxLedger/internal/query"
)

// Deps carries everything the HTTP server serves.
type Deps struct {
	QueryService  *query.Service
	Ingest        *ingestion.HTTPIngest
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
	Log           zerolog.Logger
}

// HTTPServer is the daemon's single HTTP surface: ingest, queries,
// health, and Prometheus metrics.
type HTTPServer struct {
	addr string
	deps *Deps
}

func NewHTTPServer(addr string, deps *Deps) *HTTPServer {
	return &HTTPServer{addr: addr, deps: deps}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.Handle("POST /transactions", s.instrument("ingest", s.deps.Ingest))
	mux.Handle("GET /accounts/{client}", s.instrument("account", http.HandlerFunc(s.handleGetAccount)))
	mux.Handle("GET /accounts/{client}/entries", s.instrument("entries", http.HandlerFunc(s.handleListEntries)))
	mux.Handle("GET /status", s.instrument("status", http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /integrity", s.instrument("integrity", http.HandlerFunc(s.handleIntegrity)))

	mux.HandleFunc("GET /healthz", s.deps.HealthChecker.LivenessHandler)
	mux.HandleFunc("GET /readyz", s.deps.HealthChecker.ReadinessHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.deps.Log.Info().Str("addr", s.addr).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// instrument wraps a handler with per-endpoint request metrics.
func (s *HTTPServer) instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if s.deps.Metrics != nil {
			s.deps.Metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
			s.deps.Metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
			if rec.status >= 500 {
				s.deps.Metrics.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
			}
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	client, ok := s.clientParam(w, r)
	if !ok {
		return
	}

	resp, err := s.deps.QueryService.GetAccount(r.Context(), client)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "unknown client")
			return
		}
		s.deps.Log.Error().Err(err).Uint16("client", client).Msg("account query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleListEntries(w http.ResponseWriter, r *http.Request) {
	client, ok := s.clientParam(w, r)
	if !ok {
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}

	var after *int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad after cursor")
			return
		}
		after = &n
	}

	entries, err := s.deps.QueryService.ListEntries(r.Context(), client, limit, after)
	if err != nil {
		s.deps.Log.Error().Err(err).Uint16("client", client).Msg("entries query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deps.QueryService.GetStatus(r.Context())
	if err != nil {
		s.deps.Log.Error().Err(err).Msg("status query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.QueryService.VerifyIntegrity(r.Context())
	if err != nil {
		s.deps.Log.Error().Err(err).Msg("integrity check failed")
		writeError(w, http.StatusInternalServerError, "integrity check failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) clientParam(w http.ResponseWriter, r *http.Request) (uint16, bool) {
	raw := r.PathValue("client")
	client, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad client id")
		return 0, false
	}
	return uint16(client), true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
