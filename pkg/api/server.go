// Package api exposes the scan service over HTTP: scan submission,
// status polling, health, and Prometheus metrics on one listener.
package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siteprobe/siteprobe/pkg/defaults"
	"github.com/siteprobe/siteprobe/pkg/jsonutil"
	"github.com/siteprobe/siteprobe/pkg/orchestrator"
	"github.com/siteprobe/siteprobe/pkg/scan"
	"github.com/siteprobe/siteprobe/pkg/target"
)

// Server holds the HTTP surface and its collaborators.
type Server struct {
	store        *scan.Store
	admission    *scan.Admission
	validator    *target.Validator
	orchestrator *orchestrator.Orchestrator
	router       chi.Router

	// metrics is the Prometheus hook's registry, mounted on
	// MetricsPath when non-nil.
	metrics     *prometheus.Registry
	metricsPath string
}

// Config wires a Server.
type Config struct {
	Store        *scan.Store
	Admission    *scan.Admission
	Validator    *target.Validator
	Orchestrator *orchestrator.Orchestrator

	// Metrics mounts the registry on MetricsPath when set.
	Metrics     *prometheus.Registry
	MetricsPath string
}

// NewServer builds the router with all routes and middleware attached.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:        cfg.Store,
		admission:    cfg.Admission,
		validator:    cfg.Validator,
		orchestrator: cfg.Orchestrator,
		metrics:      cfg.Metrics,
		metricsPath:  cfg.MetricsPath,
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLog)
	r.Use(recoverer)

	r.Post("/scan", s.handleScan)
	r.Get("/scan/{scanID}/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, s.metricsPath, promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	s.router = r
	return s
}

// ServeHTTP makes the server a http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// scanRequest is the POST /scan body.
type scanRequest struct {
	Target string `json:"target"`
}

// handleScan admits, validates, and launches a scan.
//
// Admission runs before validation: capacity is the cheaper check, and
// a rejected-target job stays visible through the status endpoint. The
// admission slot is released on the rejection path since no pipeline
// will run for it.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, defaults.BufferSmall))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	var req scanRequest
	if err := jsonutil.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	ok, running, max := s.admission.TryAdmit()
	if !ok {
		log.Printf("[api] BUSY  err=%v running=%d max=%d", scan.ErrCapacity, running, max)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":        "scan capacity reached, try again later",
			"runningScans": running,
			"maxScans":     max,
		})
		return
	}

	job, err := s.store.Create(req.Target)
	if err != nil {
		s.admission.Release()
		writeError(w, http.StatusInternalServerError, "cannot create scan job")
		return
	}

	tgt, err := s.validator.Validate(r.Context(), req.Target)
	if err != nil {
		s.store.Reject(job.ID, reason(err))
		s.admission.Release()
		writeError(w, http.StatusBadRequest, reason(err))
		return
	}

	s.orchestrator.Launch(job, tgt)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"scanId": job.ID,
		"status": "processing",
	})
}

// handleStatus returns the job snapshot, or 404 for unknown/expired IDs.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scanID")
	job, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, scan.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "cannot load scan")
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleHealth reports liveness and scan capacity.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"activeScans":        s.store.ActiveCount(),
		"runningScans":       s.admission.Running(),
		"maxConcurrentScans": s.admission.Max(),
	})
}

// reason strips the sentinel prefix from a validation error, leaving
// the caller-facing explanation.
func reason(err error) string {
	msg := err.Error()
	const prefix = "target: invalid target: "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

// writeJSON serializes v with the shared codec.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsonutil.Marshal(v)
	if err != nil {
		log.Printf("[api] MARSHAL ERROR  err=%v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes the standard {"error": ...} body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestID tags every request with a unique ID, echoed back so
// clients can correlate log lines with their calls.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// requestLog logs one line per request with latency and status.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[api] %s %s  status=%d  duration=%s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// recoverer converts a handler panic into a 500 JSON response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[api] PANIC  %s %s  err=%v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
