// Package api serves comparison runs and on-demand trace comparisons
// over JSON, plus rendered charts for the debug surface.
package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/scenario.report/internal/httputil"
	"github.com/banshee-data/scenario.report/internal/runstore"
	"github.com/banshee-data/scenario.report/internal/units"
	"github.com/banshee-data/scenario.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server answers API requests. The store may be nil when run
// persistence is disabled; traceDir bounds which files the compare
// endpoints may read, and empty disables them.
type Server struct {
	store    *runstore.Store
	traceDir string
	units    string
}

// NewServer creates an API server. An invalid units string falls back
// to meters per second.
func NewServer(store *runstore.Store, traceDir, speedUnits string) *Server {
	if !units.IsValid(speedUnits) {
		speedUnits = units.MPS
	}
	return &Server{
		store:    store,
		traceDir: traceDir,
		units:    speedUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes, unprefixed. Callers mount it under
// /api with http.StripPrefix.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.showHealth)
	mux.HandleFunc("/config", s.showConfig)
	mux.HandleFunc("/runs", s.listRuns)
	mux.HandleFunc("/runs/", s.handleRun)
	mux.HandleFunc("/compare", s.handleCompare)
	mux.HandleFunc("/charts/deviation", s.handleDeviationChart)
	mux.HandleFunc("/charts/trajectory", s.handleTrajectoryChart)
	return mux
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":           s.units,
		"trace_dir":       s.traceDir,
		"store_available": s.store != nil,
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.store == nil {
		httputil.NotFound(w, "run persistence is disabled")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	var runs []*runstore.Run
	var err error
	if name := r.URL.Query().Get("name"); name != "" {
		runs, err = s.store.ListByName(name, limit)
	} else {
		runs, err = s.store.List(limit)
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*runstore.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

type runResponse struct {
	Run     *runstore.Run          `json:"run"`
	Details []*runstore.PairDetail `json:"details"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.NotFound(w, "run persistence is disabled")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/runs/")
	runID, sub, _ := strings.Cut(rest, "/")
	if runID == "" || strings.Contains(sub, "/") {
		httputil.NotFound(w, "no such run")
		return
	}

	switch sub {
	case "report":
		s.runReport(w, r, runID)
		return
	case "plot":
		s.runPlot(w, r, runID)
		return
	case "":
	default:
		httputil.NotFound(w, "no such run")
		return
	}

	switch r.Method {
	case http.MethodGet:
		run, details, err := s.store.Get(runID)
		if err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		if details == nil {
			details = []*runstore.PairDetail{}
		}
		httputil.WriteJSONOK(w, runResponse{Run: run, Details: details})
	case http.MethodDelete:
		if err := s.store.Delete(runID); err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"deleted": runID})
	default:
		httputil.MethodNotAllowed(w)
	}
}
