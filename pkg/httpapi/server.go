// Package httpapi wires the /files, /version and /metrics HTTP surface
// over a searchindex.State and a watcher.LiveList.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oriath-net/bundlecat/pkg/metrics"
	"github.com/oriath-net/bundlecat/pkg/queryplanner"
	"github.com/oriath-net/bundlecat/pkg/searchindex"
	"github.com/oriath-net/bundlecat/pkg/watcher"
)

// Server bundles everything the HTTP handlers need.
type Server struct {
	state            *searchindex.State
	live             *watcher.LiveList
	resolver         queryplanner.MimeResolver
	metrics          *metrics.Metrics
	gatherer         prometheus.Gatherer
	log              *slog.Logger
	defaultSearchCap int
}

// New constructs a Server; resolver may be nil to fall back to
// StdlibMimeResolver. gatherer is the registry metrics were registered
// against; /metrics serves exactly that registry rather than the global
// default one, so a process can run more than one Server without
// cross-registering collectors.
func New(state *searchindex.State, live *watcher.LiveList, resolver queryplanner.MimeResolver, m *metrics.Metrics, gatherer prometheus.Gatherer, defaultSearchCap int, log *slog.Logger) *Server {
	if resolver == nil {
		resolver = StdlibMimeResolver{}
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{state: state, live: live, resolver: resolver, metrics: m, gatherer: gatherer, defaultSearchCap: defaultSearchCap, log: log}
}

// Handler returns the routed mux, ready to be wrapped in an http.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/files", s.handleFiles)
	mux.HandleFunc("/version", s.handleVersion)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return withRequestLogging(s.log, mux)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := parseRequest(r)
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveQuery(string(req.Command), start)
		}
	}()

	if req.Command == queryplanner.CmdSearch && req.Limit == nil && s.defaultSearchCap > 0 {
		limit := s.defaultSearchCap
		req.Limit = &limit
	}

	live := s.live.Snapshot()
	resp, errResp, err := queryplanner.Plan(s.state.Index(), live, s.resolver, req)

	switch {
	case err != nil:
		w.WriteHeader(http.StatusServiceUnavailable)
	case errResp != nil:
		writeJSON(w, http.StatusNotFound, errResp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	live := s.live.Snapshot()
	poe := r.URL.Query().Get("poe")

	if len(live) != 2 {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(nil)
		return
	}

	idx := 1
	if poe != "1" {
		idx = 2
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(live[idx-1]))
}

func parseRequest(r *http.Request) queryplanner.Request {
	q := r.URL.Query()
	req := queryplanner.Request{
		Command:    queryplanner.Command(q.Get("q")),
		Adapter:    q.Get("adapter"),
		Path:       q.Get("path"),
		Filter:     q.Get("filter"),
		Extension:  q.Get("extension"),
		DebugQuery: q.Get("debug_query") == "true",
	}
	if req.Command == "" {
		req.Command = queryplanner.CmdIndex
	}
	if limStr := q.Get("limit"); limStr != "" {
		if n, err := strconv.Atoi(limStr); err == nil {
			req.Limit = &n
		}
	}
	return req
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withRequestLogging stamps every request with a correlation id (logged
// and echoed back as a response header) and logs method/path/status/dur.
func withRequestLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.Info("http request",
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
