// Package server exposes the trends store, the timeline merge, and the
// recommendation engine over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackwell-systems/campaigntrends/internal/adapter"
	"github.com/blackwell-systems/campaigntrends/internal/history"
	"github.com/blackwell-systems/campaigntrends/internal/metrics"
	"github.com/blackwell-systems/campaigntrends/internal/timeline"
)

// maxPayloadBytes bounds snapshot and policy request bodies.
const maxPayloadBytes = 1 << 20

// Server holds the handlers' dependencies.
type Server struct {
	store    *history.Store
	adapter  *adapter.Adapter
	timeline *timeline.Service
	metrics  *metrics.Collectors
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	limit    int
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request counts on c and serves gatherer at /metrics.
func WithMetrics(c *metrics.Collectors, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = c
		s.gatherer = gatherer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithTimelineLimit sets the page size used when a request names none.
func WithTimelineLimit(n int) Option {
	return func(s *Server) { s.limit = n }
}

// New creates a Server.
func New(store *history.Store, ad *adapter.Adapter, tl *timeline.Service, opts ...Option) *Server {
	s := &Server{
		store:    store,
		adapter:  ad,
		timeline: tl,
		logger:   slog.Default(),
		limit:    timeline.DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with every route registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	s.RegisterHTTP(r)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// RegisterHTTP registers the campaign routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Route("/campaigns/{campaignID}", func(r chi.Router) {
		r.Post("/snapshots", s.handleAddSnapshot)
		r.Get("/snapshots", s.handleSnapshots)
		r.Delete("/snapshots", s.handleClear)
		r.Get("/snapshots/latest", s.handleLatest)
		r.Post("/snapshots/{snapshotID}/pin", s.handlePin)
		r.Delete("/snapshots/{snapshotID}/pin", s.handleUnpin)
		r.Put("/capacity", s.handleCapacity)
		r.Put("/ttl", s.handleTTL)
		r.Get("/timeline", s.handleTimeline)
		r.Get("/recommendations", s.handleRecommendations)
	})
	r.Get("/stats", s.handleStats)
}

// NewHTTPServer wraps h in an http.Server listening on addr.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// observe logs each request and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			s.metrics.Request(route, status)
			s.logger.Debug("http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
