// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/facepace/internal/adapters/repository"
	"github.com/okian/facepace/internal/adapters/storage"
	service "github.com/okian/facepace/internal/app"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/internal/domain/results"
	"github.com/okian/facepace/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	AnalysisDependencies
	LeaderboardDependencies
	ProxyDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionsHandler    *SessionsHandler
	analysisHandler    *AnalysisHandler
	leaderboardHandler *LeaderboardHandler
	proxyHandler       *ProxyHandler
	dashboardHandler   *dashboardHandler
	media              http.Handler
	limiter            *RateLimiter
	logger             logger.Logger
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxUploadBytes int64
	maxLimit       int
	media          http.Handler
	limiter        *RateLimiter
	logger         logger.Logger
}

// WithMaxUploadBytes caps request bodies of the upload routes.
func WithMaxUploadBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// WithMaxLimit caps the leaderboard page size.
func WithMaxLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithMedia mounts h under /media/ for the filesystem storage backend.
func WithMedia(h http.Handler) Option {
	return func(c *serverConfig) {
		c.media = h
	}
}

// WithRateLimiter applies l to the session and proxy routes.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *serverConfig) {
		c.limiter = l
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := serverConfig{
		maxUploadBytes: 50 << 20,
		maxLimit:       100,
		logger:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	l := cfg.logger.Named("api")
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps, cfg.maxUploadBytes, l),
		analysisHandler:    NewAnalysisHandler(deps, l),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit),
		proxyHandler:       NewProxyHandler(deps, l),
		dashboardHandler:   newDashboardHandler(),
		media:              cfg.media,
		limiter:            cfg.limiter,
		logger:             l,
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Get("/dashboard", s.dashboardHandler.HandleDashboard)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Post("/sessions", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions"))
		r.Get("/sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleGet, "session"))
		r.Put("/sessions/{id}/{kind}", MetricsMiddleware(s.sessionsHandler.HandleUpload, "session_upload"))
		r.Post("/sessions/{id}/analysis", MetricsMiddleware(s.analysisHandler.HandleAnalyze, "session_analysis"))
		r.Get("/sessions/{id}/report", MetricsMiddleware(s.analysisHandler.HandleReport, "session_report"))

		r.Post("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandlePublish, "leaderboard_publish"))
		r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
		r.Get("/leaderboard/{entry_id}", MetricsMiddleware(s.leaderboardHandler.HandleGetEntry, "leaderboard_entry"))

		r.Post("/api/analyze", MetricsMiddleware(s.proxyHandler.HandleAnalyze, "api_analyze"))
	})

	if s.media != nil {
		r.Handle(storage.MediaPrefix+"*", s.media)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure reports err with the status and code its kind maps to.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// classify maps domain error kinds to HTTP status codes.
func classify(err error) (int, string) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig), errors.Is(err, ErrPayloadTooBig), errors.Is(err, service.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrInvalidAge),
		errors.Is(err, results.ErrInvalidName), errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, service.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrSessionNotFound), errors.Is(err, repository.ErrNotFound),
		errors.Is(err, results.ErrNoReport):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrAnalysisInFlight), errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case errors.Is(err, model.ErrMissingAsset), errors.Is(err, results.ErrNoMetric):
		return http.StatusUnprocessableEntity, "unprocessable"
	case errors.Is(err, model.ErrBackpressure), errors.Is(err, ErrBackpressure), errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, model.ErrAnalysisTimeout), errors.Is(err, model.ErrUploadWait),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, model.ErrStorage), errors.Is(err, model.ErrURLResolution),
		errors.Is(err, model.ErrAnalysisService), errors.Is(err, model.ErrAnalysisMalformed):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// timeSince returns elapsed milliseconds.
func timeSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
