// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/types"
	"github.com/okian/rollcall/pkg/logger"
)

const defaultMaxFrameBytes = 8 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ProcessFrame(ctx context.Context, f model.Frame) (types.FrameResult, error)
	SubmitFrame(ctx context.Context, f model.Frame) (types.SubmitResult, error)
	Mark(ctx context.Context, identityID, courseID string) (types.MarkResponse, error)
	Events(ctx context.Context, courseID, date string) ([]model.AttendanceEvent, error)
	Report(ctx context.Context, courseID, date string) (types.Report, error)
	Gallery() types.GalleryInfo
	RefreshGallery(ctx context.Context) (types.RefreshResult, error)
}

// Option configures the Server.
type Option func(*Server)

// WithMaxFrameBytes caps the size of uploaded frames.
func WithMaxFrameBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxFrameBytes = n
		}
	}
}

// WithRequestTimeout bounds synchronous request handling.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithFeed mounts the live mark feed at /api/v1/feed.
func WithFeed(h http.Handler) Option {
	return func(s *Server) {
		s.feed = h
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the attendance API.
type Server struct {
	deps           Dependencies
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	maxFrameBytes  int64
	requestTimeout time.Duration
	feed           http.Handler
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		healthHandler:  NewHealthHandler(func() uint64 { return deps.Gallery().Version }),
		statsHandler:   NewStatsHandler(statsProvider),
		maxFrameBytes:  defaultMaxFrameBytes,
		requestTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// NewRouter returns a chi router with the standard middleware stack.
func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(Metrics)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(chiMiddleware.Timeout(s.requestTimeout)).Group(func(r chi.Router) {
			r.Get("/gallery", s.handleGallery)
			r.Post("/courses/{course}/frames", s.handleProcessFrame)
			r.Post("/courses/{course}/marks", s.handleMark)
			r.Get("/courses/{course}/events", s.handleEvents)
			r.Get("/courses/{course}/report", s.handleReport)
		})
		r.Post("/gallery/refresh", s.handleRefresh)
		r.Post("/courses/{course}/frames/async", s.handleSubmitFrame)
		if s.feed != nil {
			r.Method(http.MethodGet, "/feed", s.feed)
		}
	})
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

// fail writes err with the status its kind maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.String("request_id", chiMiddleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
