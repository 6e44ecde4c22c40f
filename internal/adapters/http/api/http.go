// Package api serves the bot's read endpoints and on-demand cycles.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/creatorboard/internal/adapters/http/swagger"
	service "github.com/okian/creatorboard/internal/app"
	"github.com/okian/creatorboard/internal/domain/model"
	"github.com/okian/creatorboard/internal/scheduler"
	"github.com/okian/creatorboard/pkg/clock"
	"github.com/okian/creatorboard/pkg/logger"
	"github.com/okian/creatorboard/pkg/metrics"
)

const defaultMaxLimit = 100

// Dependencies required by HTTP handlers.
type Dependencies interface {
	RunIngestionCycle(ctx context.Context) (scheduler.Report, error)
	GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	GetHighlights(ctx context.Context, since time.Time, limit int) ([]model.Post, error)
	DailyWinner(ctx context.Context, day string) (model.Highlight, bool, error)
	GetStats(ctx context.Context) (service.Stats, error)
}

// Server wires HTTP routes for the bot API.
type Server struct {
	deps     Dependencies
	maxLimit int
	origins  []string
	clock    clock.Clock
	log      logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		maxLimit: defaultMaxLimit,
		clock:    clock.Real(),
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Use(Instrument)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Get("/highlights", s.handleHighlights)
	r.Get("/winners/{day}", s.handleWinner)
	r.Post("/cycles", s.handleCycle)
	r.Get("/stats", s.handleStats)
	swagger.Mount(r)
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.origins) == 0 {
		return []string{"*"}
	}
	return s.origins
}

// parseLimit reads ?limit. Absent means the engine default (0).
func (s *Server) parseLimit(r *http.Request) (int, string, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, "", nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
	}
	if n > s.maxLimit {
		return 0, "limit_exceeded", fmt.Errorf("%w: limit must be at most %d", ErrBadRequest, s.maxLimit)
	}
	return n, "", nil
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

func writeError(w http.ResponseWriter, status int, code, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// internalError logs err and answers with a generic message.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.log.Error(r.Context(), "request failed",
		logger.String("op", op),
		logger.String("request_id", middleware.GetReqID(r.Context())),
		logger.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
