package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/creatorboard/internal/app"
	"github.com/okian/creatorboard/pkg/logger"
)

const defaultHighlightWindow = 24 * time.Hour

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: s.clock.Now().UTC()})
}

// handleLeaderboard handles GET /leaderboard?limit=N.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	limit, code, err := s.parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}
	entries, err := s.deps.GetLeaderboard(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleHighlights handles GET /highlights?since=RFC3339&limit=N.
func (s *Server) handleHighlights(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_highlights"
	limit, code, err := s.parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}
	since := s.clock.Now().Add(-defaultHighlightWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "since must be an RFC3339 timestamp")
			return
		}
	}
	posts, err := s.deps.GetHighlights(r.Context(), since, limit)
	if err != nil {
		s.internalError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// handleWinner handles GET /winners/{day}; "today" selects the current day.
func (s *Server) handleWinner(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_winner"
	day := chi.URLParam(r, "day")
	if day == "today" {
		day = ""
	}
	h, ok, err := s.deps.DailyWinner(r.Context(), day)
	switch {
	case errors.Is(err, service.ErrInvalidDay):
		writeError(w, http.StatusBadRequest, "bad_request", "day must be YYYY-MM-DD")
	case err != nil:
		s.internalError(w, r, op, err)
	case !ok:
		writeError(w, http.StatusNotFound, "not_found", ErrNotFound.Error())
	default:
		writeJSON(w, http.StatusOK, h)
	}
}

// handleCycle handles POST /cycles by running an ingestion pass now.
func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.RunIngestionCycle(r.Context())
	if err != nil {
		s.log.Warn(r.Context(), "on-demand cycle failed",
			logger.String("cycle_id", report.ID.String()),
			logger.Error(err))
		writeError(w, http.StatusBadGateway, "cycle_failed", "ingestion cycle failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.GetStats(r.Context())
	if err != nil {
		s.internalError(w, r, "api.get_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
