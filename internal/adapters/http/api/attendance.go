package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/rollcall/internal/domain/model"
)

// markRequest mirrors the OpenAPI schema for POST /courses/{course}/marks.
type markRequest struct {
	IdentityID string `json:"identity_id"`
}

type eventsResponse struct {
	CourseID string                  `json:"course_id"`
	Date     string                  `json:"date,omitempty"`
	Events   []model.AttendanceEvent `json:"events"`
}

// handleMark handles POST /api/v1/courses/{course}/marks.
func (s *Server) handleMark(w http.ResponseWriter, r *http.Request) {
	const op = "api.mark"
	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.IdentityID) == "" {
		s.fail(w, r, op, NewKind(op, ErrBadRequest))
		return
	}
	resp, err := s.deps.Mark(r.Context(), req.IdentityID, chi.URLParam(r, "course"))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	status := http.StatusCreated
	if resp.Status != "marked" {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// handleEvents handles GET /api/v1/courses/{course}/events?date=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.events"
	course, date := chi.URLParam(r, "course"), r.URL.Query().Get("date")
	events, err := s.deps.Events(r.Context(), course, date)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if events == nil {
		events = []model.AttendanceEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{CourseID: model.NormalizeCourse(course), Date: date, Events: events})
}

// handleReport handles GET /api/v1/courses/{course}/report?date=.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.report"
	rep, err := s.deps.Report(r.Context(), chi.URLParam(r, "course"), r.URL.Query().Get("date"))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleGallery handles GET /api/v1/gallery.
func (s *Server) handleGallery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Gallery())
}

// handleRefresh handles POST /api/v1/gallery/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh_gallery"
	res, err := s.deps.RefreshGallery(r.Context())
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
