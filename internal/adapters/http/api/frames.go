package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/rollcall/internal/domain/model"
)

// Frame uploads are either multipart forms with a "frame" file part or a raw
// image body. The optional frame id comes from the "frame_id" form field, the
// "frame_id" query parameter or the X-Frame-ID header.
const (
	frameFormField = "frame"
	frameIDField   = "frame_id"
	frameIDHeader  = "X-Frame-ID"
)

// readFrame extracts a frame from the request.
func (s *Server) readFrame(w http.ResponseWriter, r *http.Request) (model.Frame, error) {
	f := model.Frame{
		CourseID: chi.URLParam(r, "course"),
		ID:       r.Header.Get(frameIDHeader),
	}
	if id := r.URL.Query().Get(frameIDField); id != "" {
		f.ID = id
	}

	body := http.MaxBytesReader(w, r.Body, s.maxFrameBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var err error
	if mediaType == "multipart/form-data" {
		r.Body = body
		f.Image, err = s.readMultipartFrame(r, &f)
	} else {
		f.Image, err = io.ReadAll(body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return f, fmt.Errorf("%w: frame larger than %d bytes", ErrBadRequest, s.maxFrameBytes)
		}
		return f, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if len(f.Image) == 0 {
		return f, fmt.Errorf("%w: empty frame", ErrBadRequest)
	}
	f.ID = strings.TrimSpace(f.ID)
	return f, nil
}

func (s *Server) readMultipartFrame(r *http.Request, f *model.Frame) ([]byte, error) {
	if err := r.ParseMultipartForm(s.maxFrameBytes); err != nil {
		return nil, err
	}
	if id := r.FormValue(frameIDField); id != "" {
		f.ID = id
	}
	file, _, err := r.FormFile(frameFormField)
	if err != nil {
		return nil, fmt.Errorf("missing %q file part: %w", frameFormField, err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

// handleProcessFrame handles POST /api/v1/courses/{course}/frames.
func (s *Server) handleProcessFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.process_frame"
	f, err := s.readFrame(w, r)
	if err != nil {
		s.fail(w, r, op, fmt.Errorf("%s: %w", op, err))
		return
	}
	res, err := s.deps.ProcessFrame(r.Context(), f)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSubmitFrame handles POST /api/v1/courses/{course}/frames/async.
func (s *Server) handleSubmitFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_frame"
	f, err := s.readFrame(w, r)
	if err != nil {
		s.fail(w, r, op, fmt.Errorf("%s: %w", op, err))
		return
	}
	ack, err := s.deps.SubmitFrame(r.Context(), f)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	status := http.StatusAccepted
	if ack.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, ack)
}
