// Package types contains the response shapes shared by the service, the HTTP
// API and the live feed.
package types

import (
	"time"

	"github.com/okian/rollcall/internal/domain/model"
)

// Per-face outcomes of a processed frame.
const (
	FaceMarked          = "marked"
	FaceAlreadyMarked   = "already_marked"
	FaceNotEnrolled     = "not_enrolled"
	FaceUnknownIdentity = "unknown_identity"
	FaceNoMatch         = "no_match"
)

// FaceOutcome describes what happened to one detected face.
type FaceOutcome struct {
	Box        model.BoundingBox `json:"box"`
	Score      float64           `json:"score"`
	IdentityID string            `json:"identity_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Distance   float64           `json:"distance"`
	Status     string            `json:"status"`
	EventID    string            `json:"event_id,omitempty"`
}

// FrameResult is the outcome of running one frame through the pipeline.
type FrameResult struct {
	FrameID        string        `json:"frame_id"`
	CourseID       string        `json:"course_id"`
	ReceivedAt     time.Time     `json:"received_at"`
	GalleryVersion uint64        `json:"gallery_version"`
	Faces          []FaceOutcome `json:"faces"`
	// DetectionError is set when the detector rejected the image; Faces is
	// then empty.
	DetectionError string `json:"detection_error,omitempty"`
}

// Marked counts faces that produced a new attendance event.
func (r FrameResult) Marked() int {
	n := 0
	for _, f := range r.Faces {
		if f.Status == FaceMarked {
			n++
		}
	}
	return n
}

// SubmitResult acknowledges an asynchronously submitted frame.
type SubmitResult struct {
	FrameID   string `json:"frame_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// MarkNotice is published to live subscribers for every new mark.
type MarkNotice struct {
	EventID    string    `json:"event_id"`
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"`
	CourseID   string    `json:"course_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	FrameID    string    `json:"frame_id,omitempty"`
	Distance   float64   `json:"distance,omitempty"`
}

// MarkResponse answers a manual mark.
type MarkResponse struct {
	Status string                `json:"status"`
	Event  model.AttendanceEvent `json:"event"`
	Name   string                `json:"name"`
}

// GalleryInfo describes the published gallery snapshot.
type GalleryInfo struct {
	Version     uint64    `json:"version"`
	BuiltAt     time.Time `json:"built_at"`
	Size        int       `json:"size"`
	Dim         int       `json:"dim"`
	Indexed     bool      `json:"indexed"`
	IdentityIDs []string  `json:"identity_ids"`
}

// SkippedIdentity names an identity left out of a refresh.
type SkippedIdentity struct {
	IdentityID string `json:"identity_id"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// RefreshResult summarises a gallery refresh.
type RefreshResult struct {
	Version    uint64            `json:"version"`
	Total      int               `json:"total"`
	Included   int               `json:"included"`
	CacheHits  int               `json:"cache_hits"`
	DurationMS int64             `json:"duration_ms"`
	Skipped    []SkippedIdentity `json:"skipped"`
}

// Report is a reconciled attendance report for one course and day.
type Report struct {
	CourseID string            `json:"course_id"`
	Date     string            `json:"date"`
	Present  int               `json:"present"`
	Absent   int               `json:"absent"`
	Rows     []model.ReportRow `json:"rows"`
}
