package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rollcall/internal/adapters/roster"
	"github.com/okian/rollcall/internal/domain/detect"
	"github.com/okian/rollcall/internal/domain/ledger"
	"github.com/okian/rollcall/internal/domain/matcher"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/reconcile"
	"github.com/okian/rollcall/internal/domain/types"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

func (s *Service) normalizeFrame(f model.Frame) (model.Frame, error) {
	f.CourseID = model.NormalizeCourse(f.CourseID)
	if f.CourseID == "" {
		return f, fmt.Errorf("%w: missing course", ErrInvalidInput)
	}
	if len(f.Image) == 0 {
		return f, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.ReceivedAt.IsZero() {
		f.ReceivedAt = s.now()
	}
	return f, nil
}

// ProcessFrame detects every face in the frame, matches each against the
// current gallery snapshot and marks attendance for matched, enrolled
// identities. A detector rejecting the image is reported in the result, not
// as an error; a detector outage or a ledger failure is returned as an error.
// An identity seen several times in one frame is marked once.
func (s *Service) ProcessFrame(ctx context.Context, f model.Frame) (types.FrameResult, error) {
	start := time.Now()
	f, err := s.normalizeFrame(f)
	if err != nil {
		return types.FrameResult{}, err
	}

	snap := s.gallery.Snapshot()
	res := types.FrameResult{
		FrameID:        f.ID,
		CourseID:       f.CourseID,
		ReceivedAt:     f.ReceivedAt,
		GalleryVersion: snap.Version(),
		Faces:          []types.FaceOutcome{},
	}

	detStart := time.Now()
	dets, err := s.detector.DetectFaces(ctx, f.Image)
	metrics.RecordDetectionLatency(float64(time.Since(detStart).Milliseconds()))
	switch {
	case err == nil:
	case errors.Is(err, detect.ErrDetection):
		metrics.RecordFrameFailed("detection")
		res.DetectionError = err.Error()
		s.logger.Warn(ctx, "frame rejected by detector",
			logger.String("frame_id", f.ID),
			logger.Error(err),
		)
		return res, nil
	default:
		metrics.RecordFrameFailed("detector_unavailable")
		return res, fmt.Errorf("detect faces in frame %s: %w", f.ID, err)
	}
	metrics.RecordFacesDetected(len(dets))

	matches := s.matcher.MatchAll(dets, snap)
	done := make(map[string]types.FaceOutcome, len(matches))
	for i, m := range matches {
		face := types.FaceOutcome{
			Box:      dets[i].Box,
			Score:    dets[i].Score,
			Distance: m.Distance,
			Status:   types.FaceNoMatch,
		}
		if m.Matched {
			face.IdentityID = m.IdentityID
			face.Name = m.Name
			if prev, ok := done[m.IdentityID]; ok {
				face.Status, face.EventID = prev.Status, prev.EventID
			} else {
				if err := s.markFace(ctx, f, m, &face); err != nil {
					metrics.RecordFrameFailed("ledger")
					res.Faces = append(res.Faces, face)
					return res, err
				}
				done[m.IdentityID] = face
			}
		}
		res.Faces = append(res.Faces, face)
	}

	metrics.RecordFrameProcessed()
	metrics.RecordPipelineLatency(float64(time.Since(start).Milliseconds()))
	s.logger.Debug(ctx, "frame processed",
		logger.String("frame_id", f.ID),
		logger.String("course_id", f.CourseID),
		logger.Int("faces", len(res.Faces)),
		logger.Int("marked", res.Marked()),
	)
	return res, nil
}

// markFace resolves the matched identity against the roster and marks it.
// Roster and ledger failures are returned; roster rejections are recorded
// in face.Status.
func (s *Service) markFace(ctx context.Context, f model.Frame, m matcher.Result, face *types.FaceOutcome) error {
	identity, err := s.admit(ctx, m.IdentityID, f.CourseID)
	switch {
	case errors.Is(err, ErrUnknownIdentity):
		face.Status = types.FaceUnknownIdentity
		return nil
	case errors.Is(err, ErrNotEnrolled):
		face.Status = types.FaceNotEnrolled
		return nil
	case err != nil:
		return err
	}
	if identity.Name != "" {
		face.Name = identity.Name
	}

	mr, err := s.ledger.Mark(ctx, identity.ID, f.CourseID, f.ReceivedAt)
	if err != nil {
		return err
	}
	face.Status = string(mr.Status)
	face.EventID = mr.Event.ID
	if mr.Status == ledger.StatusMarked {
		s.notify(ctx, mr.Event, identity.Name, f.ID, m.Distance)
	}
	return nil
}

// admit looks the identity up in the roster and checks enrolment when it is
// required.
func (s *Service) admit(ctx context.Context, identityID, courseID string) (model.Identity, error) {
	identity, err := s.roster.Get(ctx, identityID)
	if errors.Is(err, roster.ErrNotFound) {
		return model.Identity{}, fmt.Errorf("%w: %s", ErrUnknownIdentity, identityID)
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("roster lookup %s: %w", identityID, err)
	}
	if s.requireEnrollment && !identity.EnrolledIn(courseID) {
		return identity, fmt.Errorf("%w: %s in %s", ErrNotEnrolled, identity.ID, courseID)
	}
	return identity, nil
}

func (s *Service) notify(ctx context.Context, ev model.AttendanceEvent, name, frameID string, distance float64) {
	if len(s.notifiers) == 0 {
		return
	}
	n := types.MarkNotice{
		EventID:    ev.ID,
		IdentityID: ev.IdentityID,
		Name:       name,
		CourseID:   ev.CourseID,
		Date:       ev.Date,
		Time:       model.ClockTime(ev.Timestamp, s.loc),
		Timestamp:  ev.Timestamp,
		Source:     ev.Source,
		FrameID:    frameID,
		Distance:   distance,
	}
	for _, nt := range s.notifiers {
		nt.Publish(ctx, n)
	}
}

// Mark records a manual attendance mark for identityID at the current time.
func (s *Service) Mark(ctx context.Context, identityID, courseID string) (types.MarkResponse, error) {
	identityID = model.NormalizeID(identityID)
	courseID = model.NormalizeCourse(courseID)
	if identityID == "" || courseID == "" {
		return types.MarkResponse{}, fmt.Errorf("%w: identity and course are required", ErrInvalidInput)
	}

	identity, err := s.admit(ctx, identityID, courseID)
	if err != nil {
		return types.MarkResponse{}, err
	}
	mr, err := s.ledger.Mark(ctx, identity.ID, courseID, s.now(), ledger.WithSource(model.SourceManual))
	if err != nil {
		return types.MarkResponse{}, err
	}
	if mr.Status == ledger.StatusMarked {
		s.notify(ctx, mr.Event, identity.Name, "", 0)
	}
	return types.MarkResponse{Status: string(mr.Status), Event: mr.Event, Name: identity.Name}, nil
}

// resolveDate validates a YYYY-MM-DD date; empty means today.
func (s *Service) resolveDate(date string) (string, error) {
	if date == "" {
		return model.Day(s.now(), s.loc), nil
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return "", fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, date)
	}
	return date, nil
}

// Events lists the ledger events of a course on date in append order.
func (s *Service) Events(ctx context.Context, courseID, date string) ([]model.AttendanceEvent, error) {
	courseID = model.NormalizeCourse(courseID)
	if courseID == "" {
		return nil, fmt.Errorf("%w: missing course", ErrInvalidInput)
	}
	date, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}
	return s.ledger.Events(ctx, courseID, date)
}

// Report reconciles the course roster with the ledger for date.
func (s *Service) Report(ctx context.Context, courseID, date string) (types.Report, error) {
	courseID = model.NormalizeCourse(courseID)
	if courseID == "" {
		return types.Report{}, fmt.Errorf("%w: missing course", ErrInvalidInput)
	}
	date, err := s.resolveDate(date)
	if err != nil {
		return types.Report{}, err
	}

	enrolled, err := s.roster.Enrolled(ctx, courseID)
	if err != nil {
		return types.Report{}, fmt.Errorf("load roster for %s: %w", courseID, err)
	}
	rows, err := reconcile.Reconcile(ctx, courseID, date, enrolled, s.ledger, reconcile.WithLocation(s.loc))
	if err != nil {
		return types.Report{}, err
	}
	present, absent := reconcile.Summary(rows)
	metrics.RecordReport()
	return types.Report{CourseID: courseID, Date: date, Present: present, Absent: absent, Rows: rows}, nil
}
