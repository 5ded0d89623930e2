// Package ledger records attendance events in an append-only store.
//
// Two idempotency policies exist. Audit appends every accepted mark and leaves
// collapsing same-day events to reconciliation, keeping a full trail of raw
// detections. Upsert keeps at most one event per (identity, course, date) and
// reports repeats as AlreadyMarked without writing.
package ledger

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Policy is the write-time idempotency policy.
type Policy string

// Policies.
const (
	PolicyAudit  Policy = "audit"
	PolicyUpsert Policy = "upsert"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool { return p == PolicyAudit || p == PolicyUpsert }

// ParsePolicy parses a policy name, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
	return p, nil
}

// Status is the outcome of a mark.
type Status string

// Mark outcomes.
const (
	StatusMarked        Status = "marked"
	StatusAlreadyMarked Status = "already_marked"
)

// MarkResult reports what Mark did. Event is the stored event when Marked and
// the attempted event when AlreadyMarked.
type MarkResult struct {
	Status Status                `json:"status"`
	Event  model.AttendanceEvent `json:"event"`
}

// Store persists events. Implementations must not lose concurrent appends.
type Store interface {
	// Append stores ev unconditionally.
	Append(ctx context.Context, ev model.AttendanceEvent) error
	// AppendIfAbsent stores ev unless an event with the same key exists.
	// It returns false when nothing was written.
	AppendIfAbsent(ctx context.Context, ev model.AttendanceEvent) (bool, error)
	// Scan calls fn for every event of course on date, in append order,
	// until fn returns false.
	Scan(ctx context.Context, courseID, date string, fn func(model.AttendanceEvent) bool) error
}

// EventSource yields the events of one course and day.
type EventSource interface {
	EventsFor(ctx context.Context, courseID, date string) iter.Seq2[model.AttendanceEvent, error]
}

// Ledger applies the idempotency policy on top of a Store.
type Ledger struct {
	store  Store
	policy Policy
	loc    *time.Location
	newID  func() string
	logger logger.Logger
}

// New returns a ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		policy: PolicyAudit,
		loc:    time.UTC,
		newID:  uuid.NewString,
		logger: logger.Get().Named("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the configured policy.
func (l *Ledger) Policy() Policy { return l.policy }

// Location returns the location used to derive dates.
func (l *Ledger) Location() *time.Location { return l.loc }

// Mark records that identityID attended courseID at ts. The event date is
// the calendar day of ts in the ledger location.
func (l *Ledger) Mark(ctx context.Context, identityID, courseID string, ts time.Time, opts ...MarkOption) (MarkResult, error) {
	mo := markOptions{source: model.SourceAuto}
	for _, opt := range opts {
		opt(&mo)
	}

	identityID = model.NormalizeID(identityID)
	courseID = model.NormalizeCourse(courseID)
	if identityID == "" || courseID == "" {
		return MarkResult{}, fmt.Errorf("%w: identity %q course %q", ErrInvalidEvent, identityID, courseID)
	}
	if ts.IsZero() {
		return MarkResult{}, fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}

	ev := model.AttendanceEvent{
		ID:         l.newID(),
		IdentityID: identityID,
		CourseID:   courseID,
		Date:       model.Day(ts, l.loc),
		Timestamp:  ts,
		Source:     mo.source,
	}

	status := StatusMarked
	switch l.policy {
	case PolicyUpsert:
		written, err := l.store.AppendIfAbsent(ctx, ev)
		if err != nil {
			return MarkResult{}, l.writeFailed(ctx, ev, err)
		}
		if !written {
			status = StatusAlreadyMarked
		}
	default:
		if err := l.store.Append(ctx, ev); err != nil {
			return MarkResult{}, l.writeFailed(ctx, ev, err)
		}
	}

	metrics.RecordMark(string(status))
	l.logger.Debug(ctx, "attendance marked",
		logger.String("identity_id", ev.IdentityID),
		logger.String("course_id", ev.CourseID),
		logger.String("date", ev.Date),
		logger.String("status", string(status)),
	)
	return MarkResult{Status: status, Event: ev}, nil
}

func (l *Ledger) writeFailed(ctx context.Context, ev model.AttendanceEvent, err error) error {
	metrics.RecordLedgerError("write")
	l.logger.Error(ctx, "ledger append failed",
		logger.String("identity_id", ev.IdentityID),
		logger.String("course_id", ev.CourseID),
		logger.Error(err),
	)
	return fmt.Errorf("%w: %w", ErrLedgerWrite, err)
}

// EventsFor returns a lazy sequence of the events of courseID on date. Every
// range over it reads the store again. A read failure is yielded once as the
// final element.
func (l *Ledger) EventsFor(ctx context.Context, courseID, date string) iter.Seq2[model.AttendanceEvent, error] {
	courseID = model.NormalizeCourse(courseID)
	return func(yield func(model.AttendanceEvent, error) bool) {
		stopped := false
		err := l.store.Scan(ctx, courseID, date, func(ev model.AttendanceEvent) bool {
			if !yield(ev, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			metrics.RecordLedgerError("read")
			yield(model.AttendanceEvent{}, fmt.Errorf("%w: %w", ErrLedgerRead, err))
		}
	}
}

// Events collects EventsFor into a slice.
func (l *Ledger) Events(ctx context.Context, courseID, date string) ([]model.AttendanceEvent, error) {
	var out []model.AttendanceEvent
	for ev, err := range l.EventsFor(ctx, courseID, date) {
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
