// Package reconcile derives Present/Absent reports from the ledger.
//
// For every roster identity the latest event of the day decides the row:
// Present with that event's date and time, or Absent with empty date and
// time. Present rows come first, then Absent rows, each in roster order.
// Reconcile only reads; it never writes to the ledger.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/rollcall/internal/domain/ledger"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/metrics"
)

type options struct {
	loc *time.Location
}

// Option configures Reconcile.
type Option func(*options)

// WithLocation formats event times in loc. UTC by default.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// Reconcile builds one row per roster identity for courseID on date.
// Duplicate roster ids keep their first occurrence. Among events with the
// same latest timestamp the first one read from the ledger wins.
func Reconcile(ctx context.Context, courseID, date string, roster []model.Identity, events ledger.EventSource, opts ...Option) ([]model.ReportRow, error) {
	start := time.Now()
	o := options{loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}

	enrolled := make([]model.Identity, 0, len(roster))
	index := make(map[string]int, len(roster))
	for _, id := range roster {
		key := model.NormalizeID(id.ID)
		if _, dup := index[key]; dup {
			continue
		}
		index[key] = len(enrolled)
		id.ID = key
		enrolled = append(enrolled, id)
	}

	latest := make([]*model.AttendanceEvent, len(enrolled))
	for ev, err := range events.EventsFor(ctx, courseID, date) {
		if err != nil {
			return nil, fmt.Errorf("reconcile %s on %s: %w", courseID, date, err)
		}
		i, ok := index[ev.IdentityID]
		if !ok {
			continue
		}
		if cur := latest[i]; cur == nil || ev.Timestamp.After(cur.Timestamp) {
			latest[i] = &ev
		}
	}

	rows := make([]model.ReportRow, 0, len(enrolled))
	for i, id := range enrolled {
		if ev := latest[i]; ev != nil {
			rows = append(rows, model.ReportRow{
				Name:       id.Name,
				IdentityID: id.ID,
				Date:       ev.Date,
				Time:       model.ClockTime(ev.Timestamp, o.loc),
				Status:     model.StatusPresent,
			})
		}
	}
	for i, id := range enrolled {
		if latest[i] == nil {
			rows = append(rows, model.ReportRow{
				Name:       id.Name,
				IdentityID: id.ID,
				Status:     model.StatusAbsent,
			})
		}
	}

	metrics.RecordReconcileLatency(float64(time.Since(start).Microseconds()) / 1000)
	return rows, nil
}

// Summary counts Present and Absent rows.
func Summary(rows []model.ReportRow) (present, absent int) {
	for _, r := range rows {
		switch r.Status {
		case model.StatusPresent:
			present++
		case model.StatusAbsent:
			absent++
		}
	}
	return present, absent
}
