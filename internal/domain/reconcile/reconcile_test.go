package reconcile_test

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/ledger"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/reconcile"
	"github.com/okian/rollcall/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// staticEvents replays a fixed slice, optionally ending with an error.
type staticEvents struct {
	events []model.AttendanceEvent
	err    error
}

func (s staticEvents) EventsFor(_ context.Context, _, _ string) iter.Seq2[model.AttendanceEvent, error] {
	return func(yield func(model.AttendanceEvent, error) bool) {
		for _, ev := range s.events {
			if !yield(ev, nil) {
				return
			}
		}
		if s.err != nil {
			yield(model.AttendanceEvent{}, s.err)
		}
	}
}

func roster(ids ...string) []model.Identity {
	out := make([]model.Identity, len(ids))
	for i, id := range ids {
		out[i] = model.Identity{ID: id, Name: "Student " + id}
	}
	return out
}

func at(h, m int) time.Time {
	return time.Date(2024, 1, 10, h, m, 0, 0, time.UTC)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given roster A, B, C and one event for A on CS101", t, func() {
		l := ledger.New(repository.NewMemoryStore())
		_, err := l.Mark(ctx, "A", "CS101", at(9, 0))
		convey.So(err, convey.ShouldBeNil)

		rows, err := reconcile.Reconcile(ctx, "CS101", "2024-01-10", roster("A", "B", "C"), l)

		convey.Convey("Then A is present and B, C are absent", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows, convey.ShouldResemble, []model.ReportRow{
				{Name: "Student A", IdentityID: "A", Date: "2024-01-10", Time: "09:00:00", Status: model.StatusPresent},
				{Name: "Student B", IdentityID: "B", Status: model.StatusAbsent},
				{Name: "Student C", IdentityID: "C", Status: model.StatusAbsent},
			})
			present, absent := reconcile.Summary(rows)
			convey.So(present, convey.ShouldEqual, 1)
			convey.So(absent, convey.ShouldEqual, 2)
		})

		convey.Convey("Then reconciling again yields identical rows", func() {
			again, err := reconcile.Reconcile(ctx, "CS101", "2024-01-10", roster("A", "B", "C"), l)
			convey.So(err, convey.ShouldBeNil)
			convey.So(again, convey.ShouldResemble, rows)
		})

		convey.Convey("Then other days and courses are unaffected", func() {
			other, _ := reconcile.Reconcile(ctx, "MA201", "2024-01-10", roster("A"), l)
			convey.So(other[0].Status, convey.ShouldEqual, model.StatusAbsent)
			nextDay, _ := reconcile.Reconcile(ctx, "CS101", "2024-01-11", roster("A"), l)
			convey.So(nextDay[0].Status, convey.ShouldEqual, model.StatusAbsent)
		})
	})

	convey.Convey("Given two events for A at 09:00 and 09:05", t, func() {
		l := ledger.New(repository.NewMemoryStore())
		_, _ = l.Mark(ctx, "A", "CS101", at(9, 5))
		_, _ = l.Mark(ctx, "A", "CS101", at(9, 0))

		rows, err := reconcile.Reconcile(ctx, "CS101", "2024-01-10", roster("A"), l)

		convey.Convey("Then the latest timestamp is shown", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows, convey.ShouldHaveLength, 1)
			convey.So(rows[0].Time, convey.ShouldEqual, "09:05:00")
		})
	})

	convey.Convey("Given events with equal timestamps", t, func() {
		events := staticEvents{events: []model.AttendanceEvent{
			{ID: "first", IdentityID: "A", Date: "2024-01-10", Timestamp: at(9, 0)},
			{ID: "second", IdentityID: "A", Date: "2024-01-09", Timestamp: at(9, 0)},
		}}

		convey.Convey("Then the first one read wins", func() {
			rows, err := reconcile.Reconcile(ctx, "CS101", "2024-01-10", roster("A"), events)
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows[0].Date, convey.ShouldEqual, "2024-01-10")
		})
	})

	convey.Convey("Given a roster with duplicates and events for strangers", t, func() {
		events := staticEvents{events: []model.AttendanceEvent{
			{IdentityID: "X", Date: "2024-01-10", Timestamp: at(8, 0)},
			{IdentityID: "B", Date: "2024-01-10", Timestamp: at(8, 30)},
		}}
		r := append(roster("A", "B"), model.Identity{ID: " b ", Name: "Dup"}, model.Identity{ID: "C"})

		rows, err := reconcile.Reconcile(ctx, "CS101", "2024-01-10", r, events)

		convey.Convey("Then each identity appears once and strangers are ignored", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows, convey.ShouldHaveLength, 3)
			ids := []string{rows[0].IdentityID, rows[1].IdentityID, rows[2].IdentityID}
			convey.So(ids, convey.ShouldResemble, []string{"B", "A", "C"})
			convey.So(rows[0].Name, convey.ShouldEqual, "Student B")
		})
	})

	convey.Convey("Given a location ahead of UTC", t, func() {
		events := staticEvents{events: []model.AttendanceEvent{
			{IdentityID: "A", Date: "2024-01-10", Timestamp: at(9, 0)},
		}}
		rows, err := reconcile.Reconcile(ctx, "CS101", "2024-01-10", roster("A"), events,
			reconcile.WithLocation(time.FixedZone("WAT", 3600)))

		convey.Convey("Then times are local", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows[0].Time, convey.ShouldEqual, "10:00:00")
		})
	})

	convey.Convey("Given an empty roster", t, func() {
		rows, err := reconcile.Reconcile(ctx, "CS101", "2024-01-10", nil, staticEvents{})

		convey.Convey("Then there are no rows", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(rows, convey.ShouldBeEmpty)
		})
	})

	convey.Convey("Given a ledger that fails while reading", t, func() {
		boom := errors.New("timeout")
		_, err := reconcile.Reconcile(ctx, "CS101", "2024-01-10", roster("A"), staticEvents{err: boom})

		convey.Convey("Then the error is returned", func() {
			convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
		})
	})
}
