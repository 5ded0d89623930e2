package model_test

import (
	"testing"
	"time"

	model "github.com/okian/rollcall/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestIdentity(t *testing.T) {
	convey.Convey("Given an identity with messy ids", t, func() {
		id := model.Identity{
			ID:      "  csc/2019/001 ",
			Name:    " Ada ",
			Courses: []string{"cs101", " CS101", "ma201 ", ""},
		}

		convey.Convey("When normalizing it", func() {
			n := id.Normalized()

			convey.Convey("Then ids are trimmed, upper-cased and de-duplicated", func() {
				convey.So(n.ID, convey.ShouldEqual, "CSC/2019/001")
				convey.So(n.Name, convey.ShouldEqual, "Ada")
				convey.So(n.Courses, convey.ShouldResemble, []string{"CS101", "MA201"})
			})

			convey.Convey("Then enrolment checks ignore case and spacing", func() {
				convey.So(n.EnrolledIn(" cs101"), convey.ShouldBeTrue)
				convey.So(n.EnrolledIn("PH100"), convey.ShouldBeFalse)
			})

			convey.Convey("Then the original is untouched", func() {
				convey.So(id.Courses[0], convey.ShouldEqual, "cs101")
			})
		})
	})
}

func TestAttendanceEvent(t *testing.T) {
	convey.Convey("Given an event late in the UTC day", t, func() {
		ts := time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC)
		lagos := time.FixedZone("WAT", 3600)

		convey.Convey("Then the day depends on the location", func() {
			convey.So(model.Day(ts, nil), convey.ShouldEqual, "2024-01-10")
			convey.So(model.Day(ts, lagos), convey.ShouldEqual, "2024-01-11")
			convey.So(model.ClockTime(ts, lagos), convey.ShouldEqual, "00:30:00")
		})

		convey.Convey("Then the key joins identity, course and date", func() {
			ev := model.AttendanceEvent{IdentityID: "A", CourseID: "CS101", Date: "2024-01-10"}
			convey.So(ev.Key(), convey.ShouldEqual, model.EventKey("A", "CS101", "2024-01-10"))
		})
	})
}
