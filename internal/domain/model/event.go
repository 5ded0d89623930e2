package model

import "time"

// Sources of attendance events.
const (
	SourceAuto   = "auto"
	SourceManual = "manual"
)

// Layouts of ledger days and report times.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// AttendanceEvent is one immutable attendance record.
type AttendanceEvent struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	CourseID   string    `json:"course_id"`
	Date       string    `json:"date"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
}

// Key is the logical dedup key: one identity, one course, one day.
func (e AttendanceEvent) Key() string {
	return EventKey(e.IdentityID, e.CourseID, e.Date)
}

// EventKey builds the dedup key for an (identity, course, date) triple.
func EventKey(identityID, courseID, date string) string {
	return identityID + "|" + courseID + "|" + date
}

// Day formats the calendar day of t in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// ClockTime formats the time of day of t in loc.
func ClockTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimeLayout)
}

// Frame is a submitted image waiting to be processed for a course.
type Frame struct {
	ID         string
	CourseID   string
	Image      []byte
	ReceivedAt time.Time
}
