package replay

import "time"

// Config holds configuration for a replay run.
type Config struct {
	BaseURL string        // Base URL of the service
	Dir     string        // Directory of frame images
	Course  string        // Course the frames are submitted for
	Workers int           // Number of concurrent uploaders
	Timeout time.Duration // HTTP request timeout
	Async   bool          // Use the queued endpoint instead of synchronous processing
	Repeat  int           // Submit every frame this many times
	Verbose bool          // Log every response
}

// Stats holds replay statistics.
type Stats struct {
	Frames     int
	Submitted  int64
	Successful int64
	Duplicate  int64
	Rejected   int64
	Failed     int64
	Faces      int64
	Marked     int64
	Present    int
	Absent     int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

// frameResult is the subset of the synchronous frame response the tool reads.
type frameResult struct {
	FrameID        string `json:"frame_id"`
	DetectionError string `json:"detection_error"`
	Faces          []struct {
		IdentityID string `json:"identity_id"`
		Status     string `json:"status"`
	} `json:"faces"`
}

type submitResult struct {
	FrameID   string `json:"frame_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type report struct {
	CourseID string `json:"course_id"`
	Date     string `json:"date"`
	Present  int    `json:"present"`
	Absent   int    `json:"absent"`
}
