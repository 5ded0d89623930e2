package model

// Report statuses.
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

// ReportRow is one derived attendance row. Absent rows carry empty Date and Time.
type ReportRow struct {
	Name       string `json:"name"`
	IdentityID string `json:"identity_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Status     string `json:"status"`
}
