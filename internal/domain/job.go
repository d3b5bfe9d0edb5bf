package domain

import "time"

// JobStatus is the dispatch system's view of a job. DriverReportedStatus may
// lag or contradict it; rules treat the two as independent signals.
type JobStatus string

const (
	StatusEntered     JobStatus = "ENTERED"
	StatusInProgress  JobStatus = "IN_PROGRESS"
	StatusAttempted   JobStatus = "ATTEMPTED"
	StatusCompleted   JobStatus = "COMPLETED"
	StatusCanceled    JobStatus = "CANCELED"
	StatusRescheduled JobStatus = "RESCHEDULED"
	StatusDeleted     JobStatus = "DELETED"
)

// Terminal reports whether the job can no longer make site progress.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusDeleted, StatusAttempted:
		return true
	}
	return false
}

type Job struct {
	ID string `json:"job_id"`

	Status               JobStatus `json:"status"`
	DriverReportedStatus JobStatus `json:"driver_reported_status,omitempty"`

	ScheduledDate  time.Time  `json:"scheduled_date"`
	ArrivalTime    *time.Time `json:"arrival_time,omitempty"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`

	VehicleID string `json:"vehicle_id,omitempty"`
	DriverID  string `json:"driver_id,omitempty"`
	RouteID   string `json:"route_id,omitempty"`

	SiteAddress string   `json:"site_address,omitempty"`
	Latitude    *float64 `json:"lat,omitempty"`
	Longitude   *float64 `json:"lon,omitempty"`
}

// SiteResolved reports whether the job's address has been geocoded.
func (j *Job) SiteResolved() bool {
	return j.Latitude != nil && j.Longitude != nil
}

// DueOn reports whether the job is scheduled for the given day or earlier.
func (j *Job) DueOn(now time.Time) bool {
	y1, m1, d1 := j.ScheduledDate.Date()
	y2, m2, d2 := now.Date()
	sched := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	today := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return !sched.After(today)
}

// Snapshot is the full job set from one poll cycle, keyed by job id.
type Snapshot map[string]*Job

// VehiclePosition is the latest known fix for one vehicle. Positions are
// fetched fresh each cycle and not retained.
type VehiclePosition struct {
	VehicleID  string
	Latitude   float64
	Longitude  float64
	ObservedAt time.Time
}
