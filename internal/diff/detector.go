// Package diff classifies per-job changes between two snapshots at field
// granularity. The field list is explicit so that adding a field to the job
// record forces a conscious decision about whether it participates in change
// detection.
package diff

import (
	"time"

	"dispatch-monitor/sentinel/internal/domain"
)

type Kind string

const (
	Added     Kind = "ADDED"
	Removed   Kind = "REMOVED"
	Modified  Kind = "MODIFIED"
	Unchanged Kind = "UNCHANGED"
)

type Change struct {
	JobID         string
	Kind          Kind
	ChangedFields []string
}

// Result maps job id to its classification. Every id present in either
// snapshot appears exactly once.
type Result map[string]Change

// Changed reports whether the job saw any field change (or appeared /
// disappeared) this cycle.
func (r Result) Changed(jobID string) bool {
	c, ok := r[jobID]
	return ok && c.Kind != Unchanged
}

// Removed returns the ids of jobs that disappeared from the new snapshot.
// Disappearance is treated as removal, not as an error: the alert engine
// must resolve any open alerts tied to these ids.
func (r Result) Removed() []string {
	var ids []string
	for id, c := range r {
		if c.Kind == Removed {
			ids = append(ids, id)
		}
	}
	return ids
}

func Diff(prev, next domain.Snapshot) Result {
	out := make(Result, len(next))

	for id, newJob := range next {
		oldJob, ok := prev[id]
		if !ok {
			out[id] = Change{JobID: id, Kind: Added}
			continue
		}
		fields := changedFields(oldJob, newJob)
		if len(fields) == 0 {
			out[id] = Change{JobID: id, Kind: Unchanged}
		} else {
			out[id] = Change{JobID: id, Kind: Modified, ChangedFields: fields}
		}
	}

	for id := range prev {
		if _, ok := next[id]; !ok {
			out[id] = Change{JobID: id, Kind: Removed}
		}
	}

	return out
}

func changedFields(a, b *domain.Job) []string {
	var fields []string
	add := func(name string, changed bool) {
		if changed {
			fields = append(fields, name)
		}
	}

	add("status", a.Status != b.Status)
	add("driverReportedStatus", a.DriverReportedStatus != b.DriverReportedStatus)
	add("scheduledDate", !a.ScheduledDate.Equal(b.ScheduledDate))
	add("arrivalTime", !timePtrEqual(a.ArrivalTime, b.ArrivalTime))
	add("completionTime", !timePtrEqual(a.CompletionTime, b.CompletionTime))
	add("vehicleId", a.VehicleID != b.VehicleID)
	add("driverId", a.DriverID != b.DriverID)
	add("routeId", a.RouteID != b.RouteID)
	add("siteAddress", a.SiteAddress != b.SiteAddress)
	add("latitude", !floatPtrEqual(a.Latitude, b.Latitude))
	add("longitude", !floatPtrEqual(a.Longitude, b.Longitude))

	return fields
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
