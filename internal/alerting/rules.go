package alerting

import (
	"fmt"
	"time"

	"dispatch-monitor/sentinel/internal/domain"
)

// RuleParams carries the tunable thresholds referenced by the default rule
// set. Thresholds only move alert boundaries; they never change lifecycle
// semantics.
type RuleParams struct {
	StalledArrival          time.Duration
	ProximityThresholdMiles float64
}

// DefaultRules builds the process-wide rule set. Rule ids are stable: they
// feed the alert dedup key, so renaming one orphans its open alerts.
func DefaultRules(p RuleParams) []domain.Rule {
	return []domain.Rule{
		{
			ID:       "stalled_completion",
			Name:     "Arrival without completion",
			Severity: domain.SeverityHigh,
			Predicate: func(job *domain.Job, _ *domain.VerificationResult, _ domain.Snapshot, now time.Time) bool {
				if job.ArrivalTime == nil || job.CompletionTime != nil || job.Status.Terminal() {
					return false
				}
				return now.Sub(*job.ArrivalTime) > p.StalledArrival
			},
			Message: func(job *domain.Job, _ *domain.VerificationResult) string {
				return fmt.Sprintf("job %s: arrival recorded at %s but no completion after %s",
					job.ID, job.ArrivalTime.Format(time.RFC3339), p.StalledArrival)
			},
		},
		{
			ID:       "vehicle_without_driver",
			Name:     "Vehicle assigned with no driver",
			Severity: domain.SeverityMedium,
			Predicate: func(job *domain.Job, _ *domain.VerificationResult, _ domain.Snapshot, _ time.Time) bool {
				return job.VehicleID != "" && job.DriverID == "" && job.Status == domain.StatusEntered
			},
			Message: func(job *domain.Job, _ *domain.VerificationResult) string {
				return fmt.Sprintf("job %s: vehicle %s assigned but no driver while job still entered", job.ID, job.VehicleID)
			},
		},
		{
			ID:       "vehicle_off_site",
			Name:     "Vehicle far from job site",
			Severity: domain.SeverityHigh,
			// Only an unverified result carries a trustworthy distance:
			// off_schedule and no_tracking results never participate,
			// whatever their distance says.
			Predicate: func(job *domain.Job, vr *domain.VerificationResult, _ domain.Snapshot, _ time.Time) bool {
				if vr == nil || vr.Status != domain.VerificationUnverified {
					return false
				}
				return job.Status == domain.StatusInProgress && job.ArrivalTime == nil
			},
			Message: func(job *domain.Job, vr *domain.VerificationResult) string {
				if vr != nil && vr.DistanceMiles != nil {
					return fmt.Sprintf("job %s: vehicle %s is %.1f miles from the job site (threshold %.1f)",
						job.ID, vr.VehicleID, *vr.DistanceMiles, p.ProximityThresholdMiles)
				}
				return fmt.Sprintf("job %s: vehicle %s is beyond the %.1f mile site threshold",
					job.ID, job.VehicleID, p.ProximityThresholdMiles)
			},
		},
		{
			ID:       "status_conflict",
			Name:     "Driver-reported status conflict",
			Severity: domain.SeverityMedium,
			Predicate: func(job *domain.Job, _ *domain.VerificationResult, _ domain.Snapshot, _ time.Time) bool {
				return job.DriverReportedStatus != "" && job.DriverReportedStatus != job.Status
			},
			Message: func(job *domain.Job, _ *domain.VerificationResult) string {
				return fmt.Sprintf("job %s: driver reports %s but system shows %s",
					job.ID, job.DriverReportedStatus, job.Status)
			},
		},
		{
			ID:       "vehicle_double_booked",
			Name:     "Vehicle assigned to overlapping jobs",
			Severity: domain.SeverityMedium,
			Predicate: func(job *domain.Job, _ *domain.VerificationResult, all domain.Snapshot, _ time.Time) bool {
				if job.VehicleID == "" || job.Status.Terminal() {
					return false
				}
				for _, other := range all {
					if other.ID == job.ID || other.VehicleID != job.VehicleID || other.Status.Terminal() {
						continue
					}
					if sameDay(other.ScheduledDate, job.ScheduledDate) {
						return true
					}
				}
				return false
			},
			Message: func(job *domain.Job, _ *domain.VerificationResult) string {
				return fmt.Sprintf("job %s: vehicle %s is assigned to another job on the same day", job.ID, job.VehicleID)
			},
		},
	}
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
