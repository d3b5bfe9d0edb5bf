// Package verify cross-checks a job's site location against the latest known
// position of its assigned vehicle. It consumes already-fetched position data
// and never performs I/O of its own.
package verify

import (
	"time"

	"dispatch-monitor/sentinel/internal/domain"
	"dispatch-monitor/sentinel/internal/geo"
)

type Verifier struct {
	// ThresholdMiles is inclusive: a vehicle exactly at the threshold
	// counts as on site.
	ThresholdMiles float64
}

func New(thresholdMiles float64) *Verifier {
	return &Verifier{ThresholdMiles: thresholdMiles}
}

// Verify produces the proximity verdict for one job. pos may be nil when the
// telemetry source has no fix for the assigned vehicle.
func (v *Verifier) Verify(job *domain.Job, pos *domain.VehiclePosition, now time.Time) domain.VerificationResult {
	res := domain.VerificationResult{
		JobID:     job.ID,
		VehicleID: job.VehicleID,
		Status:    domain.VerificationNoTracking,
	}

	if job.VehicleID == "" || pos == nil || !job.SiteResolved() {
		return res
	}

	// Temporal precondition: if the vehicle has no reason to be near the
	// site yet (or anymore), the distance comparison is meaningless. It is
	// still computed for diagnostic display, but downstream rules must not
	// treat it as a proximity signal.
	if job.Status.Terminal() || job.CompletionTime != nil || !job.DueOn(now) {
		res.Status = domain.VerificationOffSchedule
		if d, err := geo.DistanceMiles(*job.Latitude, *job.Longitude, pos.Latitude, pos.Longitude); err == nil {
			res.DistanceMiles = &d
		}
		return res
	}

	d, err := geo.DistanceMiles(*job.Latitude, *job.Longitude, pos.Latitude, pos.Longitude)
	if err != nil {
		// Bad coordinates are a per-job problem, not a cycle problem.
		res.Status = domain.VerificationNoTracking
		return res
	}

	res.DistanceMiles = &d
	if d <= v.ThresholdMiles {
		res.Status = domain.VerificationVerified
	} else {
		res.Status = domain.VerificationUnverified
	}
	return res
}
