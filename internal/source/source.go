// Package source defines the upstream collaborators the poll cycle consumes.
// Both are black boxes: the dispatch system that owns job records, and the
// telemetry provider that owns vehicle positions.
package source

import (
	"context"

	"github.com/cockroachdb/errors"

	"dispatch-monitor/sentinel/internal/domain"
)

var (
	// ErrUpstreamUnavailable marks a transient upstream failure. The cycle
	// is abandoned and prior state kept; the next tick retries.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamTimeout marks a fetch that exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

type JobSource interface {
	FetchActiveJobs(ctx context.Context) (domain.Snapshot, error)
}

type TelemetrySource interface {
	FetchLatestPositions(ctx context.Context) (map[string]*domain.VehiclePosition, error)
}
