package source

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"dispatch-monitor/sentinel/internal/domain"
)

// jobPayload is the wire shape of one job record from the dispatch API.
type jobPayload struct {
	JobID                string     `json:"jobId"`
	Status               string     `json:"status"`
	DriverReportedStatus string     `json:"driverReportedStatus,omitempty"`
	ScheduledDate        time.Time  `json:"scheduledDate"`
	ArrivalTime          *time.Time `json:"arrivalTime,omitempty"`
	CompletionTime       *time.Time `json:"completionTime,omitempty"`
	VehicleID            string     `json:"vehicleId,omitempty"`
	DriverID             string     `json:"driverId,omitempty"`
	RouteID              string     `json:"routeId,omitempty"`
	SiteAddress          string     `json:"siteAddress,omitempty"`
	Latitude             *float64   `json:"lat,omitempty"`
	Longitude            *float64   `json:"lon,omitempty"`
}

type positionPayload struct {
	VehicleID  string    `json:"vehicleId"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lon"`
	ObservedAt time.Time `json:"observedAt"`
}

// HTTPJobSource fetches the active job list from the dispatch API.
type HTTPJobSource struct {
	URL    string
	Client *http.Client
}

func NewHTTPJobSource(url string, timeout time.Duration) *HTTPJobSource {
	return &HTTPJobSource{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPJobSource) FetchActiveJobs(ctx context.Context) (domain.Snapshot, error) {
	var payload []jobPayload
	if err := getJSON(ctx, s.Client, s.URL, &payload); err != nil {
		return nil, err
	}

	snap := make(domain.Snapshot, len(payload))
	for _, p := range payload {
		snap[p.JobID] = &domain.Job{
			ID:                   p.JobID,
			Status:               domain.JobStatus(p.Status),
			DriverReportedStatus: domain.JobStatus(p.DriverReportedStatus),
			ScheduledDate:        p.ScheduledDate,
			ArrivalTime:          p.ArrivalTime,
			CompletionTime:       p.CompletionTime,
			VehicleID:            p.VehicleID,
			DriverID:             p.DriverID,
			RouteID:              p.RouteID,
			SiteAddress:          p.SiteAddress,
			Latitude:             p.Latitude,
			Longitude:            p.Longitude,
		}
	}
	return snap, nil
}

// HTTPTelemetrySource fetches the latest fix for every tracked vehicle.
type HTTPTelemetrySource struct {
	URL    string
	Client *http.Client
}

func NewHTTPTelemetrySource(url string, timeout time.Duration) *HTTPTelemetrySource {
	return &HTTPTelemetrySource{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPTelemetrySource) FetchLatestPositions(ctx context.Context) (map[string]*domain.VehiclePosition, error) {
	var payload []positionPayload
	if err := getJSON(ctx, s.Client, s.URL, &payload); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.VehiclePosition, len(payload))
	for _, p := range payload {
		out[p.VehicleID] = &domain.VehiclePosition{
			VehicleID:  p.VehicleID,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			ObservedAt: p.ObservedAt,
		}
	}
	return out, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(ErrUpstreamUnavailable, err.Error())
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return errors.Wrap(ErrUpstreamTimeout, url)
		}
		return errors.Wrapf(ErrUpstreamUnavailable, "%s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrUpstreamUnavailable, "%s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return errors.Wrapf(ErrUpstreamUnavailable, "%s: decode: %v", url, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
