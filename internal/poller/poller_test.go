package poller

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch-monitor/sentinel/internal/alerting"
	"dispatch-monitor/sentinel/internal/domain"
	"dispatch-monitor/sentinel/internal/notify"
	"dispatch-monitor/sentinel/internal/snapshot"
	"dispatch-monitor/sentinel/internal/source"
	"dispatch-monitor/sentinel/internal/verify"
)

type stubJobs struct {
	fn func(ctx context.Context) (domain.Snapshot, error)
}

func (s *stubJobs) FetchActiveJobs(ctx context.Context) (domain.Snapshot, error) {
	return s.fn(ctx)
}

type stubTelemetry struct {
	fn func(ctx context.Context) (map[string]*domain.VehiclePosition, error)
}

func (s *stubTelemetry) FetchLatestPositions(ctx context.Context) (map[string]*domain.VehiclePosition, error) {
	return s.fn(ctx)
}

func staticJobs(snap domain.Snapshot) *stubJobs {
	return &stubJobs{fn: func(context.Context) (domain.Snapshot, error) { return snap, nil }}
}

func noPositions() *stubTelemetry {
	return &stubTelemetry{fn: func(context.Context) (map[string]*domain.VehiclePosition, error) {
		return map[string]*domain.VehiclePosition{}, nil
	}}
}

func newTestPoller(jobs source.JobSource, telemetry source.TelemetrySource) (*Poller, *alerting.Store, *notify.Bus) {
	store := alerting.NewStore()
	engine := alerting.NewEngine(store, alerting.DefaultRules(alerting.RuleParams{
		StalledArrival:          4 * time.Hour,
		ProximityThresholdMiles: 2.0,
	}), zap.NewNop().Sugar())
	bus := notify.NewBus()

	p := New(jobs, telemetry, verify.New(2.0), engine, snapshot.New(15*time.Second), bus, Options{
		Interval:     time.Hour,
		FetchTimeout: time.Second,
	}, zap.NewNop().Sugar())
	return p, store, bus
}

func driverlessJob(id string) *domain.Job {
	return &domain.Job{
		ID:            id,
		Status:        domain.StatusEntered,
		ScheduledDate: time.Now(),
		VehicleID:     "V-" + id,
	}
}

func TestRunOnceSuccess(t *testing.T) {
	p, store, bus := newTestPoller(staticJobs(domain.Snapshot{"J1": driverlessJob("J1")}), noPositions())

	events, cancel := bus.Subscribe(8)
	defer cancel()

	require.NoError(t, p.RunOnce(context.Background()))

	st := p.Status()
	require.NotNil(t, st.LastPollAt)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 0, st.ConsecutiveFailures)

	alerts, stats := store.List("")
	require.Len(t, alerts, 1)
	assert.Equal(t, 1, stats.Total)

	select {
	case ev := <-events:
		assert.Equal(t, notify.AlertRaised, ev.Type)
		assert.Equal(t, "J1", ev.Alert.JobID)
	default:
		t.Fatal("expected a raised event on the bus")
	}
}

func TestFetchFailurePreservesState(t *testing.T) {
	snap := domain.Snapshot{"J1": driverlessJob("J1")}
	failing := false
	jobs := &stubJobs{fn: func(context.Context) (domain.Snapshot, error) {
		if failing {
			return nil, errors.Wrap(source.ErrUpstreamUnavailable, "dispatch api down")
		}
		return snap, nil
	}}
	p, store, _ := newTestPoller(jobs, noPositions())

	require.NoError(t, p.RunOnce(context.Background()))
	firstPoll := p.Status().LastPollAt

	// Upstream outage: cycles fail, prior snapshot and open alerts stay.
	failing = true
	for i := 1; i <= 3; i++ {
		err := p.RunOnce(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, source.ErrUpstreamUnavailable))

		st := p.Status()
		assert.Equal(t, i, st.ConsecutiveFailures)
		assert.Contains(t, st.LastError, "dispatch api down")
		assert.Equal(t, firstPoll, st.LastPollAt)
	}

	alerts, _ := store.List("")
	assert.Len(t, alerts, 1, "an outage must not be read as 'all jobs resolved'")

	// Recovery resets the failure streak.
	failing = false
	require.NoError(t, p.RunOnce(context.Background()))
	st := p.Status()
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Empty(t, st.LastError)
}

func TestOverlappingCycleIsSkipped(t *testing.T) {
	p, _, _ := newTestPoller(staticJobs(domain.Snapshot{}), noPositions())

	// Simulate an in-flight cycle holding the guard.
	p.busy.Lock()
	require.NoError(t, p.RunOnce(context.Background()))
	p.busy.Unlock()

	// The skipped call did not poll.
	assert.Nil(t, p.Status().LastPollAt)

	require.NoError(t, p.RunOnce(context.Background()))
	assert.NotNil(t, p.Status().LastPollAt)
}

func TestGpsStatusView(t *testing.T) {
	lat, lon := 33.4484, -112.0740
	job := &domain.Job{
		ID:            "J1",
		Status:        domain.StatusInProgress,
		ScheduledDate: time.Now(),
		VehicleID:     "V1",
		DriverID:      "D1",
		Latitude:      &lat,
		Longitude:     &lon,
	}
	positions := map[string]*domain.VehiclePosition{
		"V1": {VehicleID: "V1", Latitude: lat, Longitude: lon, ObservedAt: time.Now()},
		"V9": {VehicleID: "V9", Latitude: 34.0, Longitude: -111.0, ObservedAt: time.Now()},
	}
	telemetry := &stubTelemetry{fn: func(context.Context) (map[string]*domain.VehiclePosition, error) {
		return positions, nil
	}}
	p, _, _ := newTestPoller(staticJobs(domain.Snapshot{"J1": job}), telemetry)

	require.NoError(t, p.RunOnce(context.Background()))

	gps := p.GpsStatus()
	assert.Equal(t, 2, gps.TotalVehicles)
	assert.Equal(t, 1, gps.VerifiedCount)

	byVehicle := make(map[string]VehicleGps)
	for _, row := range gps.PerVehicleStatus {
		byVehicle[row.VehicleID] = row
	}
	assert.Equal(t, string(domain.VerificationVerified), byVehicle["V1"].Status)
	assert.Equal(t, "J1", byVehicle["V1"].JobID)
	assert.Equal(t, "idle", byVehicle["V9"].Status)
}

func TestStartStop(t *testing.T) {
	p, _, _ := newTestPoller(staticJobs(domain.Snapshot{}), noPositions())

	p.Start()
	// The first cycle runs immediately; give it a moment.
	require.Eventually(t, func() bool {
		return p.Status().LastPollAt != nil
	}, time.Second, 10*time.Millisecond)
	assert.True(t, p.Status().Running)

	p.Stop()
	assert.False(t, p.Status().Running)
}
