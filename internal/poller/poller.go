// Package poller owns the periodic fetch → diff → verify → evaluate →
// commit cycle. It is the only component with a scheduling loop.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dispatch-monitor/sentinel/internal/alerting"
	"dispatch-monitor/sentinel/internal/diff"
	"dispatch-monitor/sentinel/internal/domain"
	"dispatch-monitor/sentinel/internal/metrics"
	"dispatch-monitor/sentinel/internal/notify"
	"dispatch-monitor/sentinel/internal/snapshot"
	"dispatch-monitor/sentinel/internal/source"
	"dispatch-monitor/sentinel/internal/verify"
)

// CycleMetrics is the per-cycle record written to the history sink.
type CycleMetrics struct {
	StartedAt      time.Time
	DurationMs     int64
	JobCount       int
	ChangedJobs    int
	RemovedJobs    int
	AlertsRaised   int
	AlertsResolved int
	VerifiedCount  int
}

// HistorySink receives cycle results for offline analytics. Writes are
// fire-and-forget: a sink failure is logged and never aborts the cycle.
type HistorySink interface {
	RecordCycle(ctx context.Context, m CycleMetrics) error
	RecordAlertTransitions(ctx context.Context, raised, resolved []domain.Alert) error
	RecordVerifications(ctx context.Context, at time.Time, results []domain.VerificationResult) error
}

// LiveState mirrors the committed cycle into the serving layer (Redis).
// Same policy as the history sink: failures are logged, not fatal.
type LiveState interface {
	MirrorCycle(ctx context.Context, snap domain.Snapshot, positions map[string]*domain.VehiclePosition, verifications map[string]*domain.VerificationResult) error
}

// Status is the operator-facing view of the polling loop.
type Status struct {
	Running             bool       `json:"running"`
	LastPollAt          *time.Time `json:"last_poll_at,omitempty"`
	LastDurationMs      int64      `json:"last_duration_ms"`
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// VehicleGps is one row of the GPS status view.
type VehicleGps struct {
	VehicleID     string     `json:"vehicle_id"`
	JobID         string     `json:"job_id,omitempty"`
	Status        string     `json:"status"`
	DistanceMiles *float64   `json:"distance_miles,omitempty"`
	ObservedAt    *time.Time `json:"observed_at,omitempty"`
}

type GpsStatus struct {
	TotalVehicles    int          `json:"total_vehicles"`
	VerifiedCount    int          `json:"verified_count"`
	PerVehicleStatus []VehicleGps `json:"per_vehicle_status"`
}

type Poller struct {
	jobs      source.JobSource
	telemetry source.TelemetrySource
	verifier  *verify.Verifier
	engine    *alerting.Engine
	snapshots *snapshot.Store
	history   HistorySink
	live      LiveState
	bus       *notify.Bus

	interval     time.Duration
	fetchTimeout time.Duration
	log          *zap.SugaredLogger

	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup

	// busy guards against overlapping cycles: a tick that arrives while a
	// cycle is running is skipped, not queued.
	busy sync.Mutex

	mu            sync.Mutex
	running       bool
	lastPollAt    time.Time
	lastDuration  time.Duration
	lastErr       error
	failures      int
	positions     map[string]*domain.VehiclePosition
	verifications map[string]*domain.VerificationResult

	now func() time.Time
}

type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	History      HistorySink // optional
	Live         LiveState   // optional
}

func New(
	jobs source.JobSource,
	telemetry source.TelemetrySource,
	verifier *verify.Verifier,
	engine *alerting.Engine,
	snapshots *snapshot.Store,
	bus *notify.Bus,
	opts Options,
	log *zap.SugaredLogger,
) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		jobs:         jobs,
		telemetry:    telemetry,
		verifier:     verifier,
		engine:       engine,
		snapshots:    snapshots,
		history:      opts.History,
		live:         opts.Live,
		bus:          bus,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
		now:          time.Now,
	}
}

// Start begins the polling loop. The first cycle runs immediately.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
	p.log.Infow("poller started", "interval", p.interval)
}

// Stop halts the timer and waits for any in-flight cycle to finish. There is
// no forced mid-cycle cancellation.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.log.Infow("poller stopped")
}

func (p *Poller) run() {
	defer p.wg.Done()

	p.RunOnce(context.Background())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(context.Background())
		}
	}
}

// RunOnce executes a single poll cycle. If a cycle is already in flight the
// call is skipped. A fetch failure abandons the cycle: the previous snapshot
// and all open alerts are left untouched.
func (p *Poller) RunOnce(ctx context.Context) error {
	if !p.busy.TryLock() {
		metrics.PollsSkipped.Add(1)
		p.log.Warnw("poll cycle skipped, previous cycle still running")
		return nil
	}
	defer p.busy.Unlock()

	start := p.now()
	metrics.PollsTotal.Add(1)

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	var (
		jobs      domain.Snapshot
		positions map[string]*domain.VehiclePosition
	)
	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		var err error
		jobs, err = p.jobs.FetchActiveJobs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		positions, err = p.telemetry.FetchLatestPositions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		p.recordFailure(err)
		return err
	}

	now := p.now()

	verifications := make(map[string]*domain.VerificationResult, len(jobs))
	for id, job := range jobs {
		vr := p.verifier.Verify(job, positions[job.VehicleID], now)
		verifications[id] = &vr
	}

	changes := diff.Diff(p.snapshots.Previous(), jobs)
	sum := p.engine.Evaluate(now, jobs, changes, verifications)
	p.snapshots.Replace(jobs)

	duration := p.now().Sub(start)
	cm := p.recordSuccess(start, duration, jobs, changes, sum, verifications, positions)

	for _, a := range sum.Raised {
		p.bus.Publish(notify.Event{Type: notify.AlertRaised, Alert: a, At: now})
	}
	for _, a := range sum.Resolved {
		p.bus.Publish(notify.Event{Type: notify.AlertResolved, Alert: a, At: now})
	}

	p.flushSinks(ctx, cm, sum, now, verifications, jobs, positions)

	p.log.Infow("poll cycle complete",
		"jobs", cm.JobCount,
		"changed", cm.ChangedJobs,
		"raised", cm.AlertsRaised,
		"resolved", cm.AlertsResolved,
		"duration_ms", cm.DurationMs)
	return nil
}

func (p *Poller) recordFailure(err error) {
	metrics.PollFailures.Add(1)
	p.mu.Lock()
	p.failures++
	p.lastErr = err
	streak := p.failures
	p.mu.Unlock()
	p.log.Warnw("poll cycle failed, keeping previous snapshot",
		"error", err, "consecutive_failures", streak)
}

func (p *Poller) recordSuccess(
	start time.Time,
	duration time.Duration,
	jobs domain.Snapshot,
	changes diff.Result,
	sum alerting.Summary,
	verifications map[string]*domain.VerificationResult,
	positions map[string]*domain.VehiclePosition,
) CycleMetrics {
	changed, removed, verified := 0, 0, 0
	for _, c := range changes {
		switch c.Kind {
		case diff.Removed:
			removed++
		case diff.Added, diff.Modified:
			changed++
		}
	}
	for _, vr := range verifications {
		if vr.Status == domain.VerificationVerified {
			verified++
		}
	}

	metrics.JobsChanged.Add(int64(changed))
	metrics.AlertsRaised.Add(int64(len(sum.Raised)))
	metrics.AlertsResolved.Add(int64(len(sum.Resolved)))

	p.mu.Lock()
	p.failures = 0
	p.lastErr = nil
	p.lastPollAt = start
	p.lastDuration = duration
	p.positions = positions
	p.verifications = verifications
	p.mu.Unlock()

	return CycleMetrics{
		StartedAt:      start,
		DurationMs:     duration.Milliseconds(),
		JobCount:       len(jobs),
		ChangedJobs:    changed,
		RemovedJobs:    removed,
		AlertsRaised:   len(sum.Raised),
		AlertsResolved: len(sum.Resolved),
		VerifiedCount:  verified,
	}
}

func (p *Poller) flushSinks(
	ctx context.Context,
	cm CycleMetrics,
	sum alerting.Summary,
	now time.Time,
	verifications map[string]*domain.VerificationResult,
	jobs domain.Snapshot,
	positions map[string]*domain.VehiclePosition,
) {
	if p.history != nil {
		results := make([]domain.VerificationResult, 0, len(verifications))
		for _, vr := range verifications {
			results = append(results, *vr)
		}
		if err := p.history.RecordCycle(ctx, cm); err != nil {
			metrics.HistoryWriteFailures.Add(1)
			p.log.Warnw("history cycle write failed", "error", err)
		} else {
			metrics.HistoryWriteSuccess.Add(1)
		}
		if err := p.history.RecordAlertTransitions(ctx, sum.Raised, sum.Resolved); err != nil {
			metrics.HistoryWriteFailures.Add(1)
			p.log.Warnw("history alert write failed", "error", err)
		}
		if err := p.history.RecordVerifications(ctx, now, results); err != nil {
			metrics.HistoryWriteFailures.Add(1)
			p.log.Warnw("history verification write failed", "error", err)
		}
	}

	if p.live != nil {
		if err := p.live.MirrorCycle(ctx, jobs, positions, verifications); err != nil {
			p.log.Warnw("live state mirror failed", "error", err)
		}
	}
}

// Status reports the polling loop's health for the operator API.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Status{
		Running:             p.running,
		LastDurationMs:      p.lastDuration.Milliseconds(),
		ConsecutiveFailures: p.failures,
	}
	if !p.lastPollAt.IsZero() {
		t := p.lastPollAt
		s.LastPollAt = &t
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

// GpsStatus reports the most recent cycle's verification view, one row per
// tracked vehicle.
func (p *Poller) GpsStatus() GpsStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := GpsStatus{}
	seen := make(map[string]bool)

	for _, vr := range p.verifications {
		if vr.VehicleID == "" {
			continue
		}
		row := VehicleGps{
			VehicleID:     vr.VehicleID,
			JobID:         vr.JobID,
			Status:        string(vr.Status),
			DistanceMiles: vr.DistanceMiles,
		}
		if pos, ok := p.positions[vr.VehicleID]; ok {
			t := pos.ObservedAt
			row.ObservedAt = &t
		}
		if vr.Status == domain.VerificationVerified {
			out.VerifiedCount++
		}
		out.PerVehicleStatus = append(out.PerVehicleStatus, row)
		seen[vr.VehicleID] = true
	}

	// Vehicles reporting positions but not assigned to any job.
	for id, pos := range p.positions {
		if seen[id] {
			continue
		}
		t := pos.ObservedAt
		out.PerVehicleStatus = append(out.PerVehicleStatus, VehicleGps{
			VehicleID:  id,
			Status:     "idle",
			ObservedAt: &t,
		})
	}

	out.TotalVehicles = len(out.PerVehicleStatus)
	return out
}
