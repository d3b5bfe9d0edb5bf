package alerting

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"dispatch-monitor/sentinel/internal/domain"
)

var (
	// ErrNotFound is returned for operator actions on unknown alert ids.
	ErrNotFound = errors.New("alert not found")
	// ErrInvalidStateTransition is returned when an operator action is not
	// legal from the alert's current state. The alert is left untouched.
	ErrInvalidStateTransition = errors.New("invalid alert state transition")
)

// Store owns the live alert map. It is created once at orchestrator start
// and shared by the engine and the HTTP operations; every read and write
// goes through its single mutex, which is what keeps a concurrent
// "condition still true" update from racing an operator dismiss.
type Store struct {
	mu     sync.RWMutex
	alerts map[string]*domain.Alert

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		alerts: make(map[string]*domain.Alert),
		now:    time.Now,
	}
}

// Acknowledge marks an alert as seen by an operator. Acknowledging an
// already-acknowledged alert is a no-op returning success.
func (s *Store) Acknowledge(alertID, by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "alert %s", alertID)
	}

	switch a.State {
	case domain.AlertActive:
		now := s.now()
		a.State = domain.AlertAcknowledged
		a.AcknowledgedBy = by
		a.AcknowledgedAt = &now
		return nil
	case domain.AlertAcknowledged:
		return nil
	default:
		return errors.Wrapf(ErrInvalidStateTransition, "acknowledge from %s", a.State)
	}
}

// Dismiss suppresses an alert. While the underlying condition stays true the
// dismissal holds; once the condition clears, a later recurrence opens a
// fresh incident. Dismissing an already-dismissed alert is a no-op.
func (s *Store) Dismiss(alertID, by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "alert %s", alertID)
	}

	switch a.State {
	case domain.AlertActive, domain.AlertAcknowledged:
		now := s.now()
		a.State = domain.AlertDismissed
		a.DismissedBy = by
		a.DismissedAt = &now
		return nil
	case domain.AlertDismissed:
		return nil
	default:
		return errors.Wrapf(ErrInvalidStateTransition, "dismiss from %s", a.State)
	}
}

// Get returns a copy of the alert, open or terminal.
func (s *Store) Get(alertID string) (domain.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return domain.Alert{}, false
	}
	return *a, true
}

// List returns open alerts in canonical order (severity descending, then
// firstSeenAt ascending: oldest critical first) plus aggregate stats.
// severity filters the list; stats always cover the full open set.
func (s *Store) List(severity domain.Severity) ([]domain.Alert, domain.AlertStats) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.AlertStats{BySeverity: make(map[string]int)}
	var out []domain.Alert
	for _, a := range s.alerts {
		if !a.State.Open() {
			continue
		}
		stats.Total++
		stats.BySeverity[string(a.Severity)]++
		if severity != "" && a.Severity != severity {
			continue
		}
		out = append(out, *a)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].FirstSeenAt.Before(out[j].FirstSeenAt)
	})

	return out, stats
}

// Reset clears all alert state. Only for explicit operator/test resets,
// never part of the poll cycle.
func (s *Store) Reset() {
	s.mu.Lock()
	s.alerts = make(map[string]*domain.Alert)
	s.mu.Unlock()
}

// reconcile applies one cycle's evaluation outcome under a single lock.
// candidates holds, keyed by alert id, every (rule, job) pair whose
// condition is currently true.
func (s *Store) reconcile(now time.Time, candidates map[string]candidate) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum Summary

	for id, c := range candidates {
		existing, ok := s.alerts[id]
		switch {
		case ok && existing.State.Open():
			// Same condition still true: one alert, lastSeenAt advances.
			existing.LastSeenAt = now
			sum.Refreshed++
		case ok && existing.State == domain.AlertDismissed:
			// Operator suppressed it; stays quiet until the condition
			// clears.
		default:
			// New incident, or recurrence after a resolved instance.
			a := &domain.Alert{
				ID:          id,
				RuleID:      c.rule.ID,
				RuleName:    c.rule.Name,
				Severity:    c.rule.Severity,
				Message:     c.rule.Message(c.job, c.vr),
				JobID:       c.job.ID,
				State:       domain.AlertActive,
				FirstSeenAt: now,
				LastSeenAt:  now,
			}
			s.alerts[id] = a
			sum.Raised = append(sum.Raised, *a)
		}
	}

	for id, a := range s.alerts {
		if _, held := candidates[id]; held {
			continue
		}
		switch a.State {
		case domain.AlertActive, domain.AlertAcknowledged:
			// Condition no longer holds (or the job disappeared).
			a.State = domain.AlertResolved
			resolvedAt := now
			a.ResolvedAt = &resolvedAt
			sum.Resolved = append(sum.Resolved, *a)
		case domain.AlertDismissed:
			// Condition cleared; drop the suppression record so a later
			// recurrence starts a fresh incident.
			delete(s.alerts, id)
		case domain.AlertResolved:
			// Terminal record from an earlier cycle; history already has
			// it, nothing in-process needs it anymore.
			if a.ResolvedAt != nil && a.ResolvedAt.Before(now) {
				delete(s.alerts, id)
			}
		}
	}

	return sum
}
