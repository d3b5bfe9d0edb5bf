// Package alerting evaluates the rule set against each poll cycle's job
// snapshot and reconciles the outcome against the live alert store.
package alerting

import (
	"time"

	"go.uber.org/zap"

	"dispatch-monitor/sentinel/internal/diff"
	"dispatch-monitor/sentinel/internal/domain"
)

type candidate struct {
	rule domain.Rule
	job  *domain.Job
	vr   *domain.VerificationResult
}

// Summary reports what one evaluation cycle did to the alert set.
type Summary struct {
	Raised    []domain.Alert
	Resolved  []domain.Alert
	Refreshed int
}

type Engine struct {
	store *Store
	rules []domain.Rule
	log   *zap.SugaredLogger
}

func NewEngine(store *Store, rules []domain.Rule, log *zap.SugaredLogger) *Engine {
	return &Engine{store: store, rules: rules, log: log}
}

// Evaluate runs every rule against the current snapshot and reconciles the
// alert store. All shipped rules are cheap scans, and several are
// time-dependent (a stalled arrival crosses its threshold with no field
// change at all), so every job is evaluated each cycle; the diff result is
// used for change accounting, not to skip work.
func (e *Engine) Evaluate(
	now time.Time,
	jobs domain.Snapshot,
	changes diff.Result,
	verifications map[string]*domain.VerificationResult,
) Summary {
	candidates := make(map[string]candidate)

	for _, rule := range e.rules {
		for _, job := range jobs {
			vr := verifications[job.ID]
			if !rule.Predicate(job, vr, jobs, now) {
				continue
			}
			id := domain.NewAlertID(rule.ID, job.ID)
			candidates[id] = candidate{rule: rule, job: job, vr: vr}
		}
	}

	sum := e.store.reconcile(now, candidates)

	for _, a := range sum.Raised {
		e.log.Infow("alert raised",
			"alert_id", a.ID, "rule", a.RuleID, "job_id", a.JobID, "severity", a.Severity)
	}
	for _, a := range sum.Resolved {
		e.log.Infow("alert resolved",
			"alert_id", a.ID, "rule", a.RuleID, "job_id", a.JobID)
	}
	if removed := changes.Removed(); len(removed) > 0 {
		e.log.Debugw("jobs removed from snapshot", "count", len(removed))
	}

	return sum
}

// Store exposes the alert store handle for the HTTP operations; both sides
// share the same mutex boundary.
func (e *Engine) Store() *Store {
	return e.store
}
