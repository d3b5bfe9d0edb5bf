package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities for sorting; higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

type AlertState string

const (
	AlertActive       AlertState = "ACTIVE"
	AlertAcknowledged AlertState = "ACKNOWLEDGED"
	AlertDismissed    AlertState = "DISMISSED"
	AlertResolved     AlertState = "RESOLVED"
)

// Open reports whether the alert still represents a live condition.
func (s AlertState) Open() bool {
	return s == AlertActive || s == AlertAcknowledged
}

// alertNamespace seeds deterministic alert ids. Changing it invalidates
// every persisted alert id, so it is fixed for the life of the project.
var alertNamespace = uuid.MustParse("7f1c2a9e-4b6d-4e31-9c58-2d0a8f3b6e17")

// NewAlertID derives the stable id for one (rule, job) incident. The same
// pair always maps to the same id, which is what makes re-raising idempotent.
func NewAlertID(ruleID, jobID string) string {
	return uuid.NewSHA1(alertNamespace, []byte(ruleID+"|"+jobID)).String()
}

type Alert struct {
	ID       string   `json:"id"`
	RuleID   string   `json:"rule_id"`
	RuleName string   `json:"rule_name"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	JobID    string   `json:"job_id"`

	State AlertState `json:"state"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`

	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	DismissedBy    string     `json:"dismissed_by,omitempty"`
	DismissedAt    *time.Time `json:"dismissed_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

type VerificationStatus string

const (
	VerificationVerified    VerificationStatus = "verified"
	VerificationOffSchedule VerificationStatus = "off_schedule"
	VerificationUnverified  VerificationStatus = "unverified"
	VerificationNoTracking  VerificationStatus = "no_tracking"
)

// VerificationResult is the proximity verdict for one job this cycle.
// DistanceMiles is nil when no position was available; for off_schedule it
// may be populated for display but must not drive proximity rules.
type VerificationResult struct {
	JobID         string
	VehicleID     string
	Status        VerificationStatus
	DistanceMiles *float64
}

// Rule is a static alerting rule. Predicates are pure: they see the job, its
// verification result (may be nil), and the whole snapshot for cross-job
// conditions.
type Rule struct {
	ID        string
	Name      string
	Severity  Severity
	Predicate func(job *Job, vr *VerificationResult, all Snapshot, now time.Time) bool
	Message   func(job *Job, vr *VerificationResult) string
}

// AlertStats is the aggregate view served alongside the alert list.
type AlertStats struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
}

func (a *Alert) String() string {
	return fmt.Sprintf("%s [%s] job=%s rule=%s state=%s", a.ID[:8], a.Severity, a.JobID, a.RuleID, a.State)
}
