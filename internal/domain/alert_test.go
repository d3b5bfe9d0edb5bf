package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAlertIDDeterministic(t *testing.T) {
	a := NewAlertID("stalled_completion", "J1")
	b := NewAlertID("stalled_completion", "J1")
	assert.Equal(t, a, b)
}

func TestNewAlertIDDistinct(t *testing.T) {
	base := NewAlertID("stalled_completion", "J1")

	assert.NotEqual(t, base, NewAlertID("stalled_completion", "J2"))
	assert.NotEqual(t, base, NewAlertID("status_conflict", "J1"))

	// The separator keeps (rule, job) pairs from gluing into the same
	// string.
	assert.NotEqual(t, NewAlertID("a|b", "c"), NewAlertID("a", "b|c"))
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Equal(t, 0, Severity("BOGUS").Rank())
}

func TestAlertStateOpen(t *testing.T) {
	assert.True(t, AlertActive.Open())
	assert.True(t, AlertAcknowledged.Open())
	assert.False(t, AlertDismissed.Open())
	assert.False(t, AlertResolved.Open())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.True(t, StatusDeleted.Terminal())
	assert.True(t, StatusAttempted.Terminal())
	assert.False(t, StatusEntered.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.False(t, StatusRescheduled.Terminal())
}
