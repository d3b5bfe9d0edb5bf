package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	PollsTotal           atomic.Int64
	PollFailures         atomic.Int64
	PollsSkipped         atomic.Int64
	JobsChanged          atomic.Int64
	AlertsRaised         atomic.Int64
	AlertsResolved       atomic.Int64
	NotifyDrops          atomic.Int64
	HistoryWriteSuccess  atomic.Int64
	HistoryWriteFailures atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "sentinel_polls_total %d\n", PollsTotal.Load())
	fmt.Fprintf(w, "sentinel_poll_failures_total %d\n", PollFailures.Load())
	fmt.Fprintf(w, "sentinel_polls_skipped_total %d\n", PollsSkipped.Load())
	fmt.Fprintf(w, "sentinel_jobs_changed_total %d\n", JobsChanged.Load())
	fmt.Fprintf(w, "sentinel_alerts_raised_total %d\n", AlertsRaised.Load())
	fmt.Fprintf(w, "sentinel_alerts_resolved_total %d\n", AlertsResolved.Load())
	fmt.Fprintf(w, "sentinel_notify_drops_total %d\n", NotifyDrops.Load())
	fmt.Fprintf(w, "sentinel_history_write_success_total %d\n", HistoryWriteSuccess.Load())
	fmt.Fprintf(w, "sentinel_history_write_failures_total %d\n", HistoryWriteFailures.Load())
}
