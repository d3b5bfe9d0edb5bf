package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch-monitor/sentinel/internal/config"
	"dispatch-monitor/sentinel/internal/domain"
	"dispatch-monitor/sentinel/internal/poller"
)

// HistoryStore is the write-only TimescaleDB sink for poll-cycle analytics.
// Nothing in the poll cycle ever reads it back.
type HistoryStore struct {
	pool      *pgxpool.Pool
	batchSize int
}

func NewHistoryStore(ctx context.Context, cfg *config.Config) (*HistoryStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping db")
	}

	return &HistoryStore{pool: pool, batchSize: cfg.BatchSize}, nil
}

func (s *HistoryStore) Close() {
	s.pool.Close()
}

func (s *HistoryStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *HistoryStore) RecordCycle(ctx context.Context, m poller.CycleMetrics) error {
	query := `
		INSERT INTO job_poll_history
			(started_at, duration_ms, job_count, changed_jobs, removed_jobs,
			 alerts_raised, alerts_resolved, verified_count)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		m.StartedAt,
		m.DurationMs,
		m.JobCount,
		m.ChangedJobs,
		m.RemovedJobs,
		m.AlertsRaised,
		m.AlertsResolved,
		m.VerifiedCount,
	)
	return errors.Wrap(err, "insert poll history")
}

func (s *HistoryStore) RecordAlertTransitions(ctx context.Context, raised, resolved []domain.Alert) error {
	query := `
		INSERT INTO job_alert_history
			(alert_id, rule_id, job_id, severity, state, message, recorded_at)
		VALUES
			($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT DO NOTHING
	`
	for _, a := range raised {
		if _, err := s.pool.Exec(ctx, query,
			a.ID, a.RuleID, a.JobID, string(a.Severity), string(domain.AlertActive), a.Message); err != nil {
			return errors.Wrapf(err, "insert raised alert %s", a.ID)
		}
	}
	for _, a := range resolved {
		if _, err := s.pool.Exec(ctx, query,
			a.ID, a.RuleID, a.JobID, string(a.Severity), string(domain.AlertResolved), a.Message); err != nil {
			return errors.Wrapf(err, "insert resolved alert %s", a.ID)
		}
	}
	return nil
}

var verificationColumns = []string{
	"verified_at",
	"job_id",
	"vehicle_id",
	"status",
	"distance_miles",
}

func (s *HistoryStore) RecordVerifications(ctx context.Context, at time.Time, results []domain.VerificationResult) error {
	for start := 0; start < len(results); start += s.batchSize {
		end := start + s.batchSize
		if end > len(results) {
			end = len(results)
		}
		chunk := results[start:end]

		rows := make([][]interface{}, len(chunk))
		for i, r := range chunk {
			var dist interface{}
			if r.DistanceMiles != nil {
				dist = *r.DistanceMiles
			}
			rows[i] = []interface{}{at, r.JobID, r.VehicleID, string(r.Status), dist}
		}

		_, err := s.pool.CopyFrom(
			ctx,
			pgx.Identifier{"job_verifications"},
			verificationColumns,
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return errors.Wrapf(err, "CopyFrom failed for batch of %d", len(chunk))
		}
	}
	return nil
}
