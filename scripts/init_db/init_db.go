package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "sentinel_user"),
		dbGetEnv("DB_PASSWORD", "sentinel_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "dispatch_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_extensions(ctx, conn)
	step2_poll_history(ctx, conn)
	step3_alert_history(ctx, conn)
	step4_verifications(ctx, conn)
	step5_indexes(ctx, conn)
	step6_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run scripts/seed_redis/seed_redis.go")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Extensions
// ─────────────────────────────────────────────────────────────
func step1_extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	// TimescaleDB — required for hypertables
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)
}

// ─────────────────────────────────────────────────────────────
// Step 2 — job_poll_history table
// ─────────────────────────────────────────────────────────────
func step2_poll_history(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: job_poll_history table ──────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS job_poll_history (
			started_at       TIMESTAMPTZ NOT NULL,
			duration_ms      BIGINT      NOT NULL,
			job_count        INTEGER     NOT NULL,
			changed_jobs     INTEGER     NOT NULL,
			removed_jobs     INTEGER     NOT NULL,
			alerts_raised    INTEGER     NOT NULL,
			alerts_resolved  INTEGER     NOT NULL,
			verified_count   INTEGER     NOT NULL
		);
	`, "job_poll_history table created")

	execOrFatal(ctx, conn, `
		SELECT create_hypertable('job_poll_history', 'started_at', if_not_exists => TRUE);
	`, "job_poll_history hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — job_alert_history table
// ─────────────────────────────────────────────────────────────
func step3_alert_history(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: job_alert_history table ─────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS job_alert_history (
			alert_id     TEXT        NOT NULL,
			rule_id      TEXT        NOT NULL,
			job_id       TEXT        NOT NULL,
			severity     TEXT        NOT NULL,
			state        TEXT        NOT NULL,
			message      TEXT,
			recorded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, "job_alert_history table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — job_verifications table
// ─────────────────────────────────────────────────────────────
func step4_verifications(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: job_verifications table ─────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS job_verifications (
			verified_at     TIMESTAMPTZ      NOT NULL,
			job_id          TEXT             NOT NULL,
			vehicle_id      TEXT,
			status          TEXT             NOT NULL,
			distance_miles  DOUBLE PRECISION
		);
	`, "job_verifications table created")

	execOrFatal(ctx, conn, `
		SELECT create_hypertable('job_verifications', 'verified_at', if_not_exists => TRUE);
	`, "job_verifications hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Indexes
// ─────────────────────────────────────────────────────────────
func step5_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Indexes ─────────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE INDEX IF NOT EXISTS idx_alert_history_job
		ON job_alert_history (job_id, recorded_at DESC);
	`, "job_alert_history job index")

	execOrFatal(ctx, conn, `
		CREATE INDEX IF NOT EXISTS idx_verifications_job
		ON job_verifications (job_id, verified_at DESC);
	`, "job_verifications job index")
}

// ─────────────────────────────────────────────────────────────
// Step 6 — Verification
// ─────────────────────────────────────────────────────────────
func step6_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: Verification ────────────────────────")

	for _, table := range []string{"job_poll_history", "job_alert_history", "job_verifications"} {
		var count int
		err := conn.QueryRow(ctx,
			"SELECT count(*) FROM information_schema.tables WHERE table_name = $1", table,
		).Scan(&count)
		if err != nil || count != 1 {
			log.Fatalf("Verification failed for %s: %v", table, err)
		}
		fmt.Printf("  ✓ %s exists\n", table)
	}
}

func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	if _, err := conn.Exec(ctx, sql); err != nil {
		log.Fatalf("Failed: %s: %v", label, err)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
