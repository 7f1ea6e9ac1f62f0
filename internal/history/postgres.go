package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the capture_history table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS capture_history (
    id              TEXT PRIMARY KEY,
    flow            TEXT NOT NULL,
    started_at      TIMESTAMPTZ NOT NULL,
    raw             TEXT NOT NULL DEFAULT '',
    corrected       TEXT NOT NULL DEFAULT '',
    final           TEXT NOT NULL DEFAULT '',
    duration_ms     BIGINT NOT NULL DEFAULT 0,
    outcome         TEXT NOT NULL,
    failure_reason  TEXT NOT NULL DEFAULT '',
    app             TEXT NOT NULL DEFAULT '',
    enhanced        BOOLEAN NOT NULL DEFAULT false
);
CREATE INDEX IF NOT EXISTS idx_capture_history_started ON capture_history(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_capture_history_outcome ON capture_history(outcome);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Sink] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

var _ Sink = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before appending.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Append inserts r. A record whose ID already exists is ignored.
func (s *PostgresStore) Append(ctx context.Context, r Record) error {
	const query = `
		INSERT INTO capture_history (
			id, flow, started_at, raw, corrected, final,
			duration_ms, outcome, failure_reason, app, enhanced
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		r.ID, r.Flow, r.StartedAt.UTC(), r.Raw, r.Corrected, r.Final,
		r.Duration.Milliseconds(), r.Outcome, r.FailureReason, r.App, r.Enhanced,
	)
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest records, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, flow, started_at, raw, corrected, final,
		       duration_ms, outcome, failure_reason, app, enhanced
		FROM capture_history
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r          Record
			durationMs int64
		)
		if err := rows.Scan(
			&r.ID, &r.Flow, &r.StartedAt, &r.Raw, &r.Corrected, &r.Final,
			&durationMs, &r.Outcome, &r.FailureReason, &r.App, &r.Enhanced,
		); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		r.Duration = msToDuration(durationMs)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}
