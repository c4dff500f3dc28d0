package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/autodialer/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS dial_attempts (
	id UUID PRIMARY KEY,
	phone_number TEXT NOT NULL,
	seq BIGINT NOT NULL,
	answered BOOLEAN NOT NULL DEFAULT FALSE,
	outcome TEXT,
	last_error TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS dial_attempts_started_at_idx ON dial_attempts (started_at DESC);
`

// PostgresStore implements Store on Postgres.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore builds the store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the journal table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("journal: ensure schema: %w", err)
	}
	return nil
}

// RecordStart inserts the attempt at dial time.
func (s *PostgresStore) RecordStart(ctx context.Context, attempt domain.DialAttempt) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO dial_attempts (id, phone_number, seq, answered, started_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
		attempt.ID, attempt.Number.String(), int64(attempt.Seq), attempt.Answered, attempt.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: record start: %w", err)
	}
	return nil
}

// RecordEnd stamps the terminal outcome on the attempt.
func (s *PostgresStore) RecordEnd(ctx context.Context, attempt domain.DialAttempt) error {
	_, err := s.db.ExecContext(ctx, `UPDATE dial_attempts SET
		answered = $2,
		outcome = $3,
		last_error = NULLIF($4, ''),
		ended_at = $5
	WHERE id = $1`,
		attempt.ID, attempt.Answered, string(attempt.Outcome), attempt.Error, attempt.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: record end: %w", err)
	}
	return nil
}

type attemptRow struct {
	ID          uuid.UUID      `db:"id"`
	PhoneNumber string         `db:"phone_number"`
	Seq         int64          `db:"seq"`
	Answered    bool           `db:"answered"`
	Outcome     sql.NullString `db:"outcome"`
	LastError   sql.NullString `db:"last_error"`
	StartedAt   time.Time      `db:"started_at"`
	EndedAt     *time.Time     `db:"ended_at"`
}

// Recent lists the most recently started attempts, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]domain.DialAttempt, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT id, phone_number, seq, answered, outcome, last_error, started_at, ended_at
		FROM dial_attempts ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []domain.DialAttempt
	for rows.Next() {
		var row attemptRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("journal: scan attempt: %w", err)
		}
		out = append(out, domain.DialAttempt{
			ID:        row.ID,
			Number:    domain.PhoneNumber(row.PhoneNumber),
			Seq:       uint64(row.Seq),
			Answered:  row.Answered,
			Outcome:   domain.AttemptOutcome(row.Outcome.String),
			Error:     row.LastError.String,
			StartedAt: row.StartedAt,
			EndedAt:   row.EndedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: recent rows: %w", err)
	}
	return out, nil
}
