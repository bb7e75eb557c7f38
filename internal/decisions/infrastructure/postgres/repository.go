package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	decisions "oran-rapps/internal/decisions/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS rapp_decisions (
	id TEXT PRIMARY KEY,
	cycle_id TEXT NOT NULL,
	rapp TEXT NOT NULL,
	entity TEXT NOT NULL,
	tag TEXT NOT NULL DEFAULT '',
	decision TEXT NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	previous TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	detail JSONB,
	ts TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS rapp_decisions_rapp_ts ON rapp_decisions (rapp, ts);`

// Repository persists decision records.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the decisions table if needed.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("decisions repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Record inserts a decision. Re-recording the same id overwrites its status.
func (r *Repository) Record(ctx context.Context, rec decisions.Record) error {
	if r == nil || r.db == nil {
		return errors.New("decisions repo: nil db")
	}
	if rec.RApp == "" || rec.Entity == "" {
		return errors.New("decisions repo: empty rapp or entity")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.TS.IsZero() {
		rec.TS = time.Now()
	}
	var detail any
	if len(rec.Detail) > 0 {
		detail = string(rec.Detail)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rapp_decisions (
	id, cycle_id, rapp, entity, tag, decision, target, previous, status, detail, ts
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (id)
DO UPDATE SET
	status = EXCLUDED.status,
	detail = EXCLUDED.detail`,
		rec.ID, rec.CycleID, rec.RApp, rec.Entity, rec.Tag, rec.Decision, rec.Target, rec.Previous,
		string(rec.Status), detail, rec.TS.UTC(),
	)
	return err
}

// List returns decisions of rapp in [from, to), oldest first.
func (r *Repository) List(ctx context.Context, rapp string, from, to time.Time) ([]decisions.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("decisions repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, cycle_id, rapp, entity, tag, decision, target, previous, status, COALESCE(detail::text, ''), ts
FROM rapp_decisions
WHERE rapp = $1 AND ts >= $2 AND ts < $3
ORDER BY ts ASC, id ASC`, rapp, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []decisions.Record
	for rows.Next() {
		var (
			rec    decisions.Record
			status string
			detail string
		)
		if err := rows.Scan(&rec.ID, &rec.CycleID, &rec.RApp, &rec.Entity, &rec.Tag, &rec.Decision,
			&rec.Target, &rec.Previous, &status, &detail, &rec.TS); err != nil {
			return nil, err
		}
		rec.Status = decisions.Status(status)
		if detail != "" {
			rec.Detail = []byte(detail)
		}
		rec.TS = rec.TS.UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountFailedSince counts error decisions of rapp recorded at or after since.
func (r *Repository) CountFailedSince(ctx context.Context, rapp string, since time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("decisions repo: nil db")
	}
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM rapp_decisions
WHERE rapp = $1 AND status = $2 AND ts >= $3`, rapp, string(decisions.StatusError), since.UTC()).Scan(&count)
	return count, err
}
