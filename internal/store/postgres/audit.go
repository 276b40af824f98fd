package postgres

import (
	"context"
	"database/sql"

	"telecaller-platform/internal/audit"
)

// AuditRepo implements audit.Repository. INSERT-only.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Append(ctx context.Context, e audit.Event) error {
	const q = `
INSERT INTO assignment_events (
  id, type, lead_id, from_worker_id, to_worker_id, actor_id, message, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.LeadID,
		e.FromWorkerID,
		e.ToWorkerID,
		e.ActorID,
		e.Message,
		e.CreatedAt,
	)
	return err
}

// ForLead returns the assignment history of a lead, oldest first.
func (r *AuditRepo) ForLead(ctx context.Context, leadID string) ([]audit.Event, error) {
	const q = `
SELECT id, type, lead_id, from_worker_id, to_worker_id, actor_id, message, created_at
FROM assignment_events
WHERE lead_id = $1
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.LeadID,
			&e.FromWorkerID,
			&e.ToWorkerID,
			&e.ActorID,
			&e.Message,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
