package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"telecaller-platform/internal/leads"
)

// LeadRepo implements leads.Repository.
type LeadRepo struct {
	db  *sql.DB
	now clock
}

func NewLeadRepo(db *sql.DB) *LeadRepo {
	return &LeadRepo{db: db, now: time.Now}
}

const leadColumns = `
id, name, phone, email, status, priority, quality,
assigned_to, assigned_by, assigned_at, auto_assigned, reassignment_count,
last_contact_date, next_followup_date, followup_count, score, archived,
last_feedback_call_id, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(r rowScanner) (leads.Lead, error) {
	var l leads.Lead
	err := r.Scan(
		&l.ID,
		&l.Name,
		&l.Phone,
		&l.Email,
		&l.Status,
		&l.Priority,
		&l.Quality,
		&l.AssignedTo,
		&l.AssignedBy,
		&l.AssignedAt,
		&l.AutoAssigned,
		&l.ReassignmentCount,
		&l.LastContactDate,
		&l.NextFollowupDate,
		&l.FollowupCount,
		&l.Score,
		&l.Archived,
		&l.LastFeedbackCallID,
		&l.Version,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

func (r *LeadRepo) Get(ctx context.Context, id string) (leads.Lead, error) {
	q := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return leads.Lead{}, leads.ErrNotFound
		}
		return leads.Lead{}, err
	}
	return l, nil
}

// Create inserts a new lead at version 0.
func (r *LeadRepo) Create(ctx context.Context, l leads.Lead) (leads.Lead, error) {
	now := r.now().UTC()
	l.Version = 0
	l.CreatedAt, l.UpdatedAt = now, now
	const q = `
INSERT INTO leads (
  id, name, phone, email, status, priority, quality,
  assigned_to, assigned_by, assigned_at, auto_assigned, reassignment_count,
  last_contact_date, next_followup_date, followup_count, score, archived,
  last_feedback_call_id, version, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
)
`
	_, err := r.db.ExecContext(ctx, q,
		l.ID, l.Name, l.Phone, l.Email, l.Status, l.Priority, l.Quality,
		l.AssignedTo, l.AssignedBy, l.AssignedAt, l.AutoAssigned, l.ReassignmentCount,
		l.LastContactDate, l.NextFollowupDate, l.FollowupCount, l.Score, l.Archived,
		l.LastFeedbackCallID, l.Version, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return leads.Lead{}, err
	}
	return l, nil
}

// Update applies l only if the stored version still equals l.Version.
func (r *LeadRepo) Update(ctx context.Context, l leads.Lead) (leads.Lead, error) {
	const q = `
UPDATE leads SET
  name = $3, phone = $4, email = $5, status = $6, priority = $7, quality = $8,
  assigned_to = $9, assigned_by = $10, assigned_at = $11, auto_assigned = $12, reassignment_count = $13,
  last_contact_date = $14, next_followup_date = $15, followup_count = $16, score = $17, archived = $18,
  last_feedback_call_id = $19, version = version + 1, updated_at = $20
WHERE id = $1 AND version = $2
RETURNING version, updated_at
`
	err := r.db.QueryRowContext(ctx, q,
		l.ID, l.Version,
		l.Name, l.Phone, l.Email, l.Status, l.Priority, l.Quality,
		l.AssignedTo, l.AssignedBy, l.AssignedAt, l.AutoAssigned, l.ReassignmentCount,
		l.LastContactDate, l.NextFollowupDate, l.FollowupCount, l.Score, l.Archived,
		l.LastFeedbackCallID, r.now().UTC(),
	).Scan(&l.Version, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return leads.Lead{}, r.missOrConflict(ctx, l.ID)
	}
	if err != nil {
		return leads.Lead{}, err
	}
	return l, nil
}

func (r *LeadRepo) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return leads.ErrNotFound
	}
	return leads.ErrConflict
}

func (r *LeadRepo) CountPending(ctx context.Context, workerID string) (int, error) {
	statuses := make([]string, 0, len(leads.PendingStatuses))
	for _, s := range leads.PendingStatuses {
		statuses = append(statuses, string(s))
	}
	const q = `SELECT count(*) FROM leads WHERE assigned_to = $1 AND status = ANY($2::text[])`
	var n int
	if err := r.db.QueryRowContext(ctx, q, workerID, statuses).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListStale mirrors leads.StaleQuery.Matches, oldest assignment first.
func (r *LeadRepo) ListStale(ctx context.Context, sq leads.StaleQuery) ([]leads.Lead, error) {
	q := `SELECT ` + leadColumns + `
FROM leads
WHERE NOT archived
  AND assigned_to IS NOT NULL
  AND assigned_at IS NOT NULL
  AND status IN ('new', 'contacted')
  AND assigned_at < $1
  AND reassignment_count < $2
  AND (last_contact_date IS NULL OR last_contact_date < assigned_at)
ORDER BY assigned_at, id
LIMIT NULLIF($3::int, 0)
`
	rows, err := r.db.QueryContext(ctx, q, sq.AssignedBefore, sq.MaxReassignments, sq.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leads.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LeadRepo) ArchiveClosed(ctx context.Context, before time.Time) (int, error) {
	const q = `
UPDATE leads SET archived = TRUE, version = version + 1
WHERE NOT archived AND status IN ('converted', 'closed') AND updated_at < $1
`
	res, err := r.db.ExecContext(ctx, q, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
