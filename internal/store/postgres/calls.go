package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"telecaller-platform/internal/calls"
)

const providerCallIDKey = "calls_provider_call_id_key"

// CallRepo implements calls.Repository.
type CallRepo struct {
	db  *sql.DB
	now clock
}

func NewCallRepo(db *sql.DB) *CallRepo {
	return &CallRepo{db: db, now: time.Now}
}

const callColumns = `
id, telecaller_id, lead_id, COALESCE(provider_call_id, ''), call_type,
status, start_time, end_time, duration, outcome, recording_url, recording_duration,
lead_status_before, lead_status_after, next_followup_date, notes,
is_successful, feedback_applied, failure_reason, version, created_at, updated_at`

func scanCall(s rowScanner) (calls.Call, error) {
	var c calls.Call
	err := s.Scan(
		&c.ID,
		&c.TelecallerID,
		&c.LeadID,
		&c.ProviderCallID,
		&c.CallType,
		&c.Status,
		&c.StartTime,
		&c.EndTime,
		&c.Duration,
		&c.Outcome,
		&c.RecordingURL,
		&c.RecordingDuration,
		&c.LeadStatusBefore,
		&c.LeadStatusAfter,
		&c.NextFollowupDate,
		&c.Notes,
		&c.IsSuccessful,
		&c.FeedbackApplied,
		&c.FailureReason,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *CallRepo) Create(ctx context.Context, c calls.Call) (calls.Call, error) {
	now := r.now().UTC()
	c.Version = 0
	c.CreatedAt, c.UpdatedAt = now, now
	const q = `
INSERT INTO calls (
  id, telecaller_id, lead_id, provider_call_id, call_type,
  status, start_time, end_time, duration, outcome, recording_url, recording_duration,
  lead_status_before, lead_status_after, next_followup_date, notes,
  is_successful, feedback_applied, failure_reason, version, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.TelecallerID, c.LeadID, nullIfEmpty(c.ProviderCallID), c.CallType,
		c.Status, c.StartTime, c.EndTime, c.Duration, c.Outcome, c.RecordingURL, c.RecordingDuration,
		c.LeadStatusBefore, c.LeadStatusAfter, c.NextFollowupDate, c.Notes,
		c.IsSuccessful, c.FeedbackApplied, c.FailureReason, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err, providerCallIDKey) {
		return calls.Call{}, calls.ErrDuplicateProviderID
	}
	if err != nil {
		return calls.Call{}, err
	}
	return c, nil
}

func (r *CallRepo) Get(ctx context.Context, id string) (calls.Call, error) {
	return r.getBy(ctx, `id = $1`, id)
}

func (r *CallRepo) GetByProviderID(ctx context.Context, providerCallID string) (calls.Call, error) {
	if providerCallID == "" {
		return calls.Call{}, calls.ErrNotFound
	}
	return r.getBy(ctx, `provider_call_id = $1`, providerCallID)
}

func (r *CallRepo) getBy(ctx context.Context, where string, arg string) (calls.Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE ` + where
	c, err := scanCall(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calls.Call{}, calls.ErrNotFound
		}
		return calls.Call{}, err
	}
	return c, nil
}

// Update applies c only if the stored version still equals c.Version.
func (r *CallRepo) Update(ctx context.Context, c calls.Call) (calls.Call, error) {
	const q = `
UPDATE calls SET
  provider_call_id = $3, call_type = $4, status = $5, start_time = $6, end_time = $7,
  duration = $8, outcome = $9, recording_url = $10, recording_duration = $11,
  lead_status_before = $12, lead_status_after = $13, next_followup_date = $14, notes = $15,
  is_successful = $16, feedback_applied = $17, failure_reason = $18,
  version = version + 1, updated_at = $19
WHERE id = $1 AND version = $2
RETURNING version, updated_at
`
	err := r.db.QueryRowContext(ctx, q,
		c.ID, c.Version,
		nullIfEmpty(c.ProviderCallID), c.CallType, c.Status, c.StartTime, c.EndTime,
		c.Duration, c.Outcome, c.RecordingURL, c.RecordingDuration,
		c.LeadStatusBefore, c.LeadStatusAfter, c.NextFollowupDate, c.Notes,
		c.IsSuccessful, c.FeedbackApplied, c.FailureReason,
		r.now().UTC(),
	).Scan(&c.Version, &c.UpdatedAt)
	switch {
	case isUniqueViolation(err, providerCallIDKey):
		return calls.Call{}, calls.ErrDuplicateProviderID
	case errors.Is(err, sql.ErrNoRows):
		return calls.Call{}, r.missOrConflict(ctx, c.ID)
	case err != nil:
		return calls.Call{}, err
	}
	return c, nil
}

func (r *CallRepo) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM calls WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return calls.ErrNotFound
	}
	return calls.ErrConflict
}
