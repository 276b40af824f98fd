package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"telecaller-platform/internal/workers"

	"github.com/jackc/pgx/v5/pgtype"
)

// WorkerRepo implements workers.Repository. Counters are updated with
// in-place increments so concurrent completions never lose writes.
type WorkerRepo struct {
	db    *sql.DB
	now   clock
	types *pgtype.Map
}

func NewWorkerRepo(db *sql.DB) *WorkerRepo {
	return &WorkerRepo{db: db, now: time.Now, types: pgtype.NewMap()}
}

const workerColumns = `
id, name, phone, role, is_active, current_status, last_active,
total_calls, successful_calls, total_leads, converted_leads,
period_calls, period_successful_calls, supervisor_id, team_members,
created_at, updated_at`

func (r *WorkerRepo) scan(s rowScanner) (workers.Worker, error) {
	var w workers.Worker
	err := s.Scan(
		&w.ID,
		&w.Name,
		&w.Phone,
		&w.Role,
		&w.IsActive,
		&w.CurrentStatus,
		&w.LastActive,
		&w.TotalCalls,
		&w.SuccessfulCalls,
		&w.TotalLeads,
		&w.ConvertedLeads,
		&w.PeriodCalls,
		&w.PeriodSuccessfulCalls,
		&w.SupervisorID,
		r.types.SQLScanner(&w.TeamMembers),
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	return w, err
}

func (r *WorkerRepo) Get(ctx context.Context, id string) (workers.Worker, error) {
	q := `SELECT ` + workerColumns + ` FROM workers WHERE id = $1`
	w, err := r.scan(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workers.Worker{}, workers.ErrNotFound
		}
		return workers.Worker{}, err
	}
	return w, nil
}

func (r *WorkerRepo) ListTelecallers(ctx context.Context) ([]workers.Worker, error) {
	q := `SELECT ` + workerColumns + ` FROM workers WHERE role = 'telecaller' AND is_active ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workers.Worker
	for rows.Next() {
		w, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *WorkerRepo) RecordCallOutcome(ctx context.Context, workerID string, successful bool) error {
	inc := 0
	if successful {
		inc = 1
	}
	const q = `
UPDATE workers SET
  total_calls = total_calls + 1,
  period_calls = period_calls + 1,
  successful_calls = successful_calls + $2,
  period_successful_calls = period_successful_calls + $2,
  updated_at = $3
WHERE id = $1
`
	return r.execOne(ctx, q, workerID, inc, r.now().UTC())
}

func (r *WorkerRepo) RecordAssignment(ctx context.Context, workerID string) error {
	const q = `UPDATE workers SET total_leads = total_leads + 1, updated_at = $2 WHERE id = $1`
	return r.execOne(ctx, q, workerID, r.now().UTC())
}

func (r *WorkerRepo) ResetPeriodCounters(ctx context.Context) (int, error) {
	const q = `
UPDATE workers SET period_calls = 0, period_successful_calls = 0, updated_at = $1
WHERE period_calls <> 0 OR period_successful_calls <> 0
`
	res, err := r.db.ExecContext(ctx, q, r.now().UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *WorkerRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return workers.ErrNotFound
	}
	return nil
}
