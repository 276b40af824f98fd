package workers

import "context"

// Repository is the persistence contract for workers.
//
// Counter mutations must be atomic increments so concurrent call completions
// never lose updates.
type Repository interface {
	Get(ctx context.Context, id string) (Worker, error)

	// ListTelecallers returns active telecallers ordered by ID.
	ListTelecallers(ctx context.Context) ([]Worker, error)

	// RecordCallOutcome counts a call that reached a terminal state.
	RecordCallOutcome(ctx context.Context, workerID string, successful bool) error
	RecordAssignment(ctx context.Context, workerID string) error

	// ResetPeriodCounters zeroes per-period counters for all workers.
	ResetPeriodCounters(ctx context.Context) (int, error)
}
