package leads

import (
	"context"
	"time"
)

// Repository is the persistence contract for leads.
//
// Update must apply only when the stored Version equals l.Version and must
// return ErrConflict otherwise. On success the stored version is incremented.
type Repository interface {
	Get(ctx context.Context, id string) (Lead, error)
	Update(ctx context.Context, l Lead) (Lead, error)

	// CountPending returns the number of leads assigned to workerID whose status is pending.
	CountPending(ctx context.Context, workerID string) (int, error)

	ListStale(ctx context.Context, q StaleQuery) ([]Lead, error)

	// ArchiveClosed flags converted/closed leads last updated before the cutoff.
	ArchiveClosed(ctx context.Context, before time.Time) (int, error)
}
