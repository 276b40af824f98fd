package workers

import (
	"context"
	"fmt"
)

// PendingCounter reports a worker's open workload from the lead store.
type PendingCounter interface {
	CountPending(ctx context.Context, workerID string) (int, error)
}

// Candidate is an eligible worker together with its live pending-lead count.
type Candidate struct {
	Worker       Worker
	PendingLeads int
}

// Directory is the read model the assignment engine selects from.
// Pending counts are read at call time, never cached.
type Directory struct {
	Workers Repository
	Pending PendingCounter
}

func NewDirectory(workers Repository, pending PendingCounter) *Directory {
	return &Directory{Workers: workers, Pending: pending}
}

// Eligible lists eligible workers in stable (ID) order, skipping exclude.
func (d *Directory) Eligible(ctx context.Context, exclude string) ([]Candidate, error) {
	ws, err := d.Workers.ListTelecallers(ctx)
	if err != nil {
		return nil, fmt.Errorf("workers: list telecallers: %w", err)
	}
	out := make([]Candidate, 0, len(ws))
	for _, w := range ws {
		if !w.Eligible() || (exclude != "" && w.ID == exclude) {
			continue
		}
		n, err := d.Pending.CountPending(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("workers: count pending for %s: %w", w.ID, err)
		}
		out = append(out, Candidate{Worker: w, PendingLeads: n})
	}
	return out, nil
}
