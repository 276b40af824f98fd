package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository useful for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ForLead returns the history of a single lead in append order.
func (r *MemoryRepo) ForLead(ctx context.Context, leadID string) ([]Event, error) {
	var out []Event
	for _, e := range r.Events() {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out, nil
}
