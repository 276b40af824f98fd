package workers

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	workers map[string]Worker
}

func NewMemoryRepo(ws ...Worker) *MemoryRepo {
	r := &MemoryRepo{workers: map[string]Worker{}}
	for _, w := range ws {
		r.workers[w.ID] = w
	}
	return r
}

func (r *MemoryRepo) Put(w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.ID] = w
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return Worker{}, ErrNotFound
	}
	return w, nil
}

func (r *MemoryRepo) ListTelecallers(ctx context.Context) ([]Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Worker, 0, len(r.workers))
	for _, w := range r.workers {
		if w.IsTelecaller() {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) RecordCallOutcome(ctx context.Context, workerID string, successful bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return ErrNotFound
	}
	w.TotalCalls++
	w.PeriodCalls++
	if successful {
		w.SuccessfulCalls++
		w.PeriodSuccessfulCalls++
	}
	r.workers[workerID] = w
	return nil
}

func (r *MemoryRepo) RecordAssignment(ctx context.Context, workerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return ErrNotFound
	}
	w.TotalLeads++
	r.workers[workerID] = w
	return nil
}

func (r *MemoryRepo) ResetPeriodCounters(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, w := range r.workers {
		if w.PeriodCalls == 0 && w.PeriodSuccessfulCalls == 0 {
			continue
		}
		w.PeriodCalls = 0
		w.PeriodSuccessfulCalls = 0
		r.workers[id] = w
		n++
	}
	return n, nil
}
