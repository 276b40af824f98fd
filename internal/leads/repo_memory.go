package leads

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu    sync.Mutex
	leads map[string]Lead
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{leads: map[string]Lead{}, clock: time.Now}
}

// Put inserts or replaces a lead as-is.
func (r *MemoryRepo) Put(l Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[l.ID] = clone(l)
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return clone(l), nil
}

func (r *MemoryRepo) Update(ctx context.Context, l Lead) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.leads[l.ID]
	if !ok {
		return Lead{}, ErrNotFound
	}
	if cur.Version != l.Version {
		return Lead{}, ErrConflict
	}
	l.Version++
	l.UpdatedAt = r.clock().UTC()
	r.leads[l.ID] = clone(l)
	return clone(l), nil
}

func (r *MemoryRepo) CountPending(ctx context.Context, workerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.leads {
		if l.IsAssignedTo(workerID) && l.Status.IsPending() {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) ListStale(ctx context.Context, q StaleQuery) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Lead
	for _, l := range r.leads {
		if q.Matches(l) {
			out = append(out, clone(l))
		}
	}
	// oldest assignment first, like the SQL store
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssignedAt.Equal(*out[j].AssignedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AssignedAt.Before(*out[j].AssignedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) ArchiveClosed(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, l := range r.leads {
		if l.Archived || !l.Status.IsTerminal() || !l.UpdatedAt.Before(before) {
			continue
		}
		l.Archived = true
		l.Version++
		r.leads[id] = l
		n++
	}
	return n, nil
}

func clone(l Lead) Lead {
	l.AssignedTo = cloneString(l.AssignedTo)
	l.AssignedAt = cloneTime(l.AssignedAt)
	l.LastContactDate = cloneTime(l.LastContactDate)
	l.NextFollowupDate = cloneTime(l.NextFollowupDate)
	return l
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
