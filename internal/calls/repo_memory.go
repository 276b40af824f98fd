package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
type MemoryRepo struct {
	mu         sync.Mutex
	calls      map[string]Call
	byProvider map[string]string
	clock      func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: map[string]Call{}, byProvider: map[string]string{}, clock: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ProviderCallID != "" {
		if _, ok := r.byProvider[c.ProviderCallID]; ok {
			return Call{}, ErrDuplicateProviderID
		}
		r.byProvider[c.ProviderCallID] = c.ID
	}
	now := r.clock().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.calls[c.ID] = clone(c)
	return clone(c), nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return clone(c), nil
}

func (r *MemoryRepo) GetByProviderID(ctx context.Context, providerCallID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byProvider[providerCallID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return clone(r.calls[id]), nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.calls[c.ID]
	if !ok {
		return Call{}, ErrNotFound
	}
	if cur.Version != c.Version {
		return Call{}, ErrConflict
	}
	if c.ProviderCallID != cur.ProviderCallID && c.ProviderCallID != "" {
		if owner, ok := r.byProvider[c.ProviderCallID]; ok && owner != c.ID {
			return Call{}, ErrDuplicateProviderID
		}
		r.byProvider[c.ProviderCallID] = c.ID
	}
	c.Version++
	c.UpdatedAt = r.clock().UTC()
	r.calls[c.ID] = clone(c)
	return clone(c), nil
}

func clone(c Call) Call {
	if c.EndTime != nil {
		v := *c.EndTime
		c.EndTime = &v
	}
	if c.NextFollowupDate != nil {
		v := *c.NextFollowupDate
		c.NextFollowupDate = &v
	}
	return c
}
