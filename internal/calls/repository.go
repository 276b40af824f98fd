package calls

import "context"

// Repository is the persistence contract for calls.
//
// Update must apply only when the stored Version equals c.Version and return
// ErrConflict otherwise. Create and Update return ErrDuplicateProviderID when
// the provider call id is already bound to a different call.
type Repository interface {
	Create(ctx context.Context, c Call) (Call, error)
	Get(ctx context.Context, id string) (Call, error)
	GetByProviderID(ctx context.Context, providerCallID string) (Call, error)
	Update(ctx context.Context, c Call) (Call, error)
}
