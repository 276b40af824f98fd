package auth

import (
	"context"
	"errors"
)

// Identity is the verified caller of a request.
// UserID is a worker id; Role is that worker's role at token issuance.
type Identity struct {
	UserID string
	Role   string
}

type ctxKey struct{}

var ErrNoIdentity = errors.New("auth: identity not in context")

func WithIdentity(ctx context.Context, userID, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Identity{UserID: userID, Role: role})
}

// FromContext returns the identity stored by RequireAccessToken.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

func UserID(ctx context.Context) (string, error) {
	id, err := FromContext(ctx)
	return id.UserID, err
}

func Role(ctx context.Context) (string, error) {
	id, err := FromContext(ctx)
	if err == nil && id.Role == "" {
		err = ErrNoIdentity
	}
	return id.Role, err
}
