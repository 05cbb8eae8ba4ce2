// Package auth verifies bearer tokens and carries the caller's identity
// through the request context.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned by verifiers for any token they reject.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller.
type Identity struct {
	UID string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by the middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UID != ""
}

// UserID returns the caller's uid or "".
func UserID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.UID
}
