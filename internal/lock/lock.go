// Package lock serializes check-then-act sequences across instances.
package lock

import (
	"context"
	"errors"
)

// ErrBusy is returned when a lease could not be obtained before ctx ended.
var ErrBusy = errors.New("lock: key is held by another request")

// Locker grants exclusive leases on string keys.
type Locker interface {
	// Acquire blocks until key is leased or ctx is done. release is
	// idempotent and must always be called.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Noop grants every lease immediately. It keeps the default best-effort
// behaviour where concurrent creators may both pass a uniqueness check.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
