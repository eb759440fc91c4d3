package coordination

import (
	"context"
	"errors"
)

// ErrLocked is returned by TryLock when another process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

// Locker guards a run so that only one process executes it at a time.
type Locker interface {
	// TryLock acquires the lock without waiting. It returns ErrLocked if
	// the lock is already held. The returned func releases it.
	TryLock(ctx context.Context) (unlock func(context.Context) error, err error)

	// Close terminates the coordinator connection.
	Close() error
}
