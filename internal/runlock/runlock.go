// Package runlock serializes tagging runs across tagarr processes with an
// advisory file lock.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("another tagarr run holds the lock")

const defaultRetryDelay = 500 * time.Millisecond

// Lock is a named lock file. Each Acquire opens its own descriptor, so two
// acquisitions in one process also exclude each other.
type Lock struct {
	path       string
	retryDelay time.Duration
}

// New creates a lock backed by path.
func New(path string) *Lock {
	return &Lock{path: path, retryDelay: defaultRetryDelay}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock. With wait it polls until the lock is free or ctx
// ends; otherwise it fails immediately with ErrLocked.
func (l *Lock) Acquire(ctx context.Context, wait bool) (func(), error) {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
	}

	fl := flock.New(l.path)

	var (
		ok  bool
		err error
	)
	if wait {
		ok, err = fl.TryLockContext(ctx, l.retryDelay)
	} else {
		ok, err = fl.TryLock()
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, l.path)
	}

	return func() { _ = fl.Unlock() }, nil
}
