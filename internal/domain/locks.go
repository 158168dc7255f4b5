package domain

import (
	"context"
	"sync"
	"time"
)

// UserLocks serialises progress writes per user without blocking other users.
// Entries are reference counted and dropped once unused.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

// NewUserLocks constructs an empty lock table.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*refLock)}
}

// Lock acquires the mutex for userID and returns its release function.
func (k *UserLocks) Lock(userID string) func() {
	k.mu.Lock()
	l, ok := k.locks[userID]
	if !ok {
		l = &refLock{}
		k.locks[userID] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, userID)
		}
		k.mu.Unlock()
	}
}

func (k *UserLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// commitBackoff waits before a version-conflict retry. The first maxCommitAttempts attempts run at once.
// It returns the context error when the caller gives up.
func commitBackoff(ctx context.Context, attempt int) error {
	if attempt <= maxCommitAttempts {
		return ctx.Err()
	}
	wait := time.Duration(attempt-maxCommitAttempts) * 10 * time.Millisecond
	if wait > maxCommitBackoff {
		wait = maxCommitBackoff
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
