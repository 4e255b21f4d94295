// Package lock provides per-user locking for wallet operations.
package lock

import (
	"context"
	"sync"
)

// userMutex is a per-user mutex with a count of goroutines holding or waiting on it.
type userMutex struct {
	mu   sync.Mutex
	refs int
}

// UserLock serializes operations per user ID. Entries are removed once no
// goroutine holds or waits on them, so the map only grows with concurrency.
type UserLock struct {
	guard sync.Mutex
	locks map[int64]*userMutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{locks: make(map[int64]*userMutex)}
}

func (ul *UserLock) acquire(userID int64) *userMutex {
	ul.guard.Lock()
	defer ul.guard.Unlock()
	m, ok := ul.locks[userID]
	if !ok {
		m = &userMutex{}
		ul.locks[userID] = m
	}
	m.refs++
	return m
}

func (ul *UserLock) release(userID int64, m *userMutex) {
	ul.guard.Lock()
	defer ul.guard.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(ul.locks, userID)
	}
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	ul.acquire(userID).mu.Lock()
}

// Unlock releases the lock for a user. It must pair with a successful Lock or TryLock.
func (ul *UserLock) Unlock(userID int64) {
	ul.guard.Lock()
	m, ok := ul.locks[userID]
	ul.guard.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	ul.release(userID, m)
}

// TryLock attempts to acquire the lock without blocking.
func (ul *UserLock) TryLock(userID int64) bool {
	m := ul.acquire(userID)
	if m.mu.TryLock() {
		return true
	}
	ul.release(userID, m)
	return false
}

// LockContext acquires the lock or gives up when ctx is done.
func (ul *UserLock) LockContext(ctx context.Context, userID int64) error {
	m := ul.acquire(userID)

	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The waiter still acquires eventually; hand the mutex straight back.
		go func() {
			<-done
			m.mu.Unlock()
			ul.release(userID, m)
		}()
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(userID int64, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}

// WithLockContext executes fn while holding the user's lock, giving up if ctx ends first.
func (ul *UserLock) WithLockContext(ctx context.Context, userID int64, fn func() error) error {
	if err := ul.LockContext(ctx, userID); err != nil {
		return err
	}
	defer ul.Unlock(userID)
	return fn()
}

// Len returns the number of users with an active or pending lock.
func (ul *UserLock) Len() int {
	ul.guard.Lock()
	defer ul.guard.Unlock()
	return len(ul.locks)
}
