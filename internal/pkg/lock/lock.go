// Package lock provides per-user in-process locking. The ledger itself
// serializes balance mutations with database row locks; this lock exists
// at the submission layer to stop accidental duplicate withdrawal
// submissions from the same user (double-tap, double-POST) before they
// reach the ledger.
package lock

import (
	"sync"
)

// userMutex wraps a mutex with a holder/waiter count so idle entries
// can be evicted.
type userMutex struct {
	mu       sync.Mutex
	refCount int
}

// UserLock provides per-user locking.
type UserLock struct {
	mu    sync.Mutex
	locks map[int64]*userMutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{
		locks: make(map[int64]*userMutex),
	}
}

// acquire registers interest in a user's mutex, creating it on first use.
func (ul *UserLock) acquire(userID int64) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	lock, ok := ul.locks[userID]
	if !ok {
		lock = &userMutex{}
		ul.locks[userID] = lock
	}
	lock.refCount++
	return lock
}

// release drops one reference, evicting the entry once nobody holds or
// waits on it.
func (ul *UserLock) release(userID int64) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	lock, ok := ul.locks[userID]
	if !ok {
		return nil
	}
	lock.refCount--
	if lock.refCount == 0 {
		delete(ul.locks, userID)
	}
	return lock
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	lock := ul.acquire(userID)
	lock.mu.Lock()
}

// Unlock releases the lock for a user.
func (ul *UserLock) Unlock(userID int64) {
	if lock := ul.release(userID); lock != nil {
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (ul *UserLock) TryLock(userID int64) bool {
	lock := ul.acquire(userID)
	if lock.mu.TryLock() {
		return true
	}
	// Lost to the current holder; drop our reference.
	ul.release(userID)
	return false
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(userID int64, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}

// size reports the number of live entries. Test hook.
func (ul *UserLock) size() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.locks)
}
