package stripe

import (
	"strings"
	"sync"
)

// emailLock is the mutex of one email and the number of callers holding or
// waiting for it.
type emailLock struct {
	sync.Mutex
	refs int
}

// LockManager manages per-customer-email locks so two checkouts for the same
// email never run the list-then-create customer sequence at the same time,
// while checkouts for different emails proceed in parallel. An entry lives
// as long as someone holds or waits for it, so the map never grows with the
// number of customers served.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*emailLock
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*emailLock)}
}

// LockEmail acquires the lock of the given email, compared case-insensitively.
// Returns a function that must be called to release the lock. Calling it
// more than once is a no-op.
func (lm *LockManager) LockEmail(email string) func() {
	key := strings.ToLower(strings.TrimSpace(email))
	lm.mu.Lock()
	lock, ok := lm.locks[key]
	if !ok {
		lock = &emailLock{}
		lm.locks[key] = lock
	}
	lock.refs++
	lm.mu.Unlock()

	lock.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			lock.Unlock()
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if lock.refs--; lock.refs == 0 {
				delete(lm.locks, key)
			}
		})
	}
}

// size returns the number of tracked locks.
func (lm *LockManager) size() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
