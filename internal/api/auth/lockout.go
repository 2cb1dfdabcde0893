package auth

import (
	"strings"
	"sync"
	"time"
)

type lockoutEntry struct {
	failures  int
	expiresAt time.Time
}

// LockoutTracker counts failed logins per username and locks the account
// for a fixed duration once the threshold is reached. State is in memory.
type LockoutTracker struct {
	mu        sync.Mutex
	entries   map[string]*lockoutEntry
	threshold int
	duration  time.Duration
	now       func() time.Time
}

// NewLockoutTracker creates a tracker and starts its cleanup loop.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	t := newLockoutTracker(threshold, duration, time.Now)
	go t.cleanupLoop()
	return t
}

func newLockoutTracker(threshold int, duration time.Duration, now func() time.Time) *LockoutTracker {
	if threshold <= 0 {
		threshold = 5
	}
	return &LockoutTracker{
		entries:   make(map[string]*lockoutEntry),
		threshold: threshold,
		duration:  duration,
		now:       now,
	}
}

func lockoutKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// RecordFailure records a failed attempt and reports whether the account is
// now locked.
func (t *LockoutTracker) RecordFailure(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	key := lockoutKey(username)
	e, ok := t.entries[key]
	if !ok {
		e = &lockoutEntry{}
		t.entries[key] = e
	}
	if !e.expiresAt.IsZero() {
		if now.Before(e.expiresAt) {
			return true
		}
		*e = lockoutEntry{}
	}

	e.failures++
	if e.failures >= t.threshold {
		e.expiresAt = now.Add(t.duration)
		return true
	}
	return false
}

// IsLocked reports whether the account is locked.
func (t *LockoutTracker) IsLocked(username string) bool {
	return t.RemainingLockoutTime(username) > 0
}

// RemainingLockoutTime returns how long the lock lasts, zero when unlocked.
func (t *LockoutTracker) RemainingLockoutTime(username string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[lockoutKey(username)]
	if !ok || e.expiresAt.IsZero() {
		return 0
	}
	if remaining := e.expiresAt.Sub(t.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// ClearFailures forgets the failures of username.
func (t *LockoutTracker) ClearFailures(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, lockoutKey(username))
}

func (t *LockoutTracker) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		t.cleanup()
	}
}

// cleanup drops expired locks.
func (t *LockoutTracker) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, e := range t.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(t.entries, key)
		}
	}
}
