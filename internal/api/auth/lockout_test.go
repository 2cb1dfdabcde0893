package auth

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(threshold int, d time.Duration) (*LockoutTracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return newLockoutTracker(threshold, d, clock.now), clock
}

func TestLockoutTracker_Basic(t *testing.T) {
	tracker, _ := newTestTracker(3, time.Minute)

	if tracker.IsLocked("alice") {
		t.Error("should not be locked initially")
	}
	if tracker.RecordFailure("alice") || tracker.RecordFailure("alice") {
		t.Error("should not lock below threshold")
	}
	if !tracker.RecordFailure("alice") {
		t.Error("third failure should lock")
	}
	if !tracker.IsLocked("alice") {
		t.Error("should be locked")
	}
}

func TestLockoutTracker_CaseInsensitive(t *testing.T) {
	tracker, _ := newTestTracker(2, time.Minute)
	tracker.RecordFailure("Alice")
	tracker.RecordFailure(" alice ")
	if !tracker.IsLocked("ALICE") {
		t.Error("usernames should share one counter regardless of case")
	}
}

func TestLockoutTracker_Expires(t *testing.T) {
	tracker, clock := newTestTracker(2, time.Minute)
	tracker.RecordFailure("alice")
	tracker.RecordFailure("alice")

	clock.advance(30 * time.Second)
	if got := tracker.RemainingLockoutTime("alice"); got != 30*time.Second {
		t.Errorf("remaining = %v, want 30s", got)
	}

	clock.advance(31 * time.Second)
	if tracker.IsLocked("alice") {
		t.Error("lock should have expired")
	}
	if tracker.RecordFailure("alice") {
		t.Error("counter should restart after expiry")
	}
}

func TestLockoutTracker_ClearFailures(t *testing.T) {
	tracker, _ := newTestTracker(2, time.Hour)
	tracker.RecordFailure("alice")
	tracker.ClearFailures("alice")
	if tracker.RecordFailure("alice") {
		t.Error("cleared failures should not count")
	}
}

func TestLockoutTracker_IndependentUsers(t *testing.T) {
	tracker, _ := newTestTracker(1, time.Hour)
	tracker.RecordFailure("alice")
	if tracker.IsLocked("bob") {
		t.Error("bob should not be locked")
	}
}

func TestLockoutTracker_Cleanup(t *testing.T) {
	tracker, clock := newTestTracker(1, time.Minute)
	tracker.RecordFailure("alice")
	clock.advance(2 * time.Minute)
	tracker.cleanup()
	if len(tracker.entries) != 0 {
		t.Errorf("entries = %d, want 0", len(tracker.entries))
	}
}
