package notifier

import (
	"sync"
	"testing"
	"time"
)

func TestRateLimiterBasic(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 3, Window: time.Hour, Enabled: true})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow() {
		t.Error("4th request should be denied")
	}
	if dropped := rl.Dropped(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 2, Window: 100 * time.Millisecond, Enabled: true})

	rl.Allow()
	rl.Allow()
	if rl.Allow() {
		t.Error("should be denied before tokens refill")
	}

	time.Sleep(150 * time.Millisecond)

	if !rl.Allow() {
		t.Error("should be allowed after the window passes")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 1, Window: time.Hour, Enabled: false})

	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Errorf("request %d should be allowed when disabled", i+1)
		}
	}
	if dropped := rl.Dropped(); dropped != 0 {
		t.Errorf("dropped = %d, want 0 when disabled", dropped)
	}
	if stats := rl.Stats(); stats.CurrentCount != 0 || stats.Enabled {
		t.Errorf("unexpected stats when disabled: %+v", stats)
	}
}

func TestRateLimiterStats(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 5, Window: time.Hour, Enabled: true})

	rl.Allow()
	rl.Allow()
	rl.Allow()

	stats := rl.Stats()
	if stats.CurrentCount != 3 {
		t.Errorf("current count = %d, want 3", stats.CurrentCount)
	}
	if stats.MaxPerWindow != 5 {
		t.Errorf("max per window = %d, want 5", stats.MaxPerWindow)
	}
	if stats.Window != time.Hour {
		t.Errorf("window = %v, want 1h", stats.Window)
	}
	if !stats.Enabled {
		t.Error("should be enabled")
	}
	if stats.Dropped != 0 {
		t.Errorf("dropped = %d, want 0", stats.Dropped)
	}
}

func TestRateLimiterReservationCancel(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 2, Window: time.Hour, Enabled: true})

	res, ok := rl.Reserve()
	if !ok {
		t.Fatal("first reservation should succeed")
	}
	if got := rl.Stats().CurrentCount; got != 1 {
		t.Errorf("current count = %d, want 1", got)
	}

	res.Cancel()
	if got := rl.Stats().CurrentCount; got != 0 {
		t.Errorf("current count after cancel = %d, want 0", got)
	}

	if !rl.Allow() || !rl.Allow() {
		t.Error("both tokens should be available after cancel")
	}
	if rl.Allow() {
		t.Error("should deny when at max")
	}

	var nilRes *Reservation
	nilRes.Cancel()
}

func TestDefaultRateLimitConfig(t *testing.T) {
	config := DefaultRateLimitConfig()
	if config.MaxPerWindow != 10 {
		t.Errorf("default max = %d, want 10", config.MaxPerWindow)
	}
	if config.Window != time.Minute {
		t.Errorf("default window = %v, want 1m", config.Window)
	}
	if !config.Enabled {
		t.Error("should be enabled by default")
	}
}

func TestNewRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Enabled: true})

	stats := rl.Stats()
	if stats.MaxPerWindow != 10 {
		t.Errorf("should default to 10, got %d", stats.MaxPerWindow)
	}
	if stats.Window != time.Minute {
		t.Errorf("should default to 1m, got %v", stats.Window)
	}
}

func TestRateLimiterConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 100, Window: time.Hour, Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rl.Allow()
			}
		}()
	}
	wg.Wait()

	stats := rl.Stats()
	if stats.CurrentCount != 100 {
		t.Errorf("current count = %d, want 100", stats.CurrentCount)
	}
	if stats.Dropped != 100 {
		t.Errorf("dropped = %d, want 100", stats.Dropped)
	}
}
