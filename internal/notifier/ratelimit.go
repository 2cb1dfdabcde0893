package notifier

import (
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter bounds how many dispatches may happen per window.
type RateLimiter struct {
	limiter      *rate.Limiter
	maxPerWindow int
	window       time.Duration
	enabled      bool
	dropped      atomic.Int64
}

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	MaxPerWindow int           // Maximum notifications per window (default: 10)
	Window       time.Duration // Time window (default: 1 minute)
	Enabled      bool          // Whether rate limiting is enabled (default: true)
}

// DefaultRateLimitConfig returns default rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxPerWindow: 10,
		Window:       time.Minute,
		Enabled:      true,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.MaxPerWindow <= 0 {
		config.MaxPerWindow = 10
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	every := config.Window / time.Duration(config.MaxPerWindow)
	return &RateLimiter{
		limiter:      rate.NewLimiter(rate.Every(every), config.MaxPerWindow),
		maxPerWindow: config.MaxPerWindow,
		window:       config.Window,
		enabled:      config.Enabled,
	}
}

// Allow reports whether a notification may be sent now.
func (r *RateLimiter) Allow() bool {
	_, ok := r.Reserve()
	return ok
}

// Reserve takes a token. The returned reservation can be cancelled to refund
// it; it is nil when limiting is disabled.
func (r *RateLimiter) Reserve() (*Reservation, bool) {
	if !r.enabled {
		return nil, true
	}
	now := time.Now()
	res := r.limiter.ReserveN(now, 1)
	if !res.OK() || res.DelayFrom(now) > 0 {
		res.CancelAt(now)
		r.dropped.Add(1)
		return nil, false
	}
	return &Reservation{res: res}, true
}

// Dropped returns the number of notifications dropped due to rate limiting.
func (r *RateLimiter) Dropped() int64 {
	return r.dropped.Load()
}

// Stats returns rate limiter statistics.
func (r *RateLimiter) Stats() RateLimitStats {
	used := 0
	if r.enabled {
		used = r.maxPerWindow - int(math.Floor(r.limiter.Tokens()))
		if used < 0 {
			used = 0
		}
	}
	return RateLimitStats{
		Dropped:      r.dropped.Load(),
		CurrentCount: used,
		MaxPerWindow: r.maxPerWindow,
		Window:       r.window,
		Enabled:      r.enabled,
	}
}

// Reservation is a consumed rate-limit token.
type Reservation struct {
	res *rate.Reservation
}

// Cancel refunds the token. Safe on a nil reservation.
func (r *Reservation) Cancel() {
	if r == nil {
		return
	}
	r.res.Cancel()
}

// RateLimitStats contains rate limiter statistics.
type RateLimitStats struct {
	Dropped      int64         // Total notifications dropped
	CurrentCount int           // Tokens in use
	MaxPerWindow int           // Maximum allowed per window
	Window       time.Duration // Window duration
	Enabled      bool          // Whether rate limiting is enabled
}
