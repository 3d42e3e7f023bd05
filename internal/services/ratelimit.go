package services

import (
	"sync"
	"time"
)

// RateLimiter gates abuse-prone operations (booking creation, OTP
// resend). Injected so a distributed backend can replace the in-memory
// window without touching call sites.
type RateLimiter interface {
	Allow(key string) bool
}

type windowCount struct {
	windowStart time.Time
	count       int
}

// FixedWindowLimiter allows up to limit calls per key per window.
type FixedWindowLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string]*windowCount
	now      func() time.Time
}

func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string]*windowCount),
		now:      time.Now,
	}
}

func (l *FixedWindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowStart) >= l.window {
		l.counters[key] = &windowCount{windowStart: now, count: 1}
		return true
	}
	if c.count >= l.limit {
		return false
	}
	c.count++
	return true
}

// SetClock overrides the time source, for tests.
func (l *FixedWindowLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// UnlimitedLimiter never rejects. Used where no limiter is configured.
type UnlimitedLimiter struct{}

func (UnlimitedLimiter) Allow(string) bool { return true }
