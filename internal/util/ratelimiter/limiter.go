package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// Limiter spaces actions at least one interval apart.
// It is safe for concurrent use; a zero interval never limits.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// New creates a new rate limiter with the specified interval
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
	}
}

// Wait blocks until the caller's reserved slot arrives or ctx is done.
// Concurrent callers are served one interval apart in arrival order.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return ctx.Err()
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
