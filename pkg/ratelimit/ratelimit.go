// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit spaces successive outbound calls to stay inside a
// provider's request-rate allowance.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between operations. It is safe for
// concurrent use; concurrent waiters are serialized in arrival order by
// the internal lock.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// New returns a limiter enforcing the given minimum interval between
// calls. An interval <= 0 yields a limiter that never blocks.
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Wait blocks until at least the configured interval has passed since the
// previous permitted operation, or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	next := l.last.Add(l.interval)
	if next.Before(now) {
		next = now
	}
	l.last = next
	l.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
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
