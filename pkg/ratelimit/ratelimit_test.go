// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWaitEnforcesInterval(t *testing.T) {
	l := New(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	elapsed := time.Since(start)

	// First call is immediate; the next two wait one interval each.
	if elapsed < 40*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 40ms", elapsed)
	}
}

func TestZeroIntervalNeverBlocks(t *testing.T) {
	l := New(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("zero-interval limiter blocked for %v", elapsed)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	l := New(time.Hour)
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestConcurrentWaitersAllProceed(t *testing.T) {
	l := New(time.Millisecond)
	var wg sync.WaitGroup
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Wait(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
	}
}
