// Package ratelimit paces outgoing calls to the upstream API.
package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"
)

// Limiter admits calls, blocking when the configured rate is exhausted.
// Limiters are advisory: they never reject a call, only delay it.
type Limiter interface {
	// Wait blocks until the next call may proceed or ctx ends.
	Wait(ctx context.Context) error
}

// Window limits calls to maxCalls per trailing period using recorded call
// timestamps. When the window is full, Wait sleeps until the oldest recorded
// call falls out of the window and then restarts the window from the release
// instant instead of continuing to slide.
type Window struct {
	mu       sync.Mutex
	maxCalls int
	period   time.Duration
	calls    []time.Time

	now   func() time.Time                                // swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error // swapped out in tests
}

var _ Limiter = (*Window)(nil)

// NewWindow creates a limiter admitting maxCalls per period.
func NewWindow(maxCalls int, period time.Duration) *Window {
	return &Window{
		maxCalls: maxCalls,
		period:   period,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until admitting one more call keeps the trailing window within
// maxCalls, then records the call. The lock is never held across the sleep.
func (w *Window) Wait(ctx context.Context) error {
	w.mu.Lock()
	now := w.now()

	kept := w.calls[:0]
	for _, t := range w.calls {
		if now.Sub(t) < w.period {
			kept = append(kept, t)
		}
	}
	w.calls = kept

	var wait time.Duration
	if len(w.calls) >= w.maxCalls {
		wait = w.period - now.Sub(w.calls[0])
	}
	if wait <= 0 {
		w.calls = append(w.calls, now)
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	log.Printf("ratelimit: window full, sleeping %v", wait)
	if err := w.sleep(ctx, wait); err != nil {
		return err
	}

	w.mu.Lock()
	w.calls = append(w.calls[:0], w.now())
	w.mu.Unlock()
	return nil
}

// sleepContext pauses for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
