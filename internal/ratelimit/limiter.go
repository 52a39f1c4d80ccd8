// Package ratelimit provides the per-credential request limiter: a rolling
// window budget combined with a single in-flight request.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmehdipour/leadsync/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// ErrNotAcquired is returned when the caller's context ends before a permit
// is granted. The caller should move on to another credential.
var ErrNotAcquired = errors.New("ratelimit: permit not acquired")

// Limiter grants at most Capacity permits in any rolling Window and never
// more than one at a time. Waiters are served in submission order.
type Limiter struct {
	capacity int
	window   time.Duration

	inflight *semaphore.Weighted

	mu     sync.Mutex
	grants []time.Time // grant times inside the current window, oldest first
	busy   bool
}

// Stats is a point-in-time view of a limiter.
type Stats struct {
	InFlight  bool
	Used      int
	Remaining int
}

func New(capacity int, window time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		capacity: capacity,
		window:   window,
		inflight: semaphore.NewWeighted(1),
		grants:   make([]time.Time, 0, capacity),
	}
}

// Acquire blocks until a permit is available and returns its release func.
// release must be called exactly once when the request completes.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	if err := l.inflight.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAcquired, err)
	}

	for {
		wait := l.reserve(time.Now())
		if wait <= 0 {
			break
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			l.inflight.Release(1)
			return nil, fmt.Errorf("%w: %w", ErrNotAcquired, ctx.Err())
		case <-t.C:
		}
	}
	metrics.LimiterWaitSeconds.Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.busy = false
			l.mu.Unlock()
			l.inflight.Release(1)
		})
	}, nil
}

// Schedule runs fn under a permit. The permit is released when fn returns,
// whatever the outcome.
func (l *Limiter) Schedule(ctx context.Context, fn func(context.Context) error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// reserve records a grant at now when the window has room and returns zero,
// otherwise it returns how long until the oldest grant expires.
func (l *Limiter) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	if len(l.grants) < l.capacity {
		l.grants = append(l.grants, now)
		l.busy = true
		return 0
	}
	return l.grants[0].Add(l.window).Sub(now)
}

func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.grants) && !now.Before(l.grants[cut].Add(l.window)) {
		cut++
	}
	if cut > 0 {
		l.grants = append(l.grants[:0], l.grants[cut:]...)
	}
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(time.Now())
	return Stats{
		InFlight:  l.busy,
		Used:      len(l.grants),
		Remaining: l.capacity - len(l.grants),
	}
}
