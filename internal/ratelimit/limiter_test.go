package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterWindowBudget(t *testing.T) {
	const (
		capacity = 3
		window   = 150 * time.Millisecond
	)
	l := New(capacity, window)

	var granted []time.Time
	for i := 0; i < 2*capacity; i++ {
		release, err := l.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
		granted = append(granted, time.Now())
		release()
	}

	for i := capacity; i < len(granted); i++ {
		// grants are stamped just before Acquire returns, allow for that skew
		if gap := granted[i].Sub(granted[i-capacity]); gap < window-5*time.Millisecond {
			t.Errorf("grants %d and %d are %v apart, want >= %v", i-capacity, i, gap, window)
		}
	}
}

func TestLimiterDoesNotRefillInsideWindow(t *testing.T) {
	const capacity = 4
	l := New(capacity, 400*time.Millisecond)

	for i := 0; i < capacity; i++ {
		release, err := l.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
		release()
	}

	// A token bucket refilling at capacity/window would have a permit again
	// after 100ms. The rolling window stays full until the first grant ages out.
	time.Sleep(150 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("Acquire() error = %v, want ErrNotAcquired before the window rolls", err)
	}
}

func TestLimiterSingleInFlight(t *testing.T) {
	l := New(100, time.Minute)

	var (
		current atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Schedule(context.Background(), func(context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				current.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("Schedule() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got != 1 {
		t.Errorf("peak concurrency = %d, want 1", got)
	}
}

func TestLimiterContextEndsWhileWindowFull(t *testing.T) {
	l := New(1, time.Hour)

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx)
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("Acquire() error = %v, want ErrNotAcquired", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want it to wrap the context error", err)
	}
}

func TestLimiterWaitsForInFlightRequest(t *testing.T) {
	l := New(10, time.Minute)

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("Acquire() while busy error = %v, want ErrNotAcquired", err)
	}

	release()
	release() // second call is a no-op

	next, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	next()
}

func TestScheduleReleasesOnFailure(t *testing.T) {
	l := New(10, time.Minute)
	boom := errors.New("boom")

	if err := l.Schedule(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Schedule() error = %v, want boom", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Schedule(ctx, func(context.Context) error { return nil }); err != nil {
		t.Errorf("Schedule() after failure error = %v, want nil", err)
	}
}

func TestLimiterStats(t *testing.T) {
	l := New(5, time.Minute)

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	st := l.Stats()
	if !st.InFlight || st.Used != 1 || st.Remaining != 4 {
		t.Errorf("Stats() during request = %+v, want in-flight 1/4", st)
	}

	release()
	if st := l.Stats(); st.InFlight {
		t.Errorf("Stats().InFlight = true after release")
	}
}
