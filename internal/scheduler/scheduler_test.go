package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type results struct {
	mu  sync.Mutex
	got []string
}

func (r *results) add(s string) {
	r.mu.Lock()
	r.got = append(r.got, s)
	r.mu.Unlock()
}

func (r *results) count(s string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, g := range r.got {
		if g == s {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerRunsImmediatelyAndOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := &Scheduler{
		Name:     "test",
		Interval: 20 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	waitFor(t, func() bool { return runs.Load() >= 3 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestSchedulerDropsOverlappingTriggers(t *testing.T) {
	var (
		inFlight, maxInFlight atomic.Int32
		res                   results
	)
	release := make(chan struct{})
	s := &Scheduler{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		OnResult: res.add,
		Run: func(ctx context.Context) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx) }()

	waitFor(t, func() bool { return res.count(ResultSkipped) >= 3 })
	close(release)
	waitFor(t, func() bool { return res.count(ResultOK) >= 1 })

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent runs = %d, want 1", got)
	}
}

func TestSchedulerRetriesFailedRunOnce(t *testing.T) {
	var (
		runs atomic.Int32
		res  results
	)
	s := &Scheduler{
		Name:       "flaky",
		Interval:   time.Hour,
		RetryDelay: 10 * time.Millisecond,
		OnResult:   res.add,
		Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("upstream down")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx) }()

	waitFor(t, func() bool { return runs.Load() >= 2 })
	time.Sleep(50 * time.Millisecond)

	if got := runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2 (initial + one retry)", got)
	}
	if got := res.count(ResultFailed); got != 2 {
		t.Errorf("failed results = %d, want 2", got)
	}
}

func TestRunOnce(t *testing.T) {
	var res results
	s := &Scheduler{Name: "once", OnResult: res.add, Run: func(context.Context) error { return nil }}
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	s.Run = func(context.Context) error { return boom }
	if err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Errorf("RunOnce() = %v, want boom", err)
	}
	if res.count(ResultOK) != 1 || res.count(ResultFailed) != 1 {
		t.Errorf("results = %v", res.got)
	}
}
