package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Run results passed to OnResult.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Scheduler runs a task immediately and then every Interval. It implements
// suture.Service.
//
// At most one run is in flight: a tick that arrives while a run is still
// going is dropped, not queued. A failed run is retried once after
// RetryDelay; the retry never schedules another retry.
type Scheduler struct {
	Name       string
	Interval   time.Duration
	RetryDelay time.Duration // 0 disables the retry
	Run        func(ctx context.Context) error
	OnResult   func(result string)
	Logger     *zap.Logger

	running atomic.Bool
}

func (s *Scheduler) String() string { return "scheduler:" + s.Name }

func (s *Scheduler) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Scheduler) observe(result string) {
	if s.OnResult != nil {
		s.OnResult(result)
	}
}

// Serve blocks until ctx is done.
func (s *Scheduler) Serve(ctx context.Context) error {
	log := s.log().With(zap.String("job", s.Name))
	log.Info("scheduler started", zap.Duration("interval", s.Interval))

	retry := make(chan struct{}, 1)
	s.trigger(ctx, log, retry, true)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.trigger(ctx, log, retry, true)
		case <-retry:
			log.Info("retrying failed run")
			s.trigger(ctx, log, retry, false)
		}
	}
}

// trigger starts a run in the background unless one is in flight.
func (s *Scheduler) trigger(ctx context.Context, log *zap.Logger, retry chan<- struct{}, mayRetry bool) {
	if !s.running.CompareAndSwap(false, true) {
		log.Warn("run still in progress, skipping trigger")
		s.observe(ResultSkipped)
		return
	}

	go func() {
		started := time.Now()
		err := s.Run(ctx)
		s.running.Store(false)

		if err == nil {
			s.observe(ResultOK)
			log.Info("run finished", zap.Duration("took", time.Since(started)))
			return
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}

		s.observe(ResultFailed)
		log.Error("run failed", zap.Duration("took", time.Since(started)), zap.Error(err))
		if !mayRetry || s.RetryDelay <= 0 {
			return
		}

		t := time.NewTimer(s.RetryDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			select {
			case retry <- struct{}{}:
			default:
			}
		}
	}()
}

// RunOnce executes the task synchronously, for one-shot commands.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scheduler: run already in progress")
	}
	defer s.running.Store(false)

	err := s.Run(ctx)
	if err != nil {
		s.observe(ResultFailed)
		return err
	}
	s.observe(ResultOK)
	return nil
}
