// Package scheduler fires a job on a fixed interval and on demand.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Trigger is a job the scheduler can fire. The result is handed to the
// scheduler's OnResult hook when one is set.
type Trigger[T any] interface {
	Run(ctx context.Context) T
}

// Scheduler runs a Trigger every interval until stopped. Fires never
// overlap within one scheduler; ticks that arrive during a fire are dropped.
type Scheduler[T any] struct {
	trigger  Trigger[T]
	interval time.Duration
	log      *zap.Logger

	// RunOnStart fires once as soon as the scheduler starts.
	RunOnStart bool

	// OnResult, when set, receives every fire's result.
	OnResult func(T)

	triggerCh chan struct{}
	stopCh    chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// New creates a Scheduler. It does nothing until Start is called.
func New[T any](trigger Trigger[T], interval time.Duration, log *zap.Logger) *Scheduler[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler[T]{
		trigger:   trigger,
		interval:  interval,
		log:       log,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the scheduling loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler[T]) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the loop, cancels an in-flight fire, and waits for it to return.
func (s *Scheduler[T]) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// RunNow asks the loop to fire as soon as it is free. Requests made while
// one is already pending are coalesced.
func (s *Scheduler[T]) RunNow() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
		// A fire is already pending.
	}
}

func (s *Scheduler[T]) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.RunOnStart {
		s.fire(ctx)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		case <-s.triggerCh:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler[T]) fire(ctx context.Context) {
	result := s.trigger.Run(ctx)
	if s.OnResult != nil {
		s.OnResult(result)
	}
}
