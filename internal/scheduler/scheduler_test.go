package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type countingTrigger struct {
	n atomic.Int32
}

func (c *countingTrigger) Run(context.Context) int {
	return int(c.n.Add(1))
}

func TestSchedulerTicks(t *testing.T) {
	tr := &countingTrigger{}
	s := New[int](tr, 10*time.Millisecond, zaptest.NewLogger(t))
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return tr.n.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerRunNow(t *testing.T) {
	tr := &countingTrigger{}
	results := make(chan int, 4)
	s := New[int](tr, time.Hour, zaptest.NewLogger(t))
	s.OnResult = func(n int) { results <- n }
	s.Start(context.Background())
	defer s.Stop()

	s.RunNow()
	select {
	case n := <-results:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("RunNow did not fire")
	}
}

func TestSchedulerRunOnStart(t *testing.T) {
	tr := &countingTrigger{}
	s := New[int](tr, time.Hour, zaptest.NewLogger(t))
	s.RunOnStart = true
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return tr.n.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	tr := &countingTrigger{}
	s := New[int](tr, time.Hour, zaptest.NewLogger(t))
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()

	before := tr.n.Load()
	s.RunNow()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, tr.n.Load())
}
