package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// LoopBufferSize is the default number of callbacks that can be pending on a loop.
	LoopBufferSize = 256
)

// ErrLoopStopped is returned when work is submitted to a loop that is no longer running.
var ErrLoopStopped = errors.New("loop stopped")

var _ Scheduler = &Loop{}

// Loop is a Scheduler backed by wall-clock timers. All callbacks, including
// the ones submitted through Call and Post, run on the goroutine executing Run.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop with the given callback buffer size.
// A size <= 0 uses LoopBufferSize.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = LoopBufferSize
	}
	return &Loop{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Run executes callbacks until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Stop stops the loop. Pending callbacks are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// Stopped reports whether the loop has been stopped.
func (l *Loop) Stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Post queues fn to run on the loop without waiting for it.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Call runs fn on the loop and waits until it has returned.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	err := l.Post(func() {
		defer close(finished)
		fn()
	})
	if err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Now returns the wall-clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// After runs fn on the loop once after d.
func (l *Loop) After(d time.Duration, fn func()) Handle {
	h := &loopTimer{}
	h.arm(d, func() {
		l.deliver(h, fn)
	})
	return h
}

// Every runs fn on the loop every d. The next run is armed after the previous
// one has completed, so slow callbacks never overlap.
func (l *Loop) Every(d time.Duration, fn func()) Handle {
	d = clampPeriod(d)
	h := &loopTimer{}
	var tick func()
	tick = func() {
		l.deliver(h, func() {
			fn()
			if !h.Cancelled() {
				h.arm(d, tick)
			}
		})
	}
	h.arm(d, tick)
	return h
}

func (l *Loop) deliver(h *loopTimer, fn func()) {
	// the cancelled check happens on the loop, after delivery
	_ = l.Post(func() {
		if h.Cancelled() {
			return
		}
		fn()
	})
}

type loopTimer struct {
	cancelled atomic.Bool
	lock      sync.Mutex
	timer     *time.Timer
}

func (t *loopTimer) arm(d time.Duration, fn func()) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.cancelled.Load() {
		return
	}
	t.timer = time.AfterFunc(d, fn)
}

func (t *loopTimer) Cancel() {
	t.cancelled.Store(true)
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *loopTimer) Cancelled() bool {
	return t.cancelled.Load()
}
