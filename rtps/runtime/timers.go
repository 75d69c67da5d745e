package runtime

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"rtpsgo/rtps/clockutil"
)

// timerEntry is one scheduled callback in the driver's min-heap, ordered by
// Deadline.
type timerEntry struct {
	Deadline time.Time
	Fn       func()
	index    int
	cancelled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].Deadline.Before(h[j].Deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimerDriver runs scheduled callbacks on one goroutine against one
// underlying clock, so tests can swap in a fake clockutil.Clock instead of
// racing real timers (spec.md §5's determinism goal for the cooperative
// executor). No package in this module schedules work on it; the
// participant's periodic loops run on their own goroutines under the
// Supervisor.
type TimerDriver struct {
	clock clockutil.Clock

	mu      sync.Mutex
	h       timerHeap
	wake    chan struct{}
}

// NewTimerDriver constructs a driver against clock and starts its loop
// under ctx.
func NewTimerDriver(ctx context.Context, clock clockutil.Clock) *TimerDriver {
	if clock == nil {
		clock = clockutil.System{}
	}
	d := &TimerDriver{
		clock: clock,
		wake:  make(chan struct{}, 1),
	}
	go d.loop(ctx)
	return d
}

// Schedule arranges for fn to run (on the driver's own goroutine — callers
// needing actor-exclusive state should Tell/Ask from inside fn) once at
// deadline. The returned cancel function prevents fn from running if called
// before the deadline fires.
func (d *TimerDriver) Schedule(deadline time.Time, fn func()) (cancel func()) {
	e := &timerEntry{Deadline: deadline, Fn: fn}
	d.mu.Lock()
	heap.Push(&d.h, e)
	d.mu.Unlock()
	d.poke()
	return func() {
		d.mu.Lock()
		e.cancelled = true
		d.mu.Unlock()
	}
}

// After is sugar for Schedule(clock.Now().Add(delay), fn).
func (d *TimerDriver) After(delay time.Duration, fn func()) (cancel func()) {
	return d.Schedule(d.clock.Now().Add(delay), fn)
}

func (d *TimerDriver) poke() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *TimerDriver) loop(ctx context.Context) {
	timer := d.clock.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		d.mu.Lock()
		var wait time.Duration
		if d.h.Len() == 0 {
			wait = time.Hour
		} else {
			wait = d.h[0].Deadline.Sub(d.clock.Now())
			if wait < 0 {
				wait = 0
			}
		}
		d.mu.Unlock()
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-d.wake:
			continue
		case <-timer.C():
			d.fireDue()
		}
	}
}

func (d *TimerDriver) fireDue() {
	now := d.clock.Now()
	for {
		d.mu.Lock()
		if d.h.Len() == 0 || d.h[0].Deadline.After(now) {
			d.mu.Unlock()
			return
		}
		e := heap.Pop(&d.h).(*timerEntry)
		cancelled := e.cancelled
		d.mu.Unlock()
		if !cancelled {
			e.Fn()
		}
	}
}
