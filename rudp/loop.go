package rudp

import (
	"sync"
	"time"

	"github.com/YShaw99/P2P-Live/executor"
	"github.com/YShaw99/P2P-Live/timerqueue"
)

// clock is the 32-bit millisecond timeline arq.ARQ ticks against. Grounded
// on original_source/lib/net/rudp.cc, which subtracts a base_time captured
// at startup before truncating to 32 bits, rather than truncating
// wall-clock milliseconds directly (pipe.go's iclock does the latter and
// wraps every ~49.7 days; base-time subtraction defers the first wrap to
// ~49.7 days after the process starts instead of after the Unix epoch,
// which is the only guarantee a millisecond tick clock actually needs).
type clock struct {
	base time.Time
}

func newClock() *clock { return &clock{base: time.Now()} }

func (c *clock) now() uint32 {
	return uint32(time.Since(c.base).Milliseconds())
}

// EventLoop owns one timerqueue.Queue and one executor.Dispatcher and is
// the single goroutine every endpoint pinned to it mutates state on. Cross-
// goroutine callers reach it only through Post, which marshals a function
// onto the loop via the executor — the idiomatic-Go replacement for a
// stackful-coroutine resume primitive.
type EventLoop struct {
	clock *clock
	timer *timerqueue.Queue
	exec  *executor.Dispatcher

	mu      sync.Mutex
	posted  []func()
	wake    chan struct{}
	closing chan struct{}
	closed  bool
}

// NewEventLoop creates a loop with the default 1ms timer-coalescing
// precision.
func NewEventLoop() *EventLoop {
	return &EventLoop{
		clock:   newClock(),
		timer:   timerqueue.New(timerqueue.MinPrecision),
		exec:    executor.New(),
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
	}
}

// Now returns the loop's current 32-bit millisecond clock value.
func (l *EventLoop) Now() uint32 { return l.clock.now() }

// AddTimer schedules fn to run on the loop goroutine after delay.
func (l *EventLoop) AddTimer(delay time.Duration, fn func()) timerqueue.Handle {
	h := l.timer.Insert(time.Now(), delay, fn)
	l.wakeUp()
	return h
}

// CancelTimer cancels a previously scheduled timer; a no-op if it already
// fired.
func (l *EventLoop) CancelTimer(h timerqueue.Handle) { l.timer.Cancel(h) }

// Post marshals fn onto the loop goroutine, run on the next pass. Safe to
// call from any goroutine, including from within a Post'd fn itself.
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	l.wakeUp()
}

func (l *EventLoop) wakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// drainPosted moves the cross-goroutine post queue into the executor so
// Dispatch sees it in FIFO order alongside loop-local resumptions.
func (l *EventLoop) drainPosted() {
	l.mu.Lock()
	pending := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range pending {
		l.exec.Add(new(struct{}), fn)
	}
}

// Run drives the loop until Close is called: on each pass it drains
// cross-goroutine posts, ticks the timer queue, dispatches resumptions, and
// sleeps until the earlier of the next timer deadline or a wakeup signal.
func (l *EventLoop) Run() {
	for {
		l.drainPosted()
		l.timer.Tick(time.Now())
		l.exec.Dispatch()

		select {
		case <-l.closing:
			// run whatever was posted before Close, e.g. endpoint closes.
			l.drainPosted()
			l.exec.Dispatch()
			return
		default:
		}

		wait := 20 * time.Millisecond
		if next, ok := l.timer.NextTick(); ok {
			delta := time.Duration(next-time.Now().UnixMicro()) * time.Microsecond
			if delta < 0 {
				delta = 0
			}
			if delta < wait {
				wait = delta
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-l.wake:
			timer.Stop()
		case <-timer.C:
		case <-l.closing:
			timer.Stop()
		}
	}
}

// Close stops Run and wakes it if blocked. Idempotent.
func (l *EventLoop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.closing)
}
