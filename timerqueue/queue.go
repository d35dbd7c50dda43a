// Package timerqueue implements a minimum-heap timer queue keyed by absolute
// microsecond timepoints. It schedules future callbacks with configurable
// precision (default 1ms) and is driven entirely by an owning event loop
// calling Tick; it has no goroutine of its own and no internal locking,
// matching the single-threaded-per-loop model the rudp package builds on.
package timerqueue

import (
	"container/heap"
	"time"
)

// MinPrecision is the default coalescing precision: timers are rounded to
// this granularity before being inserted, so two timers requested within the
// same window share one heap entry.
const MinPrecision = time.Millisecond

// Handle identifies a previously inserted timer. ID is unique for the
// lifetime of the Queue; a negative ID is never issued and can be used by
// callers as a "no timer" sentinel.
type Handle struct {
	ID        int64
	Timepoint int64 // absolute microseconds
}

type callback struct {
	id        int64
	fn        func()
	cancelled bool
}

type slot struct {
	timepoint int64
	callbacks []*callback
	index     int // heap index, maintained by container/heap
}

// Queue is a binary min-heap of slots ordered by timepoint, with a side
// index mapping timepoint to slot so timers that land on the same rounded
// timepoint coalesce into a single heap entry.
type Queue struct {
	precision time.Duration
	heap      slotHeap
	byTime    map[int64]*slot
	nextID    int64
}

// New creates a Queue with the given coalescing precision. A precision of 0
// uses MinPrecision.
func New(precision time.Duration) *Queue {
	if precision <= 0 {
		precision = MinPrecision
	}
	q := &Queue{
		precision: precision,
		byTime:    make(map[int64]*slot),
	}
	heap.Init(&q.heap)
	return q
}

func (q *Queue) round(us int64) int64 {
	p := q.precision.Microseconds()
	if p <= 0 {
		return us
	}
	return (us / p) * p
}

// Insert schedules cb to run at now+delay (now supplied by the caller,
// rounded down to the queue's precision) and returns a stable Handle for
// later cancellation.
// Inserting at an already-occupied timepoint appends to that slot's
// callback list rather than growing the heap.
func (q *Queue) Insert(now time.Time, delay time.Duration, cb func()) Handle {
	tp := q.round(toMicros(now) + delay.Microseconds())
	s, ok := q.byTime[tp]
	if !ok {
		s = &slot{timepoint: tp}
		q.byTime[tp] = s
		heap.Push(&q.heap, s)
	}
	q.nextID++
	id := q.nextID
	s.callbacks = append(s.callbacks, &callback{id: id, fn: cb})
	return Handle{ID: id, Timepoint: tp}
}

// Cancel marks the callback identified by h as cancelled. It is a no-op if
// the handle is unknown or has already fired.
func (q *Queue) Cancel(h Handle) {
	s, ok := q.byTime[h.Timepoint]
	if !ok {
		return
	}
	for _, cb := range s.callbacks {
		if cb.id == h.ID {
			cb.cancelled = true
			return
		}
	}
}

// Tick pops every slot whose timepoint is at or before now and invokes each
// of its non-cancelled callbacks in insertion order. Callbacks that insert
// new timers with a timepoint <= now are scheduled for the next Tick, never
// run recursively within this one, because slots popped this call are
// removed from the heap/index before their callbacks execute.
func (q *Queue) Tick(now time.Time) {
	nowUs := toMicros(now)
	var due []*slot
	for q.heap.Len() > 0 && q.heap[0].timepoint <= nowUs {
		s := heap.Pop(&q.heap).(*slot)
		delete(q.byTime, s.timepoint)
		due = append(due, s)
	}
	for _, s := range due {
		for _, cb := range s.callbacks {
			if !cb.cancelled {
				cb.fn()
			}
		}
	}
}

// NextTick returns the earliest outstanding timepoint in microseconds and
// true, or (0, false) if the queue is empty.
func (q *Queue) NextTick() (int64, bool) {
	if q.heap.Len() == 0 {
		return 0, false
	}
	return q.heap[0].timepoint, true
}

// Len reports the number of distinct timepoints currently scheduled.
func (q *Queue) Len() int { return q.heap.Len() }

func toMicros(t time.Time) int64 { return t.UnixMicro() }

type slotHeap []*slot

func (h slotHeap) Len() int          { return len(h) }
func (h slotHeap) Less(i, j int) bool { return h[i].timepoint < h[j].timepoint }
func (h slotHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *slotHeap) Push(x interface{}) {
	s := x.(*slot)
	s.index = len(*h)
	*h = append(*h, s)
}
func (h *slotHeap) Pop() interface{} {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return s
}
