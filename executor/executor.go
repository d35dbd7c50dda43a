// Package executor implements the single-threaded cooperative dispatcher
// that drives per-endpoint coroutine resumption. It has no goroutine of its
// own; an owning event loop calls Dispatch once per pass. It is grounded on
// execute_thread_dispatcher_t in the original P2P-Live C++ sources: a FIFO of
// (context, optional resume function) pairs, drained in order, with a
// per-pass cancel set.
package executor

// Ctx identifies a schedulable unit (an endpoint's cooperative context, in
// rudp). Any comparable value works; the Dispatcher never dereferences it.
type Ctx interface{}

type entry struct {
	ctx Ctx
	fn  func()
}

// Dispatcher queues resumption requests and drains them in FIFO order on
// Dispatch, skipping any request whose ctx was cancelled during this pass.
type Dispatcher struct {
	queue   []entry
	cancels map[Ctx]struct{}
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{cancels: make(map[Ctx]struct{})}
}

// Add enqueues a resumption of ctx. If fn is non-nil it runs when ctx is
// resumed; Dispatch simply calls it. A nil fn still occupies a slot in the
// queue, matching the "resume with no override" case in the C++ source.
func (d *Dispatcher) Add(ctx Ctx, fn func()) {
	d.queue = append(d.queue, entry{ctx: ctx, fn: fn})
}

// Cancel marks ctx cancelled for the dispatch pass currently being queued or
// about to run. Any already-queued (or subsequently queued) entry for ctx is
// dropped when Dispatch reaches it. The cancel set is cleared at the end of
// each Dispatch, so a later Add for the same ctx is live again next pass.
func (d *Dispatcher) Cancel(ctx Ctx) {
	d.cancels[ctx] = struct{}{}
}

// Dispatch drains the queue in FIFO order. Re-entrant Add calls made from
// within a resumed fn land in the queue but are not visited by this call —
// they run on the next Dispatch — because the drain works off a snapshot of
// the queue taken at entry.
func (d *Dispatcher) Dispatch() {
	pending := d.queue
	d.queue = nil

	for _, e := range pending {
		if _, cancelled := d.cancels[e.ctx]; cancelled {
			continue
		}
		if e.fn != nil {
			e.fn()
		}
	}
	d.cancels = make(map[Ctx]struct{})
}

// Len reports the number of resumptions currently queued for the next pass.
func (d *Dispatcher) Len() int { return len(d.queue) }
