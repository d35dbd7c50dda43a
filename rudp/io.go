package rudp

import (
	"sync/atomic"
	"time"
)

// Status is the outcome of an asynchronous Awrite/Aread: pending, ok,
// timeout, or failed.
type Status int

const (
	// Pending means the operation has not completed and done will be
	// invoked later, once new input arrives or the flush window reopens.
	Pending Status = iota
	OK
	TimedOut
	Failed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case TimedOut:
		return "timeout"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Result is delivered to an Awrite/Aread completion callback.
type Result struct {
	Status Status
	N      int
	Err    error
}

// Param is a cooperative parameter object: an external timeout
// orchestrator calls Stop, and Awrite/Aread observe IsStop at their next
// scheduling opportunity rather than polling a deadline themselves.
// NewTimeoutParam is the common case (stop after a fixed duration); Param
// can also be shared across several calls and stopped explicitly, e.g. to
// cancel every in-flight op on an endpoint that's shutting down.
type Param struct {
	stop int32
}

// NewParam returns a Param that never stops on its own; call Stop
// explicitly to cancel operations using it.
func NewParam() *Param { return &Param{} }

// NewTimeoutParam returns a Param that calls Stop automatically after d.
func NewTimeoutParam(d time.Duration) *Param {
	p := &Param{}
	time.AfterFunc(d, p.Stop)
	return p
}

// Stop marks the parameter stopped. Idempotent, safe from any goroutine.
func (p *Param) Stop() { atomic.StoreInt32(&p.stop, 1) }

// IsStop reports whether Stop has been called.
func (p *Param) IsStop() bool { return atomic.LoadInt32(&p.stop) != 0 }

type pendingRead struct {
	buf   []byte
	param *Param
	done  func(Result)
}

// Awrite enqueues data on the endpoint's ARQ send queue. It completes OK as
// soon as arq.ARQ.Send accepts the bytes (immediate unless the fragment
// count exceeds a single send's limit), Failed if the endpoint is closed,
// closing (RequestClose/Close has been called), or the payload is
// rejected, or TimedOut if param.IsStop() is already true when the call is
// scheduled. done runs on the endpoint's owning loop goroutine — never
// synchronously from the calling goroutine — which is this module's
// adaptation of a coroutine suspend/resume boundary.
func (e *Endpoint) Awrite(param *Param, data []byte, done func(Result)) {
	if param == nil {
		param = NewParam()
	}
	payload := append([]byte(nil), data...)
	e.loop.Post(func() {
		if param.IsStop() {
			done(Result{Status: TimedOut})
			return
		}
		if e.isClosed() || e.closing {
			done(Result{Status: Failed, Err: ErrEndpointClosed})
			return
		}
		if err := e.ctrl.Send(payload); err != nil {
			done(Result{Status: Failed, Err: err})
			return
		}
		e.rearmTimer()
		done(Result{Status: OK, N: len(payload)})
	})
}

// Aread completes with the next fully-assembled message copied into buf.
// If none is available yet it registers buf as pending: it is retried
// after every Input and every tick, and completes TimedOut the first time
// param.IsStop() is observed true with nothing yet to deliver.
func (e *Endpoint) Aread(param *Param, buf []byte, done func(Result)) {
	if param == nil {
		param = NewParam()
	}
	e.loop.Post(func() {
		if e.isClosed() || e.closing {
			done(Result{Status: Failed, Err: ErrEndpointClosed})
			return
		}
		if n, err := e.ctrl.Recv(buf); err == nil {
			done(Result{Status: OK, N: n})
			return
		}
		if param.IsStop() {
			done(Result{Status: TimedOut})
			return
		}
		e.reads = append(e.reads, pendingRead{buf: buf, param: param, done: done})
	})
}
