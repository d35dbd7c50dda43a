package rudp

import (
	"errors"
	"net"
	"time"

	"github.com/YShaw99/P2P-Live/arq"
	"github.com/YShaw99/P2P-Live/timerqueue"
)

var (
	// ErrEndpointClosed is returned by Awrite/Aread once Close/RequestClose
	// has run, whether or not the endpoint has finished tearing down.
	ErrEndpointClosed   = errors.New("rudp: endpoint closed")
	ErrChannelInUse     = errors.New("rudp: channel already registered for this address")
	ErrEndpointNotFound = errors.New("rudp: no endpoint for that address and channel")
)

// coalesceWindow is the ±5ms slack original_source/lib/net/rudp.cc's
// set_timer applies before rearming a connection's tick timer: if the newly
// requested deadline is within this window of the timer already armed, the
// existing timer is left alone rather than cancelled and reinserted. This
// keeps a busy endpoint from thrashing the timer queue every flush.
const coalesceWindow = 5 * time.Millisecond

// Endpoint is one reliable channel to one remote address. It is pinned to
// a single EventLoop for its whole lifetime; all ARQ mutation happens on
// that loop's goroutine, reached from other goroutines only via
// Awrite/Aread/Close/RequestClose, which Post onto it.
type Endpoint struct {
	mux     *Multiplexer
	loop    *EventLoop
	remote  net.Addr
	channel uint32

	ctrl *arq.ARQ

	timer      timerqueue.Handle
	timerArmed bool
	timerAt    uint32

	reads []pendingRead

	lastActivity uint32
	closing      bool
	closed       bool
	closeCh      chan struct{}
}

func newEndpoint(mux *Multiplexer, loop *EventLoop, remote net.Addr, channel uint32) *Endpoint {
	e := &Endpoint{
		mux:     mux,
		loop:    loop,
		remote:  remote,
		channel: channel,
		ctrl:    arq.Create(channel),
		closeCh: make(chan struct{}),
	}
	e.ctrl.SetOutput(e.output)
	e.ctrl.SetMTU(mux.mtu)
	e.ctrl.Configure(arq.ModeBalanced) // the original's config(conn, 1) default
	e.lastActivity = loop.Now()
	return e
}

// RemoteAddr returns the peer address this endpoint exchanges datagrams
// with.
func (e *Endpoint) RemoteAddr() net.Addr { return e.remote }

// Channel returns the channel id this endpoint was registered under.
func (e *Endpoint) Channel() uint32 { return e.channel }

// Removeable reports whether the endpoint has no unsent data and can be
// torn down without losing anything in flight. A RequestClose'd endpoint
// finishes tearing itself down the moment this becomes true; callers that
// want to observe the drain themselves (rather than relying on Close/
// RequestClose) can poll it directly.
func (e *Endpoint) Removeable() bool {
	return e.ctrl.WaitSnd() == 0
}

func (e *Endpoint) isClosed() bool {
	select {
	case <-e.closeCh:
		return true
	default:
		return false
	}
}

// output is ARQ's OutputFunc: it hands one already-encoded datagram to the
// multiplexer's send path, where FEC/compression wrap it if configured.
func (e *Endpoint) output(datagram []byte) error {
	return e.mux.sendRaw(e.remote, datagram)
}

// input feeds one inbound datagram (already de-FEC'd/decompressed) into
// ARQ and services any reads that can now complete. Called on the loop
// goroutine by the multiplexer's dispatch path.
func (e *Endpoint) input(data []byte) {
	if e.isClosed() {
		return
	}
	if err := e.ctrl.Input(data); err != nil {
		return
	}
	e.lastActivity = e.loop.Now()
	if e.closing {
		if e.ctrl.WaitSnd() == 0 {
			e.finishClose()
		}
		return
	}
	e.serviceReads()
	e.rearmTimer()
}

// serviceReads retries every pending Aread against the current recv queue,
// completing OK for anything now available and TimedOut for anything whose
// Param has been stopped in the meantime. Anything left over stays pending,
// resumed by the endpoint's executor the next time new input arrives or
// the timer fires.
func (e *Endpoint) serviceReads() {
	if len(e.reads) == 0 {
		return
	}
	var remaining []pendingRead
	for _, pr := range e.reads {
		if n, err := e.ctrl.Recv(pr.buf); err == nil {
			pr.done(Result{Status: OK, N: n})
			continue
		}
		if pr.param.IsStop() {
			pr.done(Result{Status: TimedOut})
			continue
		}
		remaining = append(remaining, pr)
	}
	e.reads = remaining
}

// tick drives ARQ's periodic Update/Flush, finishes a graceful close once
// the send buffer has drained, and otherwise expires any reads whose
// Param has been stopped. Invoked from the endpoint's own timer.
func (e *Endpoint) tick() {
	// the timer that invoked this tick has fired; it no longer counts as
	// armed for rearmTimer's coalescing check.
	e.timerArmed = false
	if e.isClosed() {
		return
	}
	now := e.loop.Now()
	e.ctrl.Update(now)

	if e.closing {
		if e.ctrl.WaitSnd() == 0 {
			e.finishClose()
			return
		}
		e.rearmTimer()
		return
	}

	if e.mux.connectionTimeout > 0 {
		idleMS := uint32(e.mux.connectionTimeout.Milliseconds())
		if timeAfter(now, e.lastActivity+idleMS) {
			if e.mux.onConnectionTimeout != nil {
				e.mux.onConnectionTimeout(e)
			}
			e.Close()
			return
		}
	}

	e.serviceReads()
	e.rearmTimer()
}

func timeAfter(now, deadline uint32) bool { return int32(now-deadline) >= 0 }

// rearmTimer schedules the next tick per arq.ARQ.Check, applying the ±5ms
// coalescing window before disturbing an already-armed timer.
func (e *Endpoint) rearmTimer() {
	now := e.loop.Now()
	next := e.ctrl.Check(now)

	if e.timerArmed {
		diff := int32(next) - int32(e.timerAt)
		if diff < 0 {
			diff = -diff
		}
		if time.Duration(diff)*time.Millisecond < coalesceWindow {
			return
		}
		e.loop.CancelTimer(e.timer)
	}

	delay := time.Duration(int32(next-now)) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	e.timer = e.loop.AddTimer(delay, e.tick)
	e.timerAt = next
	e.timerArmed = true
}

// finishClose performs the actual teardown: cancels the timer, fails any
// reads still pending, and unregisters the endpoint from the multiplexer.
// Must run on the loop goroutine. Idempotent.
func (e *Endpoint) finishClose() {
	if e.isClosed() {
		return
	}
	close(e.closeCh)
	if e.timerArmed {
		e.loop.CancelTimer(e.timer)
	}
	for _, pr := range e.reads {
		pr.done(Result{Status: Failed, Err: ErrEndpointClosed})
	}
	e.reads = nil
	e.mux.forget(e.remote, e.channel)
}

// Close is the endpoint's "fast close": closing is latched immediately and the
// endpoint tears down right away, discarding anything still queued for
// send. Use RequestClose for a graceful drain.
func (e *Endpoint) Close() {
	e.loop.Post(func() {
		e.closing = true
		e.finishClose()
	})
}

// RequestClose is the endpoint's "graceful close": closing is latched
// immediately, which fails any Awrite/Aread issued from this point on
// with ErrEndpointClosed, but data already queued for send keeps draining
// in the background. tick and input finish the teardown on their own once
// Removeable (WaitSnd == 0) becomes true. Calling RequestClose again, or
// after Close, is a no-op.
func (e *Endpoint) RequestClose() {
	e.loop.Post(func() {
		if e.closing || e.isClosed() {
			return
		}
		e.closing = true
		if e.ctrl.WaitSnd() == 0 {
			e.finishClose()
		}
	})
}
