package rudp

import (
	"encoding/binary"
	"log"
	"net"
	"sync"
	"time"

	"github.com/YShaw99/P2P-Live/arq"
)

const defaultMTU = 1400

// Option configures a Multiplexer at construction time.
type Option func(*Multiplexer)

// WithMTU overrides the default 1400-byte MTU new endpoints are created
// with.
func WithMTU(mtu int) Option {
	return func(m *Multiplexer) { m.mtu = mtu }
}

// WithFEC enables Reed-Solomon forward error correction: each outbound
// datagram is split into dataShards pieces with parityShards parity
// shards computed over them, so the receiver can reconstruct a lost
// datagram without an ARQ retransmit round trip. Grounded on
// nat/connection.go's use of the same reedsolomon dependency.
func WithFEC(dataShards, parityShards int) Option {
	return func(m *Multiplexer) {
		coder, err := newFECCoder(dataShards, parityShards)
		if err != nil {
			m.logger.Printf("rudp: FEC disabled, bad shard config: %v", err)
			return
		}
		m.fec = coder
		m.fecDecoder = newFECDecoder(coder)
	}
}

// WithCompression enables zappy payload compression on every outbound
// datagram, transparently reversed on receipt.
func WithCompression() Option {
	return func(m *Multiplexer) { m.compress = true }
}

// WithLogger overrides the default stderr *log.Logger diagnostics are
// written through.
func WithLogger(l *log.Logger) Option {
	return func(m *Multiplexer) { m.logger = l }
}

// Multiplexer is the address+channel-keyed registry over one bound UDP
// socket. It is grounded on pipe.Listener's session-by-address map,
// generalized to nest a second level of lookup by channel id: endpoints
// here share one socket per remote address across many logical streams,
// where Listener served exactly one stream per address.
type Multiplexer struct {
	sock   Socket
	loop   *EventLoop
	mtu    int
	logger *log.Logger

	fec        *fecCoder
	fecDecoder *fecDecoder
	compress   bool

	mu        sync.RWMutex
	endpoints map[string]map[uint32]*Endpoint

	onNewConnection     func(*Endpoint)
	onUnknownPacket     func(addr net.Addr, channel uint32) bool
	onConnectionTimeout func(*Endpoint)

	connectionTimeout time.Duration

	readBuf []byte
	closeCh chan struct{}
	closed  bool
}

// Bind opens a UDP socket at addr and starts the multiplexer's event loop
// and receive loop, both running until Close.
func Bind(addr string, opts ...Option) (*Multiplexer, error) {
	sock, err := newUDPSocket(addr)
	if err != nil {
		return nil, err
	}
	return newMultiplexer(sock, opts...), nil
}

// newMultiplexer wires an already-constructed Socket into a Multiplexer.
// Bind uses it with a real UDP socket; tests use it with an in-memory
// Socket to drive deterministic loss/reordering.
func newMultiplexer(sock Socket, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		sock:              sock,
		loop:              NewEventLoop(),
		mtu:               defaultMTU,
		logger:            log.Default(),
		endpoints:         make(map[string]map[uint32]*Endpoint),
		connectionTimeout: 30 * time.Second,
		readBuf:           make([]byte, 64*1024),
		closeCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.loop.Run()
	go m.recvLoop()
	return m
}

// IsBound reports whether the multiplexer's socket is still open.
func (m *Multiplexer) IsBound() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// LocalAddr returns the bound socket's local address.
func (m *Multiplexer) LocalAddr() net.Addr { return m.sock.LocalAddr() }

// OnNewConnection registers the callback scheduled on the event loop
// whenever AddConnection registers an endpoint, whether called by the
// local application directly or by an OnUnknownPacket handler accepting an
// inbound (address, channel) pair.
func (m *Multiplexer) OnNewConnection(fn func(*Endpoint)) { m.onNewConnection = fn }

// OnUnknownPacket registers the passive-open gate invoked for any inbound
// datagram whose (address, channel) is not yet registered. It runs
// synchronously on the ingress path, before any Endpoint exists for that
// pair: returning false discards the datagram. Returning true only admits
// it if the handler itself called AddConnection(addr, channel) during the
// call — the multiplexer re-checks the registry immediately after the
// handler returns, and still discards the datagram if no endpoint is
// found.
func (m *Multiplexer) OnUnknownPacket(fn func(addr net.Addr, channel uint32) bool) {
	m.onUnknownPacket = fn
}

// OnConnectionTimeout registers the callback fired when an endpoint has had
// no inbound activity for the configured connection timeout.
func (m *Multiplexer) OnConnectionTimeout(fn func(*Endpoint)) { m.onConnectionTimeout = fn }

// SetConnectionTimeout overrides the default 30s idle timeout used for
// OnConnectionTimeout.
func (m *Multiplexer) SetConnectionTimeout(d time.Duration) { m.connectionTimeout = d }

// AddConnection registers a new endpoint for (remote, channel), the
// active-open counterpart to OnUnknownPacket's passive open. It fails with
// ErrChannelInUse if one is already registered.
func (m *Multiplexer) AddConnection(remote net.Addr, channel uint32) (*Endpoint, error) {
	m.mu.Lock()
	key := remote.String()
	byChannel, ok := m.endpoints[key]
	if !ok {
		byChannel = make(map[uint32]*Endpoint)
		m.endpoints[key] = byChannel
	}
	if _, exists := byChannel[channel]; exists {
		m.mu.Unlock()
		return nil, ErrChannelInUse
	}

	ep := newEndpoint(m, m.loop, remote, channel)
	byChannel[channel] = ep
	m.mu.Unlock()

	m.loop.Post(ep.rearmTimer)
	if m.onNewConnection != nil {
		m.loop.Post(func() { m.onNewConnection(ep) })
	}
	return ep, nil
}

// RemoveConnection begins a graceful close of the endpoint for (remote,
// channel): closing is latched immediately, so any Awrite/Aread issued
// from this point on fails with ErrEndpointClosed, while data already
// queued for send keeps draining in the background until the endpoint
// tears itself down. Returns ErrEndpointNotFound if no such endpoint is
// registered.
func (m *Multiplexer) RemoveConnection(remote net.Addr, channel uint32) error {
	ep := m.lookup(remote, channel)
	if ep == nil {
		return ErrEndpointNotFound
	}
	ep.RequestClose()
	return nil
}

// Config applies a named ARQ congestion/timing preset to the endpoint for
// (remote, channel), addressed by the public level numbering: 0 "fast",
// 1 "balanced", 2 "normal". This does not match arq.Mode's own iota
// ordering, so the level is translated explicitly rather than cast.
func (m *Multiplexer) Config(remote net.Addr, channel uint32, level int) error {
	ep := m.lookup(remote, channel)
	if ep == nil {
		return ErrEndpointNotFound
	}
	var mode arq.Mode
	switch level {
	case 0:
		mode = arq.ModeFast
	case 2:
		mode = arq.ModeNormal
	default:
		mode = arq.ModeBalanced
	}
	m.loop.Post(func() { ep.ctrl.Configure(mode) })
	return nil
}

// SetWndSize sets the local send/receive window sizes for the endpoint at
// (remote, channel).
func (m *Multiplexer) SetWndSize(remote net.Addr, channel uint32, snd, rcv int) error {
	ep := m.lookup(remote, channel)
	if ep == nil {
		return ErrEndpointNotFound
	}
	m.loop.Post(func() { ep.ctrl.SetWndSize(snd, rcv) })
	return nil
}

// RunAt schedules fn to run on the multiplexer's event loop at the given
// delay from now — a general-purpose escape hatch for callers that need to
// piggyback work on the same single-threaded timeline as endpoint ticks.
func (m *Multiplexer) RunAt(delay time.Duration, fn func()) {
	m.loop.Post(func() { m.loop.AddTimer(delay, fn) })
}

// CloseAllRemote closes every endpoint registered under remote's address,
// used when a peer disconnects at the transport level and every channel to
// it must be torn down together.
func (m *Multiplexer) CloseAllRemote(remote net.Addr) {
	m.mu.RLock()
	byChannel := m.endpoints[remote.String()]
	eps := make([]*Endpoint, 0, len(byChannel))
	for _, ep := range byChannel {
		eps = append(eps, ep)
	}
	m.mu.RUnlock()
	for _, ep := range eps {
		ep.Close()
	}
}

// Close shuts down the receive loop, the event loop, and the underlying
// socket. Registered endpoints are closed first so pending reads fail
// cleanly rather than leaking.
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	byAddr := m.endpoints
	m.endpoints = make(map[string]map[uint32]*Endpoint)
	m.mu.Unlock()

	for _, byChannel := range byAddr {
		for _, ep := range byChannel {
			ep.Close()
		}
	}

	close(m.closeCh)
	m.loop.Close()
	return m.sock.Close()
}

func (m *Multiplexer) lookup(remote net.Addr, channel uint32) *Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byChannel, ok := m.endpoints[remote.String()]
	if !ok {
		return nil
	}
	return byChannel[channel]
}

func (m *Multiplexer) forget(remote net.Addr, channel uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byChannel, ok := m.endpoints[remote.String()]
	if !ok {
		return
	}
	delete(byChannel, channel)
	if len(byChannel) == 0 {
		delete(m.endpoints, remote.String())
	}
}

// sendRaw is the tail of the send path: it applies compression and/or FEC
// (per the options the Multiplexer was Bind-ed with) and writes to the
// socket. Called from the owning endpoint's ARQ OutputFunc, so it always
// runs on the event loop goroutine.
func (m *Multiplexer) sendRaw(remote net.Addr, datagram []byte) error {
	payload := datagram
	if m.compress {
		packed, err := compressPayload(payload)
		if err != nil {
			return err
		}
		payload = packed
	}

	if m.fec != nil {
		shards, err := m.fec.encodeGroup(payload)
		if err != nil {
			return err
		}
		for _, s := range shards {
			if err := m.sock.SendTo(remote, s); err != nil {
				return err
			}
		}
		return nil
	}

	return m.sock.SendTo(remote, payload)
}

// recvLoop reads datagrams off the socket and hands each to dispatch. It is
// the only goroutine that calls RecvFrom, matching pipe.Listener's
// inner_loop single-reader convention.
func (m *Multiplexer) recvLoop() {
	for {
		select {
		case <-m.closeCh:
			return
		default:
		}

		m.sock.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, from, err := m.sock.RecvFrom(m.readBuf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-m.closeCh:
			default:
				m.logger.Printf("rudp: recv error: %v", err)
			}
			return
		}
		data := append([]byte(nil), m.readBuf[:n]...)
		m.dispatch(from, data)
	}
}

// dispatch unwraps FEC/compression, decodes the conversation id out of the
// ARQ segment header, and posts the datagram to its endpoint's loop. A
// (source, channel) pair with no registered endpoint is routed through
// the OnUnknownPacket gate in dispatchOne rather than auto-registered.
func (m *Multiplexer) dispatch(from net.Addr, data []byte) {
	payload := data
	if m.fec != nil {
		recovered, ok := m.fecDecoder.input(data)
		if !ok {
			return
		}
		payload = recovered
	}

	if m.compress {
		plain, err := decompressPayload(payload)
		if err != nil {
			return
		}
		payload = plain
	}

	m.dispatchOne(from, payload)
}

// dispatchOne looks up the endpoint for (from, channel). If none is
// registered yet, it invokes the OnUnknownPacket gate: the datagram is
// only admitted if the handler returns true and has synchronously
// registered the endpoint via AddConnection during the call, re-checked
// here immediately after the handler returns. A malformed header or a
// discarded datagram is dropped silently.
func (m *Multiplexer) dispatchOne(from net.Addr, data []byte) {
	channel, ok := peekConv(data)
	if !ok {
		return
	}

	ep := m.lookup(from, channel)
	if ep == nil {
		if m.onUnknownPacket == nil || !m.onUnknownPacket(from, channel) {
			return
		}
		ep = m.lookup(from, channel)
		if ep == nil {
			return
		}
	}

	m.loop.Post(func() { ep.input(data) })
}

// peekConv reads the conversation id out of an ARQ segment header without
// fully decoding it, so the multiplexer can route to an endpoint before
// arq.ARQ.Input runs. Segments always start with a little-endian uint32
// conv field (arq/arq.go's wire layout).
func peekConv(data []byte) (uint32, bool) {
	if len(data) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[0:4]), true
}
