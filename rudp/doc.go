// Package rudp implements an address+channel-keyed RUDP multiplexer: one UDP
// socket shared by many endpoints, each identified by (remote address,
// channel id) and backed by its own arq.ARQ control block, pinned to a
// single owning event loop.
//
// The multiplexer's address-keyed session map generalizes the
// request/response tunnel session model into a general-purpose multiplexer
// supporting many logical streams per remote address. The ±5ms
// timer-coalescing window, the base-time subtraction that keeps the 32-bit
// millisecond clock from overflowing mid-connection, and the "balanced"
// auto-config applied when a connection is first registered all follow
// original_source/lib/net/rudp.cc.
package rudp
