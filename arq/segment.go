package arq

// segment is one KCP wire segment, ported from IKCPSEG.
// resendAt/rto/fastAck/xmit are retransmission bookkeeping that never
// crosses the wire; the rest is encoded/decoded verbatim by
// encodeSegment/Input.
type segment struct {
	conv uint32
	cmd  cmd
	frg  uint8
	wnd  uint16
	ts   uint32
	sn   uint32
	una  uint32
	data []byte

	resendAt uint32
	rto      uint32
	fastAck  uint32
	xmit     uint32
}
