package rudp

import (
	"encoding/binary"

	"github.com/klauspost/reedsolomon"
)

// fecCoder splits one outbound datagram into dataShards equal-sized pieces
// and computes parityShards parity pieces over them with Reed-Solomon
// erasure coding, so the receiver can reconstruct the datagram after losing
// up to parityShards of the (dataShards+parityShards) pieces, without
// waiting for an ARQ retransmit round trip. Grounded on nat/connection.go's
// pattern of wrapping a KCP Conn's raw output with
// github.com/klauspost/reedsolomon; here the same dependency is wired into
// the general-purpose multiplexer instead of a NAT-specific tunnel.
type fecCoder struct {
	dataShards   int
	parityShards int
	enc          reedsolomon.Encoder
	groupID      uint32
}

// fecHeaderSize: groupID(4) + shardIndex(2) + shardCount(2) + origLen(4).
const fecHeaderSize = 12

func newFECCoder(dataShards, parityShards int) (*fecCoder, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	return &fecCoder{dataShards: dataShards, parityShards: parityShards, enc: enc}, nil
}

// encodeGroup splits datagram into dataShards+parityShards framed pieces,
// each sent as its own UDP datagram by the caller.
func (f *fecCoder) encodeGroup(datagram []byte) ([][]byte, error) {
	total := f.dataShards + f.parityShards
	shardLen := (len(datagram) + f.dataShards - 1) / f.dataShards
	if shardLen == 0 {
		shardLen = 1
	}

	shards := make([][]byte, total)
	for i := 0; i < f.dataShards; i++ {
		shards[i] = make([]byte, shardLen)
		start := i * shardLen
		if start < len(datagram) {
			end := start + shardLen
			if end > len(datagram) {
				end = len(datagram)
			}
			copy(shards[i], datagram[start:end])
		}
	}
	for i := f.dataShards; i < total; i++ {
		shards[i] = make([]byte, shardLen)
	}

	if err := f.enc.Encode(shards); err != nil {
		return nil, err
	}

	f.groupID++
	out := make([][]byte, total)
	for i, s := range shards {
		framed := make([]byte, fecHeaderSize+len(s))
		binary.LittleEndian.PutUint32(framed[0:4], f.groupID)
		binary.LittleEndian.PutUint16(framed[4:6], uint16(i))
		binary.LittleEndian.PutUint16(framed[6:8], uint16(total))
		binary.LittleEndian.PutUint32(framed[8:12], uint32(len(datagram)))
		copy(framed[fecHeaderSize:], s)
		out[i] = framed
	}
	return out, nil
}

// fecGroup accumulates shards for one groupID until enough have arrived to
// reconstruct the original datagram.
type fecGroup struct {
	total   int
	origLen int
	shards  [][]byte
	have    int
}

type fecDecoder struct {
	coder  *fecCoder
	groups map[uint32]*fecGroup
}

func newFECDecoder(c *fecCoder) *fecDecoder {
	return &fecDecoder{coder: c, groups: make(map[uint32]*fecGroup)}
}

// input feeds one received, FEC-framed shard in. It returns the
// reconstructed original datagram once enough shards for its group have
// arrived, or (nil, false) while the group is still incomplete.
func (d *fecDecoder) input(framed []byte) ([]byte, bool) {
	if len(framed) < fecHeaderSize {
		return nil, false
	}
	groupID := binary.LittleEndian.Uint32(framed[0:4])
	idx := int(binary.LittleEndian.Uint16(framed[4:6]))
	total := int(binary.LittleEndian.Uint16(framed[6:8]))
	origLen := int(binary.LittleEndian.Uint32(framed[8:12]))
	shard := framed[fecHeaderSize:]

	g, ok := d.groups[groupID]
	if !ok {
		g = &fecGroup{total: total, origLen: origLen, shards: make([][]byte, total)}
		d.groups[groupID] = g
	}
	if idx >= total || g.shards[idx] != nil {
		return nil, false
	}
	g.shards[idx] = append([]byte(nil), shard...)
	g.have++

	if g.have < d.coder.dataShards {
		return nil, false
	}

	work := make([][]byte, total)
	copy(work, g.shards)
	if g.have < total {
		if err := d.coder.enc.Reconstruct(work); err != nil {
			return nil, false
		}
	}
	delete(d.groups, groupID)

	out := make([]byte, 0, g.origLen)
	for i := 0; i < d.coder.dataShards && len(out) < g.origLen; i++ {
		out = append(out, work[i]...)
	}
	if len(out) > g.origLen {
		out = out[:g.origLen]
	}
	return out, true
}
