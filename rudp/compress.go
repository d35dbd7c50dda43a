package rudp

import "github.com/cznic/zappy"

// compressPayload and decompressPayload wrap the outbound/inbound datagram
// with zappy, the same LZ-family compressor nat/connection.go applies to
// KCP output before it reaches the wire. Enabled per-Multiplexer via
// WithCompression; a flag byte is prepended so the sender can fall back to
// sending the datagram verbatim when compression does not shrink it. Both
// peers must enable WithCompression: every inbound datagram is read as
// flag byte plus body.
const (
	flagPlain      byte = 0
	flagCompressed byte = 1
)

func compressPayload(data []byte) ([]byte, error) {
	packed, err := zappy.Encode(nil, data)
	if err != nil {
		return nil, err
	}
	if len(packed)+1 >= len(data) {
		// compression didn't pay for itself; send verbatim.
		out := make([]byte, len(data)+1)
		out[0] = flagPlain
		copy(out[1:], data)
		return out, nil
	}
	out := make([]byte, len(packed)+1)
	out[0] = flagCompressed
	copy(out[1:], packed)
	return out, nil
}

func decompressPayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	flag, body := data[0], data[1:]
	if flag == flagPlain {
		return body, nil
	}
	return zappy.Decode(nil, body)
}
