package rudp

import (
	"net"
	"time"
)

// Socket is the transport boundary a Multiplexer sends and receives
// through. The default implementation wraps *net.UDPConn; tests substitute
// an in-memory Socket to exercise loss/reordering deterministically.
type Socket interface {
	SendTo(addr net.Addr, data []byte) error
	RecvFrom(buf []byte) (n int, from net.Addr, err error)
	LocalAddr() net.Addr
	SetReadDeadline(t time.Time) error
	Close() error
}

// udpSocket is the production Socket, grounded on pipe.Listener's use of
// net.ListenUDP/ReadFromUDP/WriteToUDP.
type udpSocket struct {
	conn *net.UDPConn
}

// newUDPSocket binds a UDP socket at addr ("" or ":0" picks an ephemeral
// local port, matching net.ListenUDP's own convention).
func newUDPSocket(addr string) (*udpSocket, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &udpSocket{conn: conn}, nil
}

func (s *udpSocket) SendTo(addr net.Addr, data []byte) error {
	_, err := s.conn.WriteTo(data, addr)
	return err
}

func (s *udpSocket) RecvFrom(buf []byte) (int, net.Addr, error) {
	return s.conn.ReadFromUDP(buf)
}

func (s *udpSocket) LocalAddr() net.Addr               { return s.conn.LocalAddr() }
func (s *udpSocket) SetReadDeadline(t time.Time) error { return s.conn.SetReadDeadline(t) }
func (s *udpSocket) Close() error                      { return s.conn.Close() }
