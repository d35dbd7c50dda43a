package arq

import (
	"testing"
)

// wire connects two ARQ blocks through an in-memory, loss-capable channel
// instead of a real socket, so tests are deterministic and need no toolchain
// network access.
type wire struct {
	drop    func(n int) bool
	sent    int
	inbound [][]byte
}

func newLink(drop func(int) bool) (*wire, *wire) {
	a := &wire{drop: drop}
	b := &wire{drop: drop}
	return a, b
}

func (w *wire) deliverTo(peer *wire) OutputFunc {
	return func(datagram []byte) error {
		cp := append([]byte(nil), datagram...)
		n := w.sent
		w.sent++
		if w.drop != nil && w.drop(n) {
			return nil
		}
		peer.inbound = append(peer.inbound, cp)
		return nil
	}
}

func (w *wire) drain(dst *ARQ) {
	for _, d := range w.inbound {
		_ = dst.Input(d)
	}
	w.inbound = nil
}

func TestSendRecvInOrderNoLoss(t *testing.T) {
	linkAB, linkBA := newLink(nil)
	a := Create(1)
	b := Create(1)
	a.SetOutput(linkAB.deliverTo(linkBA))
	b.SetOutput(linkBA.deliverTo(linkAB))
	a.Configure(ModeFast)
	b.Configure(ModeFast)

	msg := []byte("hello, peer")
	if err := a.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var clock uint32
	buf := make([]byte, 2048)
	for i := 0; i < 200; i++ {
		clock += 10
		a.Update(clock)
		b.Update(clock)
		linkBA.drain(b)
		linkAB.drain(a)

		if n, err := b.Recv(buf); err == nil {
			if string(buf[:n]) != string(msg) {
				t.Fatalf("got %q want %q", buf[:n], msg)
			}
			return
		}
	}
	t.Fatal("message never arrived within simulated window")
}

func TestFragmentationReassemblesInOrder(t *testing.T) {
	linkAB, linkBA := newLink(nil)
	a := Create(7)
	b := Create(7)
	a.SetOutput(linkAB.deliverTo(linkBA))
	b.SetOutput(linkBA.deliverTo(linkAB))
	a.SetMTU(64) // force multi-segment fragmentation for a modest payload
	b.SetMTU(64)
	a.Configure(ModeFast)
	b.Configure(ModeFast)

	msg := make([]byte, 500)
	for i := range msg {
		msg[i] = byte(i)
	}
	if err := a.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var clock uint32
	buf := make([]byte, 2048)
	for i := 0; i < 400; i++ {
		clock += 10
		a.Update(clock)
		b.Update(clock)
		linkBA.drain(b)
		linkAB.drain(a)

		if n, err := b.Recv(buf); err == nil {
			if n != len(msg) {
				t.Fatalf("got %d bytes want %d", n, len(msg))
			}
			for i := range msg {
				if buf[i] != msg[i] {
					t.Fatalf("reassembled payload mismatch at byte %d", i)
				}
			}
			return
		}
	}
	t.Fatal("fragmented message never reassembled within simulated window")
}

func TestSurvivesLossViaRetransmit(t *testing.T) {
	dropEveryThird := func(n int) bool { return n%3 == 2 }
	linkAB, linkBA := newLink(dropEveryThird)
	a := Create(3)
	b := Create(3)
	a.SetOutput(linkAB.deliverTo(linkBA))
	b.SetOutput(linkBA.deliverTo(linkAB))
	a.Configure(ModeBalanced)
	b.Configure(ModeBalanced)

	const messages = 20
	for i := 0; i < messages; i++ {
		if err := a.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	var clock uint32
	buf := make([]byte, 64)
	got := 0
	for i := 0; i < 5000 && got < messages; i++ {
		clock += 5
		a.Update(clock)
		b.Update(clock)
		linkBA.drain(b)
		linkAB.drain(a)

		for {
			n, err := b.Recv(buf)
			if err != nil {
				break
			}
			if n != 1 || buf[0] != byte(got) {
				t.Fatalf("message %d arrived out of order: got %v", got, buf[:n])
			}
			got++
		}
	}
	if got != messages {
		t.Fatalf("only %d/%d messages arrived despite retransmission", got, messages)
	}
}

func TestWaitSndReachesZeroAfterDelivery(t *testing.T) {
	linkAB, linkBA := newLink(nil)
	a := Create(9)
	b := Create(9)
	a.SetOutput(linkAB.deliverTo(linkBA))
	b.SetOutput(linkBA.deliverTo(linkAB))
	a.Configure(ModeFast)
	b.Configure(ModeFast)

	_ = a.Send([]byte("drain me"))
	if a.WaitSnd() == 0 {
		t.Fatal("expected WaitSnd > 0 immediately after Send")
	}

	var clock uint32
	buf := make([]byte, 64)
	for i := 0; i < 200 && a.WaitSnd() > 0; i++ {
		clock += 10
		a.Update(clock)
		b.Update(clock)
		linkBA.drain(b)
		linkAB.drain(a)
		_, _ = b.Recv(buf)
	}
	if a.WaitSnd() != 0 {
		t.Fatalf("expected WaitSnd to drain to 0, got %d", a.WaitSnd())
	}
}

func TestRecvReturnsErrNoDataWhenEmpty(t *testing.T) {
	a := Create(1)
	a.SetOutput(func([]byte) error { return nil })
	if _, err := a.Recv(make([]byte, 16)); err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestInputRejectsWrongConv(t *testing.T) {
	a := Create(1)
	b := Create(2)
	b.SetOutput(func([]byte) error { return nil })
	_ = b.Send([]byte("x"))
	b.Update(10)

	var captured []byte
	b.SetOutput(func(d []byte) error { captured = append([]byte(nil), d...); return nil })
	_ = b.Send([]byte("y"))
	b.Update(110) // next flush: 10 + the default 100ms interval

	if captured == nil {
		t.Skip("nothing captured to cross-feed; timing dependent on flush interval")
	}
	if err := a.Input(captured); err == nil {
		t.Fatal("expected conversation id mismatch error")
	}
}

func TestSnapshotReportsCongestionState(t *testing.T) {
	a := Create(1)
	a.SetOutput(func([]byte) error { return nil })
	s := a.Snapshot()
	if s.Cwnd == 0 {
		t.Fatal("expected a non-zero initial cwnd")
	}
}
