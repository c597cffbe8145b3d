package udp

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

type recordingConn struct {
	mu       sync.Mutex
	frames   [][]byte
	failWith error
	closed   int
}

func (c *recordingConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return 0, c.failWith
	}
	c.frames = append(c.frames, append([]byte(nil), p...))
	return len(p), nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func fakeDial(conn udpConn, err error) dialFunc {
	return func(string, *net.UDPAddr, *net.UDPAddr) (udpConn, error) { return conn, err }
}

func TestNewBroadcaster_Errors(t *testing.T) {
	resolveErr := errors.New("no such host")
	dialErr := errors.New("network unreachable")

	cases := []struct {
		name    string
		resolve resolveFunc
		dial    dialFunc
		want    error
	}{
		{
			name:    "resolve",
			resolve: func(string, string) (*net.UDPAddr, error) { return nil, resolveErr },
			dial:    fakeDial(&recordingConn{}, nil),
			want:    resolveErr,
		},
		{
			name:    "dial",
			resolve: net.ResolveUDPAddr,
			dial:    fakeDial(nil, dialErr),
			want:    dialErr,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := newBroadcaster("192.168.10.255:14550", tc.resolve, tc.dial)
			if b != nil {
				t.Fatalf("broadcaster=%v want nil", b)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
		})
	}
}

func TestNewBroadcaster_PassesResolvedDest(t *testing.T) {
	var got *net.UDPAddr
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		if network != "udp" || laddr != nil {
			t.Fatalf("network=%q laddr=%v", network, laddr)
		}
		got = raddr
		return &recordingConn{}, nil
	}
	b, err := newBroadcaster("10.0.0.7:14550", net.ResolveUDPAddr, dial)
	if err != nil {
		t.Fatalf("newBroadcaster: %v", err)
	}
	defer b.Close()
	if got == nil || got.Port != 14550 || !got.IP.Equal(net.IPv4(10, 0, 0, 7)) {
		t.Fatalf("raddr=%v want 10.0.0.7:14550", got)
	}
	if b.Dest() != "10.0.0.7:14550" {
		t.Fatalf("Dest()=%q", b.Dest())
	}
}

func TestBroadcaster_SendFrames(t *testing.T) {
	rc := &recordingConn{}
	b := &Broadcaster{dest: "x", conn: rc}

	frame := []byte{0x7E, 0x01, 0x7D, 0x5E, 0x10, 0x7E}
	if err := b.Send(nil); err != nil {
		t.Fatalf("Send(nil): %v", err)
	}
	if err := b.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if rc.count() != 1 {
		t.Fatalf("frames=%d want 1", rc.count())
	}
	if !bytes.Equal(rc.frames[0], frame) {
		t.Fatalf("frame=% x want % x", rc.frames[0], frame)
	}

	rc.failWith = errors.New("host down")
	if err := b.Send(frame); !errors.Is(err, rc.failWith) {
		t.Fatalf("err=%v want %v", err, rc.failWith)
	}
}

func TestBroadcaster_ConcurrentSendThenClose(t *testing.T) {
	rc := &recordingConn{}
	b := &Broadcaster{dest: "x", conn: rc}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = b.Send([]byte{0x7E, id, 0x7E})
			}
		}(byte(i))
	}
	wg.Wait()
	if rc.count() != 200 {
		t.Fatalf("frames=%d want 200", rc.count())
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if rc.closed != 1 {
		t.Fatalf("closed=%d want 1", rc.closed)
	}
	if err := b.Send([]byte{0x7E}); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestBroadcaster_Loopback(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("loopback udp unavailable: %v", err)
	}
	defer ln.Close()

	b, err := NewBroadcaster(ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewBroadcaster: %v", err)
	}
	defer b.Close()

	want := []byte{0x7E, 0x02, 0x00, 0x7E}
	if err := b.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := ln.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	if !bytes.Equal(buf[:n], want) {
		t.Fatalf("got=% x want % x", buf[:n], want)
	}
}
