package transport

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/dingostack/aresolve/internal/constants"
)

// udpConn implements Conn over a connected UDP socket. Per spec 4.5, each readable event yields
// exactly one response message of at most constants.UDPReadSize bytes.
type udpConn struct {
	uri    URI
	conn   net.Conn
	closed atomic.Bool
}

func dialUDP(uri URI, submit Submit, onFrame OnFrame) (Conn, error) {
	c, err := net.Dial("udp", uri.DialAddr())
	if err != nil {
		return nil, fmt.Errorf("transport.dialUDP %s: %w", uri, err)
	}

	t := &udpConn{uri: uri, conn: c}
	go t.readLoop(submit, onFrame)
	return t, nil
}

func (t *udpConn) URI() URI { return t.uri }

func (t *udpConn) Send(payload []byte) error {
	n, err := t.conn.Write(payload)
	if err != nil {
		return fmt.Errorf("transport.udpConn.Send %s: %w", t.uri, err)
	}
	if n != len(payload) {
		return fmt.Errorf("transport.udpConn.Send %s: short write %d of %d bytes", t.uri, n, len(payload))
	}
	return nil
}

func (t *udpConn) Close() error {
	t.closed.Store(true)
	return t.conn.Close()
}

func (t *udpConn) readLoop(submit Submit, onFrame OnFrame) {
	buf := make([]byte, constants.Get().UDPReadSize)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			if t.closed.Load() {
				return // Deliberate Close(): don't report a fault for our own teardown
			}
			submit(func() { onFrame(nil, fmt.Errorf("transport.udpConn read %s: %w", t.uri, err)) })
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		submit(func() { onFrame(payload, nil) })
	}
}
