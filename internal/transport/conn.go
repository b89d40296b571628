// Package transport implements the per-upstream-URI server connection of spec 4.5: a socket (UDP,
// TCP or the DNS-over-HTTPS extension described in SPEC_FULL 4.5), its framing, and its send/receive
// mechanics. It deliberately knows nothing about request ids, pending sets or idle expiry — that
// bookkeeping belongs to the multiplexer (internal/mux), which is the thing that actually needs it
// to satisfy spec 4.6's demultiplexing. Each UDP or TCP connection owns one background reader
// goroutine that performs ordinary blocking reads, and a DoH connection starts one goroutine per
// Send; either way each raw frame is handed back to the caller's single-threaded reactor via the
// supplied Submit function, so that all resulting state mutation still happens on one goroutine
// as spec 5 requires.
package transport

import (
	"crypto/tls"
)

// Submit hands a closure to the caller's single serialized event loop. Every Conn implementation
// calls Submit from its background goroutine(s) instead of mutating anything itself.
type Submit func(func())

// OnFrame is invoked (always via Submit) once per complete inbound message, or exactly once with a
// non-nil err when the connection has become unusable and will deliver no further frames.
type OnFrame func(payload []byte, err error)

// Conn is one live server connection.
type Conn interface {
	URI() URI

	// Send wire-encodes and transmits a single query. A short write or write error is returned
	// synchronously, per spec 4.5.
	Send(payload []byte) error

	// Close tears down the socket. Safe to call more than once.
	Close() error
}

// Dial opens a new Conn for uri, starting its background reader. tlsConfig is only consulted for
// SchemeDoH; it may be nil to use the system defaults.
func Dial(uri URI, submit Submit, onFrame OnFrame, tlsConfig *tls.Config) (Conn, error) {
	switch uri.Scheme {
	case SchemeUDP:
		return dialUDP(uri, submit, onFrame)
	case SchemeTCP:
		return dialTCP(uri, submit, onFrame)
	case SchemeDoH:
		return dialDoH(uri, submit, onFrame, tlsConfig), nil
	default:
		return nil, &UnsupportedSchemeError{Scheme: uri.Scheme}
	}
}

// UnsupportedSchemeError is returned by Dial for any scheme other than udp/tcp/https.
type UnsupportedSchemeError struct {
	Scheme Scheme
}

func (e *UnsupportedSchemeError) Error() string {
	return "transport: unsupported scheme " + string(e.Scheme)
}
