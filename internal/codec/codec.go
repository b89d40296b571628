// Package codec defines the minimal boundary the resolver core depends on for building, encoding
// and decoding DNS messages (spec 4.4). The core treats message encoding and decoding as an opaque
// external collaborator; this interface names the exact, small surface it needs so that the real
// wire format can be swapped out (or mocked in tests) without touching the multiplexer, the
// recursion driver or the resolver entry point.
package codec

import "github.com/dingostack/aresolve/internal/rr"

// MsgType distinguishes a query from a response, per spec 4.4.
type MsgType int

const (
	MsgQuery MsgType = iota
	MsgResponse
)

// Response is everything the core needs to read out of a decoded reply.
type Response interface {
	ID() uint16
	Rcode() int // 0 == success; spec 7 Server-failure carries this code when non-zero
	Type() MsgType
	Truncated() bool
	Answers() []rr.Answer
}

// Codec builds outbound queries and decodes inbound byte streams into a Response. Implementations
// are expected to be stateless and safe for concurrent use; the core itself calls into a Codec only
// on the reactor goroutine (BuildQuery in mux.Request, Decode in the dispatch callback), never from
// the connection reader goroutines.
type Codec interface {
	// BuildQuery constructs and wire-encodes a query for qname/kind with the given 16-bit id and
	// recursion-desired set, per spec 4.4.
	BuildQuery(id uint16, qname string, kind rr.Kind) ([]byte, error)

	// Decode parses a complete wire-format message (one UDP datagram, or one already-length-
	// delimited TCP frame) into a Response.
	Decode(payload []byte) (Response, error)
}
