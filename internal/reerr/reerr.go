// Package reerr defines the small set of typed resolution errors the core produces (spec 7). They
// live in an internal package, rather than the root aresolve package directly, purely to let
// internal/mux and internal/recurse construct them without creating an import cycle with the root
// package; aresolve re-exports each one as a type alias so callers never see this package name.
package reerr

import (
	"fmt"
	"time"

	"github.com/dingostack/aresolve/internal/rr"
)

// InvalidNameError reports a host name that failed the syntax check of spec 4.1.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("aresolve: invalid host name %q", e.Name)
}

// ServerFailureError reports a non-zero response code from an upstream server.
type ServerFailureError struct {
	Server string
	Rcode  int
}

func (e *ServerFailureError) Error() string {
	return fmt.Sprintf("aresolve: server %s returned response code %d", e.Server, e.Rcode)
}

// NoRecordError reports a response with an empty answer section for the requested kind.
type NoRecordError struct {
	Name string
	Kind rr.Kind
}

func (e *NoRecordError) Error() string {
	return fmt.Sprintf("aresolve: no %s record found for %q", e.Kind, e.Name)
}

// TruncationError reports a TCP response that was itself truncated, which per spec 4.6 is
// unrecoverable: there is no further transport to escalate to.
type TruncationError struct {
	Server string
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("aresolve: server %s returned a truncated TCP response", e.Server)
}

// ConnectionError wraps a transport-level failure: dial failure, short write, read/decode/protocol
// error, or an unexpected message type. Every request outstanding on a faulted connection is failed
// with the same ConnectionError (spec 4.5's fault lifecycle).
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("aresolve: connection to %s failed: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ChainTooLongError reports a CNAME/DNAME chase that exceeded the 30-hop bound of spec 4.7.
type ChainTooLongError struct {
	Name string
	Hops int
}

func (e *ChainTooLongError) Error() string {
	return fmt.Sprintf("aresolve: CNAME/DNAME chain for %q exceeded %d hops", e.Name, e.Hops)
}

// TimeoutError reports that the overall per-call timeout (spec 4.8) elapsed before every
// outstanding upstream request completed.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("aresolve: resolving %q timed out after %s", e.Name, e.Timeout)
}
