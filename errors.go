package aresolve

import "github.com/dingostack/aresolve/internal/reerr"

// The error kinds of spec 7, each satisfying error and unwrappable via errors.As/errors.Is. They
// are defined in internal/reerr (see that package's doc comment for why) and re-exported here as
// plain aliases so a caller never has to import an internal package to type-assert on them:
//
//	var invalid *aresolve.InvalidNameError
//	if errors.As(err, &invalid) { ... }
type (
	// InvalidNameError reports a host name that failed the syntax check of spec 4.1. A Query for
	// the CNAME or DNAME kind with Recurse() is rejected with a separate sentinel error, not this type.
	InvalidNameError = reerr.InvalidNameError

	// ServerFailureError reports a non-zero response code from an upstream server.
	ServerFailureError = reerr.ServerFailureError

	// NoRecordError reports a response with an empty answer section for the requested kind.
	NoRecordError = reerr.NoRecordError

	// TruncationError reports a TCP response that was itself truncated: there is no further
	// transport to escalate to.
	TruncationError = reerr.TruncationError

	// ConnectionError wraps a transport-level failure: dial failure, short write, or a read/decode/
	// protocol error. Every request outstanding on a faulted connection fails with the same one.
	ConnectionError = reerr.ConnectionError

	// ChainTooLongError reports a CNAME/DNAME chase that exceeded the 30-hop bound of spec 4.7.
	ChainTooLongError = reerr.ChainTooLongError

	// TimeoutError reports that the overall per-call timeout elapsed before every outstanding
	// upstream request completed. Requests already in flight are left running; their answers, if
	// any arrive, still populate the cache.
	TimeoutError = reerr.TimeoutError
)
