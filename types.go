package aresolve

import "github.com/dingostack/aresolve/internal/rr"

// Kind identifies a DNS record type. See internal/rr's doc comment: the resolver only branches on
// A, AAAA, CNAME and DNAME; every other wire type code passes through as OtherKind.
type Kind = rr.Kind

// Answer is one (address-or-target, kind, TTL) triple, the unit of result Resolve and Query return.
type Answer = rr.Answer

// UnsetTTL marks an Answer sourced from an IP literal or the hosts file: never cached, never
// expires.
const UnsetTTL = rr.UnsetTTL

// The record kinds the resolver special-cases. Any other on-the-wire type is wrapped with
// OtherKind.
var (
	KindA     = rr.KindA
	KindAAAA  = rr.KindAAAA
	KindCNAME = rr.KindCNAME
	KindDNAME = rr.KindDNAME
)

// OtherKind wraps a numeric DNS type code this package doesn't special-case.
func OtherKind(code uint16) Kind {
	return rr.OtherKind(code)
}
