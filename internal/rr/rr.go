// Package rr defines the record-kind and answer-record types shared by every aresolve package. It
// is the tagged-variant vocabulary the rest of the module reasons about: A, AAAA, CNAME and DNAME
// are distinguished by behavior everywhere else; any other wire type code passes through as Other.
package rr

import (
	"fmt"

	"github.com/miekg/dns"
)

// Kind identifies a DNS record type. The resolver's core logic only branches on A, AAAA, CNAME and
// DNAME; every other on-the-wire type is carried through as OtherKind with its numeric code
// preserved so a caller can still see what came back.
type Kind struct {
	code  uint16
	other bool
}

var (
	KindA     = Kind{code: dns.TypeA}
	KindAAAA  = Kind{code: dns.TypeAAAA}
	KindCNAME = Kind{code: dns.TypeCNAME}
	KindDNAME = Kind{code: dns.TypeDNAME}
)

// OtherKind wraps any record type code this package doesn't special-case.
func OtherKind(code uint16) Kind {
	switch code {
	case dns.TypeA, dns.TypeAAAA, dns.TypeCNAME, dns.TypeDNAME:
		return Kind{code: code}
	}
	return Kind{code: code, other: true}
}

// Code returns the numeric DNS type code, e.g. 1 for A, 28 for AAAA.
func (k Kind) Code() uint16 {
	return k.code
}

// IsAlias reports whether k is CNAME or DNAME, the two kinds the recursion driver chases.
func (k Kind) IsAlias() bool {
	return k == KindCNAME || k == KindDNAME
}

// String renders the kind the way dns.TypeToString does, falling back to "TYPE<code>" for
// anything this package doesn't name.
func (k Kind) String() string {
	if s, ok := dns.TypeToString[k.code]; ok {
		return s
	}
	return fmt.Sprintf("TYPE%d", k.code)
}

// UnsetTTL marks an Answer sourced from an IP literal or the hosts file: never cached, never
// expires.
const UnsetTTL = -1

// Answer is one (address-or-target, kind, TTL) triple, the unit of result the resolver returns.
type Answer struct {
	Data string // Textual address (A/AAAA) or target name (CNAME/DNAME) or other RDATA text
	Kind Kind
	TTL  int // Seconds, or UnsetTTL
}
