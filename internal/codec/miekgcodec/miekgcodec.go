// Package miekgcodec is the concrete codec.Codec adapter over github.com/miekg/dns, the wire-format
// library used throughout the corpus this module was adapted from. Apart from internal/dnsutil's
// log formatter, which it calls, it is the only non-test code that mentions dns.Msg: everything
// else in the module speaks in terms of rr.Answer and codec.Response.
package miekgcodec

import (
	"fmt"
	"log"

	"github.com/miekg/dns"

	"github.com/dingostack/aresolve/internal/codec"
	"github.com/dingostack/aresolve/internal/dnsutil"
	"github.com/dingostack/aresolve/internal/rr"
)

const me = "miekgcodec"

// Codec implements codec.Codec using github.com/miekg/dns. The zero value is ready to use. Apart
// from internal/dnsutil's log formatter, it is the only non-test code that mentions dns.Msg:
// everything else in the module speaks in terms of rr.Answer and codec.Response.
type Codec struct {
	logger *log.Logger // nil means quiet, the common case
}

// New returns a ready-to-use Codec that logs nothing.
func New() *Codec {
	return &Codec{}
}

// NewWithLogger returns a Codec that writes a compact one-line trace of every query it builds and
// response it decodes to l, via internal/dnsutil's log-oriented message formatter.
func NewWithLogger(l *log.Logger) *Codec {
	return &Codec{logger: l}
}

// BuildQuery constructs a single-question query with recursion-desired set and packs it to wire
// format, per spec 4.4. No EDNS0 OPT record is attached, per spec 6.
func (c Codec) BuildQuery(id uint16, qname string, kind rr.Kind) ([]byte, error) {
	m := new(dns.Msg)
	m.Id = id
	m.RecursionDesired = true
	m.Question = []dns.Question{{Name: dns.Fqdn(qname), Qtype: kind.Code(), Qclass: dns.ClassINET}}

	buf, err := m.Pack()
	if err != nil {
		return nil, fmt.Errorf(me+".BuildQuery: %w", err)
	}
	if c.logger != nil {
		c.logger.Println("Q:" + dnsutil.CompactMsgString(m))
	}
	return buf, nil
}

// Decode unpacks a complete wire-format message.
func (c Codec) Decode(payload []byte) (codec.Response, error) {
	m := new(dns.Msg)
	if err := m.Unpack(payload); err != nil {
		return nil, fmt.Errorf(me+".Decode: %w", err)
	}
	if c.logger != nil {
		c.logger.Println("R:" + dnsutil.CompactMsgString(m))
	}
	return &response{msg: m}, nil
}

type response struct {
	msg *dns.Msg
}

func (r *response) ID() uint16 {
	return r.msg.Id
}

func (r *response) Rcode() int {
	return r.msg.Rcode
}

func (r *response) Type() codec.MsgType {
	if r.msg.Response {
		return codec.MsgResponse
	}
	return codec.MsgQuery
}

func (r *response) Truncated() bool {
	return r.msg.Truncated
}

func (r *response) Answers() []rr.Answer {
	out := make([]rr.Answer, 0, len(r.msg.Answer))
	for _, a := range r.msg.Answer {
		out = append(out, answerFromRR(a))
	}
	return out
}

// answerFromRR translates one dns.RR into an rr.Answer. A, AAAA, CNAME and DNAME are given their
// natural textual data; anything else carries its full presentation-format string so it's at least
// inspectable, per spec 9's "opaque 'other code = N' case".
func answerFromRR(a dns.RR) rr.Answer {
	hdr := a.Header()
	kind := rr.OtherKind(hdr.Rrtype)
	ttl := int(hdr.Ttl)

	switch v := a.(type) {
	case *dns.A:
		return rr.Answer{Data: v.A.String(), Kind: rr.KindA, TTL: ttl}
	case *dns.AAAA:
		return rr.Answer{Data: v.AAAA.String(), Kind: rr.KindAAAA, TTL: ttl}
	case *dns.CNAME:
		return rr.Answer{Data: v.Target, Kind: rr.KindCNAME, TTL: ttl}
	case *dns.DNAME:
		return rr.Answer{Data: v.Target, Kind: rr.KindDNAME, TTL: ttl}
	default:
		return rr.Answer{Data: a.String(), Kind: kind, TTL: ttl}
	}
}
