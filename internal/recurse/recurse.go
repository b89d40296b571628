// Package recurse implements the CNAME/DNAME chase of spec 4.7 on top of internal/mux. It augments
// the caller's requested kinds with CNAME and DNAME, issues one mux.Request per augmented kind,
// and either returns the caller's kinds directly (stripped of any alias records) or follows the
// alias target and repeats, up to a 30-hop bound.
package recurse

import (
	"errors"

	"github.com/dingostack/aresolve/internal/mux"
	"github.com/dingostack/aresolve/internal/reerr"
	"github.com/dingostack/aresolve/internal/rr"
	"github.com/dingostack/aresolve/internal/transport"
)

// maxHops bounds the chase per spec 4.7; exceeding it is a resolution error, not a panic or an
// infinite loop.
const maxHops = 30

// Callback receives the final grouped result (restricted to the originally requested kinds) or an
// error. Always invoked exactly once, on the reactor goroutine.
type Callback func(grouped map[rr.Kind][]rr.Answer, err error)

// ErrAliasKindRequested is returned synchronously (never via Callback) when types itself names
// CNAME or DNAME: spec 4.7 says such a request is "rejected up front", before any query is issued.
var ErrAliasKindRequested = errors.New("recurse: CNAME/DNAME cannot be requested directly")

// Run chases name through CNAME/DNAME indirection against uri until a record of one of the
// requested types is found, a chain of more than maxHops aliases is seen, or an upstream error
// occurs. It returns ErrAliasKindRequested synchronously if types contains CNAME or DNAME;
// otherwise it returns nil immediately and completes asynchronously via cb.
func Run(m *mux.Mux, uri transport.URI, name string, types []rr.Kind, cb Callback) error {
	for _, k := range types {
		if k.IsAlias() {
			return ErrAliasKindRequested
		}
	}

	s := &chase{m: m, uri: uri, name: name, types: append([]rr.Kind(nil), types...), cb: cb}
	s.step()
	return nil
}

type chase struct {
	m     *mux.Mux
	uri   transport.URI
	name  string
	types []rr.Kind
	cb    Callback
	hops  int
}

func (s *chase) step() {
	s.hops++
	if s.hops > maxHops {
		s.cb(nil, &reerr.ChainTooLongError{Name: s.name, Hops: maxHops})
		return
	}

	augmented := augmentWithAliases(s.types)
	remaining := len(augmented)
	merged := make(map[rr.Kind][]rr.Answer)
	var failure error

	for _, kind := range augmented {
		s.m.Request(s.uri, s.name, kind, func(grouped map[rr.Kind][]rr.Answer, err error) {
			remaining--

			switch err.(type) {
			case nil:
				for k, answers := range grouped {
					merged[k] = answers // Later query for the same kind simply supersedes; no point appending dupes.
				}
			case *reerr.NoRecordError:
				// Expected and common: this one augmented kind just isn't present. Not a failure.
			default:
				if failure == nil {
					failure = err
				}
			}

			if remaining == 0 {
				s.finishRound(merged, failure)
			}
		})
	}
}

func (s *chase) finishRound(merged map[rr.Kind][]rr.Answer, failure error) {
	if failure != nil {
		s.cb(nil, failure)
		return
	}

	stripped := make(map[rr.Kind][]rr.Answer)
	found := false
	for _, k := range s.types {
		if answers, ok := merged[k]; ok {
			stripped[k] = answers
			found = true
		}
	}
	if found {
		s.cb(stripped, nil)
		return
	}

	target, ok := aliasTarget(merged)
	if !ok {
		s.cb(nil, &reerr.NoRecordError{Name: s.name, Kind: s.types[0]})
		return
	}

	s.name = target
	s.step()
}

// aliasTarget returns the chase's next name, preferring DNAME over CNAME when both are present in
// the same reply, per spec 4.7's "DNAME takes precedence... following the source order of the
// enum" (rr.Kind declares DNAME after CNAME; both resolve to the alias's own target field here).
func aliasTarget(merged map[rr.Kind][]rr.Answer) (string, bool) {
	if answers := merged[rr.KindDNAME]; len(answers) > 0 {
		return answers[0].Data, true
	}
	if answers := merged[rr.KindCNAME]; len(answers) > 0 {
		return answers[0].Data, true
	}
	return "", false
}

func augmentWithAliases(types []rr.Kind) []rr.Kind {
	out := append([]rr.Kind(nil), types...)
	haveCNAME, haveDNAME := false, false
	for _, t := range types {
		switch t {
		case rr.KindCNAME:
			haveCNAME = true
		case rr.KindDNAME:
			haveDNAME = true
		}
	}
	if !haveCNAME {
		out = append(out, rr.KindCNAME)
	}
	if !haveDNAME {
		out = append(out, rr.KindDNAME)
	}
	return out
}
