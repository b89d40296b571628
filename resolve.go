package aresolve

import (
	"context"
	"errors"
	"time"

	"github.com/dingostack/aresolve/internal/answercache"
	"github.com/dingostack/aresolve/internal/dnsname"
	"github.com/dingostack/aresolve/internal/hostsfile"
	"github.com/dingostack/aresolve/internal/recurse"
	"github.com/dingostack/aresolve/internal/reerr"
	"github.com/dingostack/aresolve/internal/rr"
	"github.com/dingostack/aresolve/internal/transport"
)

// Resolve implements spec 4.8's resolve(name, options): by default looks up A and AAAA, chasing
// CNAME/DNAME chains (spec 4.7) for whichever types aren't already satisfied by an IP literal, the
// hosts file, or the cache.
func (r *Resolver) Resolve(ctx context.Context, name string, opts ...QueryOption) ([]Answer, error) {
	qo := newQueryOptions(r.cfg, opts)
	types := qo.types
	if len(types) == 0 {
		types = []Kind{rr.KindA, rr.KindAAAA}
	}
	return r.lookup(ctx, name, dedupKinds(types), true, qo)
}

// Query implements spec 4.8's query(name, type, options): a single record kind, with CNAME/DNAME
// chasing disabled unless the caller passes Recurse().
func (r *Resolver) Query(ctx context.Context, name string, kind Kind, opts ...QueryOption) ([]Answer, error) {
	qo := newQueryOptions(r.cfg, opts)
	return r.lookup(ctx, name, []Kind{kind}, qo.recurse, qo)
}

// lookup runs spec 4.8's seven-step pipeline: literal shortcut, name validation, hosts, cache,
// upstream dispatch (chasing aliases when chase is true), then order the merged result by the
// caller's original type priority.
func (r *Resolver) lookup(ctx context.Context, name string, types []Kind, chase bool, qo queryOptions) ([]Answer, error) {
	switch dnsname.Classify(name) {
	case dnsname.IP4Literal:
		return []Answer{{Data: name, Kind: rr.KindA, TTL: rr.UnsetTTL}}, nil
	case dnsname.IP6Literal:
		return []Answer{{Data: name, Kind: rr.KindAAAA, TTL: rr.UnsetTTL}}, nil
	case dnsname.Invalid:
		return nil, &reerr.InvalidNameError{Name: name}
	}

	lname := dnsname.Lowercase(name)

	var results []Answer
	satisfied := make(map[Kind]bool, len(types))

	if !qo.noHosts {
		hosts, err := r.hosts.Load(ctx, qo.reloadHosts)
		if err != nil {
			return nil, err
		}
		for _, k := range types {
			if addr, ok := hosts[hostsfile.Key{Kind: k, Name: lname}]; ok {
				results = append(results, Answer{Data: addr, Kind: k, TTL: rr.UnsetTTL})
				satisfied[k] = true
			}
		}
		if len(satisfied) == len(types) {
			return orderByKind(results, types), nil
		}
	}

	var toQuery []Kind
	for _, k := range types {
		if satisfied[k] {
			continue
		}
		if !qo.noCache {
			if cached, ok := r.cache.Get(answercache.Key{Name: lname, Kind: k}); ok {
				results = append(results, cached...)
				satisfied[k] = true
				continue
			}
		}
		toQuery = append(toQuery, k)
	}
	if len(toQuery) == 0 {
		return orderByKind(results, types), nil
	}

	uri, fromPool, err := r.upstreamURI(qo)
	if err != nil {
		return nil, err
	}

	qctx, cancel := context.WithTimeout(ctx, qo.timeout)
	defer cancel()

	start := time.Now()
	grouped, err := r.dispatch(qctx, uri, lname, toQuery, chase)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if fromPool {
				r.pool.Result(uri, false, time.Now(), qo.timeout)
			}
			return nil, &reerr.TimeoutError{Name: name, Timeout: qo.timeout}
		}
		return nil, err
	}
	if fromPool {
		r.pool.Result(uri, true, time.Now(), time.Since(start))
	}

	for _, answers := range grouped {
		results = append(results, answers...)
	}

	return orderByKind(results, types), nil
}

type dispatchResult struct {
	grouped map[rr.Kind][]rr.Answer
	err     error
}

// dispatch issues the upstream exchange(s) for toQuery on the reactor goroutine, waiting for either
// completion or ctx's deadline. On timeout the outstanding request is left running per spec 5: its
// late reply still populates the cache via mux.finalize, and the result delivered on resultCh here
// is simply never read.
func (r *Resolver) dispatch(ctx context.Context, uri transport.URI, name string, toQuery []Kind, chase bool) (map[rr.Kind][]rr.Answer, error) {
	resultCh := make(chan dispatchResult, 1)
	cb := func(grouped map[rr.Kind][]rr.Answer, err error) {
		resultCh <- dispatchResult{grouped, err}
	}

	r.reactor.Submit(func() {
		if chase {
			if err := recurse.Run(r.mux, uri, name, toQuery, cb); err != nil {
				resultCh <- dispatchResult{nil, err}
			}
			return
		}
		r.mux.Request(uri, name, toQuery[0], cb)
	})

	select {
	case res := <-resultCh:
		return res.grouped, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// upstreamURI resolves the per-call server override, the upstream pool's current best candidate, or
// the Resolver's configured single server, in that priority order (spec 6, SPEC_FULL 4.10). fromPool
// reports whether uri came from r.pool, so the caller knows whether to report the outcome back to
// it via r.pool.Result.
func (r *Resolver) upstreamURI(qo queryOptions) (uri transport.URI, fromPool bool, err error) {
	if qo.hasServer {
		uri, err = transport.ParseUpstream(qo.server, defaultDNSPort)
		return uri, false, err
	}
	if r.pool != nil {
		best, _ := r.pool.Best()
		return best, true, nil
	}
	return r.defaultURI, false, nil
}

// dedupKinds removes duplicate kinds from types while preserving first-occurrence order, per spec
// 4.8 step 3.
func dedupKinds(types []Kind) []Kind {
	out := make([]Kind, 0, len(types))
	seen := make(map[Kind]bool, len(types))
	for _, k := range types {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// orderByKind implements spec 4.8 step 7: for each type in the caller's original request order,
// emit all of that type's records, then append anything left over (kinds present in the result but
// not in the original request, e.g. none in practice since aliases are stripped by internal/recurse,
// but kept for robustness).
func orderByKind(answers []Answer, types []Kind) []Answer {
	out := make([]Answer, 0, len(answers))
	used := make([]bool, len(answers))

	for _, k := range types {
		for i, a := range answers {
			if !used[i] && a.Kind == k {
				out = append(out, a)
				used[i] = true
			}
		}
	}
	for i, a := range answers {
		if !used[i] {
			out = append(out, a)
		}
	}
	return out
}
