package serverpool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dingostack/aresolve/internal/transport"
)

// LatencyConfig defines all the public parameters that the calling application can set. They
// control reassessment rate, the frequency at which sampling of servers occurs and how much
// influence the latest latency has on the overall "weight" of the server.
type LatencyConfig struct {
	ReassessAfter     time.Duration // Reassess 'best' server after this duration or
	ReassessCount     int           // this many Result() calls
	ResetFailedAfter  time.Duration // Reset server stats to zero if failed this long ago
	SampleOthersEvery int           // Result() samples another server once every SampleOthersEvery calls
	WeightForLatest   int           // Percent weight for latest Result() latency (range: 0-100)
}

var DefaultLatencyConfig = LatencyConfig{
	ReassessCount:     1061,
	ReassessAfter:     time.Second * 61,
	WeightForLatest:   67,
	ResetFailedAfter:  time.Minute * 3,
	SampleOthersEvery: 20, // 1 in 20 = 5%
}

type reassessAlgorithm int // Rationale for selecting the new 'best' URI
const (
	algNone      reassessAlgorithm = iota // No reason
	algOnlyOne                            // URI list only has one entry so not many choices!
	algFirstCab                           // "First cab off the rank" the good one following the current one
	algSecondCab                          // Second cab off the rank with performance data
	algFastest                            // Lowest weighted average latency
	algAllBad                             // No good URIs were found, just use the next one
)

type serverStats struct {
	lastStatusTime       time.Time
	lastStatusWasFailure bool
	weightedAverage      time.Duration
}

// Pool tracks the latency and reliability of a set of upstream DNS transport.URIs so a Resolver can
// pick which one to use for the next query (SPEC_FULL 4.10). It generally gravitates towards the
// lowest-latency upstream by opportunistically sampling all of them to collect performance data.
//
// Typical usage looks like this:
//
//	pool, _ := serverpool.New(config, uris) // Construct a pool for this resolver's upstreams
//	for {
//	     uri, _ := pool.Best()                                      // Get the current best upstream
//	     doQuery(uri)                                                // Use it
//	     pool.Result(uri, success bool, when time.Time, latency)     // Say how it went
//	}
//
// A call to Result() with the current best URI triggers a reassessment of the best URI when one of
// the conditions listed below holds; otherwise it only accumulates statistics. Calls to
// Best() will always return the same URI if no intervening calls to Result() have been made.
//
// Calls to Result() with a URI other than the current best only accumulate statistics; they never
// trigger a reassessment, since the caller is reporting on a candidate that is already stale.
//
// Callers must not cache the return of Best() across a Result() call, as that distorts the
// reassessment algorithm.
//
// The selection algorithm:
//
//   - the first URI on the list starts as the 'best' upstream
//   - a reassessment occurs if any of the following conditions are true:
//     o the current 'best' upstream is given an unsuccessful result
//     o the configured reassessment timer has expired
//     o the configured number of Result() calls have been reached
//
// Reassessment chooses the upstream with the lowest weighted average latency to become the new
// 'best'. To ensure there is latency data for every upstream, Best() periodically returns a
// non-'best' upstream after a Result() call, to gather performance information for it; the default
// sample rate is approximately 5%. Upstreams that fail are excluded from sampling for
// LatencyConfig.ResetFailedAfter.
//
// The expectation is a relatively small number of upstreams: much of the selection algorithm is a
// simple linear search over all entries, so a pool of 10-20 is reasonable, 1,000-10,000 probably
// isn't.
//
// All of Pool's methods are safe for concurrent use by multiple goroutines.
type Pool struct {
	LatencyConfig

	mu         sync.RWMutex
	servers    []transport.URI
	uriToIndex map[transport.URI]int
	bestIndex  int

	stats []serverStats

	assessCount       int               // Modulo counter of calls to assess()
	sampleCount       int               // Counter to tell when we reach sample rate
	sampleIndex       int               // Iterate over URIs to sample performance
	saveBestIndex     int               // The source of truth for bestIndex
	bestExpires       time.Time         // When to reassess 'best'
	reassessRationale reassessAlgorithm // Record why 'best' was chosen
}

// New constructs a Pool over servers, a deduplicated list of upstream URIs, tuned by config. An
// empty or zero-valued LatencyConfig field falls back to the matching DefaultLatencyConfig field.
func New(config LatencyConfig, servers []transport.URI) (*Pool, error) {
	if len(servers) == 0 {
		return nil, errors.New("serverpool.New: no upstreams in list")
	}

	p := &Pool{
		servers:    append([]transport.URI(nil), servers...),
		uriToIndex: make(map[transport.URI]int, len(servers)),
	}
	for ix, s := range p.servers {
		if _, ok := p.uriToIndex[s]; ok {
			return nil, fmt.Errorf("serverpool.New: duplicate upstream in list: %s", s)
		}
		p.uriToIndex[s] = ix
	}

	p.LatencyConfig = config
	if p.ReassessAfter < 0 {
		return nil, fmt.Errorf("ReassessAfter is negative: %d", p.ReassessAfter)
	}
	if p.ReassessCount < 0 {
		return nil, fmt.Errorf("ReassessCount is negative: %d", p.ReassessCount)
	}
	if p.WeightForLatest < 0 || p.WeightForLatest > 100 {
		return nil, fmt.Errorf("WeightForLatest is not in range 0-100: %d", p.WeightForLatest)
	}
	if p.ResetFailedAfter < 0 {
		return nil, fmt.Errorf("ResetFailedAfter is negative: %d", p.ResetFailedAfter)
	}
	if p.SampleOthersEvery < 0 {
		return nil, fmt.Errorf("SampleOthersEvery is negative: %d", p.SampleOthersEvery)
	}

	if p.ReassessAfter == 0 {
		p.ReassessAfter = DefaultLatencyConfig.ReassessAfter
	}
	if p.ReassessCount == 0 {
		p.ReassessCount = DefaultLatencyConfig.ReassessCount
	}
	if p.WeightForLatest == 0 {
		p.WeightForLatest = DefaultLatencyConfig.WeightForLatest
	}
	if p.ResetFailedAfter == 0 {
		p.ResetFailedAfter = DefaultLatencyConfig.ResetFailedAfter
	}
	if p.SampleOthersEvery == 0 {
		p.SampleOthersEvery = DefaultLatencyConfig.SampleOthersEvery
	}

	p.stats = make([]serverStats, len(p.servers))

	return p, nil
}

// Best returns the current best upstream URI (and its index into the list originally passed to
// New) as chosen by the algorithm described in the Pool doc comment.
func (p *Pool) Best() (transport.URI, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.servers[p.bestIndex], p.bestIndex
}

// Result reports the outcome of a query sent to server, updating its statistics and possibly
// reassessing which upstream is 'best'. server must be exactly the value returned by Best(), since
// it's used as a map key; Result reports false if server isn't part of this Pool.
func (p *Pool) Result(server transport.URI, success bool, now time.Time, latency time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ix, found := p.uriToIndex[server]
	if !found {
		return false
	}

	stats := &p.stats[ix]
	stats.lastStatusWasFailure = !success
	stats.lastStatusTime = now
	if success { // Latency updates are only meaningful on success; a failure may just be a timeout
		if stats.weightedAverage == 0 { // No previous history: use the current sample as the average
			stats.weightedAverage = latency
		} else {
			current := latency * time.Duration(p.WeightForLatest)
			historic := stats.weightedAverage * time.Duration(100-p.WeightForLatest)
			stats.weightedAverage = (current + historic) / 100
		}
	}

	p.assess(now, ix, success)

	return true
}

// Servers returns every upstream URI in the pool, in the order originally passed to New.
func (p *Pool) Servers() []transport.URI {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]transport.URI, len(p.servers))
	copy(out, p.servers)
	return out
}

// Len returns the number of upstreams in the pool.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.servers)
}

// assess checks the latest report and, if it's about the 'best' upstream and it was a failure or
// one of the reassess thresholds has been reached, searches for a new 'best'.
//
// A reassessment is only performed when this Result() is about the 'best' upstream; a report about
// a non-'best' upstream means the caller is already out of date.
//
// This method also periodically and temporarily changes the 'best' upstream to one of the
// non-'best' "sample" upstreams, to opportunistically collect latency for all of them over time.
func (p *Pool) assess(now time.Time, ix int, success bool) {
	p.assessCount++
	if ix == p.bestIndex {
		if !success || p.assessCount >= p.ReassessCount || now.After(p.bestExpires) {
			p.reassessBest(now)
			p.saveBestIndex = p.bestIndex
			p.assessCount = 0
		}
	}

	// Is it time to sample one of the other upstreams to gather performance data? This is
	// necessarily approximate: it depends on whether the next caller calls Best() or Result()
	// while the sample is active, but over time the right number of samples occurs.

	p.sampleCount++
	if p.sampleCount < p.SampleOthersEvery {
		p.bestIndex = p.saveBestIndex // Not sampling, so ensure reversion to the real 'best'
		return
	}

	p.sampleIndex = (p.sampleIndex + 1) % len(p.servers) // Move to the next sample in sequence
	if !p.stats[p.sampleIndex].lastStatusWasFailure {    // Only sample if it isn't currently failing
		p.bestIndex = p.sampleIndex
		p.sampleCount = 0 // Only reset if the sample upstream is good; otherwise try the next call
	}
}

// reassessBest searches for the upstream with the lowest weighted average latency, and
// rehabilitates upstreams that have been sidelined long enough.
func (p *Pool) reassessBest(now time.Time) {
	p.reassessRationale = algNone
	if len(p.servers) == 1 {
		p.reassessRationale = algOnlyOne
		return
	}

	newBest := -1
	for ix := 0; ix < len(p.servers); ix++ {
		stats := &p.stats[ix]
		switch {
		case stats.lastStatusWasFailure: // Time to rehabilitate a failed upstream?
			if stats.lastStatusTime.Add(p.ResetFailedAfter).Before(now) {
				*stats = serverStats{} // Reset everything we know about this upstream
			}

		case newBest == -1: // First good alternative: start with it as a tentative 'best'
			p.reassessRationale = algFirstCab
			newBest = ix

		case stats.weightedAverage == 0: // Ignore upstreams with unknown latency

		case p.stats[newBest].weightedAverage == 0: // Replace first cab with a known upstream
			p.reassessRationale = algSecondCab
			newBest = ix

		case stats.weightedAverage < p.stats[newBest].weightedAverage: // Prefer the fastest
			p.reassessRationale = algFastest
			newBest = ix
		}
	}

	if newBest == -1 { // No joy finding a new 'best': just move on to the next upstream
		newBest = (p.bestIndex + 1) % len(p.servers)
		p.reassessRationale = algAllBad
	}

	p.bestIndex = newBest
	p.bestExpires = now.Add(p.ReassessAfter)
}
