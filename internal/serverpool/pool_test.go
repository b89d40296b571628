package serverpool

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dingostack/aresolve/internal/transport"
)

func uri(host string) transport.URI {
	return transport.URI{Scheme: transport.SchemeUDP, Host: host, Port: "53"}
}

var (
	first  = uri("10.0.0.1")
	second = uri("10.0.0.2")
	third  = uri("10.0.0.3")
	fourth = uri("10.0.0.4")
)

func TestPoolNew(t *testing.T) {
	lConfig := LatencyConfig{ReassessCount: 5, ResetFailedAfter: time.Second * 5}
	servers := []transport.URI{first, second, third}

	pool, err := New(lConfig, servers)
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}
	best, _ := pool.Best()
	if best == (transport.URI{}) {
		t.Error("Expected a URI to be returned, not the zero value")
	}

	pool, err = New(LatencyConfig{}, nil)
	if pool != nil {
		t.Error("Did not expect a good construction with zero upstreams")
	}
	if err == nil {
		t.Error("Expected an error with zero upstreams")
	}
	if err != nil && !strings.Contains(err.Error(), "no upstreams") {
		t.Error("Expected 'no upstreams' error, not", err.Error())
	}
}

func TestPoolDuplicate(t *testing.T) {
	_, err := New(LatencyConfig{}, []transport.URI{first, second, first})
	if err == nil {
		t.Fatal("Expected an error for a duplicate upstream")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Error("Expected 'duplicate' error, not", err.Error())
	}
}

func TestPoolResult(t *testing.T) {
	servers := []transport.URI{first, second, third}
	pool, err := New(LatencyConfig{}, servers)
	if err != nil {
		t.Fatal("Did not expect an error constructing test", err.Error())
	}
	for ix, s := range servers {
		if !pool.Result(s, false, time.Now(), 0) {
			t.Error("Result() does not recognize upstream #", ix)
		}
	}
	if pool.Result(fourth, false, time.Now(), 0) {
		t.Error("Result() recognizes an upstream that isn't in the pool")
	}
}

func TestPoolNewFailures(t *testing.T) {
	tt := []struct { // All these construction test cases are meant to fail
		lc        LatencyConfig
		errorText string
	}{
		{LatencyConfig{ReassessCount: -1}, "ReassessCount"},
		{LatencyConfig{ReassessAfter: -1}, "ReassessAfter"},
		{LatencyConfig{WeightForLatest: -1}, "WeightForLatest"},
		{LatencyConfig{ResetFailedAfter: -1}, "ResetFailedAfter"},
		{LatencyConfig{SampleOthersEvery: -1}, "SampleOthersEvery"},
	}
	for tx, tc := range tt {
		pool, err := New(tc.lc, []transport.URI{first})
		if pool != nil {
			t.Error(tx, "Constructed a pool when an error was expected", pool)
		}
		if err == nil {
			t.Error(tx, "Expected error return from New")
			continue
		}
		if !strings.Contains(err.Error(), tc.errorText) {
			t.Error(tx, "Expected text '"+tc.errorText+"' in error:", err)
		}
	}
}

// Test that all overrides don't get replaced with defaults.
func TestPoolNewOverrides(t *testing.T) {
	pool, err := New(LatencyConfig{
		ReassessCount:    4,
		ReassessAfter:    time.Second * 2,
		WeightForLatest:  3,
		ResetFailedAfter: time.Second * 5,
	}, []transport.URI{first})
	if err != nil {
		t.Error("Unexpected error return from New test setup", err)
	}
	if pool.ReassessCount != 4 {
		t.Error("Config override of ReassessCount was discarded", pool.LatencyConfig)
	}
	if pool.ReassessAfter != time.Second*2 {
		t.Error("Config override of ReassessAfter was discarded", pool.LatencyConfig)
	}
	if pool.WeightForLatest != 3 {
		t.Error("Config override of WeightForLatest was discarded", pool.LatencyConfig)
	}
	if pool.ResetFailedAfter != time.Second*5 {
		t.Error("Config override of ResetFailedAfter was discarded", pool.LatencyConfig)
	}
}

// Test that "first cab" is chosen when there is only one upstream.
func TestPoolShortList(t *testing.T) {
	pool, err := New(LatencyConfig{}, []transport.URI{first})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	for ix := 0; ix < DefaultLatencyConfig.ReassessCount+2; ix++ {
		best, _ := pool.Best()
		if !pool.Result(best, true, time.Now(), 0) {
			t.Error("List of one caused internal failure")
		}
	}
	if pool.reassessRationale != algOnlyOne {
		t.Error("Expected algOnlyOne, not", pool.reassessRationale)
	}

	pool, err = New(LatencyConfig{}, []transport.URI{first, second})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	for ix := 0; ix < DefaultLatencyConfig.ReassessCount+2; ix++ {
		best, _ := pool.Best()
		if !pool.Result(best, true, time.Now(), 0) {
			t.Error("List of two caused internal failure")
		}
	}
	if pool.reassessRationale != algFirstCab {
		t.Error("Expected algFirstCab, not", pool.reassessRationale)
	}
}

// Test that all upstreams get offered as Best() over time so that they can be sampled. At 5% of
// the time spread across the non-preferred upstreams, 100 samples across four upstreams should
// give each upstream at least one chance.
func TestPoolSampling(t *testing.T) {
	pool, err := New(LatencyConfig{}, []transport.URI{first, second, third, fourth})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	var now time.Time
	sampled := map[transport.URI]int{first: 0, second: 0, third: 0, fourth: 0}

	for ix := 0; ix <= 100; ix++ { // 5% of 101 Results = 5 samples in total, round-robin over the upstreams
		s, _ := pool.Best()
		sampled[s]++
		pool.Result(s, true, now, time.Millisecond)
	}

	for k, v := range sampled {
		if v < 1 {
			t.Error("Upstream", k, "should have been offered as a sample at least once")
		}
	}
}

func TestPoolReassessCount(t *testing.T) {
	pool, err := New(LatencyConfig{ReassessCount: 5}, []transport.URI{first, second, third})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	var now time.Time
	gotZero := false
	for ix := 0; ix < 6; ix++ {
		best, _ := pool.Best()
		pool.Result(best, true, now, time.Millisecond)
		if pool.assessCount == 0 {
			gotZero = true
		}
	}
	if !gotZero {
		t.Error("Result() did not trigger a reassess over ReassessCount Results")
	}
}

func TestPoolReassessAfter(t *testing.T) {
	pool, err := New(LatencyConfig{ReassessAfter: time.Second}, []transport.URI{first, second, third})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	var now time.Time
	gotZero := false
	for ix := 0; ix < 6; ix++ {
		now = now.Add(time.Second)
		best, _ := pool.Best()
		pool.Result(best, true, now, time.Millisecond)
		if pool.assessCount == 0 {
			gotZero = true
		}
	}
	if !gotZero {
		t.Error("Result() did not trigger a reassess over ReassessAfter time")
	}
}

func TestPoolFailureCyclesThroughAll(t *testing.T) {
	pool, err := New(LatencyConfig{}, []transport.URI{first, second, third})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}
	s, _ := pool.Best()
	now := time.Unix(1, 0)
	pool.Result(s, false, now, 0) // Report first as failure
	s, _ = pool.Best()
	if s != second {
		t.Error("Failure report should have triggered new best", s)
	}
	pool.Result(s, false, now, 0) // Report second as failure
	s, _ = pool.Best()
	if s != third {
		t.Error("Failure report should have triggered new best", s)
	}
	pool.Result(s, false, now, 0) // Report third as failure. Should just go to best+1 = first
	s, _ = pool.Best()
	if s != first {
		t.Error("Failure report should have triggered new best", s)
	}

	// They have all failed now, so best just cycles through failed upstreams one by one until one
	// gets a good status.
	for ix := 0; ix < 20; ix++ {
		pool.Result(s, false, now, 0)
		s1, _ := pool.Best()
		if s1 == s {
			t.Error("All failures should cycle through each time, not", s)
			break
		}
		s = s1
	}
}

func TestPoolFirstGood(t *testing.T) {
	pool, err := New(LatencyConfig{}, []transport.URI{first, second, third, fourth})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	best, _ := pool.Best()
	pool.Result(best, false, time.Now(), 0) // First starts out as best
	s, _ := pool.Best()
	if s != second {
		t.Error("Expected second to be the next cab off the rank, but", s)
	}
}

func TestPoolFastestWins(t *testing.T) {
	pool, err := New(LatencyConfig{}, []transport.URI{first, second, third, fourth})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}
	now := time.Unix(1, 0)
	pool.Result(first, true, now, time.Millisecond*20)
	pool.Result(second, true, now, time.Millisecond*90)
	pool.Result(third, true, now, time.Millisecond*70)
	pool.Result(fourth, true, now, time.Millisecond*80)
	pool.Result(first, false, now, time.Millisecond*20) // Removing first as 'best' forces reassess
	s, _ := pool.Best()
	if s != third {
		t.Error("Expected best to be the fastest (third) but got", s)
	}
}

func TestPoolWeightedAverage(t *testing.T) {
	pool, err := New(LatencyConfig{}, []transport.URI{first, second, third, fourth})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	now := time.Unix(1, 0)
	for ix := 50; ix < 100; ix++ {
		pool.Result(second, true, now, time.Duration(ix)) // Report increasing latency
	}

	stats := pool.stats[pool.uriToIndex[second]]
	if stats.weightedAverage <= 50 || stats.weightedAverage >= 100 { // Should be a little under 100
		t.Error("Expected weighted average to be between 50 and 100, not", stats.weightedAverage)
	}
}

func TestPoolStats(t *testing.T) {
	pool, err := New(LatencyConfig{}, []transport.URI{first, second, third})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	pool.Result(first, true, time.Now(), time.Second)
	stats := pool.stats[pool.uriToIndex[first]]
	if stats.lastStatusTime.IsZero() || stats.lastStatusWasFailure || stats.weightedAverage == 0 {
		t.Error("Expected time, success and average latency recorded for first", stats)
	}
}

func TestPoolServers(t *testing.T) {
	pool, err := New(LatencyConfig{}, []transport.URI{first, second, third})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	servers := pool.Servers()
	if len(servers) != 3 {
		t.Fatal("Expected three upstreams to be returned, not", servers)
	}
	if servers[0] != first || servers[1] != second || servers[2] != third {
		t.Error("Upstream order not as expected", servers)
	}
}

func TestPoolReassessOneOnly(t *testing.T) {
	now := time.Now()
	pool, err := New(LatencyConfig{}, []transport.URI{first})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	best, _ := pool.Best()
	pool.Result(best, false, now, 0) // Ultimately calls reassessBest()
	if pool.reassessRationale != algOnlyOne {
		t.Error("reassessBest() should have short-circuited with a single upstream", pool.reassessRationale)
	}
}

func TestPoolReassessRehab(t *testing.T) {
	now := time.Now()
	pool, err := New(LatencyConfig{}, []transport.URI{first, second})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}
	best, _ := pool.Best() // Should be 'first'
	if best != first {
		t.Fatal("Setup of best is not first", best)
	}
	pool.Result(best, false, now, 0) // Set best (first) to failed, awaiting rehabilitation
	if !pool.stats[0].lastStatusWasFailure {
		t.Fatal("lastStatusWasFailure should be true for first")
	}
	now = now.Add(pool.ResetFailedAfter + time.Second)
	best, _ = pool.Best()
	pool.Result(best, false, now, 0) // Force reassessBest(), which should rehabilitate first
	if pool.stats[0].lastStatusWasFailure {
		t.Fatal("lastStatusWasFailure should have been reset by rehab")
	}
}

func TestPoolSecondCab(t *testing.T) {
	now := time.Now()
	pool, err := New(LatencyConfig{}, []transport.URI{first, second, third})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	pool.Result(third, true, now, time.Second) // Third now has a real weighted average
	pool.Result(first, false, now, 0)          // Should cause a reassess
	best, _ := pool.Best()
	if best != third {
		t.Error("Reassess should have preferred third over second due to real data", best)
	}
	if pool.reassessRationale != algSecondCab {
		t.Error("Got the right answer for the wrong reason", pool.reassessRationale)
	}
}

// TestPoolConcurrentAccess exercises Best()/Result() from many goroutines at once; run with -race
// to catch any lock omission in the port from the single-threaded resolver call sites.
func TestPoolConcurrentAccess(t *testing.T) {
	pool, err := New(LatencyConfig{}, []transport.URI{first, second, third, fourth})
	if err != nil {
		t.Fatal("Unexpected error when setting up for test", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ix := 0; ix < 50; ix++ {
				best, _ := pool.Best()
				pool.Result(best, ix%7 != 0, time.Now(), time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := pool.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}
