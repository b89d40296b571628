/*
Package connreport tracks upstream DNS server connections for statistical purposes (SPEC_FULL
4.11). The goal is to determine occupancy and concurrency on a per-upstream-URI basis: how many
connections are currently open, how long they live, and how many requests are in flight on each one
at once (meaningful chiefly for a DoH connection, where several requests can be outstanding against
the same logical "connection" at a time).

connreport presents a reporter interface so its output can be periodically logged.

Typical usage is to create a connreport.Tracker for a resolver's whole upstream set, then call it
from internal/mux as connections open, fault and close:

	ct := connreport.New("upstreams")
	... ct.Opened(uri.String(), time.Now())
	... ct.RequestAdd(uri.String())
	... ct.RequestDone(uri.String())
	... ct.Closed(uri.String(), time.Now())

	... time passes and requests occur
	fmt.Println(ct.Report(true))

The tracking key can be any string so long as it is consistent and accurately reflects a unique
upstream; normally it's the canonical transport.URI string.
*/
package connreport

import (
	"fmt"
	"sync"
	"time"
)

type connectionStats struct {
	connStart       time.Time     // When connection was first established
	activeStart     time.Time     // Last transition to having >=1 request in flight
	activeFor       time.Duration // Sum of active periods
	currentRequests int
	peakRequests    int
}

type connection struct {
	connectionStats
}

func (t *connection) resetCounters() {
}

type errIx int

const (
	errNoConnInMap         errIx = iota // Connection not present for state change
	errNoConnForRequest                 // No connection found for a RequestAdd/RequestDone
	errDanglingConn                     // Opened when already open
	errNegativeConcurrency              // More RequestDone than RequestAdd
	errConnsLost                        // Closed/faulted with requests still in flight
	errArSize
)

type trackerStats struct {
	peakConns    int
	peakRequests int
	connFor      time.Duration // Total connection existence time (can easily be GT elapsed wall time)
	activeFor    time.Duration // Total connection in-flight time
	errors       [errArSize]int
}

// Tracker accumulates per-upstream-URI connection and in-flight-request statistics.
type Tracker struct {
	name string
	mu   sync.Mutex

	connMap map[string]*connection // Indexed by upstream URI string
	trackerStats
}

// New constructs a Tracker, named for display in Report.
func New(name string) *Tracker {
	return &Tracker{name: name, connMap: make(map[string]*connection)}
}

// Opened records that a new connection to uri was established. Returns false (and reconciles in
// favor of the new connection) if uri was already tracked as open — a dangling entry, since
// internal/mux never reopens a URI it still holds an entry for.
func (t *Tracker) Opened(uri string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, dangling := t.connMap[uri]
	t.connMap[uri] = &connection{connectionStats: connectionStats{connStart: now}}
	if dangling {
		t.errors[errDanglingConn]++
	}

	if cc := len(t.connMap); cc > t.peakConns {
		t.peakConns = cc
	}
	return !dangling
}

// RequestAdd records that one more request is now in flight on uri's connection.
func (t *Tracker) RequestAdd(uri string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.connMap[uri]
	if !ok {
		t.errors[errNoConnForRequest]++
		return false
	}

	if cs.currentRequests == 0 {
		cs.activeStart = time.Now()
	}
	cs.currentRequests++
	if cs.currentRequests > cs.peakRequests {
		cs.peakRequests = cs.currentRequests
	}
	return true
}

// RequestDone undoes RequestAdd.
func (t *Tracker) RequestDone(uri string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.connMap[uri]
	if !ok {
		t.errors[errNoConnForRequest]++
		return false
	}
	if cs.currentRequests <= 0 {
		t.errors[errNegativeConcurrency]++
		return false
	}

	cs.currentRequests--
	if cs.currentRequests == 0 && !cs.activeStart.IsZero() {
		cs.activeFor += time.Now().Sub(cs.activeStart)
		cs.activeStart = time.Time{}
	}
	return true
}

// Closed and Faulted both record that uri's connection has ended; Faulted additionally counts it as
// a lost-connection error if requests were still in flight, matching internal/mux's fault lifecycle
// where every outstanding request fails at once rather than draining cleanly.
func (t *Tracker) Closed(uri string, now time.Time) bool {
	return t.end(uri, now, false)
}

func (t *Tracker) Faulted(uri string, now time.Time) bool {
	return t.end(uri, now, true)
}

func (t *Tracker) end(uri string, now time.Time, faulted bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.connMap[uri]
	if !ok {
		t.errors[errNoConnInMap]++
		return false
	}

	t.connFor += now.Sub(cs.connStart)
	if !cs.activeStart.IsZero() {
		cs.activeFor += now.Sub(cs.activeStart)
	}
	t.activeFor += cs.activeFor

	delete(t.connMap, uri)

	if cs.peakRequests > t.peakRequests {
		t.peakRequests = cs.peakRequests
	}

	if faulted && cs.currentRequests > 0 {
		t.errors[errConnsLost]++
		return false
	}
	return true
}

// Name implements the reporter interface.
func (t *Tracker) Name() string {
	return "Conn Report"
}

// Report implements the reporter interface.
func (t *Tracker) Report(resetCounters bool) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	errs := 0
	for _, v := range t.errors {
		errs += v
	}
	report := fmt.Sprintf("curr=%d pk=%d reqs=%d errs=%d (%s) connFor=%0.1fs activeFor=%0.1fs %s",
		len(t.connMap), t.peakConns, t.peakRequests, errs, formatCounters("%d", "/", t.errors[:]),
		t.connFor.Round(time.Millisecond*100).Seconds(), t.activeFor.Round(time.Millisecond*100).Seconds(),
		t.name)
	if resetCounters {
		t.trackerStats = trackerStats{}
		for _, v := range t.connMap {
			v.resetCounters()
		}
	}

	return report
}

// formatCounters returns a nice %d/%d/%d format from an array of ints. This is less error-prone
// than hard-coding one big ol' Sprintf string but obviously slower which is irrelevant here.
func formatCounters(vfmt string, delim string, vals []int) string {
	res := ""
	for ix, v := range vals {
		if ix > 0 {
			res += delim
		}
		res += fmt.Sprintf(vfmt, v)
	}

	return res
}
