// Package mux implements the request multiplexer of spec 4.6: id allocation, the global pending
// table, the per-connection pending set, dispatch of the decoded reply back to its waiter, the
// truncation-triggered UDP-to-TCP re-issue, and the connection table's idle-expiry lifecycle. It
// owns no goroutines of its own; every method is meant to be called only from the single reactor
// goroutine that also drives the transport.Submit callbacks it is constructed with, which is what
// lets it hold its maps unlocked.
package mux

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/dingostack/aresolve/internal/answercache"
	"github.com/dingostack/aresolve/internal/codec"
	"github.com/dingostack/aresolve/internal/connreport"
	"github.com/dingostack/aresolve/internal/inflight"
	"github.com/dingostack/aresolve/internal/reerr"
	"github.com/dingostack/aresolve/internal/rr"
	"github.com/dingostack/aresolve/internal/transport"
)

// Callback receives the outcome of one Request call, always on the reactor goroutine. grouped maps
// every record kind present in the reply to its answers, not just the one originally asked for —
// internal/recurse needs to see a CNAME/DNAME alongside the requested kind in the same reply.
type Callback func(grouped map[rr.Kind][]rr.Answer, err error)

type pendingRequest struct {
	id   uint16
	uri  transport.URI
	name string
	kind rr.Kind
	cb   Callback
}

// serverConn is one live upstream connection and its multiplexing state (spec 4.5/4.6).
type serverConn struct {
	uri           transport.URI
	conn          transport.Conn
	pending       map[uint16]bool
	idleExpiry    time.Time
	hasIdleExpiry bool
}

// dialFunc matches transport.Dial's signature. It's a field rather than a direct call so tests can
// substitute a fake connection without opening real sockets.
type dialFunc func(transport.URI, transport.Submit, transport.OnFrame, *tls.Config) (transport.Conn, error)

// Mux is the request multiplexer. Construct with New; it is not safe for concurrent use from
// multiple goroutines, by design (see package doc).
type Mux struct {
	submit      transport.Submit
	codec       codec.Codec
	cache       *answercache.Cache
	tlsConfig   *tls.Config
	idleTimeout time.Duration
	dial        dialFunc

	conns   map[transport.URI]*serverConn
	pending map[uint16]*pendingRequest
	nextID  uint16

	reporter *connreport.Tracker // Diagnostics (SPEC_FULL 4.11); nil is valid, meaning "don't report"
	inFlight *inflight.Counter
}

// New constructs a Mux. tlsConfig is passed through to transport.Dial for DoH upstreams and may be
// nil.
func New(submit transport.Submit, c codec.Codec, cache *answercache.Cache, tlsConfig *tls.Config, idleTimeout time.Duration) *Mux {
	return &Mux{
		submit:      submit,
		codec:       c,
		cache:       cache,
		tlsConfig:   tlsConfig,
		idleTimeout: idleTimeout,
		dial:        transport.Dial,
		conns:       make(map[transport.URI]*serverConn),
		pending:     make(map[uint16]*pendingRequest),
		inFlight:    &inflight.Counter{},
	}
}

// WithConnReport attaches a connreport.Tracker so every connection open/fault/close and every
// in-flight request transition on it is reported, for SPEC_FULL 4.11's diagnostics. Optional; a Mux
// built via New reports nowhere until this is called.
func (m *Mux) WithConnReport(r *connreport.Tracker) *Mux {
	m.reporter = r
	return m
}

// Inflight returns the counter tracking concurrently pending requests across all connections, for
// SPEC_FULL 4.11's reporting.
func (m *Mux) Inflight() *inflight.Counter {
	return m.inFlight
}

// Request dispatches one (name, kind) query against uri, per spec 4.6. cb is invoked exactly once,
// either synchronously (if the connection or encode step fails outright) or later from a dispatch
// callback.
func (m *Mux) Request(uri transport.URI, name string, kind rr.Kind, cb Callback) {
	sc, err := m.getOrCreateConn(uri)
	if err != nil {
		cb(nil, err)
		return
	}

	id := m.allocateID()
	payload, err := m.codec.BuildQuery(id, name, kind)
	if err != nil {
		cb(nil, fmt.Errorf("mux.Request: building query for %q: %w", name, err))
		return
	}

	if err := sc.conn.Send(payload); err != nil {
		cb(nil, &reerr.ConnectionError{Server: uri.String(), Err: err})
		return
	}

	m.pending[id] = &pendingRequest{id: id, uri: uri, name: name, kind: kind, cb: cb}
	sc.pending[id] = true
	sc.hasIdleExpiry = false

	m.inFlight.Add()
	if m.reporter != nil {
		m.reporter.RequestAdd(uri.String())
	}
}

// allocateID implements spec 4.6's "monotonically increasing counter wrapping in [1,
// MAX_REQUEST_ID), retry on collision". uint16 arithmetic already wraps at 65536; we only need to
// skip 0, which this module never uses as a live id.
func (m *Mux) allocateID() uint16 {
	for {
		m.nextID++
		if m.nextID == 0 {
			m.nextID = 1
		}
		if _, exists := m.pending[m.nextID]; !exists {
			return m.nextID
		}
	}
}

func (m *Mux) getOrCreateConn(uri transport.URI) (*serverConn, error) {
	if sc, ok := m.conns[uri]; ok {
		return sc, nil
	}

	sc := &serverConn{uri: uri, pending: make(map[uint16]bool)}
	conn, err := m.dial(uri, m.submit, func(payload []byte, err error) {
		m.handleFrame(sc, payload, err)
	}, m.tlsConfig)
	if err != nil {
		return nil, &reerr.ConnectionError{Server: uri.String(), Err: err}
	}

	sc.conn = conn
	m.conns[uri] = sc
	if m.reporter != nil {
		m.reporter.Opened(uri.String(), time.Now())
	}
	return sc, nil
}

// handleFrame is the dispatch callback of spec 4.6, invoked once per decoded datagram/TCP frame.
func (m *Mux) handleFrame(sc *serverConn, payload []byte, err error) {
	if err != nil {
		m.faultConn(sc, err)
		return
	}

	resp, err := m.codec.Decode(payload)
	if err != nil {
		m.faultConn(sc, fmt.Errorf("decode: %w", err))
		return
	}

	pr, ok := m.pending[resp.ID()]
	if !ok {
		return // Late reply to an already-completed/cancelled request, or an unknown id: drop it.
	}

	if resp.Type() != codec.MsgResponse {
		m.faultConn(sc, fmt.Errorf("unexpected message type %v in reply", resp.Type()))
		return
	}

	if resp.Rcode() != 0 {
		m.finalize(sc, pr, nil, &reerr.ServerFailureError{Server: sc.uri.String(), Rcode: resp.Rcode()})
		return
	}

	if resp.Truncated() {
		if sc.uri.Scheme == transport.SchemeUDP {
			m.reissueOverTCP(sc, pr)
			return
		}
		m.finalize(sc, pr, nil, &reerr.TruncationError{Server: sc.uri.String()})
		return
	}

	grouped := groupByKind(resp.Answers())
	if len(grouped) == 0 {
		m.finalize(sc, pr, nil, &reerr.NoRecordError{Name: pr.name, Kind: pr.kind})
		return
	}
	m.finalize(sc, pr, grouped, nil)
}

// reissueOverTCP re-issues the identical question against the TCP form of the same URI, chaining
// the new promise to the original waiter (spec 4.6). The original pending entry is removed first so
// its id can be reused and so a second truncation indication can't double-finalize it. The UDP
// attempt's in-flight/reporter accounting is closed out here too, since Request opens a fresh entry
// for the TCP retry; otherwise every truncation retry would leak one in-flight count and one
// connreport.currentRequests increment on the UDP connection.
func (m *Mux) reissueOverTCP(sc *serverConn, pr *pendingRequest) {
	delete(m.pending, pr.id)
	delete(sc.pending, pr.id)
	m.updateIdle(sc)

	m.inFlight.Done()
	if m.reporter != nil {
		m.reporter.RequestDone(pr.uri.String())
	}

	m.Request(pr.uri.AsTCP(), pr.name, pr.kind, pr.cb)
}

// finalize implements spec 4.6's Finalize step: remove the request from both tables, update the
// server's idle-expiry, populate the cache on success, and complete the waiter's callback.
func (m *Mux) finalize(sc *serverConn, pr *pendingRequest, grouped map[rr.Kind][]rr.Answer, err error) {
	delete(m.pending, pr.id)
	delete(sc.pending, pr.id)
	m.updateIdle(sc)

	m.inFlight.Done()
	if m.reporter != nil {
		m.reporter.RequestDone(pr.uri.String())
	}

	if err == nil {
		for kind, answers := range grouped {
			m.cache.Set(answercache.Key{Name: pr.name, Kind: kind}, answers)
		}
	}

	pr.cb(grouped, err)
}

func (m *Mux) updateIdle(sc *serverConn) {
	if len(sc.pending) == 0 {
		sc.idleExpiry = time.Now().Add(m.idleTimeout)
		sc.hasIdleExpiry = true
	}
}

// faultConn implements spec 4.5's fault lifecycle: the connection is torn down and every
// outstanding request on it fails with the same wrapped error.
func (m *Mux) faultConn(sc *serverConn, err error) {
	sc.conn.Close()
	delete(m.conns, sc.uri)
	if m.reporter != nil {
		m.reporter.Faulted(sc.uri.String(), time.Now())
	}

	wrapped := &reerr.ConnectionError{Server: sc.uri.String(), Err: err}
	for id := range sc.pending {
		pr, ok := m.pending[id]
		if !ok {
			continue
		}
		delete(m.pending, id)
		m.inFlight.Done() // Global in-flight count; per-connection accounting already closed by Faulted above
		pr.cb(nil, wrapped)
	}
}

// Tick closes every connection whose idle-expiry has passed. Intended to be called once per second
// from the reactor (spec 4.5's "1 Hz tick").
func (m *Mux) Tick(now time.Time) {
	for uri, sc := range m.conns {
		if sc.hasIdleExpiry && !now.Before(sc.idleExpiry) {
			sc.conn.Close()
			delete(m.conns, uri)
			if m.reporter != nil {
				m.reporter.Closed(uri.String(), now)
			}
		}
	}
}

// ConnCount reports the number of live connections. The reactor's tick does not consult it: the
// idle sweep runs on every tick whether or not any connection is left.
func (m *Mux) ConnCount() int {
	return len(m.conns)
}

// PendingCount reports the number of requests currently outstanding across all connections, for
// internal/inflight reporting.
func (m *Mux) PendingCount() int {
	return len(m.pending)
}

func groupByKind(answers []rr.Answer) map[rr.Kind][]rr.Answer {
	if len(answers) == 0 {
		return nil
	}
	out := make(map[rr.Kind][]rr.Answer)
	for _, a := range answers {
		out[a.Kind] = append(out[a.Kind], a)
	}
	return out
}
