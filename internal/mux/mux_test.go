package mux

import (
	"crypto/tls"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dingostack/aresolve/internal/answercache"
	"github.com/dingostack/aresolve/internal/codec"
	"github.com/dingostack/aresolve/internal/connreport"
	"github.com/dingostack/aresolve/internal/reerr"
	"github.com/dingostack/aresolve/internal/rr"
	"github.com/dingostack/aresolve/internal/transport"
)

func noopSubmit(fn func()) { fn() }

type fakeConn struct {
	uri     transport.URI
	onFrame transport.OnFrame
	sent    [][]byte
	closed  bool
}

func (f *fakeConn) URI() transport.URI { return f.uri }

func (f *fakeConn) Send(payload []byte) error {
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

type fakeResponse struct {
	id        uint16
	rcode     int
	typ       codec.MsgType
	truncated bool
	answers   []rr.Answer
}

func (r *fakeResponse) ID() uint16           { return r.id }
func (r *fakeResponse) Rcode() int           { return r.rcode }
func (r *fakeResponse) Type() codec.MsgType  { return r.typ }
func (r *fakeResponse) Truncated() bool      { return r.truncated }
func (r *fakeResponse) Answers() []rr.Answer { return r.answers }

type fakeCodec struct {
	lastID   uint16
	decodeFn func(payload []byte) (codec.Response, error)
}

func (c *fakeCodec) BuildQuery(id uint16, qname string, kind rr.Kind) ([]byte, error) {
	c.lastID = id
	return []byte(fmt.Sprintf("%d:%s:%d", id, qname, kind.Code())), nil
}

func (c *fakeCodec) Decode(payload []byte) (codec.Response, error) {
	return c.decodeFn(payload)
}

func newTestMux(fc *fakeCodec, conns map[transport.URI]*fakeConn) *Mux {
	m := New(noopSubmit, fc, answercache.New(), nil, time.Minute)
	m.dial = func(uri transport.URI, submit transport.Submit, onFrame transport.OnFrame, tlsConfig *tls.Config) (transport.Conn, error) {
		c := &fakeConn{uri: uri, onFrame: onFrame}
		conns[uri] = c
		return c, nil
	}
	return m
}

var udpURI = transport.URI{Scheme: transport.SchemeUDP, Host: "127.0.0.1", Port: "53"}

func TestRequestSuccessPopulatesCache(t *testing.T) {
	conns := map[transport.URI]*fakeConn{}
	fc := &fakeCodec{}
	m := newTestMux(fc, conns)
	fc.decodeFn = func(payload []byte) (codec.Response, error) {
		return &fakeResponse{
			id:  fc.lastID,
			typ: codec.MsgResponse,
			answers: []rr.Answer{
				{Data: "1.2.3.4", Kind: rr.KindA, TTL: 300},
			},
		}, nil
	}

	var gotGrouped map[rr.Kind][]rr.Answer
	var gotErr error
	m.Request(udpURI, "example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) {
		gotGrouped, gotErr = grouped, err
	})

	conns[udpURI].onFrame(nil, nil) // Simulate the reply arriving

	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if len(gotGrouped[rr.KindA]) != 1 {
		t.Fatalf("got %+v", gotGrouped)
	}
	if cached, ok := m.cache.Get(answercache.Key{Name: "example.com", Kind: rr.KindA}); !ok || len(cached) != 1 {
		t.Error("expected the reply to populate the cache")
	}
	if m.PendingCount() != 0 {
		t.Errorf("pending count = %d, want 0", m.PendingCount())
	}
}

func TestTruncatedUDPReissuesOverTCP(t *testing.T) {
	conns := map[transport.URI]*fakeConn{}
	fc := &fakeCodec{}
	m := newTestMux(fc, conns)

	truncatedOnce := true
	fc.decodeFn = func(payload []byte) (codec.Response, error) {
		if truncatedOnce {
			truncatedOnce = false
			return &fakeResponse{id: fc.lastID, typ: codec.MsgResponse, truncated: true}, nil
		}
		return &fakeResponse{
			id:      fc.lastID,
			typ:     codec.MsgResponse,
			answers: []rr.Answer{{Data: "1.2.3.4", Kind: rr.KindA, TTL: 60}},
		}, nil
	}

	var gotErr error
	var calls int
	m.Request(udpURI, "example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) {
		gotErr = err
		calls++
	})

	conns[udpURI].onFrame(nil, nil) // Truncated: should trigger a TCP re-issue, not finalize yet

	tcpURI := udpURI.AsTCP()
	if conns[tcpURI] == nil {
		t.Fatal("expected a TCP connection to be dialed after a truncated UDP reply")
	}
	if calls != 0 {
		t.Fatalf("callback fired %d times before the TCP retry completed", calls)
	}
	if peak := m.Inflight().Peak(false); peak != 1 {
		t.Fatalf("Inflight peak = %d, want 1: the abandoned UDP attempt must not still be counted alongside the TCP retry", peak)
	}

	conns[tcpURI].onFrame(nil, nil) // Full TCP reply completes the original waiter

	if calls != 1 {
		t.Fatalf("callback fired %d times, want exactly 1", calls)
	}
	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if peak := m.Inflight().Peak(false); peak != 1 {
		t.Fatalf("Inflight peak = %d, want 1 once the retry finalizes", peak)
	}
}

func TestTruncatedTCPIsUnrecoverable(t *testing.T) {
	conns := map[transport.URI]*fakeConn{}
	fc := &fakeCodec{}
	m := newTestMux(fc, conns)
	fc.decodeFn = func(payload []byte) (codec.Response, error) {
		return &fakeResponse{id: fc.lastID, typ: codec.MsgResponse, truncated: true}, nil
	}

	tcpURI := udpURI.AsTCP()
	var gotErr error
	m.Request(tcpURI, "example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) {
		gotErr = err
	})
	conns[tcpURI].onFrame(nil, nil)

	if gotErr == nil {
		t.Fatal("expected a TruncationError for a truncated TCP reply")
	}
	if _, ok := gotErr.(*reerr.TruncationError); !ok {
		t.Fatalf("got %T: %v, want *reerr.TruncationError", gotErr, gotErr)
	}
}

func TestServerFailureFinalizesWithError(t *testing.T) {
	conns := map[transport.URI]*fakeConn{}
	fc := &fakeCodec{}
	m := newTestMux(fc, conns)
	fc.decodeFn = func(payload []byte) (codec.Response, error) {
		return &fakeResponse{id: fc.lastID, typ: codec.MsgResponse, rcode: 2}, nil
	}

	var gotErr error
	m.Request(udpURI, "example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) {
		gotErr = err
	})
	conns[udpURI].onFrame(nil, nil)

	sfe, ok := gotErr.(*reerr.ServerFailureError)
	if !ok {
		t.Fatalf("got %T: %v, want *reerr.ServerFailureError", gotErr, gotErr)
	}
	if sfe.Rcode != 2 {
		t.Errorf("got rcode %d, want 2", sfe.Rcode)
	}
}

func TestEmptyAnswersIsNoRecordError(t *testing.T) {
	conns := map[transport.URI]*fakeConn{}
	fc := &fakeCodec{}
	m := newTestMux(fc, conns)
	fc.decodeFn = func(payload []byte) (codec.Response, error) {
		return &fakeResponse{id: fc.lastID, typ: codec.MsgResponse}, nil
	}

	var gotErr error
	m.Request(udpURI, "example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) {
		gotErr = err
	})
	conns[udpURI].onFrame(nil, nil)

	if _, ok := gotErr.(*reerr.NoRecordError); !ok {
		t.Fatalf("got %T: %v, want *reerr.NoRecordError", gotErr, gotErr)
	}
}

func TestUnknownIDIsDroppedSilently(t *testing.T) {
	conns := map[transport.URI]*fakeConn{}
	fc := &fakeCodec{}
	m := newTestMux(fc, conns)
	fc.decodeFn = func(payload []byte) (codec.Response, error) {
		return &fakeResponse{id: 65535, typ: codec.MsgResponse}, nil // Nothing pending with this id
	}

	called := false
	m.Request(udpURI, "example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) {
		called = true
	})
	conns[udpURI].onFrame(nil, nil)

	if called {
		t.Error("callback must not fire for an id with no pending request")
	}
	if m.PendingCount() != 1 {
		t.Errorf("the original request should still be pending, got %d", m.PendingCount())
	}
}

func TestFaultTeardownFailsEveryPendingRequest(t *testing.T) {
	conns := map[transport.URI]*fakeConn{}
	fc := &fakeCodec{}
	m := newTestMux(fc, conns)
	fc.decodeFn = func(payload []byte) (codec.Response, error) {
		t.Fatal("decode should not be reached on a read-error fault")
		return nil, nil
	}

	var err1, err2 error
	m.Request(udpURI, "one.example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) { err1 = err })
	m.Request(udpURI, "two.example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) { err2 = err })

	conns[udpURI].onFrame(nil, fmt.Errorf("read: connection refused"))

	if err1 == nil || err2 == nil {
		t.Fatal("both pending requests should fail on a connection fault")
	}
	if _, ok := err1.(*reerr.ConnectionError); !ok {
		t.Errorf("got %T, want *reerr.ConnectionError", err1)
	}
	if m.PendingCount() != 0 {
		t.Errorf("pending count = %d, want 0 after fault teardown", m.PendingCount())
	}
	if !conns[udpURI].closed {
		t.Error("expected the faulted connection to be closed")
	}
}

func TestConnReportAndInflightAreUpdated(t *testing.T) {
	conns := map[transport.URI]*fakeConn{}
	fc := &fakeCodec{}
	m := newTestMux(fc, conns)
	reporter := connreport.New("test")
	m.WithConnReport(reporter)

	fc.decodeFn = func(payload []byte) (codec.Response, error) {
		return &fakeResponse{
			id:      fc.lastID,
			typ:     codec.MsgResponse,
			answers: []rr.Answer{{Data: "1.2.3.4", Kind: rr.KindA, TTL: 60}},
		}, nil
	}

	m.Request(udpURI, "example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) {})
	if m.Inflight().Peak(false) != 1 {
		t.Fatalf("Inflight peak = %d, want 1 while the request is outstanding", m.Inflight().Peak(false))
	}

	conns[udpURI].onFrame(nil, nil)

	report := reporter.Report(false)
	if !strings.Contains(report, "curr=1") || !strings.Contains(report, "pk=1") {
		t.Errorf("unexpected connreport output: %s", report)
	}
}

func TestTickClosesIdleConnection(t *testing.T) {
	conns := map[transport.URI]*fakeConn{}
	fc := &fakeCodec{}
	m := newTestMux(fc, conns)
	fc.decodeFn = func(payload []byte) (codec.Response, error) {
		return &fakeResponse{
			id:      fc.lastID,
			typ:     codec.MsgResponse,
			answers: []rr.Answer{{Data: "1.2.3.4", Kind: rr.KindA, TTL: 60}},
		}, nil
	}

	m.Request(udpURI, "example.com", rr.KindA, func(grouped map[rr.Kind][]rr.Answer, err error) {})
	conns[udpURI].onFrame(nil, nil) // Finalizes, making the connection idle

	if m.ConnCount() != 1 {
		t.Fatalf("ConnCount = %d, want 1 before the idle timeout elapses", m.ConnCount())
	}

	m.Tick(time.Now().Add(time.Hour)) // Well past the idle timeout

	if m.ConnCount() != 0 {
		t.Errorf("ConnCount = %d, want 0 after Tick past idle-expiry", m.ConnCount())
	}
	if !conns[udpURI].closed {
		t.Error("expected the idle connection to be closed")
	}
}
