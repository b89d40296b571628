package transport

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/http2"

	"github.com/dingostack/aresolve/internal/constants"
)

// dohConn implements Conn as a DNS-over-HTTPS transport (SPEC_FULL 4.5/4.10), built directly atop
// an http2.Transport rather than http.DefaultClient so that connection reuse is explicit and under
// our control. Unlike udpConn/tcpConn there is no single background reader: DoH has no server-
// initiated push, so each Send starts its own goroutine that issues one POST and reports its one
// reply (or error) back through the same onFrame callback UDP/TCP use. The connection-level
// bookkeeping this implies (padding in-flight count for idle-expiry, etc) lives in internal/mux,
// not here.
type dohConn struct {
	uri     URI
	submit  Submit
	onFrame OnFrame
	client  *http.Client
}

func dialDoH(uri URI, submit Submit, onFrame OnFrame, tlsConfig *tls.Config) Conn {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}
	return &dohConn{
		uri:     uri,
		submit:  submit,
		onFrame: onFrame,
		client: &http.Client{
			Transport: &http2.Transport{TLSClientConfig: tlsConfig},
		},
	}
}

func (d *dohConn) URI() URI { return d.uri }

// Send issues one HTTP/2 POST per call; DoH has no server push so each query gets its own
// round trip rather than sharing a read loop the way udpConn/tcpConn do.
func (d *dohConn) Send(payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, d.uri.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("transport.dohConn.Send %s: %w", d.uri, err)
	}

	consts := constants.Get()
	req.Header.Set(consts.AcceptHeader, consts.DoHAcceptValue)
	req.Header.Set(consts.ContentTypeHeader, consts.DoHAcceptValue)
	req.Header.Set(consts.UserAgentHeader, consts.PackageName+"/"+consts.Version+" ("+consts.PackageURL+")")

	go d.exchange(req)
	return nil
}

func (d *dohConn) exchange(req *http.Request) {
	consts := constants.Get()

	resp, err := d.client.Do(req)
	if err != nil {
		d.fail(fmt.Errorf("transport.dohConn %s: %w", d.uri, err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.fail(fmt.Errorf("transport.dohConn %s: unexpected HTTP status %s", d.uri, resp.Status))
		return
	}

	ct := resp.Header.Get(consts.ContentTypeHeader)
	if ct != consts.DoHAcceptValue {
		d.fail(fmt.Errorf("transport.dohConn %s: unexpected Content-Type %q", d.uri, ct))
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		d.fail(fmt.Errorf("transport.dohConn %s: reading body: %w", d.uri, err))
		return
	}
	if uint(len(body)) < consts.MinimumViableDNSMessage {
		d.fail(fmt.Errorf("transport.dohConn %s: response of %d bytes is shorter than minimum viable %d",
			d.uri, len(body), consts.MinimumViableDNSMessage))
		return
	}

	d.submit(func() { d.onFrame(body, nil) })
}

func (d *dohConn) fail(err error) {
	d.submit(func() { d.onFrame(nil, err) })
}

func (d *dohConn) Close() error {
	if t, ok := d.client.Transport.(*http2.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}
