package transport

import "testing"

func TestParseUpstreamBareHost(t *testing.T) {
	u, err := ParseUpstream("8.8.8.8", "53")
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != SchemeUDP || u.Host != "8.8.8.8" || u.Port != "53" {
		t.Errorf("got %+v", u)
	}
}

func TestParseUpstreamHostPort(t *testing.T) {
	u, err := ParseUpstream("8.8.8.8:5353", "53")
	if err != nil {
		t.Fatal(err)
	}
	if u.Port != "5353" {
		t.Errorf("got port %q, want 5353", u.Port)
	}
}

func TestParseUpstreamExplicitSchemes(t *testing.T) {
	cases := []struct {
		spec       string
		wantScheme Scheme
		wantHost   string
		wantPort   string
		wantPath   string
	}{
		{"udp://8.8.8.8:53", SchemeUDP, "8.8.8.8", "53", ""},
		{"tcp://[::1]:53", SchemeTCP, "::1", "53", ""},
		{"https://dns.example:443/dns-query", SchemeDoH, "dns.example", "443", "/dns-query"},
		{"https://dns.example", SchemeDoH, "dns.example", defaultDoHPort, defaultDoHPath},
	}
	for _, c := range cases {
		u, err := ParseUpstream(c.spec, "53")
		if err != nil {
			t.Fatalf("%s: %v", c.spec, err)
		}
		if u.Scheme != c.wantScheme || u.Host != c.wantHost || u.Port != c.wantPort || u.Path != c.wantPath {
			t.Errorf("%s: got %+v", c.spec, u)
		}
	}
}

func TestParseUpstreamUnsupportedScheme(t *testing.T) {
	_, err := ParseUpstream("ftp://example.com", "53")
	if err == nil {
		t.Error("expected an error for an unsupported scheme")
	}
}

func TestURIStringAndAsTCP(t *testing.T) {
	u := URI{Scheme: SchemeUDP, Host: "8.8.8.8", Port: "53"}
	if got := u.String(); got != "udp://8.8.8.8:53" {
		t.Errorf("got %q", got)
	}
	if got := u.AsTCP().String(); got != "tcp://8.8.8.8:53" {
		t.Errorf("got %q", got)
	}
}

func TestURIStringDoH(t *testing.T) {
	u := URI{Scheme: SchemeDoH, Host: "dns.example", Port: "443", Path: "/dns-query"}
	if got := u.String(); got != "https://dns.example:443/dns-query" {
		t.Errorf("got %q", got)
	}
}
