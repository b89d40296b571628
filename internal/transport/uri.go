package transport

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/dingostack/aresolve/internal/constants"
)

// Scheme identifies which of the three upstream transports a URI names.
type Scheme string

const (
	SchemeUDP Scheme = "udp"
	SchemeTCP Scheme = "tcp"
	SchemeDoH Scheme = "https"
)

// URI is a canonical upstream server address, per spec 6: udp://ip:port, tcp://ip:port, with
// bracketed IPv6 literals, plus the DoH extension https://host:port/path.
type URI struct {
	Scheme Scheme
	Host   string // Unbracketed; net.JoinHostPort brackets it for display/dial as needed
	Port   string
	Path   string // Only meaningful for SchemeDoH
}

// String renders the canonical form, e.g. "udp://8.8.8.8:53" or "tcp://[::1]:53".
func (u URI) String() string {
	hp := net.JoinHostPort(u.Host, u.Port)
	if u.Scheme == SchemeDoH {
		return fmt.Sprintf("https://%s%s", hp, u.Path)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, hp)
}

// DialAddr returns the host:port (or [v6]:port) form suitable for net.Dial.
func (u URI) DialAddr() string {
	return net.JoinHostPort(u.Host, u.Port)
}

// AsTCP returns a copy of u with the TCP scheme, used to re-issue a truncated UDP query per spec
// 4.6. It sets the scheme whatever u's was: a TCP URI comes back unchanged, and a DoH URI becomes
// a tcp URI that keeps its host, port and path.
func (u URI) AsTCP() URI {
	c := u
	c.Scheme = SchemeTCP
	return c
}

const defaultDoHPath = "/dns-query"
const defaultDoHPort = "443"

// ParseUpstream parses a caller-supplied server spec (spec 6's "addr", "addr:port", "[v6]:port", or
// an explicit udp://, tcp:// or https:// URI) into a canonical URI. defaultPort is used when a
// spec without a scheme carries no port; an explicit udp:// or tcp:// URI without a port gets
// constants' DefaultPort, and an https:// one gets 443.
func ParseUpstream(spec string, defaultPort string) (URI, error) {
	if strings.Contains(spec, "://") {
		return parseExplicitURI(spec)
	}

	host, port, err := net.SplitHostPort(spec)
	if err != nil {
		host = spec
		port = defaultPort
	}
	return URI{Scheme: SchemeUDP, Host: host, Port: port}, nil
}

func parseExplicitURI(spec string) (URI, error) {
	u, err := url.Parse(spec)
	if err != nil {
		return URI{}, fmt.Errorf("transport.ParseUpstream: %w", err)
	}

	switch Scheme(u.Scheme) {
	case SchemeUDP, SchemeTCP:
		host, port, serr := net.SplitHostPort(u.Host)
		if serr != nil {
			host, port = u.Host, constants.Get().DefaultPort
		}
		return URI{Scheme: Scheme(u.Scheme), Host: host, Port: port}, nil

	case SchemeDoH:
		host, port, serr := net.SplitHostPort(u.Host)
		if serr != nil {
			host, port = u.Host, defaultDoHPort
		}
		path := u.Path
		if path == "" {
			path = defaultDoHPath
		}
		return URI{Scheme: SchemeDoH, Host: host, Port: port, Path: path}, nil

	default:
		return URI{}, fmt.Errorf("transport.ParseUpstream: unsupported scheme %q", u.Scheme)
	}
}
