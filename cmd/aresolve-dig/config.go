package main

import (
	"time"

	"github.com/dingostack/aresolve/internal/flagutil"
)

type config struct {
	help    bool
	version bool
	short   bool

	repeatCount int
	parallel    bool

	timeout time.Duration
	recurse bool
	noHosts bool
	noCache bool

	qTypes flagutil.StringValue // Repeated -type flags; empty means the default [A, AAAA]

	tlsClientCertFile   string
	tlsClientKeyFile    string
	tlsCAFiles          flagutil.StringValue // Non-system root CAs, for https:// (DoH) servers
	tlsUseSystemRootCAs bool
}
