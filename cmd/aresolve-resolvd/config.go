package main

import (
	"time"

	"github.com/dingostack/aresolve/internal/flagutil"
	"github.com/dingostack/aresolve/internal/serverpool"
)

type config struct {
	gops    bool
	help    bool
	verbose bool
	version bool

	names  flagutil.StringValue // Names to resolve periodically
	qTypes flagutil.StringValue // Record kinds to ask for each name (default A, AAAA)

	servers        flagutil.StringValue // Upstream DNS servers; more than one enables the best-server pool
	bsConfig       serverpool.LatencyConfig
	pollInterval   time.Duration
	queryTimeout   time.Duration
	idleTimeout    time.Duration
	recurse        bool
	hostsFile      string
	statusInterval time.Duration

	tlsClientCertFile   string // Connect to an https:// upstream using these credentials
	tlsClientKeyFile    string
	tlsCAFiles          flagutil.StringValue // Non-system root CAs to validate https:// upstreams
	tlsUseSystemRootCAs bool

	cpuprofile, memprofile string

	setuidName, setgidName, chrootDir string // Process constraint settings
}
