// Package aresolve is an asynchronous DNS stub resolver library: given a host name and a set of
// record kinds, it returns answer records from the hosts file, the answer cache, or an upstream
// UDP/TCP/DNS-over-HTTPS exchange, chasing CNAME/DNAME chains as needed. A single Resolver
// multiplexes every in-flight question over a small number of upstream connections and a single
// response-demultiplexing reactor goroutine (internal/reactor), per the concurrency model of spec 5.
//
// Construct one with New, issue calls with Resolve or Query, and Close it when done:
//
//	r, err := aresolve.New(aresolve.WithServer("1.1.1.1:53"))
//	if err != nil { ... }
//	defer r.Close()
//	answers, err := r.Resolve(ctx, "example.com")
package aresolve

import (
	"log"
	"strconv"
	"time"

	"github.com/dingostack/aresolve/internal/answercache"
	"github.com/dingostack/aresolve/internal/codec/miekgcodec"
	"github.com/dingostack/aresolve/internal/connreport"
	"github.com/dingostack/aresolve/internal/hostsfile"
	"github.com/dingostack/aresolve/internal/mux"
	"github.com/dingostack/aresolve/internal/reactor"
	"github.com/dingostack/aresolve/internal/serverpool"
	"github.com/dingostack/aresolve/internal/transport"
)

// Resolver is the entry point of spec 4.8. It owns one reactor goroutine, one request multiplexer,
// one answer cache and one hosts-file loader; all are safe for concurrent use by multiple goroutines
// calling Resolve/Query, since every mutation they trigger is serialized onto the reactor (spec 5).
type Resolver struct {
	cfg      config
	reactor  *reactor.Reactor
	mux      *mux.Mux
	cache    *answercache.Cache
	hosts    *hostsfile.Loader
	pool     *serverpool.Pool // nil unless WithServers named more than one upstream
	reporter *connreport.Tracker
	logger   *log.Logger

	defaultURI transport.URI
}

// New constructs and starts a Resolver. Its reactor goroutine runs until Close is called.
func New(opts ...Option) (*Resolver, error) {
	cfg := newConfig()
	for _, o := range opts {
		o(&cfg)
	}

	server := cfg.server
	if len(cfg.servers) == 1 {
		server = cfg.servers[0]
	}
	defaultURI, err := transport.ParseUpstream(server, defaultDNSPort)
	if err != nil {
		return nil, err
	}

	var pool *serverpool.Pool
	if len(cfg.servers) > 1 {
		uris := make([]transport.URI, 0, len(cfg.servers))
		for _, s := range cfg.servers {
			u, perr := transport.ParseUpstream(s, defaultDNSPort)
			if perr != nil {
				return nil, perr
			}
			uris = append(uris, u)
		}
		pool, err = serverpool.New(cfg.latencyConfig, uris)
		if err != nil {
			return nil, err
		}
	}

	cd := cfg.codec
	if cd == nil {
		if cfg.logger != nil {
			cd = miekgcodec.NewWithLogger(cfg.logger)
		} else {
			cd = miekgcodec.New()
		}
	}

	re := reactor.New(reactorTick)
	cache := answercache.New()
	m := mux.New(re.Submit, cd, cache, cfg.tlsConfig, cfg.idleTimeout)

	var reporter *connreport.Tracker
	if cfg.logger != nil {
		reporter = connreport.New("upstreams")
		m.WithConnReport(reporter)
	}

	re.OnTick(func(now time.Time) { m.Tick(now) })

	r := &Resolver{
		cfg:        cfg,
		reactor:    re,
		mux:        m,
		cache:      cache,
		hosts:      hostsfile.New(cfg.hostsPath, nil),
		pool:       pool,
		reporter:   reporter,
		logger:     cfg.logger,
		defaultURI: defaultURI,
	}

	go re.Run()
	return r, nil
}

// defaultDNSPort is used when a caller-supplied server spec carries no explicit port and isn't a
// DoH URI; matches spec 6's DEFAULT_PORT.
const defaultDNSPort = "53"

// reactorTick is the reactor's sweep interval; spec 4.5 calls for "a 1 Hz tick".
const reactorTick = time.Second

// Name identifies this Resolver in a reporter.Reporter-style status report (SPEC_FULL 4.11).
func (r *Resolver) Name() string {
	return "Resolver: (default " + r.defaultURI.String() + ")"
}

// Close stops the reactor goroutine. Outstanding requests are abandoned; their eventual replies, if
// any arrive before the underlying sockets are torn down, are dropped. Safe to call once.
func (r *Resolver) Close() error {
	r.reactor.Stop()
	return nil
}

// Report returns a human-readable connection and in-flight-request summary, per SPEC_FULL 4.11.
// Only populated when the Resolver was built with WithLogger; otherwise it's an empty string.
func (r *Resolver) Report(resetCounters bool) string {
	if r.reporter == nil {
		return ""
	}
	return r.reporter.Report(resetCounters) + " inflight.pk=" + strconv.Itoa(r.mux.Inflight().Peak(resetCounters))
}
