package aresolve

import (
	"crypto/tls"
	"log"
	"time"

	"github.com/dingostack/aresolve/internal/codec"
	"github.com/dingostack/aresolve/internal/constants"
	"github.com/dingostack/aresolve/internal/serverpool"
)

// config holds every construction-time setting a New Resolver can be built with (spec 6, SPEC_FULL
// 4.10/6). The zero value is never used directly; newConfig fills in the documented defaults before
// Options are applied.
type config struct {
	server        string   // Single upstream, spec 6's "server" option; ignored once servers is non-empty
	servers       []string // SPEC_FULL 4.10's upstream pool, supplements server
	timeout       time.Duration
	idleTimeout   time.Duration
	tlsConfig     *tls.Config
	codec         codec.Codec
	logger        *log.Logger
	hostsPath     string                   // "" means hostsfile.DefaultPath()
	latencyConfig serverpool.LatencyConfig // Only consulted when servers has more than one entry
}

func newConfig() config {
	c := constants.Get()
	return config{
		server:        c.DefaultServer + ":" + c.DefaultPort,
		timeout:       time.Duration(c.DefaultTimeoutMS) * time.Millisecond,
		idleTimeout:   time.Duration(c.IdleTimeoutSec) * time.Second,
		latencyConfig: serverpool.DefaultLatencyConfig,
	}
}

// Option configures a Resolver at construction time.
type Option func(*config)

// WithServer sets the single upstream used when WithServers names no pool, in "addr", "addr:port",
// "[v6]:port", or explicit udp://, tcp:// or https:// URI form (spec 6).
func WithServer(server string) Option {
	return func(c *config) { c.server = server }
}

// WithServers configures SPEC_FULL 4.10's upstream pool: more than one candidate upstream, selected
// among by a latency-tracking "best server" strategy (internal/serverpool). A single-element list
// degenerates to always using that one server.
func WithServers(servers []string) Option {
	return func(c *config) { c.servers = append([]string(nil), servers...) }
}

// WithTimeout sets the default overall per-call timeout (spec 6's "timeout", default 3000ms),
// overridable per call with WithQueryTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithLatencyConfig tunes the best-server selection strategy used when WithServers names more than
// one upstream (internal/serverpool.Pool); ignored otherwise. The default is
// serverpool.DefaultLatencyConfig.
func WithLatencyConfig(cfg serverpool.LatencyConfig) Option {
	return func(c *config) { c.latencyConfig = cfg }
}

// WithIdleTimeout sets how long an upstream connection may sit with no pending requests before it
// is closed (spec 4.5's IDLE_TIMEOUT).
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) { c.idleTimeout = d }
}

// WithTLSConfig supplies the TLS configuration used for DNS-over-HTTPS upstreams. Build one with
// internal/tlsutil.NewClientTLSConfig; nil (the default) uses the system defaults.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *config) { c.tlsConfig = cfg }
}

// WithCodec overrides the wire codec (spec 4.4). The default is the miekg/dns-backed codec; this
// exists chiefly so tests can substitute a fake.
func WithCodec(cd codec.Codec) Option {
	return func(c *config) { c.codec = cd }
}

// WithLogger makes the default codec write a one-line trace of every query it builds and every
// reply it decodes to l, and turns on the connection and in-flight counters that Report returns.
// Connection open, fault and close events and upstream-pool reassessments are not logged. The
// default Resolver logs nothing.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithHostsFile overrides the hosts file path consulted by spec 4.2's loader. The default is the
// platform-specific system path (hostsfile.DefaultPath).
func WithHostsFile(path string) Option {
	return func(c *config) { c.hostsPath = path }
}

// queryOptions holds the per-call options recognized by Resolve and Query (spec 6's options table).
type queryOptions struct {
	server      string
	hasServer   bool
	timeout     time.Duration
	noHosts     bool
	reloadHosts bool
	noCache     bool
	types       []Kind // Resolve only; Query's single kind comes from its argument
	recurse     bool   // Query only; Resolve always chases CNAME/DNAME
}

// QueryOption configures a single Resolve or Query call.
type QueryOption func(*queryOptions)

// WithServerOverride directs this one call at server instead of the Resolver's configured
// upstream(s), in the same forms as WithServer.
func WithServerOverride(server string) QueryOption {
	return func(o *queryOptions) { o.server, o.hasServer = server, true }
}

// WithQueryTimeout overrides the Resolver's default overall timeout for this one call.
func WithQueryTimeout(d time.Duration) QueryOption {
	return func(o *queryOptions) { o.timeout = d }
}

// NoHosts skips the hosts-file lookup for this call (spec 6's "no_hosts").
func NoHosts() QueryOption {
	return func(o *queryOptions) { o.noHosts = true }
}

// ReloadHosts forces a hosts-file reload before this call consults it (spec 6's "reload_hosts").
func ReloadHosts() QueryOption {
	return func(o *queryOptions) { o.reloadHosts = true }
}

// NoCache skips the cache read for this call; a successful upstream answer is still written to the
// cache (spec 6's "no_cache").
func NoCache() QueryOption {
	return func(o *queryOptions) { o.noCache = true }
}

// WithTypes sets the record kinds Resolve asks for, in priority order (spec 6's "types"; default
// [A, AAAA]). Has no effect on Query, whose single kind is its own argument.
func WithTypes(types ...Kind) QueryOption {
	return func(o *queryOptions) { o.types = append([]Kind(nil), types...) }
}

// Recurse enables CNAME/DNAME chasing for a Query call (spec 6's "recurse"; default false). Resolve
// always chases.
func Recurse() QueryOption {
	return func(o *queryOptions) { o.recurse = true }
}

func newQueryOptions(cfg config, opts []QueryOption) queryOptions {
	qo := queryOptions{server: cfg.server, timeout: cfg.timeout}
	for _, o := range opts {
		o(&qo)
	}
	return qo
}
