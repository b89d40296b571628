package main

import (
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/dingostack/aresolve/internal/serverpool"
)

// The "flag" package is not tty aware so we've arbitrarily picked 100 columns as a conservative tty
// width for the usage output.

const usageMessageTemplate = `
NAME
          {{.ResolvdProgramName}} -- a long-running example embedder of {{.PackageName}}

SYNOPSIS
          {{.ResolvdProgramName}} [options] [-name name]...

DESCRIPTION
          {{.ResolvdProgramName}} builds one {{.PackageName}} Resolver and uses it to resolve a fixed
          set of names, over and over, on a timer. It exists to give {{.PackageName}} something to do
          over a long run so its reactor, request multiplexer and upstream connections can be
          observed rather than exercised a single time and discarded, as {{.DigProgramName}} does.

          Each -name is resolved every -poll-interval, against one or more -server upstreams (udp://,
          tcp:// or https:// URIs, or bare "addr"/"addr:port" forms). Supplying more than one -server
          enables {{.PackageName}}'s latency-tracking best-server selection
          (internal/serverpool.Pool) instead of a single fixed upstream.

          A periodic status report, and one final report at exit, print request counts, average
          latency and peak connection/in-flight concurrency for the Resolver, plus the same
          statistics for {{.ResolvdProgramName}}'s own polling loop.

SIGNALS
          SIGUSR1 prints an immediate status report without resetting counters or stopping the
          process. SIGINT, SIGHUP and SIGTERM each cause an orderly shutdown: the poller and Resolver
          are stopped, a final report is printed (-v), and the process exits.

BEST SERVER
          The 'bs' options (all prefixed with --bs-) tune the best-server algorithm used whenever
          more than one -server is given. See internal/serverpool for the selection algorithm these
          settings influence; as a general rule the defaults are fine.

          --bs-reassess-after duration
          --bs-reassess-count count
               Reassessment of the best server occurs after 'duration' amount of time or 'count'
               calls to Result() since the last reassessment - whichever comes first.

          --bs-reset-failed-after duration
               When a server is reported as failing it is not considered by the reassessment process
               until after this duration has transpired.

          --bs-sample-others-every rate
               For every 'rate' calls to Result() the subsequent call to Best() returns a non-best,
               non-failing server so its latency can still be sampled.

          --bs-weight-for-latest percent
               The percentage weight given to the latency supplied in the latest Result() call when
               recalculating the running average latency for a server.

EXAMPLES
            $ {{.ResolvdProgramName}} -name example.com -name example.net -server 8.8.8.8
            $ {{.ResolvdProgramName}} -v -name example.com -server 1.1.1.1 -server 8.8.8.8

OPTIONS
          [-ghv] [-version]
          [-name name]...
          [-type record-kind]... [-recurse]
          [-server address]... [-poll-interval duration] [-query-timeout duration]
          [-idle-timeout duration] [-hosts-file path] [-i status-report-interval]

          [--bs-reassess-after duration]                       **best server
          [--bs-reassess-count count]                             controls**
          [--bs-reset-failed-after duration]
          [--bs-sample-others-every rate]
          [--bs-weight-for-latest percent]

          [-tls-cert file] [-tls-key file] [-tls-other-roots file]... [-tls-use-system-roots]

          [-cpu-profile file] [-mem-profile file]
          [-user userName] [-group groupName] [-chroot directory]
`

func usage(out io.Writer) {
	tmpl, err := template.New("usage").Parse(usageMessageTemplate)
	if err != nil {
		panic(err) // We've messed up our template
	}
	err = tmpl.Execute(out, consts)
	if err != nil {
		panic(err) // We've messed up our template
	}
	flagSet.SetOutput(out)
	flagSet.PrintDefaults()
	fmt.Fprintln(out, "\nVersion:", consts.Version)
}

// parseCommandLine sets up the flags-to-config mapping and parses the supplied command line
// arguments. It starts from scratch each time to make it easier for test wrappers to use.
func parseCommandLine(args []string) error {
	flagSet.BoolVar(&cfg.gops, "gops", false, "Start github.com/google/gops diagnostics agent")
	flagSet.BoolVar(&cfg.help, "h", false, "Print usage message to Stdout then exit(0)")
	flagSet.BoolVar(&cfg.verbose, "v", false, "Verbose status and stats - otherwise only errors are output")
	flagSet.BoolVar(&cfg.version, "version", false, "Print version and exit")

	flagSet.Var(&cfg.names, "name", "`name` to resolve periodically (repeatable; at least one required)")
	flagSet.Var(&cfg.qTypes, "type", "Record `kind` to ask for, e.g. A, AAAA, MX (repeatable; default A, AAAA)")
	flagSet.BoolVar(&cfg.recurse, "recurse", false, "Chase CNAME/DNAME chains (no effect: every poll already chases them)")

	flagSet.Var(&cfg.servers, "server", "Upstream `address`; repeat to enable best-server selection")
	flagSet.DurationVar(&cfg.pollInterval, "poll-interval", time.Minute, "`interval` between resolving the full name set")
	flagSet.DurationVar(&cfg.queryTimeout, "query-timeout", 3*time.Second, "Overall per-query `timeout`")
	flagSet.DurationVar(&cfg.idleTimeout, "idle-timeout", 30*time.Second, "Idle upstream connection `timeout`")
	flagSet.StringVar(&cfg.hostsFile, "hosts-file", "", "`path` to a hosts file (default is the system hosts file)")
	flagSet.DurationVar(&cfg.statusInterval, "i", time.Minute, "Periodic status report `interval`")

	// best-server options

	cfg.bsConfig = serverpool.DefaultLatencyConfig
	flagSet.DurationVar(&cfg.bsConfig.ReassessAfter, "bs-reassess-after",
		serverpool.DefaultLatencyConfig.ReassessAfter, "Reassess after `duration`")
	flagSet.IntVar(&cfg.bsConfig.ReassessCount, "bs-reassess-count",
		serverpool.DefaultLatencyConfig.ReassessCount, "Reassess after `count` requests")
	flagSet.DurationVar(&cfg.bsConfig.ResetFailedAfter, "bs-reset-failed-after",
		serverpool.DefaultLatencyConfig.ResetFailedAfter, "Reset failed servers to initial state after this `duration`")
	flagSet.IntVar(&cfg.bsConfig.SampleOthersEvery, "bs-sample-others-every",
		serverpool.DefaultLatencyConfig.SampleOthersEvery, "Try other servers every `sample` Result() calls")
	flagSet.IntVar(&cfg.bsConfig.WeightForLatest, "bs-weight-for-latest",
		serverpool.DefaultLatencyConfig.WeightForLatest, "Weight Result(Latency) by `percent`")

	// TLS, for https:// upstreams

	flagSet.StringVar(&cfg.tlsClientCertFile, "tls-cert", "", "TLS client certificate `file`")
	flagSet.StringVar(&cfg.tlsClientKeyFile, "tls-key", "", "TLS client key `file`")
	flagSet.Var(&cfg.tlsCAFiles, "tls-other-roots", "Non-system root CA `file` used to validate an https:// upstream")
	flagSet.BoolVar(&cfg.tlsUseSystemRootCAs, "tls-use-system-roots", true, "Validate https:// upstreams with root CAs")

	// profiling

	flagSet.StringVar(&cfg.cpuprofile, "cpu-profile", "", "write cpu profile to `file`")
	flagSet.StringVar(&cfg.memprofile, "mem-profile", "", "write mem profile to `file`")

	// process constraint parameters

	flagSet.StringVar(&cfg.setuidName, "user", "", "setuid `username` to constrain process after start-up (disabled for Linux)")
	flagSet.StringVar(&cfg.setgidName, "group", "", "setgid `groupname` to constrain process after start-up (disabled for Linux)")
	flagSet.StringVar(&cfg.chrootDir, "chroot", "", "chroot `directory` to constrain process after start-up")

	return flagSet.Parse(args[1:])
}
