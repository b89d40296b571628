// aresolve-resolvd is a long-running example embedder of aresolve: it builds one Resolver and uses
// it to resolve a fixed set of names on a timer, so the library's reactor, request multiplexer and
// upstream connections have something to do over a long run instead of a single call.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/miekg/dns"

	"github.com/dingostack/aresolve"
	"github.com/dingostack/aresolve/internal/constants"
	"github.com/dingostack/aresolve/internal/osutil"
	"github.com/dingostack/aresolve/internal/reporter"
	"github.com/dingostack/aresolve/internal/tlsutil"
)

// Program-wide variables
var (
	consts = constants.Get()
	cfg    *config

	stdout io.Writer // All I/O goes via these writers
	stderr io.Writer

	startTime   = time.Now()
	stopChannel chan os.Signal
	flagSet     *flag.FlagSet
)

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", consts.ResolvdProgramName, ": ")
	fmt.Fprintln(stderr, args...)

	return 1
}

func stopMain() {
	stopChannel <- syscall.SIGINT
}

//////////////////////////////////////////////////////////////////////
// main wrappers make it easy for test programs
//////////////////////////////////////////////////////////////////////

// mainInit resets everything such that mainExecute() can be called multiple times in one program
// execution. stopChannel is buffered as the reader may disappear if there is a fatal error and
// multiple writers may try and write to the channel and we don't want those writers to stall
// forever.
func mainInit(out io.Writer, err io.Writer) {
	cfg = &config{}
	stdout = out
	stderr = err
	mainState(initial)
	stopChannel = make(chan os.Signal, 4) // All reasonable signals cause us to quit or stats report
	osutil.SignalNotify(stopChannel)
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func mainExecute(args []string) int {
	defer mainState(stopped) // Tell testers we've stopped even on error returns

	flagSet = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	err := parseCommandLine(args)
	if err != nil {
		return 1 // Error already printed by the flag package
	}
	if cfg.help {
		usage(stdout)
		return 0
	}
	if cfg.version {
		fmt.Fprintln(stdout, consts.ResolvdProgramName, "Version:", consts.Version)
		return 0
	}

	names := append(cfg.names.Args(), flagSet.Args()...)
	if len(names) == 0 {
		return fatal("Must supply at least one -name to resolve periodically")
	}

	types, err := parseTypes(cfg.qTypes.Args())
	if err != nil {
		return fatal(err)
	}

	if cfg.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fatal(err)
		}
		defer agent.Close()
	}

	var opts []aresolve.Option
	switch len(cfg.servers.Args()) {
	case 0:
	case 1:
		opts = append(opts, aresolve.WithServer(cfg.servers.Args()[0]))
	default:
		opts = append(opts, aresolve.WithServers(cfg.servers.Args()))
		opts = append(opts, aresolve.WithLatencyConfig(cfg.bsConfig))
	}
	opts = append(opts,
		aresolve.WithTimeout(cfg.queryTimeout),
		aresolve.WithIdleTimeout(cfg.idleTimeout),
		aresolve.WithLogger(log.New(stderr, "", 0)), // Turns on connection/in-flight diagnostics
	)
	if len(cfg.hostsFile) > 0 {
		opts = append(opts, aresolve.WithHostsFile(cfg.hostsFile))
	}

	tlsConfig, err := tlsutil.NewClientTLSConfig(cfg.tlsUseSystemRootCAs, cfg.tlsCAFiles.Args(),
		cfg.tlsClientCertFile, cfg.tlsClientKeyFile)
	if err != nil {
		return fatal(err)
	}
	opts = append(opts, aresolve.WithTLSConfig(tlsConfig))

	r, err := aresolve.New(opts...)
	if err != nil {
		return fatal(err)
	}

	if len(cfg.cpuprofile) > 0 {
		f, err := os.Create(cfg.cpuprofile)
		if err != nil {
			return fatal(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	var memProfileFile *os.File
	if len(cfg.memprofile) > 0 {
		memProfileFile, err = os.Create(cfg.memprofile)
		if err != nil {
			return fatal(err)
		}
		defer memProfileFile.Close()
	}

	if cfg.verbose {
		fmt.Fprintln(stdout, consts.ResolvdProgramName, consts.Version, "Starting:", names)
	}

	p := newPoller(r, names, types, cfg.pollInterval, cfg.queryTimeout, cfg.recurse)
	p.start()

	reporters := []reporter.Reporter{r, p}

	// Constrain the process via setuid/setgid/chroot. This is a no-op call if all parameters are
	// empty strings.

	err = osutil.Constrain(cfg.setuidName, cfg.setgidName, cfg.chrootDir)
	if err != nil {
		return fatal(err)
	}
	if cfg.verbose {
		fmt.Fprintf(stdout, "Constraints: %s\n", osutil.ConstraintReport())
	}

	mainState(started) // Tell testers that we're up and running
	nextStatusIn := nextInterval(time.Now(), cfg.statusInterval)

Running:
	for {
		select {
		case s := <-stopChannel:
			if osutil.IsSignalUSR1(s) {
				statusReport("User1", false, reporters)
				break
			}
			if cfg.verbose {
				fmt.Fprintln(stdout, "\nSignal", s)
			}
			break Running // All signals bar USR1 cause loop exit

		case <-time.After(nextStatusIn):
			if cfg.verbose {
				statusReport("Status", true, reporters)
			}
			nextStatusIn = nextInterval(time.Now(), cfg.statusInterval)
		}
	}

	p.stop()
	r.Close()

	if cfg.verbose {
		statusReport("Status", true, reporters) // One last report prior to exiting
		fmt.Fprintln(stdout, consts.ResolvdProgramName, consts.Version, "Exiting after", uptime())
	}

	if memProfileFile != nil {
		runtime.GC() // get up-to-date statistics
		err := pprof.WriteHeapProfile(memProfileFile)
		if err != nil {
			return fatal(err)
		}
	}

	return 0
}

// parseTypes turns ["A", "MX", ...] into aresolve.Kind values by looking each name up,
// case-insensitively, in dns.StringToType. A name that table lacks, such as a numeric TYPEnnn
// form, is rejected.
func parseTypes(names []string) ([]aresolve.Kind, error) {
	if len(names) == 0 {
		return nil, nil // Resolve()'s own default of [A, AAAA]
	}
	types := make([]aresolve.Kind, 0, len(names))
	for _, name := range names {
		code, ok := dns.StringToType[strings.ToUpper(name)]
		if !ok {
			return nil, fmt.Errorf("unrecognized record kind %q", name)
		}
		types = append(types, aresolve.OtherKind(code))
	}
	return types, nil
}

// nextInterval calculates the duration to the modulo interval next time. If now is 00:01:17 and
// interval is 30s then return is 13s which is the duration to the next modulo of 00:01:30.
func nextInterval(now time.Time, interval time.Duration) time.Duration {
	return now.Truncate(interval).Add(interval).Sub(now)
}

// uptime calculates how long this process has been running, print-friendly and granularity
// appropriate.
func uptime() string {
	return time.Now().Sub(startTime).Truncate(time.Second).String()
}

// statusReport prints stats about the Resolver and the poller.
func statusReport(what string, resetCounters bool, reporters []reporter.Reporter) {
	fmt.Fprintln(stdout, "Status Up:", consts.ResolvdProgramName, consts.Version, uptime())
	for _, r := range reporters {
		reps := strings.Split(r.Report(resetCounters), "\n")
		for _, s := range reps {
			if len(s) > 0 {
				fmt.Fprintf(stdout, "%s %s: %s\n", what, r.Name(), s)
			}
		}
	}
}
