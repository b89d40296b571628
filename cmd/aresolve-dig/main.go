// aresolve-dig issues ad hoc queries against the aresolve library, for manual testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/miekg/dns"

	"github.com/dingostack/aresolve"
	"github.com/dingostack/aresolve/internal/constants"
	"github.com/dingostack/aresolve/internal/tlsutil"
)

// Program-wide variables
var (
	consts = constants.Get()
	cfg    *config

	stdout io.Writer
	stderr io.Writer

	flagSet *flag.FlagSet
)

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", consts.DigProgramName, ": ")
	fmt.Fprintln(stderr, args...)

	return 1
}

// main is a wrapper for mainExecute() so tests can call mainExecute()

func mainInit(out io.Writer, err io.Writer) {
	cfg = &config{}
	stdout = out
	stderr = err
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func mainExecute(args []string) int {
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
		fmt.Fprintln(stdout, consts.DigProgramName, "Version:", consts.Version)
		return 0
	}
	if cfg.repeatCount < 0 {
		return fatal("Repeat count (-r) must be GE zero, not", cfg.repeatCount)
	}

	remainingArgs := flagSet.Args()
	var server string
	if len(remainingArgs) > 0 && strings.HasPrefix(remainingArgs[0], "@") {
		server = remainingArgs[0][1:]
		remainingArgs = remainingArgs[1:]
	}
	if len(remainingArgs) < 1 {
		return fatal("Require a name on the command line. Consider -h")
	}
	qName := remainingArgs[0]
	remainingArgs = remainingArgs[1:]

	types, err := parseTypes(append(cfg.qTypes.Args(), remainingArgs...))
	if err != nil {
		return fatal(err)
	}

	var opts []aresolve.Option
	if len(server) > 0 {
		opts = append(opts, aresolve.WithServer(server))
	}
	// Only consulted for an https:// (DoH) server, but always built so a bad -tls-cert/-tls-key
	// combination is reported up front regardless of which transport is in play.
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
	defer r.Close()

	chOut := make(chan string, 1) // Queries write to a chan so we can parallelize
	chErr := make(chan string, 1) // and reap and print the outputs without interleaving.
	if cfg.parallel {
		for qx := 0; qx < cfg.repeatCount; qx++ {
			go doQuery(chOut, chErr, r, qName, types, cfg.short)
		}
	} else {
		for qx := 0; qx < cfg.repeatCount; qx++ {
			doQuery(chOut, chErr, r, qName, types, cfg.short)
			fmt.Fprint(stdout, <-chOut)
			fmt.Fprint(stderr, <-chErr)
		}
		return 0
	}
	for qx := 0; qx < cfg.repeatCount; qx++ {
		fmt.Fprint(stdout, <-chOut)
		fmt.Fprint(stderr, <-chErr)
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

func doQuery(chOut, chErr chan string, r *aresolve.Resolver, qName string, types []aresolve.Kind, short bool) {
	outBuf := &strings.Builder{}
	errBuf := &strings.Builder{}
	defer func() {
		chOut <- outBuf.String()
		chErr <- errBuf.String()
	}()

	ctx := context.Background()
	var opts []aresolve.QueryOption
	if cfg.timeout > 0 {
		opts = append(opts, aresolve.WithQueryTimeout(cfg.timeout))
	}
	if cfg.noHosts {
		opts = append(opts, aresolve.NoHosts())
	}
	if cfg.noCache {
		opts = append(opts, aresolve.NoCache())
	}

	var answers []aresolve.Answer
	var err error
	if len(types) == 1 {
		if cfg.recurse {
			opts = append(opts, aresolve.Recurse())
		}
		answers, err = r.Query(ctx, qName, types[0], opts...)
	} else {
		if len(types) > 0 {
			opts = append(opts, aresolve.WithTypes(types...))
		}
		answers, err = r.Resolve(ctx, qName, opts...)
	}
	if err != nil {
		fmt.Fprintln(errBuf, "Error:", err)
		return
	}

	for _, a := range answers {
		if short {
			fmt.Fprintln(outBuf, a.Data)
		} else {
			fmt.Fprintf(outBuf, "%s\t%s\t%s\n", qName, a.Kind, a.Data)
		}
	}
}
