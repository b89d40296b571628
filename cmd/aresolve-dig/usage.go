package main

import (
	"fmt"
	"io"
	"text/template"
	"time"
)

// The "flag" package is not tty aware so we've arbitrarily picked 100 columns as a conservative tty
// width for the usage output.

const usageMessageTemplate = `
NAME
          {{.DigProgramName}} -- issue an aresolve query from the command line

SYNOPSIS
          {{.DigProgramName}} [options] [@server] name [type...]

DESCRIPTION
          {{.DigProgramName}} resolves name against server (udp://, tcp:// or https:// upstream URI,
          or a bare "addr" / "addr:port" form; default {{.DigProgramName}} dials {{.PackageURL}}'s
          compiled-in default upstream). One or more -type flags select which record kinds to ask
          for; with none given, the default [A, AAAA] is used, same as library's Resolve().

          {{.DigProgramName}} is the exercise CLI for {{.PackageName}}, a {{.RFC}} stub resolver
          library: it exists to issue queries exactly as the library would and to show its public
          API in use, not as a production dig replacement.

EXAMPLES
            $ {{.DigProgramName}} @8.8.8.8 example.com
            $ {{.DigProgramName}} -type MX -type A example.com
            $ {{.DigProgramName}} -recurse @https://dns.google/dns-query www.example.com A

OPTIONS
          [-h] [-version] [-short]
          [-r repeat count] [-p]
          [-timeout duration] [-recurse] [-no-hosts] [-no-cache]
          [-type record-kind]...
          [-tls-cert file] [-tls-key file] [-tls-other-roots file]... [-tls-use-system-roots]
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
	flagSet.BoolVar(&cfg.help, "h", false, "Print usage message to Stdout then exit(0)")
	flagSet.BoolVar(&cfg.version, "version", false, "Print version and exit")
	flagSet.BoolVar(&cfg.short, "short", false, "Generate short output showing only the answers")

	flagSet.IntVar(&cfg.repeatCount, "r", 1, "`Number` of times to issue the query (GE zero)")
	flagSet.BoolVar(&cfg.parallel, "p", false, "Issue all repeats in parallel")

	flagSet.DurationVar(&cfg.timeout, "timeout", 3*time.Second, "Overall per-query `timeout`")
	flagSet.BoolVar(&cfg.recurse, "recurse", false, "Chase CNAME/DNAME chains with exactly one -type (with none or several, chasing is always on)")
	flagSet.BoolVar(&cfg.noHosts, "no-hosts", false, "Skip the hosts file")
	flagSet.BoolVar(&cfg.noCache, "no-cache", false, "Skip the answer cache read (results are still written)")

	flagSet.Var(&cfg.qTypes, "type", "Record `kind` to ask for, e.g. A, AAAA, MX (repeatable; default A, AAAA)")

	flagSet.StringVar(&cfg.tlsClientCertFile, "tls-cert", "", "TLS client certificate `file` for https:// servers")
	flagSet.StringVar(&cfg.tlsClientKeyFile, "tls-key", "", "TLS client key `file` for https:// servers")
	flagSet.Var(&cfg.tlsCAFiles, "tls-other-roots", "Non-system root CA `file` used to validate an https:// server")
	flagSet.BoolVar(&cfg.tlsUseSystemRootCAs, "tls-use-system-roots", true, "Validate https:// servers with root CAs")

	return flagSet.Parse(args[1:])
}
