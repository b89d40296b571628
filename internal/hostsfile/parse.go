package hostsfile

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/dingostack/aresolve/internal/dnsname"
	"github.com/dingostack/aresolve/internal/rr"
)

// Key identifies one hosts-file mapping: a record kind (A or AAAA, per the literal's family) and a
// lowercased name.
type Key struct {
	Kind rr.Kind
	Name string
}

// Parse turns the raw bytes of a hosts file into a Key -> literal mapping, per spec 4.2: "#"
// comments are stripped, blank lines skipped, field 0 of each remaining line must parse as an IP
// literal (determining A vs AAAA), fields 1..n are names validated and lowercased by dnsname.
// Later lines override earlier ones, which falls out naturally from processing lines in order and
// assigning into the same map.
func Parse(data []byte) map[Key]string {
	out := make(map[Key]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		literal := fields[0]
		var kind rr.Kind
		switch dnsname.Classify(literal) {
		case dnsname.IP4Literal:
			kind = rr.KindA
		case dnsname.IP6Literal:
			kind = rr.KindAAAA
		default:
			continue // field 0 isn't an IP literal: not a hosts entry
		}

		for _, name := range fields[1:] {
			if dnsname.Classify(name) != dnsname.Hostname {
				continue
			}
			out[Key{Kind: kind, Name: dnsname.Lowercase(name)}] = literal
		}
	}

	return out
}
