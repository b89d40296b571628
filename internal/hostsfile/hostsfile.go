// Package hostsfile loads and caches the OS hosts-name database (spec 4.2). The file is read once
// per process lifetime, asynchronously, via the Reader seam in reader.go; Parse in parse.go turns
// the bytes into a (kind, lowercased name) -> literal mapping; Loader ties the two together and
// caches the result, with a reload escape hatch and an always-present synthetic "localhost" entry.
package hostsfile

import (
	"context"
	"runtime"
	"sync"

	"github.com/dingostack/aresolve/internal/rr"
)

// DefaultPath returns the platform-specific default hosts file location, per spec 4.2.
func DefaultPath() string {
	if runtime.GOOS == "windows" {
		return `C:\Windows\system32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}

// Loader caches the parsed hosts map for the process lifetime, reloading only on request.
type Loader struct {
	reader Reader
	path   string

	mu      sync.Mutex
	loaded  bool
	entries map[Key]string
}

// New constructs a Loader for path, reading via reader. An empty path uses DefaultPath(); a nil
// reader uses the default goroutine-based Reader.
func New(path string, reader Reader) *Loader {
	if path == "" {
		path = DefaultPath()
	}
	if reader == nil {
		reader = NewReader()
	}
	return &Loader{path: path, reader: reader}
}

// Load returns the cached hosts map, triggering a read only if it has never been loaded or if
// reload is true. A missing or unreadable file yields an empty map, not an error, per spec 4.2. The
// returned map always contains "localhost" A and AAAA entries, independent of file contents (spec
// 4.2).
func (l *Loader) Load(ctx context.Context, reload bool) (map[Key]string, error) {
	l.mu.Lock()
	if l.loaded && !reload {
		out := cloneMap(l.entries)
		l.mu.Unlock()
		return out, nil
	}
	l.mu.Unlock()

	resultCh := l.reader.ReadAll(l.path)
	var res ReadResult
	select {
	case res = <-resultCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	entries := make(map[Key]string)
	if res.Err == nil { // Unreadable file: entries stays empty, no error surfaced
		entries = Parse(res.Data)
	}
	addSyntheticLocalhost(entries)

	l.mu.Lock()
	l.entries = entries
	l.loaded = true
	out := cloneMap(l.entries)
	l.mu.Unlock()

	return out, nil
}

// addSyntheticLocalhost guarantees "localhost" resolves to the loopback addresses regardless of
// what the hosts file says, per spec 4.2: it always overwrites any file-supplied entry rather than
// merely filling a gap.
func addSyntheticLocalhost(entries map[Key]string) {
	entries[Key{Kind: rr.KindA, Name: "localhost"}] = "127.0.0.1"
	entries[Key{Kind: rr.KindAAAA, Name: "localhost"}] = "::1"
}

func cloneMap(in map[Key]string) map[Key]string {
	out := make(map[Key]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
