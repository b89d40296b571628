// Package answercache implements the TTL-bounded answer cache described in spec 4.3: a mapping
// from (lowercased host name, record kind) to the list of answer records that satisfied it, expiring
// at the minimum positive TTL seen among those records. Expiry is checked lazily on Get; Sweep is an
// optional helper a caller can run periodically but correctness never depends on it being called.
package answercache

import (
	"sync"
	"time"

	"github.com/dingostack/aresolve/internal/rr"
)

// Key identifies one cache slot.
type Key struct {
	Name string // Already-lowercased host name
	Kind rr.Kind
}

type entry struct {
	answers []rr.Answer
	expires time.Time
}

// Cache is a process-wide shared, concurrency-safe TTL map. The zero value is not usable; construct
// with New.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]entry
	now     func() time.Time // Overridable for tests
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]entry), now: time.Now}
}

// Has reports whether key has an unexpired entry, without extending its life. An expired entry is
// removed as a side effect, matching Get's behavior.
func (c *Cache) Has(key Key) bool {
	_, ok := c.Get(key)
	return ok
}

// Get returns the cached answers for key and true, or (nil, false) on a miss. An expired entry is
// removed and reported as a miss.
func (c *Cache) Get(key Key) ([]rr.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.After(c.now()) {
		delete(c.entries, key)
		return nil, false
	}

	out := make([]rr.Answer, len(e.answers))
	copy(out, e.answers)
	return out, true
}

// Set stores answers under key with an expiry computed as now + the minimum positive TTL among
// answers. If every answer's TTL is UnsetTTL or 0, Set is a no-op: an entry with a minimum TTL of
// zero is never stored, per spec 4.3's invariant that a present entry's minimum TTL is > 0.
func (c *Cache) Set(key Key, answers []rr.Answer) {
	if len(answers) == 0 {
		return
	}

	minTTL := -1
	for _, a := range answers {
		if a.TTL <= 0 {
			continue
		}
		if minTTL == -1 || a.TTL < minTTL {
			minTTL = a.TTL
		}
	}
	if minTTL <= 0 {
		return
	}

	stored := make([]rr.Answer, len(answers))
	copy(stored, answers)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{answers: stored, expires: c.now().Add(time.Duration(minTTL) * time.Second)}
}

// Delete removes key unconditionally, whether or not it was present.
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep removes every entry that has expired as of now. It is entirely optional: lazy expiry on Get
// is sufficient for correctness, but a host application may want to call Sweep periodically (e.g.
// from the reactor's 1Hz tick) to bound memory held by entries nobody ever looks up again.
func (c *Cache) Sweep() (removed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !e.expires.After(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently stored, expired or not. Intended for tests and
// diagnostics, not for correctness decisions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
