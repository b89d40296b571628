// Package reactor is the single-threaded cooperative scheduler of spec 5: one designated goroutine
// drains a channel of closures, and every other goroutine in the module (connection reader
// goroutines, DoH's per-request goroutines) only ever touches shared state by handing a closure to
// that channel instead of mutating anything itself. "Everything between suspension points executes
// atomically" falls out for free, because only one goroutine ever runs application closures at a
// time.
//
// This is the idiomatic Go reading of spec 9's instruction to replace the source's coroutine/event-
// loop style with "explicit request state machines driven by event-loop callbacks... with
// promise/future handles": rather than reimplement non-blocking sockets and a readiness-watcher
// registry, the reactor gives every collaborator a Submit function (see transport.Submit) and lets
// ordinary blocking goroutines do the I/O.
package reactor

import "time"

// Reactor runs submitted closures one at a time on its own goroutine, plus a periodic tick used for
// idle-connection expiry (spec 4.5).
type Reactor struct {
	cmdCh        chan func()
	stopCh       chan struct{}
	doneCh       chan struct{}
	tickInterval time.Duration
	tickFns      []func(time.Time)
}

// New returns a Reactor that ticks once per tickInterval once Run is called. Register tick
// consumers with OnTick before calling Run; OnTick is not safe to call concurrently with Run.
func New(tickInterval time.Duration) *Reactor {
	return &Reactor{
		cmdCh:        make(chan func(), 64),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		tickInterval: tickInterval,
	}
}

// OnTick registers fn to be called, with the tick's timestamp, on every tick while Run is active.
// Intended for internal/mux's idle-connection sweep.
func (r *Reactor) OnTick(fn func(now time.Time)) {
	r.tickFns = append(r.tickFns, fn)
}

// Submit hands fn to the reactor goroutine for execution. Safe to call from any goroutine,
// including before Run starts (fn simply waits in the channel buffer). Matches transport.Submit's
// signature so a Reactor's Submit method value can be passed anywhere one is expected.
func (r *Reactor) Submit(fn func()) {
	r.cmdCh <- fn
}

// Run drains submitted closures and fires the tick callbacks until Stop is called. It blocks the
// calling goroutine; callers typically run it in its own goroutine.
func (r *Reactor) Run() {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case fn := <-r.cmdCh:
			fn()

		case now := <-ticker.C:
			for _, fn := range r.tickFns {
				fn(now)
			}

		case <-r.stopCh:
			return
		}
	}
}

// Stop signals Run to return and waits for it to do so. Safe to call at most once.
func (r *Reactor) Stop() {
	close(r.stopCh)
	<-r.doneCh
}
