package main

/*

This module is the core of the daemon. Unlike trustydns-proxy, which fields inbound DNS queries and
forwards them to a DoH server, aresolve-resolvd has no inbound listener: its job is to give
aresolve.Resolver something to do over a long run so the library's reactor, request multiplexer and
upstream connections can be observed rather than exercised once and discarded.

A poller resolves a fixed set of names, in parallel, once per poll interval, and keeps running
totals in the same style as trustydns-proxy's server/reporter pair: a mutex-guarded stats struct,
Name()/Report(resetCounters) satisfying internal/reporter.Reporter, and an internal/inflight.Counter
for peak concurrency.

*/

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dingostack/aresolve"
	"github.com/dingostack/aresolve/internal/inflight"
)

type pollerStats struct {
	successCount int
	totalLatency time.Duration
	failureCount int
	lastError    string
}

type poller struct {
	resolver *aresolve.Resolver
	names    []string
	types    []aresolve.Kind
	interval time.Duration
	timeout  time.Duration
	recurse  bool

	inFlight inflight.Counter

	stopCh chan struct{}
	doneCh chan struct{}

	mu sync.RWMutex // Protects pollerStats
	pollerStats
}

func newPoller(r *aresolve.Resolver, names []string, types []aresolve.Kind,
	interval, timeout time.Duration, recurse bool) *poller {
	return &poller{
		resolver: r,
		names:    names,
		types:    types,
		interval: interval,
		timeout:  timeout,
		recurse:  recurse,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// start runs the poll loop in a new goroutine. The first round fires immediately rather than
// waiting a full interval, so -v start-up output has something to show right away.
func (p *poller) start() {
	go p.run()
}

// stop signals the poll loop to exit and waits for the in-flight round to finish.
func (p *poller) stop() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *poller) run() {
	defer close(p.doneCh)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	p.pollAll()
	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
			p.pollAll()
		}
	}
}

func (p *poller) pollAll() {
	var wg sync.WaitGroup
	for _, name := range p.names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			p.pollOne(name)
		}(name)
	}
	wg.Wait()
}

func (p *poller) pollOne(name string) {
	p.inFlight.Add()
	defer p.inFlight.Done()

	var opts []aresolve.QueryOption
	opts = append(opts, aresolve.WithQueryTimeout(p.timeout))
	if len(p.types) > 0 {
		opts = append(opts, aresolve.WithTypes(p.types...))
	}
	if p.recurse {
		opts = append(opts, aresolve.Recurse())
	}

	start := time.Now()
	_, err := p.resolver.Resolve(context.Background(), name, opts...)
	latency := time.Since(start)

	p.addStats(err, name, latency)
}

func (p *poller) addStats(err error, name string, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.failureCount++
		p.lastError = fmt.Sprintf("%s: %s", name, err)
		return
	}
	p.successCount++
	p.totalLatency += latency
}
