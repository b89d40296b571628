package main

import (
	"fmt"
)

//////////////////////////////////////////////////////////////////////
// poller's reporter.Reporter implementation
//////////////////////////////////////////////////////////////////////

func (p *poller) Name() string {
	return fmt.Sprintf("Poller: (%d names every %s)", len(p.names), p.interval)
}

func (p *poller) Report(resetCounters bool) string {
	if resetCounters {
		p.mu.Lock()
		defer p.mu.Unlock()
	} else {
		p.mu.RLock()
		defer p.mu.RUnlock()
	}

	req := p.successCount + p.failureCount
	var al float64
	if p.successCount > 0 {
		al = p.totalLatency.Seconds() / float64(p.successCount)
	}

	s := fmt.Sprintf("req=%d ok=%d al=%0.3f errs=%d concurrency=%d",
		req, p.successCount, al, p.failureCount, p.inFlight.Peak(resetCounters))
	if len(p.lastError) > 0 {
		s += " last=" + p.lastError
	}

	if resetCounters {
		p.pollerStats = pollerStats{}
	}

	return s
}
