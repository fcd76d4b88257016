package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	clientErrors    uint64
	rateLimited     uint64
	totalDurationMs uint64

	mu     sync.Mutex
	events map[string]uint64
}

func New() *Collector {
	return &Collector{events: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status == 429:
		atomic.AddUint64(&c.rateLimited, 1)
	case status >= 400:
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// Event counts a named workflow event such as "selection.approved".
// A nil collector ignores the call.
func (c *Collector) Event(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.events[name]++
	c.mu.Unlock()
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	clientErrs := atomic.LoadUint64(&c.clientErrors)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	events := make(map[string]uint64, len(c.events))
	for name, count := range c.events {
		events[name] = count
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":     total,
		"errorsTotal":       errs,
		"clientErrorsTotal": clientErrs,
		"rateLimitedTotal":  limited,
		"avgDurationMs":     avg,
		"totalDurationMs":   totalMs,
		"workflowEvents":    events,
	}
}
