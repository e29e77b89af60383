// Package metrics implements the engine's performance monitor: a pure
// accumulator of call counts, latencies, cache hit/miss rates, and error
// counts per operation, with a snapshot/report operation.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Monitor accumulates per-operation performance counters. Safe for
// concurrent increment from every other component.
type Monitor struct {
	mu sync.RWMutex

	calls       map[string]int64
	errors      map[string]int64
	cacheHits   map[string]int64
	cacheMisses map[string]int64

	totalDuration map[string]time.Duration
	maxDuration   map[string]time.Duration
	durationCount map[string]int64

	startedAt time.Time
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		calls:         make(map[string]int64),
		errors:        make(map[string]int64),
		cacheHits:     make(map[string]int64),
		cacheMisses:   make(map[string]int64),
		totalDuration: make(map[string]time.Duration),
		maxDuration:   make(map[string]time.Duration),
		durationCount: make(map[string]int64),
		startedAt:     time.Now().UTC(),
	}
}

// RecordCall increments the call counter for an operation.
func (m *Monitor) RecordCall(op string) {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()
}

// RecordDuration records the latency of one call.
func (m *Monitor) RecordDuration(op string, d time.Duration) {
	m.mu.Lock()
	m.totalDuration[op] += d
	m.durationCount[op]++
	if d > m.maxDuration[op] {
		m.maxDuration[op] = d
	}
	m.mu.Unlock()
}

// RecordCacheHit increments the cache-hit counter for an operation.
func (m *Monitor) RecordCacheHit(op string) {
	m.mu.Lock()
	m.cacheHits[op]++
	m.mu.Unlock()
}

// RecordCacheMiss increments the cache-miss counter for an operation.
func (m *Monitor) RecordCacheMiss(op string) {
	m.mu.Lock()
	m.cacheMisses[op]++
	m.mu.Unlock()
}

// RecordError increments the error counter for an operation.
func (m *Monitor) RecordError(op string, err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.errors[op]++
	m.mu.Unlock()
}

// Timed runs fn, recording a call and its duration, and the error if any.
func (m *Monitor) Timed(op string, fn func() error) error {
	m.RecordCall(op)
	start := time.Now()
	err := fn()
	m.RecordDuration(op, time.Since(start))
	m.RecordError(op, err)
	return err
}

// OpMetrics is the per-operation slice of a report.
type OpMetrics struct {
	Op          string
	Calls       int64
	Errors      int64
	CacheHits   int64
	CacheMisses int64
	AvgDuration time.Duration
	MaxDuration time.Duration
}

// HitRate returns the cache hit rate for this operation, or -1 if the
// operation never touched the cache.
func (o OpMetrics) HitRate() float64 {
	total := o.CacheHits + o.CacheMisses
	if total == 0 {
		return -1
	}
	return float64(o.CacheHits) / float64(total)
}

// Report is a point-in-time snapshot of all counters.
type Report struct {
	Ops         []OpMetrics
	TotalCalls  int64
	TotalErrors int64
	OverallHits int64
	OverallMiss int64
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CacheHitRate returns the overall cache hit rate, or -1 with no cache traffic.
func (r Report) CacheHitRate() float64 {
	total := r.OverallHits + r.OverallMiss
	if total == 0 {
		return -1
	}
	return float64(r.OverallHits) / float64(total)
}

// Report returns a consistent snapshot of all counters.
func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ops := make(map[string]struct{})
	for op := range m.calls {
		ops[op] = struct{}{}
	}
	for op := range m.cacheHits {
		ops[op] = struct{}{}
	}
	for op := range m.cacheMisses {
		ops[op] = struct{}{}
	}
	for op := range m.errors {
		ops[op] = struct{}{}
	}

	report := Report{
		Uptime:      time.Since(m.startedAt),
		GeneratedAt: time.Now().UTC(),
	}

	for op := range ops {
		om := OpMetrics{
			Op:          op,
			Calls:       m.calls[op],
			Errors:      m.errors[op],
			CacheHits:   m.cacheHits[op],
			CacheMisses: m.cacheMisses[op],
			MaxDuration: m.maxDuration[op],
		}
		if n := m.durationCount[op]; n > 0 {
			om.AvgDuration = m.totalDuration[op] / time.Duration(n)
		}
		report.Ops = append(report.Ops, om)
		report.TotalCalls += om.Calls
		report.TotalErrors += om.Errors
		report.OverallHits += om.CacheHits
		report.OverallMiss += om.CacheMisses
	}

	sort.Slice(report.Ops, func(i, j int) bool {
		return report.Ops[i].Op < report.Ops[j].Op
	})

	return report
}

// String renders a human-readable report.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Performance report (uptime %s)\n", r.Uptime.Round(time.Second))
	fmt.Fprintf(&b, "  total calls: %d, errors: %d", r.TotalCalls, r.TotalErrors)
	if rate := r.CacheHitRate(); rate >= 0 {
		fmt.Fprintf(&b, ", cache hit rate: %.1f%%", rate*100)
	}
	b.WriteString("\n")
	for _, op := range r.Ops {
		fmt.Fprintf(&b, "  %-28s calls=%-6d errors=%-4d avg=%-10s max=%s",
			op.Op, op.Calls, op.Errors, op.AvgDuration.Round(time.Microsecond), op.MaxDuration.Round(time.Microsecond))
		if rate := op.HitRate(); rate >= 0 {
			fmt.Fprintf(&b, " hit=%.1f%%", rate*100)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Reset clears all counters. Intended for tests and report rotation.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = make(map[string]int64)
	m.errors = make(map[string]int64)
	m.cacheHits = make(map[string]int64)
	m.cacheMisses = make(map[string]int64)
	m.totalDuration = make(map[string]time.Duration)
	m.maxDuration = make(map[string]time.Duration)
	m.durationCount = make(map[string]int64)
	m.startedAt = time.Now().UTC()
}
