// Package metrics provides lightweight instrumentation for the board core.
//
// Timings cover the reconciliation hot paths (full refresh merge, patch
// application, single-card refetch) and counters track how often the core had
// to fall back (failed refreshes, rejected mutations). Everything is kept in
// memory with atomic operations; collection is on by default and can be
// disabled with RETRO_METRICS=0.
//
//	func (b *Board) Refresh(ctx context.Context) error {
//	    defer metrics.Timer(metrics.Refresh)()
//	    ...
//	}
package metrics

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("RETRO_METRICS") != "0")
}

// Enabled returns whether metrics collection is enabled.
func Enabled() bool { return enabled.Load() }

// SetEnabled allows programmatic control of metrics collection.
func SetEnabled(e bool) { enabled.Store(e) }

// TimingMetric tracks timing statistics for a named operation.
type TimingMetric struct {
	name    string
	count   atomic.Int64
	totalNs atomic.Int64
	maxNs   atomic.Int64
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record records a single measurement.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled.Load() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.totalNs.Add(ns)
	for {
		old := m.maxNs.Load()
		if ns <= old || m.maxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Name returns the metric name.
func (m *TimingMetric) Name() string { return m.name }

// Count returns the number of recorded measurements.
func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats returns a snapshot of the metric.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.totalNs.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:  m.name,
		Count: count,
		AvgMs: float64(avg) / 1e6,
		MaxMs: float64(m.maxNs.Load()) / 1e6,
	}
}

// Reset clears all recorded measurements.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.totalNs.Store(0)
	m.maxNs.Store(0)
}

// TimingStats holds a snapshot of timing statistics.
type TimingStats struct {
	Name  string  `json:"name"`
	Count int64   `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	MaxMs float64 `json:"max_ms"`
}

// Timer returns a function that records elapsed time when called.
func Timer(m *TimingMetric) func() {
	if !enabled.Load() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

// Counter is a monotonically increasing event count.
type Counter struct {
	name string
	n    atomic.Int64
}

// Inc adds one to the counter.
func (c *Counter) Inc() {
	if enabled.Load() {
		c.n.Add(1)
	}
}

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// Timings for board operations.
var (
	Reconcile     = newTimingMetric("reconcile")
	ApplyPatch    = newTimingMetric("apply_patch")
	Refresh       = newTimingMetric("refresh")
	SingleRefetch = newTimingMetric("single_refetch")
	UIRender      = newTimingMetric("ui_render")
)

// Counters for recovered failures.
var (
	RefreshFailures  = &Counter{name: "refresh_failures"}
	MutationFailures = &Counter{name: "mutation_failures"}
	FocusFailures    = &Counter{name: "focus_failures"}
	BroadcastsSent   = &Counter{name: "broadcasts_sent"}
)

// AllTimingMetrics returns all registered timing metrics.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{Reconcile, ApplyPatch, Refresh, SingleRefetch, UIRender}
}

// AllCounters returns all registered counters.
func AllCounters() []*Counter {
	return []*Counter{RefreshFailures, MutationFailures, FocusFailures, BroadcastsSent}
}

// ResetAll resets every metric and counter.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
	for _, c := range AllCounters() {
		c.n.Store(0)
	}
}

// Summary renders non-empty metrics as one line per metric, for --stats.
func Summary() string {
	var sb strings.Builder
	for _, m := range AllTimingMetrics() {
		if m.Count() == 0 {
			continue
		}
		s := m.Stats()
		fmt.Fprintf(&sb, "%-16s n=%d avg=%.2fms max=%.2fms\n", s.Name, s.Count, s.AvgMs, s.MaxMs)
	}
	for _, c := range AllCounters() {
		if c.Value() == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%-16s %d\n", c.Name(), c.Value())
	}
	return sb.String()
}
