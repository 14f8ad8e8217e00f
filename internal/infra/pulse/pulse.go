// Package pulse implements the Pulse Monitor and Client Garbage
// Collector (spec §4.8): two independently-ticked loops, following the
// teacher's health.Checker shape of a ticker-driven Run(ctx) goroutine
// around a small stateful struct. Detection (liveness) and cleanup
// (untune) are split across two loops at two different intervals so
// that a slow cleanup batch never throttles how quickly dead clients
// are detected.
package pulse

import (
	"context"
	"sync"
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/metrics"
)

// LiveClients enumerates the pids the Client Data Manager currently
// knows about.
type LiveClients interface {
	ListLiveClients() []int
}

// ProcessChecker reports whether pid still exists at the OS level.
// Production wires this to an os.Stat("/proc/<pid>") check; tests
// supply a canned set.
type ProcessChecker func(pid int) bool

// Monitor is the Pulse Monitor: it only detects death, it never
// mutates request state (spec §4.8).
type Monitor struct {
	live     LiveClients
	alive    ProcessChecker
	interval time.Duration

	mu      sync.Mutex
	pending map[int]struct{} // dead pids awaiting GC, idempotent enqueue
}

// NewMonitor creates a Pulse Monitor polling live at interval.
func NewMonitor(live LiveClients, alive ProcessChecker, interval time.Duration) *Monitor {
	return &Monitor{
		live:     live,
		alive:    alive,
		interval: interval,
		pending:  make(map[int]struct{}),
	}
}

// Run sweeps for dead pids every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one liveness pass immediately, exported so tests and a
// shutdown path can drive it synchronously rather than waiting on the
// ticker.
func (m *Monitor) Sweep() {
	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pid := range m.live.ListLiveClients() {
		if !m.alive(pid) {
			m.pending[pid] = struct{}{} // idempotent: already-queued dead pid is a no-op
		}
	}
	metrics.PulseSweepDuration.Observe(time.Since(start).Seconds())
}

// DrainBatch removes and returns up to n pending dead pids, for the GC
// loop to process. Pids left over remain queued for the next GC wake.
func (m *Monitor) DrainBatch(n int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || len(m.pending) == 0 {
		return nil
	}
	out := make([]int, 0, n)
	for pid := range m.pending {
		if len(out) >= n {
			break
		}
		out = append(out, pid)
		delete(m.pending, pid)
	}
	return out
}

// PendingCount reports how many dead pids are queued for GC.
func (m *Monitor) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Collector is the Client Garbage Collector: for each dead pid it
// drains from the Monitor, it untunes every handle the pid owns, then
// drops the pid's CDM bookkeeping.
type Collector struct {
	monitor  *Monitor
	handles  func(pid int) []domain.Handle
	untune   func(h domain.Handle)
	drop     func(pid int)
	batchCap int
	interval time.Duration
}

// NewCollector creates a Garbage Collector that wakes every interval,
// draining up to batchCap dead pids per wake (spec §4.8: "the batch
// cap prevents a single wake from monopolizing the lock").
func NewCollector(monitor *Monitor, handles func(pid int) []domain.Handle, untune func(h domain.Handle), drop func(pid int), batchCap int, interval time.Duration) *Collector {
	return &Collector{
		monitor:  monitor,
		handles:  handles,
		untune:   untune,
		drop:     drop,
		batchCap: batchCap,
		interval: interval,
	}
}

// Run drives the GC loop until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CollectBatch()
		}
	}
}

// CollectBatch drains up to batchCap dead pids and untunes every
// handle each one owns before dropping its CDM bookkeeping. Exported
// so tests and a shutdown path can drive a batch synchronously.
func (c *Collector) CollectBatch() {
	start := time.Now()
	batch := c.monitor.DrainBatch(c.batchCap)
	for _, pid := range batch {
		for _, h := range c.handles(pid) {
			c.untune(h)
		}
		c.drop(pid)
	}
	metrics.GCBatchSize.Observe(float64(len(batch)))
	metrics.GCBatchDuration.Observe(time.Since(start).Seconds())
}
