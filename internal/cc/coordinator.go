// Package cc wires every Concurrency Coordinator component into one
// runtime: the Coordinator. It exposes the public API spec.md §6
// names (TuneResources, TuneSignal, Retune, Untune, GetProp, SetProp)
// and owns the single dispatcher goroutine that is the only mutator of
// Coco Table state and the only code that moves a Request through its
// lifecycle (spec §5). Retune is the one exception on the Request
// Manager side: it extends a deadline from the calling goroutine.
//
// The wiring style — one struct holding every component, a New that
// assembles them, a Run(ctx) that launches the background loops —
// follows the teacher's Daemon (internal/daemon/daemon.go).
package cc

import (
	"context"
	"sync"
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/audit"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/cdm"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/cocotable"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/metrics"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/pulse"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/queue"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/ratelimiter"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/registry"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/requestmanager"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/signalregistry"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/timerwheel"
)

// Config holds the tunables spec §6's PropertiesConfig exposes through
// GetProp/SetProp, plus the wiring-only knobs (queue capacity, tick
// granularity) that are not themselves properties.
type Config struct {
	MaxConcurrentRequests  int
	MaxResourcesPerRequest int
	PulseDuration          time.Duration
	GCDuration             time.Duration
	RateLimiterDelta       time.Duration
	PenaltyFactor          int
	RewardFactor           float64
	GCBatchCap             int

	RequestQueueCapacity int
	TimerTick            time.Duration
}

// DefaultConfig returns the defaults named in spec §6.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentRequests:  512,
		MaxResourcesPerRequest: 32,
		PulseDuration:          60 * time.Second,
		GCDuration:             83 * time.Second,
		RateLimiterDelta:       5 * time.Millisecond,
		PenaltyFactor:          2,
		RewardFactor:           0.4,
		GCBatchCap:             64,
		RequestQueueCapacity:   4096,
		TimerTick:              50 * time.Millisecond,
	}
}

// Coordinator is the assembled Concurrency Coordinator.
type Coordinator struct {
	resources *registry.Registry
	signals   *signalregistry.Registry
	cdm       *cdm.Manager
	limiter   *ratelimiter.Limiter
	queue     *queue.Queue
	wheel     *timerwheel.Wheel
	table     *cocotable.Table
	requests  *requestmanager.Manager
	monitor   *pulse.Monitor
	collector *pulse.Collector

	propMu sync.RWMutex
	props  map[string]int64

	tick time.Duration
	now  func() time.Time
}

// New assembles a Coordinator from the Resource Registry, Signal
// Registry, Applier, permission-derivation function, and liveness
// checker a running daemon supplies. The registry's per-resource scope
// widths drive the Coco Table's RegisterScope calls, so every resource
// the registry indexed is immediately arbitrable.
func New(cfg Config, resources *registry.Registry, signals *signalregistry.Registry, applier domain.Applier, permOf cdm.PermissionFunc, alive pulse.ProcessChecker) *Coordinator {
	cdmMgr := cdm.New(permOf)
	reqs := requestmanager.New()
	table := cocotable.New(applier)

	resources.All(func(desc domain.ResourceDescriptor) {
		width, _ := resources.ScopeWidth(desc.ID)
		for sq := 0; sq < width; sq++ {
			if flat, ok := resources.ScopeIndex(desc.ID, sq); ok {
				table.RegisterScope(flat, desc, sq)
			}
		}
	})

	rlCfg := ratelimiter.Config{
		Delta:         cfg.RateLimiterDelta,
		Penalty:       cfg.PenaltyFactor,
		Reward:        cfg.RewardFactor,
		MaxConcurrent: cfg.MaxConcurrentRequests,
	}
	limiter := ratelimiter.New(rlCfg, cdmMgr, reqs)

	monitor := pulse.NewMonitor(cdmMgr, alive, cfg.PulseDuration)

	c := &Coordinator{
		resources: resources,
		signals:   signals,
		cdm:       cdmMgr,
		limiter:   limiter,
		queue:     queue.New(cfg.RequestQueueCapacity),
		wheel:     timerwheel.New(),
		table:     table,
		requests:  reqs,
		monitor:   monitor,
		tick:      cfg.TimerTick,
		now:       time.Now,
		props: map[string]int64{
			"maximum.concurrent.requests":   int64(cfg.MaxConcurrentRequests),
			"maximum.resources.per.request": int64(cfg.MaxResourcesPerRequest),
			"pulse.duration":                cfg.PulseDuration.Milliseconds(),
			"garbage_collection.duration":   cfg.GCDuration.Milliseconds(),
			"rate_limiter.delta":            cfg.RateLimiterDelta.Milliseconds(),
			"penalty.factor":                int64(cfg.PenaltyFactor),
			"reward.factor":                 int64(cfg.RewardFactor * 1000),
		},
	}

	c.collector = pulse.NewCollector(monitor,
		reqs.HandlesOfClient,
		func(h domain.Handle) { c.postUntune(h) },
		cdmMgr.DropPID,
		cfg.GCBatchCap, cfg.GCDuration)

	return c
}

// SetAuditLog installs log to receive a row for every Coco Table
// apply/tear transition (spec §4.11). Passing nil disables auditing.
func (c *Coordinator) SetAuditLog(log *audit.Log) {
	if log == nil {
		c.table.SetAuditHook(nil)
		return
	}
	c.table.SetAuditHook(func(resourceID domain.ResourceID, scope int, handle domain.Handle, action string, value int64) {
		if err := log.Record(audit.Entry{
			Timestamp:      c.now(),
			ResourceID:     resourceID,
			ScopeQualifier: scope,
			Handle:         handle,
			Action:         audit.Action(action),
			Value:          value,
		}); err != nil {
			// Diagnostic only: a failed audit write never blocks arbitration.
			_ = err
		}
	})
}

// maxResourcesPerRequest reads the live tunable, since SetProp may
// change it after New.
func (c *Coordinator) maxResourcesPerRequest() int {
	c.propMu.RLock()
	defer c.propMu.RUnlock()
	return int(c.props["maximum.resources.per.request"])
}

// Run launches the Timer Wheel, Pulse Monitor, and Garbage Collector
// background loops, then runs the dispatcher loop on the calling
// goroutine until ctx is cancelled. On cancellation it drains the
// Request Queue and cancels every still-live handle (spec §5: "an exit
// flag causes the dispatcher to drain the queue ... and the GC to
// cancel all live handles"), restoring every applied resource to its
// default through the normal teardown path.
func (c *Coordinator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	tick := c.tick
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	go func() { defer wg.Done(); c.wheel.Run(ctx, tick, c.postExpire) }()
	go func() { defer wg.Done(); c.monitor.Run(ctx) }()
	go func() { defer wg.Done(); c.collector.Run(ctx) }()

	c.dispatch(ctx)
	wg.Wait()
	c.shutdown()
}

// dispatch is the single consumer of the Request Queue. It is the only
// code path that mutates the Coco Table or transitions a Request to
// Active/terminal (spec §5).
func (c *Coordinator) dispatch(ctx context.Context) {
	for {
		msg, ok := c.queue.Dequeue(ctx)
		if !ok {
			return
		}
		c.handle(msg)
	}
}

func (c *Coordinator) handle(msg queue.Message) {
	switch msg.Kind {
	case queue.KindTune:
		c.admit(msg.Request)
	case queue.KindUntune:
		c.teardown(msg.UntuneHandle, domain.StateCancelled)
	case queue.KindExpire:
		c.teardown(msg.UntuneHandle, domain.StateExpired)
	}
}

// admit is the dispatcher-side half of a tune: publish the request,
// insert every target into the Coco Table, and arm its timer. Called
// only from the dispatcher goroutine.
func (c *Coordinator) admit(req *domain.Request) {
	c.requests.Insert(req)
	for _, target := range req.Targets {
		desc, ok := c.resources.Lookup(target.ResourceID)
		if !ok {
			continue // validated before enqueue; a missing resource here is unreachable
		}
		scope, ok := c.resources.ScopeIndex(target.ResourceID, target.ScopeQualifier)
		if !ok {
			continue
		}
		c.table.Insert(scope, desc.Policy, cocotable.CocoNode{
			Handle:         req.Handle,
			ResourceID:     target.ResourceID,
			ScopeQualifier: target.ScopeQualifier,
			Value:          target.Value,
			Priority:       req.Priority,
		})
	}
	_ = c.requests.SetState(req.Handle, domain.StateActive)
	c.wheel.Arm(req.Handle, req.Deadline)
	c.reportDepths()
}

// teardown finalizes handle, idempotently. A handle already finalized
// by a racing expire/untune is a no-op, satisfying the idempotent
// untune law (spec §8).
func (c *Coordinator) teardown(handle domain.Handle, terminal domain.LifecycleState) {
	req, ok := c.requests.Finalize(handle, terminal)
	if !ok {
		return
	}
	c.wheel.Disarm(handle)
	c.table.RemoveAll(handle)
	c.cdm.UnbindHandle(req.ClientTID, handle)
	c.reportDepths()
}

// reportDepths refreshes the live-handle, queue-depth, and timer-wheel
// gauges after a state change. Called from the dispatcher goroutine
// only, so no additional synchronization is needed beyond what each
// underlying component already holds internally.
func (c *Coordinator) reportDepths() {
	metrics.LiveHandles.Set(float64(c.requests.LiveCount()))
	metrics.QueueDepth.Set(float64(c.queue.Depth()))
	metrics.TimerWheelDepth.Set(float64(c.wheel.Len()))
}

func (c *Coordinator) postUntune(handle domain.Handle) {
	_ = c.queue.Enqueue(queue.Message{Kind: queue.KindUntune, UntuneHandle: handle})
}

func (c *Coordinator) postExpire(handle domain.Handle) {
	_ = c.queue.Enqueue(queue.Message{Kind: queue.KindExpire, UntuneHandle: handle})
}

// shutdown drains whatever the queue still held and cancels every
// handle still live, so every applied resource is torn back to its
// registered default before the process exits.
func (c *Coordinator) shutdown() {
	c.queue.Close()
	c.queue.Drain(func(msg queue.Message) {
		if msg.Kind == queue.KindTune && msg.Request != nil {
			c.cdm.UnbindHandle(msg.Request.ClientTID, msg.Request.Handle)
		}
	})
	for _, h := range c.requests.AllHandles() {
		c.teardown(h, domain.StateCancelled)
	}
}
