package cc

import (
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/metrics"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/queue"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/signalregistry"
)

// TuneResources validates and admits a direct resource-tuning request
// (spec §6 TUNE_RESOURCES). On success the request's handle is
// returned immediately; the request only becomes visible to
// arbitration once the dispatcher goroutine drains it off the Request
// Queue and runs admit (spec §5).
func (c *Coordinator) TuneResources(pid, tid int, priority domain.PriorityTier, targets []domain.ResourceTarget, durationMS int64) (domain.Handle, error) {
	if err := c.cdm.Upsert(pid, tid); err != nil {
		return 0, err
	}
	if len(targets) == 0 || len(targets) > c.maxResourcesPerRequest() {
		return 0, domain.ErrArgInvalid
	}
	if durationMS <= 0 {
		return 0, domain.ErrArgInvalid
	}

	perm, _ := c.cdm.Permission(pid)
	if priority.MinPermission() == domain.PermissionSystem && perm != domain.PermissionSystem {
		return 0, domain.ErrNotPermitted
	}

	for _, target := range targets {
		desc, ok := c.resources.Lookup(target.ResourceID)
		if !ok {
			return 0, domain.ErrResourceUnknown
		}
		if desc.PermFloor == domain.PermissionSystem && perm != domain.PermissionSystem {
			return 0, domain.ErrNotPermitted
		}
		if target.Value < desc.Low || target.Value > desc.High {
			return 0, domain.ErrArgInvalid
		}
		if _, ok := c.resources.ScopeIndex(target.ResourceID, target.ScopeQualifier); !ok {
			return 0, domain.ErrArgInvalid
		}
	}

	now := c.now()
	if !c.limiter.AdmitClient(tid, now) {
		metrics.RequestsRateLimited.Inc()
		return 0, domain.ErrThrottled
	}
	if !c.limiter.AdmitGlobal() {
		metrics.RequestsGlobalLimited.Inc()
		return 0, domain.ErrThrottled
	}

	handle := c.requests.AllocateHandle()
	req := &domain.Request{
		Handle:    handle,
		ClientPID: pid,
		ClientTID: tid,
		Priority:  priority,
		Deadline:  now.Add(time.Duration(durationMS) * time.Millisecond),
		Targets:   targets,
		State:     domain.StatePending,
		CreatedAt: now,
	}
	return c.submitTune(req)
}

// TuneSignal validates, expands, and admits a named-signal tuning
// request (spec §6 TUNE_SIGNAL, §4.2 Signal Registry fan-out). Every
// mutation a signal expands into shares the request's single deadline
// (spec §4.2: "one timeout applies to every bundle").
func (c *Coordinator) TuneSignal(pid, tid int, priority domain.PriorityTier, sigID domain.SignalID, durationOverrideMS int64) (domain.Handle, error) {
	if err := c.cdm.Upsert(pid, tid); err != nil {
		return 0, err
	}

	desc, ok := c.signals.Lookup(sigID)
	if !ok {
		return 0, domain.ErrSignalUnknown
	}

	perm, _ := c.cdm.Permission(pid)
	if priority.MinPermission() == domain.PermissionSystem && perm != domain.PermissionSystem {
		return 0, domain.ErrNotPermitted
	}
	if !signalregistry.PermittedFor(desc, perm) {
		return 0, domain.ErrNotPermitted
	}

	mutations := signalregistry.Expand(sigID, desc)
	if len(mutations) == 0 {
		return 0, domain.ErrArgInvalid
	}
	if len(mutations) > c.maxResourcesPerRequest() {
		return 0, domain.ErrArgInvalid
	}

	duration := mutations[0].Duration
	if durationOverrideMS > 0 {
		duration = time.Duration(durationOverrideMS) * time.Millisecond
	}

	targets := make([]domain.ResourceTarget, 0, len(mutations))
	for _, m := range mutations {
		rdesc, ok := c.resources.Lookup(m.ResourceID)
		if !ok {
			return 0, domain.ErrResourceUnknown
		}
		if rdesc.PermFloor == domain.PermissionSystem && perm != domain.PermissionSystem {
			return 0, domain.ErrNotPermitted
		}
		if _, ok := c.resources.ScopeIndex(m.ResourceID, m.ScopeQualifier); !ok {
			return 0, domain.ErrArgInvalid
		}
		targets = append(targets, domain.ResourceTarget{
			ResourceID:     m.ResourceID,
			ScopeQualifier: m.ScopeQualifier,
			Value:          m.Value,
		})
	}

	now := c.now()
	if !c.limiter.AdmitClient(tid, now) {
		metrics.RequestsRateLimited.Inc()
		return 0, domain.ErrThrottled
	}
	if !c.limiter.AdmitGlobal() {
		metrics.RequestsGlobalLimited.Inc()
		return 0, domain.ErrThrottled
	}

	handle := c.requests.AllocateHandle()
	req := &domain.Request{
		Handle:    handle,
		ClientPID: pid,
		ClientTID: tid,
		Priority:  priority,
		Deadline:  now.Add(duration),
		SignalID:  &sigID,
		Targets:   targets,
		State:     domain.StatePending,
		CreatedAt: now,
	}
	return c.submitTune(req)
}

// submitTune binds req's handle to its owning tid and enqueues it for
// the dispatcher to admit. A full Request Queue unwinds the bind so a
// rejected request leaves no CDM trace.
func (c *Coordinator) submitTune(req *domain.Request) (domain.Handle, error) {
	c.cdm.BindHandle(req.ClientTID, req.Handle)
	if err := c.queue.Enqueue(queue.Message{Kind: queue.KindTune, Request: req}); err != nil {
		c.cdm.UnbindHandle(req.ClientTID, req.Handle)
		metrics.RequestsQueueRejected.Inc()
		return 0, err
	}
	kind := "resources"
	if req.SignalID != nil {
		kind = "signal"
	}
	metrics.RequestsAdmitted.WithLabelValues(kind).Inc()
	return req.Handle, nil
}

// Retune extends a live request's deadline (spec §6 RETUNE, §4.6:
// "Coco lists are not touched because priority and values are
// unchanged"). Unlike Tune/Untune/Expire this never goes through the
// Request Queue: the Request Manager and Timer Wheel each guard their
// own state with their own lock, so whichever goroutine receives the
// retune call can apply it directly.
func (c *Coordinator) Retune(handle domain.Handle, newDurationMS int64) error {
	if newDurationMS <= 0 {
		return domain.ErrArgInvalid
	}
	if _, ok := c.requests.Get(handle); !ok {
		return domain.ErrNoSuchHandle
	}
	newDeadline := c.now().Add(time.Duration(newDurationMS) * time.Millisecond)
	if err := c.requests.ExtendDeadline(handle, newDeadline); err != nil {
		return err
	}
	c.wheel.Arm(handle, newDeadline)
	return nil
}

// Untune cancels a live request (spec §6 UNTUNE). It is idempotent at
// the handle level: an already-gone handle reports NO_SUCH_HANDLE
// rather than silently succeeding, but once accepted the actual
// teardown (spec §8's "identical cleanup to expiry") always runs
// exactly once even if a racing expire got there first.
func (c *Coordinator) Untune(handle domain.Handle) error {
	if _, ok := c.requests.Get(handle); !ok {
		return domain.ErrNoSuchHandle
	}
	return c.queue.Enqueue(queue.Message{Kind: queue.KindUntune, UntuneHandle: handle})
}

// GetProp reads a PropertiesConfig tunable (spec §6 GET_PROP).
func (c *Coordinator) GetProp(name string) (int64, error) {
	c.propMu.RLock()
	defer c.propMu.RUnlock()
	v, ok := c.props[name]
	if !ok {
		return 0, domain.ErrArgInvalid
	}
	return v, nil
}

// SetProp writes a PropertiesConfig tunable (spec §6 SET_PROP),
// restricted to callers with system permission.
func (c *Coordinator) SetProp(pid int, name string, value int64) error {
	perm, _ := c.cdm.Permission(pid)
	if perm != domain.PermissionSystem {
		return domain.ErrNotPermitted
	}
	c.propMu.Lock()
	defer c.propMu.Unlock()
	if _, ok := c.props[name]; !ok {
		return domain.ErrArgInvalid
	}
	c.props[name] = value
	return nil
}
