// Package requestmanager implements the Request Manager (spec §4.7):
// the handle space. It allocates monotonically increasing, never-reused
// handles, holds the authoritative handle -> Request map, and exposes
// an atomic live count for the Rate Limiter's global ceiling.
package requestmanager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

// Manager owns the handle space and the authoritative Request records.
type Manager struct {
	mu       sync.RWMutex
	requests map[domain.Handle]*domain.Request
	live     atomic.Int64

	counterMu sync.Mutex
	counter   uint32
	lastMS    uint32
	now       func() time.Time
}

// New creates an empty Request Manager.
func New() *Manager {
	return &Manager{
		requests: make(map[domain.Handle]*domain.Request),
		now:      time.Now,
	}
}

// AllocateHandle returns a monotonically increasing, never-reused
// handle (spec §4.7): a 32-bit millisecond timestamp packed with a
// 32-bit counter. The counter resets each time the millisecond
// timestamp advances and increments within a millisecond to keep
// ordering stable for a burst of requests that land in the same tick.
func (m *Manager) AllocateHandle() domain.Handle {
	m.counterMu.Lock()
	defer m.counterMu.Unlock()

	ms := uint32(m.now().UnixMilli())
	if ms != m.lastMS {
		m.lastMS = ms
		m.counter = 0
	} else {
		m.counter++
	}
	return domain.NewHandle(ms, m.counter)
}

// Insert publishes req under its handle and bumps the live count. req
// must already carry the handle returned by AllocateHandle.
func (m *Manager) Insert(req *domain.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.Handle] = req
	m.live.Add(1)
}

// Get returns the live request for handle, if any.
func (m *Manager) Get(handle domain.Handle) (*domain.Request, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[handle]
	return r, ok
}

// SetState transitions handle's request to state. Returns
// domain.ErrNoSuchHandle if handle is unknown.
func (m *Manager) SetState(handle domain.Handle, state domain.LifecycleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[handle]
	if !ok {
		return domain.ErrNoSuchHandle
	}
	r.State = state
	return nil
}

// ExtendDeadline replaces handle's deadline. Returns
// domain.ErrInvalidDuration if newDeadline does not extend the
// current one (spec §4.6: retune may not shorten a deadline).
func (m *Manager) ExtendDeadline(handle domain.Handle, newDeadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[handle]
	if !ok {
		return domain.ErrNoSuchHandle
	}
	if !newDeadline.After(r.Deadline) {
		return domain.ErrInvalidDuration
	}
	r.Deadline = newDeadline
	return nil
}

// Finalize marks handle terminal (expired or cancelled), removes it
// from the live map, and returns the request as it stood at teardown
// so the caller can unbind it from its owning tid. It is idempotent:
// finalizing an already-finalized or unknown handle is a no-op that reports ok=false, matching spec
// §8's "idempotent untune" invariant.
func (m *Manager) Finalize(handle domain.Handle, terminal domain.LifecycleState) (*domain.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[handle]
	if !ok {
		return nil, false
	}
	r.State = terminal
	delete(m.requests, handle)
	m.live.Add(-1)
	return r, true
}

// HandlesOfClient returns every live handle owned by any tid belonging
// to pid, used by the Garbage Collector to untune everything a dead
// client owns.
func (m *Manager) HandlesOfClient(pid int) []domain.Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Handle
	for h, r := range m.requests {
		if r.ClientPID == pid {
			out = append(out, h)
		}
	}
	return out
}

// LiveCount returns the number of currently live requests, satisfying
// ratelimiter.LiveCounter.
func (m *Manager) LiveCount() int {
	return int(m.live.Load())
}

// AllHandles returns every currently live handle, used by the
// shutdown path to cancel everything still outstanding.
func (m *Manager) AllHandles() []domain.Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Handle, 0, len(m.requests))
	for h := range m.requests {
		out = append(out, h)
	}
	return out
}
