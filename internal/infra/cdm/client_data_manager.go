// Package cdm implements the Client Data Manager (spec §4.3): per-pid
// and per-tid bookkeeping shared by the Rate Limiter and the Request
// Manager. A single shared-exclusive lock protects both maps — per-pid
// fine-grained locking is not required (spec says contention is low
// and simplicity wins), matching the teacher's resource.Governor and
// health.Checker, which both guard one small struct with one
// sync.RWMutex rather than lock-striping.
package cdm

import (
	"sync"
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

// MaxTIDsPerPID is the per-client thread cap (spec §4.3).
const MaxTIDsPerPID = 32

// PermissionFunc derives a permission level from a pid via OS
// facilities (the invoking UID), frozen at bind time for the
// client's lifetime. A nil PermissionFunc passed to New treats every
// pid as third-party; `rtuned serve` passes nil, and tests supply a
// canned function.
type PermissionFunc func(pid int) domain.Permission

type clientState struct {
	permission domain.Permission
	tids       map[int]struct{}
}

type threadState struct {
	pid     int
	handles map[domain.Handle]struct{}
	lastTS  time.Time
	health  int
}

// Manager is the Client Data Manager: pid -> {permission, tid set},
// tid -> {handle set, last-request timestamp, health}.
type Manager struct {
	mu      sync.RWMutex
	clients map[int]*clientState
	threads map[int]*threadState
	permOf  PermissionFunc
}

// New creates an empty Client Data Manager.
func New(permOf PermissionFunc) *Manager {
	if permOf == nil {
		permOf = func(int) domain.Permission { return domain.PermissionThirdParty }
	}
	return &Manager{
		clients: make(map[int]*clientState),
		threads: make(map[int]*threadState),
		permOf:  permOf,
	}
}

// Upsert ensures pid and tid are both known, binding tid under pid.
// Permission is derived once, the first time pid is seen, and never
// re-derived for the life of the client. Health starts at 100.
func (m *Manager) Upsert(pid, tid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[pid]
	if !ok {
		c = &clientState{permission: m.permOf(pid), tids: make(map[int]struct{})}
		m.clients[pid] = c
	}
	if _, exists := c.tids[tid]; !exists {
		if len(c.tids) >= MaxTIDsPerPID {
			return domain.ErrCapacityExceeded
		}
		c.tids[tid] = struct{}{}
	}
	if _, ok := m.threads[tid]; !ok {
		m.threads[tid] = &threadState{pid: pid, handles: make(map[domain.Handle]struct{}), health: 100}
	}
	return nil
}

// BindHandle associates handle with tid's owned set.
func (m *Manager) BindHandle(tid int, h domain.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[tid]; ok {
		t.handles[h] = struct{}{}
	}
}

// UnbindHandle removes handle from tid's owned set.
func (m *Manager) UnbindHandle(tid int, h domain.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[tid]; ok {
		delete(t.handles, h)
	}
}

// HandlesOf returns the handles currently owned by tid.
func (m *Manager) HandlesOf(tid int) []domain.Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[tid]
	if !ok {
		return nil
	}
	out := make([]domain.Handle, 0, len(t.handles))
	for h := range t.handles {
		out = append(out, h)
	}
	return out
}

// Health returns tid's current health score.
func (m *Manager) Health(tid int) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[tid]
	if !ok {
		return 0, false
	}
	return t.health, true
}

// BumpHealth adds delta to tid's health, clamped to [0, 100]. Returns
// the resulting health and whether tid was known.
func (m *Manager) BumpHealth(tid int, delta int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[tid]
	if !ok {
		return 0, false
	}
	t.health += delta
	if t.health < 0 {
		t.health = 0
	}
	if t.health > 100 {
		t.health = 100
	}
	return t.health, true
}

// LastTS returns the timestamp of tid's last admitted-or-seen request.
func (m *Manager) LastTS(tid int) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[tid]
	if !ok {
		return time.Time{}, false
	}
	return t.lastTS, true
}

// SetLastTS records the timestamp of tid's most recent request.
func (m *Manager) SetLastTS(tid int, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[tid]; ok {
		t.lastTS = ts
	}
}

// Permission returns pid's frozen permission level.
func (m *Manager) Permission(pid int) (domain.Permission, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[pid]
	if !ok {
		return domain.PermissionThirdParty, false
	}
	return c.permission, true
}

// ListLiveClients returns every known pid.
func (m *Manager) ListLiveClients() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.clients))
	for pid := range m.clients {
		out = append(out, pid)
	}
	return out
}

// DropPID removes pid and every tid bound under it.
func (m *Manager) DropPID(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[pid]
	if !ok {
		return
	}
	for tid := range c.tids {
		delete(m.threads, tid)
	}
	delete(m.clients, pid)
}

// DropTID removes a single tid without affecting its pid's other tids.
func (m *Manager) DropTID(pid, tid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[pid]; ok {
		delete(c.tids, tid)
	}
	delete(m.threads, tid)
}
