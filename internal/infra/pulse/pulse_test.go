package pulse

import (
	"testing"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

type fixedClients struct{ pids []int }

func (f fixedClients) ListLiveClients() []int { return f.pids }

func TestMonitorSweep_QueuesOnlyDeadPids(t *testing.T) {
	live := fixedClients{pids: []int{1, 2, 3}}
	alive := func(pid int) bool { return pid != 2 }
	m := NewMonitor(live, alive, 0)

	m.Sweep()

	if m.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", m.PendingCount())
	}
	batch := m.DrainBatch(10)
	if len(batch) != 1 || batch[0] != 2 {
		t.Fatalf("DrainBatch = %v, want [2]", batch)
	}
}

func TestMonitorSweep_IdempotentOnRepeat(t *testing.T) {
	live := fixedClients{pids: []int{5}}
	alive := func(pid int) bool { return false }
	m := NewMonitor(live, alive, 0)

	m.Sweep()
	m.Sweep()
	m.Sweep()

	if m.PendingCount() != 1 {
		t.Fatalf("PendingCount after repeated sweeps = %d, want 1 (idempotent enqueue)", m.PendingCount())
	}
}

func TestDrainBatch_RespectsBatchCapLeavingRemainder(t *testing.T) {
	live := fixedClients{pids: []int{1, 2, 3, 4, 5}}
	alive := func(pid int) bool { return false }
	m := NewMonitor(live, alive, 0)
	m.Sweep()

	first := m.DrainBatch(2)
	if len(first) != 2 {
		t.Fatalf("first DrainBatch(2) = %v, want 2 pids", first)
	}
	if m.PendingCount() != 3 {
		t.Fatalf("PendingCount after partial drain = %d, want 3 remaining", m.PendingCount())
	}
}

func TestCollectBatch_UntunesEveryHandleThenDrops(t *testing.T) {
	live := fixedClients{pids: []int{9}}
	alive := func(pid int) bool { return false }
	m := NewMonitor(live, alive, 0)
	m.Sweep()

	handlesOf := map[int][]domain.Handle{
		9: {domain.NewHandle(1, 1), domain.NewHandle(1, 2)},
	}
	var untuned []domain.Handle
	var dropped []int

	c := NewCollector(m,
		func(pid int) []domain.Handle { return handlesOf[pid] },
		func(h domain.Handle) { untuned = append(untuned, h) },
		func(pid int) { dropped = append(dropped, pid) },
		10, 0)

	c.CollectBatch()

	if len(untuned) != 2 {
		t.Fatalf("untuned = %v, want 2 handles", untuned)
	}
	if len(dropped) != 1 || dropped[0] != 9 {
		t.Fatalf("dropped = %v, want [9]", dropped)
	}
	if m.PendingCount() != 0 {
		t.Fatalf("PendingCount after CollectBatch = %d, want 0", m.PendingCount())
	}
}

func TestCollectBatch_RespectsBatchCapAcrossCalls(t *testing.T) {
	live := fixedClients{pids: []int{1, 2, 3}}
	alive := func(pid int) bool { return false }
	m := NewMonitor(live, alive, 0)
	m.Sweep()

	var dropped []int
	c := NewCollector(m,
		func(pid int) []domain.Handle { return nil },
		func(domain.Handle) {},
		func(pid int) { dropped = append(dropped, pid) },
		1, 0)

	c.CollectBatch()
	if len(dropped) != 1 {
		t.Fatalf("after one batch of cap 1, dropped = %v, want 1 pid", dropped)
	}
	c.CollectBatch()
	c.CollectBatch()
	if len(dropped) != 3 {
		t.Fatalf("after three batches, dropped = %v, want all 3 pids", dropped)
	}
}
