// Package cocotable implements the Coco Table (spec §4.6), the
// arbitration core: a 2D array of ordered lists keyed by (flat scope
// index, priority tier), one doubly-linked list per cell, with a
// per-scope cache of which tier currently wins.
//
// DESIGN NOTES calls for replacing the source's raw intrusive
// prev/next pointers with an arena plus stable indices. container/list
// already is that arena: each *list.Element is a stable handle good
// for O(1) removal, and the list itself is the per-(scope,priority)
// arena slot. This is the same shape the teacher uses for its model
// pool's LRU (internal/infra/engine/pool.go): map for O(1) lookup by
// key, container/list for O(1) ordered removal, one mutex guarding
// both. The Coco Table additionally only ever touches its lists from
// the single CC dispatcher goroutine (spec §5), so the mutex here
// exists only to let read-only debug/metrics snapshots run
// concurrently with the dispatcher; the dispatcher itself never
// contends.
package cocotable

import (
	"container/list"
	"sync"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/metrics"
)

// CocoNode is the presence of one request on one scope (spec §4.2).
type CocoNode struct {
	Handle         domain.Handle
	ResourceID     domain.ResourceID
	ScopeQualifier int
	Value          int64
	Priority       domain.PriorityTier
}

type cellKey struct {
	scope    int
	priority domain.PriorityTier
}

// placement is one CocoNode's location, tracked in the reverse index
// so teardown never has to search a list to find which scope or
// priority bucket a handle's node lives in.
type placement struct {
	scope int
	el    *list.Element
}

// Table is the Coco Table.
type Table struct {
	mu       sync.Mutex
	lists    map[cellKey]*list.List
	winner   map[int]*list.Element // scope -> currently applied element
	winnerAt map[int]domain.PriorityTier
	byHandle map[domain.Handle][]placement
	desc     map[int]resourceAt // scope -> (descriptor, scope qualifier) for apply/tear
	applier  domain.Applier

	// onTransition, if set, is called after every apply/tear the
	// dispatcher performs, for the audit log (spec §4.11). Diagnostic
	// only: never consulted for arbitration correctness.
	onTransition func(resourceID domain.ResourceID, scope int, handle domain.Handle, action string, value int64)
}

// SetAuditHook installs fn to be called after every apply/tear
// transition. Passing nil disables auditing.
func (t *Table) SetAuditHook(fn func(resourceID domain.ResourceID, scope int, handle domain.Handle, action string, value int64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTransition = fn
}

// resourceAt pairs a descriptor with the scope qualifier a given flat
// scope index represents, so apply/tear callbacks receive the right
// arguments without the Table needing to re-derive them.
type resourceAt struct {
	desc           domain.ResourceDescriptor
	scopeQualifier int
}

// RegisterScope tells the Table which descriptor and scope qualifier a
// flat scope index corresponds to. Called once per flat index at
// startup by whatever wires the Resource Registry into the Table.
func (t *Table) RegisterScope(flatIndex int, desc domain.ResourceDescriptor, scopeQualifier int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.desc[flatIndex] = resourceAt{desc: desc, scopeQualifier: scopeQualifier}
}

// New creates an empty Table backed by applier for apply/tear callbacks.
func New(applier domain.Applier) *Table {
	return &Table{
		lists:    make(map[cellKey]*list.List),
		winner:   make(map[int]*list.Element),
		winnerAt: make(map[int]domain.PriorityTier),
		byHandle: make(map[domain.Handle][]placement),
		desc:     make(map[int]resourceAt),
		applier:  applier,
	}
}

func (t *Table) listFor(scope int, p domain.PriorityTier) *list.List {
	key := cellKey{scope, p}
	l, ok := t.lists[key]
	if !ok {
		l = list.New()
		t.lists[key] = l
	}
	return l
}

// Insert adds node to scope s's list at its priority tier, per the
// per-resource insertion rule, then recomputes arbitration for s,
// invoking apply/tear if the winner identity changed.
func (t *Table) Insert(scope int, policy domain.Policy, node CocoNode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.listFor(scope, node.Priority)
	var el *list.Element
	switch policy {
	case domain.PolicyInstant:
		el = l.PushFront(node)
	case domain.PolicyHigherIsBetter:
		el = insertOrdered(l, node, func(a, b CocoNode) bool { return a.Value > b.Value })
	case domain.PolicyLowerIsBetter:
		el = insertOrdered(l, node, func(a, b CocoNode) bool { return a.Value < b.Value })
	default: // PolicyLazyFIFO
		el = l.PushBack(node)
	}

	t.byHandle[node.Handle] = append(t.byHandle[node.Handle], placement{scope: scope, el: el})
	t.recompute(scope)
}

// insertOrdered inserts node keeping the list ordered by better(a,b)
// (a should sort before b), with ties resolved FIFO — new entries with
// a value equal to an existing run are placed after that run, never
// disturbing arrival order among equals (spec §4.6 tie-break stability).
func insertOrdered(l *list.List, node CocoNode, better func(a, b CocoNode) bool) *list.Element {
	for e := l.Front(); e != nil; e = e.Next() {
		existing := e.Value.(CocoNode)
		if better(node, existing) {
			return l.InsertBefore(node, e)
		}
	}
	return l.PushBack(node)
}

// RemoveAll unlinks every CocoNode belonging to handle across every
// scope it touches, recomputing arbitration for each affected scope.
// Used on expiry and untune (spec §4.6), giving O(touched-resources)
// teardown.
func (t *Table) RemoveAll(handle domain.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ps := t.byHandle[handle]
	delete(t.byHandle, handle)

	affected := make(map[int]struct{})
	for _, p := range ps {
		node := p.el.Value.(CocoNode)
		l := t.listFor(p.scope, node.Priority)
		l.Remove(p.el)
		affected[p.scope] = struct{}{}
	}
	for scope := range affected {
		t.recompute(scope)
	}
}

// recompute re-derives scope s's winner and, if the identity changed,
// invokes the resource's apply or tear callback (spec §4.6). Scopes
// with no registered descriptor (tests that never call RegisterScope)
// skip the OS callback but still update the cached winner.
func (t *Table) recompute(scope int) {
	var newWinner *list.Element
	var newTier domain.PriorityTier = -1
	for tier := domain.PrioritySystemHigh; tier >= domain.PriorityThirdPartyLow; tier-- {
		l, ok := t.lists[cellKey{scope, tier}]
		if !ok || l.Len() == 0 {
			continue
		}
		newWinner = l.Front()
		newTier = tier
		break
	}

	oldWinner := t.winner[scope]
	if oldWinner == newWinner {
		return
	}

	metrics.ArbitrationTransitions.Inc()
	t.winner[scope] = newWinner
	if newWinner != nil {
		t.winnerAt[scope] = newTier
	} else {
		delete(t.winnerAt, scope)
	}

	ra, have := t.desc[scope]
	if !have || t.applier == nil {
		return
	}
	if newWinner != nil {
		node := newWinner.Value.(CocoNode)
		if ra.desc.Apply != nil {
			_ = ra.desc.Apply(ra.scopeQualifier, node.Value)
		} else {
			_ = t.applier.Apply(ra.desc, ra.scopeQualifier, node.Value)
		}
		if t.onTransition != nil {
			t.onTransition(ra.desc.ID, scope, node.Handle, "apply", node.Value)
		}
	} else {
		if ra.desc.Tear != nil {
			_ = ra.desc.Tear(ra.scopeQualifier, ra.desc.Default)
		} else {
			_ = t.applier.Tear(ra.desc, ra.scopeQualifier)
		}
		if t.onTransition != nil {
			t.onTransition(ra.desc.ID, scope, 0, "tear", ra.desc.Default)
		}
	}
}

// Winner returns the CocoNode currently applied at scope, if any.
func (t *Table) Winner(scope int) (CocoNode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.winner[scope]
	if !ok || el == nil {
		return CocoNode{}, false
	}
	return el.Value.(CocoNode), true
}

// Touches reports how many scopes handle currently has a live CocoNode
// on, used by tests and debug dumps.
func (t *Table) Touches(handle domain.Handle) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHandle[handle])
}

// ScopeSnapshot is one registered scope's current arbitration outcome,
// for the admin/debug HTTP dump.
type ScopeSnapshot struct {
	Scope      int
	ResourceID domain.ResourceID
	Handle     domain.Handle
	Value      int64
	Priority   domain.PriorityTier
	Applied    bool // false means the scope sits at its registered default
}

// Snapshot returns the current winner, or lack of one, for every
// registered scope.
func (t *Table) Snapshot() []ScopeSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ScopeSnapshot, 0, len(t.desc))
	for scope, ra := range t.desc {
		snap := ScopeSnapshot{Scope: scope, ResourceID: ra.desc.ID, Value: ra.desc.Default}
		if el := t.winner[scope]; el != nil {
			node := el.Value.(CocoNode)
			snap.Handle = node.Handle
			snap.Value = node.Value
			snap.Priority = node.Priority
			snap.Applied = true
		}
		out = append(out, snap)
	}
	return out
}
