// Package registry implements the Resource Registry (spec §4.1): the
// read-only-after-init table of tunable resource descriptors, their
// startup-captured defaults, and the flattening from (resource id,
// scope qualifier) to the Coco Table's row index.
package registry

import (
	"fmt"
	"sort"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

// entry pairs a validated descriptor with its flat-index allocation.
type entry struct {
	desc  domain.ResourceDescriptor
	base  int // first flat index this resource occupies
	width int // number of scope-instance slots this resource occupies
}

// Registry is the immutable-after-Load table of resource descriptors.
// Reads never lock: every field is written once during Load and never
// mutated afterward, matching spec §5's "no locking on read" rule.
type Registry struct {
	byID     map[domain.ResourceID]entry
	byPath   map[string]string // path -> default value, for restoration bookkeeping
	total    int               // total flat-index slots across every resource
	rejected []rejection
}

// rejection records one descriptor dropped during Load and why, for
// diagnostics — the registry itself never surfaces these to a caller.
type rejection struct {
	id  domain.ResourceID
	err error
}

// ReadFunc reads the live OS value for a descriptor's path at a given
// scope qualifier, used once per resource at Load time to capture the
// startup default (spec §4.1). Tests supply a canned function. A nil
// ReadFunc keeps each descriptor's declared Default; the built-in
// registries `rtuned serve` loads pass nil.
type ReadFunc func(desc domain.ResourceDescriptor, scopeQualifier int) (int64, error)

// Load validates and indexes a set of descriptors against a topology,
// dropping (not erroring on) any descriptor that fails validation,
// collides on id, or has an apply-scope inconsistent with its
// declared callback set. Defaults are captured by calling read once
// per resource at scope qualifier 0 — the representative instance —
// since a resource's default does not vary by scope instance.
func Load(descs []domain.ResourceDescriptor, topo Topology, read ReadFunc) *Registry {
	r := &Registry{
		byID:   make(map[domain.ResourceID]entry, len(descs)),
		byPath: make(map[string]string, len(descs)),
	}

	// Deterministic base-index allocation: sort by id so flat indices
	// are stable across repeated Load calls with the same descriptor set.
	sorted := make([]domain.ResourceDescriptor, len(descs))
	copy(sorted, descs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	next := 0
	for _, d := range sorted {
		if err := d.Validate(); err != nil {
			r.rejected = append(r.rejected, rejection{d.ID, err})
			continue
		}
		if _, exists := r.byID[d.ID]; exists {
			r.rejected = append(r.rejected, rejection{d.ID, domain.ErrArgInvalid})
			continue
		}
		// apply-scope/callback consistency: a cgroup/cluster/core
		// scoped resource with no apply callback must still be
		// tunable via the generic sysfs Applier, so only a global
		// resource that declares one of Apply/Tear without the other
		// is rejected.
		if d.Scope == domain.ScopeGlobal && (d.Apply != nil) != (d.Tear != nil) {
			r.rejected = append(r.rejected, rejection{d.ID, domain.ErrArgInvalid})
			continue
		}

		width := topo.scopeWidth(d.Scope)
		if width <= 0 {
			width = 1 // degrade gracefully rather than drop a resource over an empty topology
		}

		if read != nil {
			if v, err := read(d, 0); err == nil {
				d.Default = v
			}
		}

		r.byID[d.ID] = entry{desc: d, base: next, width: width}
		r.byPath[d.PathTemplate] = fmt.Sprintf("%d", d.Default)
		next += width
	}

	r.total = next
	return r
}

// Lookup returns the descriptor for a resource id, if known and valid.
func (r *Registry) Lookup(id domain.ResourceID) (domain.ResourceDescriptor, bool) {
	e, ok := r.byID[id]
	if !ok {
		return domain.ResourceDescriptor{}, false
	}
	return e.desc, true
}

// ScopeIndex flattens (resource id, scope qualifier) into the Coco
// Table's row index. scopeQualifier must be in [0, width) for the
// resource's declared apply scope.
func (r *Registry) ScopeIndex(id domain.ResourceID, scopeQualifier int) (int, bool) {
	e, ok := r.byID[id]
	if !ok {
		return 0, false
	}
	if scopeQualifier < 0 || scopeQualifier >= e.width {
		return 0, false
	}
	return e.base + scopeQualifier, true
}

// ScopeWidth returns how many scope-instance slots a resource occupies.
func (r *Registry) ScopeWidth(id domain.ResourceID) (int, bool) {
	e, ok := r.byID[id]
	if !ok {
		return 0, false
	}
	return e.width, true
}

// NumScopes returns the total number of flat-index rows the Coco
// Table must allocate to cover every registered resource's every
// scope instance.
func (r *Registry) NumScopes() int { return r.total }

// DefaultValue returns the startup-captured default for path, as a
// decimal string. The Resource Applier's tear path does not call it;
// it restores ResourceDescriptor.Default.
func (r *Registry) DefaultValue(path string) (string, bool) {
	v, ok := r.byPath[path]
	return v, ok
}

// All iterates every valid, indexed descriptor.
func (r *Registry) All(fn func(domain.ResourceDescriptor)) {
	ids := make([]domain.ResourceID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(r.byID[id].desc)
	}
}

// Rejected returns how many descriptors were dropped at Load, for
// startup diagnostics.
func (r *Registry) Rejected() int { return len(r.rejected) }
