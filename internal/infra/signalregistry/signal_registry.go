// Package signalregistry implements the Signal Registry (spec §4.2):
// a read-only-after-init map from composite signal id to the ordered
// resource bundles a signal expands into.
package signalregistry

import (
	"sort"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

// Registry is the immutable-after-Load signal table. Like the
// Resource Registry, reads never lock.
type Registry struct {
	byID map[domain.SignalID]domain.SignalDescriptor
}

// Load indexes a set of signal descriptors by id. A descriptor whose
// id collides with an earlier one in descs is dropped; first write
// wins, matching the Resource Registry's collision rule.
func Load(descs []domain.SignalDescriptor) *Registry {
	r := &Registry{byID: make(map[domain.SignalID]domain.SignalDescriptor, len(descs))}
	for _, d := range descs {
		if _, exists := r.byID[d.ID]; exists {
			continue
		}
		r.byID[d.ID] = d
	}
	return r
}

// Lookup returns the descriptor for a signal id, if known.
func (r *Registry) Lookup(id domain.SignalID) (domain.SignalDescriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Expand resolves a signal id into its ordered concrete resource
// mutations, each carrying the signal's default timeout as its
// deadline duration. A signal resolution is a pure fan-out: it never
// mutates registry state.
func Expand(id domain.SignalID, desc domain.SignalDescriptor) []domain.ExpandedMutation {
	out := make([]domain.ExpandedMutation, 0, len(desc.Bundles))
	for _, b := range desc.Bundles {
		out = append(out, domain.ExpandedMutation{
			ResourceID:     b.ResourceID,
			ScopeQualifier: b.ScopeQualifier,
			Value:          b.Value,
			Duration:       desc.DefaultTimeout,
		})
	}
	return out
}

// PermittedFor reports whether perm satisfies one of the signal's
// permitted permission levels.
func PermittedFor(desc domain.SignalDescriptor, perm domain.Permission) bool {
	if len(desc.PermittedPerms) == 0 {
		return true // no restriction declared
	}
	for _, p := range desc.PermittedPerms {
		if p == perm {
			return true
		}
	}
	return false
}

// All iterates every registered signal in a deterministic order.
func (r *Registry) All(fn func(domain.SignalID, domain.SignalDescriptor)) {
	ids := make([]domain.SignalID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(id, r.byID[id])
	}
}
