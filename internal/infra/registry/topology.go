package registry

import "github.com/tnidigan/userspace-resource-manager/internal/domain"

// Topology describes the target's scope-instance counts, the inputs
// the Resource Registry needs to flatten (resource, scope qualifier)
// pairs into Coco Table row indices (spec §4.1). It is produced by the
// (out-of-scope) config loader from TargetConfig.yaml; tests build one
// by hand.
type Topology struct {
	// NumClusters is the cluster count. Cluster-scoped resources get
	// one flat-index slot per cluster.
	NumClusters int
	// CoresPerCluster holds one entry per cluster with that cluster's
	// core count. Core-scoped resources get one flat-index slot per
	// core, flattened across every cluster in declaration order.
	CoresPerCluster []int
	// CgroupIDs lists every registered cgroup id. Cgroup-scoped
	// resources get one flat-index slot per registered cgroup.
	CgroupIDs []string
}

// TotalCores sums CoresPerCluster.
func (t Topology) TotalCores() int {
	n := 0
	for _, c := range t.CoresPerCluster {
		n += c
	}
	return n
}

// scopeWidth returns how many flat-index slots a resource of the
// given apply scope occupies under this topology.
func (t Topology) scopeWidth(scope domain.ApplyScope) int {
	switch scope {
	case domain.ScopeGlobal:
		return 1
	case domain.ScopeCluster:
		return t.NumClusters
	case domain.ScopeCore:
		return t.TotalCores()
	case domain.ScopeCgroup:
		return len(t.CgroupIDs)
	default:
		return 0
	}
}
