package cli

import (
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/registry"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/signalregistry"
)

// Resource and signal ids for the built-in descriptor set. A real
// deployment supplies its own target-specific descriptors through the
// (out-of-scope) YAML config loader; these cover enough common sysfs
// and cgroup knobs to make serve runnable out of the box.
var (
	resCPUMaxFreq  = domain.NewResourceID(1, 1)
	resCPUMinFreq  = domain.NewResourceID(1, 2)
	resCgroupShare = domain.NewResourceID(2, 1)
	resCgroupQuota = domain.NewResourceID(2, 2)
	resGPUFreq     = domain.NewResourceID(3, 1)

	sigBoost = domain.NewSignalID(1, 0, 0)
)

// builtinDescriptors returns the default resource descriptor set.
func builtinDescriptors() []domain.ResourceDescriptor {
	return []domain.ResourceDescriptor{
		{
			ID: resCPUMaxFreq, Name: "cpu.max_freq",
			PathTemplate: "/sys/devices/system/cpu/cpu%d/cpufreq/scaling_max_freq",
			Low: 600_000, High: 3_000_000, Default: 3_000_000,
			Scope: domain.ScopeCore, Policy: domain.PolicyLowerIsBetter, Unit: "khz",
		},
		{
			ID: resCPUMinFreq, Name: "cpu.min_freq",
			PathTemplate: "/sys/devices/system/cpu/cpu%d/cpufreq/scaling_min_freq",
			Low: 600_000, High: 3_000_000, Default: 600_000,
			Scope: domain.ScopeCore, Policy: domain.PolicyHigherIsBetter, Unit: "khz",
		},
		{
			ID: resCgroupShare, Name: "cgroup.cpu_shares",
			PathTemplate: "/sys/fs/cgroup/%s/cpu.weight",
			Low: 1, High: 10_000, Default: 100,
			Scope: domain.ScopeCgroup, Policy: domain.PolicyHigherIsBetter, Unit: "shares",
		},
		{
			ID: resCgroupQuota, Name: "cgroup.cpu_quota",
			PathTemplate: "/sys/fs/cgroup/%s/cpu.max",
			Low: -1, High: 1_000_000, Default: -1,
			Scope: domain.ScopeCgroup, Policy: domain.PolicyHigherIsBetter, Unit: "us",
		},
		{
			ID: resGPUFreq, Name: "gpu.max_freq",
			PathTemplate: "/sys/class/kgsl/kgsl-3d0/devfreq/max_freq",
			Low: 0, High: 1_000_000_000, Default: 1_000_000_000,
			Scope: domain.ScopeGlobal, Policy: domain.PolicyLowerIsBetter, Unit: "hz",
		},
	}
}

// builtinSignals returns the default signal descriptor set.
func builtinSignals() []domain.SignalDescriptor {
	return []domain.SignalDescriptor{
		{
			ID:             sigBoost,
			DefaultTimeout: 3 * time.Second,
			Bundles: []domain.ResourceBundle{
				{ResourceID: resCPUMinFreq, ScopeQualifier: 0, Value: 3_000_000},
				{ResourceID: resGPUFreq, ScopeQualifier: 0, Value: 1_000_000_000},
			},
		},
	}
}

// builtinTopology describes a modest multi-cluster target: two
// clusters of four cores each, plus a single default cgroup, without
// needing real hardware topology discovery (out of scope here;
// production supplies this from TargetConfig.yaml). The built-in
// descriptors use the core, cgroup, and global scopes; none is
// cluster-scoped.
func builtinTopology() registry.Topology {
	return registry.Topology{
		NumClusters:     2,
		CoresPerCluster: []int{4, 4},
		CgroupIDs:       []string{"default"},
	}
}

// bootstrapRegistries builds the Resource and Signal Registries serve
// needs until a real config loader exists.
func bootstrapRegistries() (*registry.Registry, *signalregistry.Registry) {
	reg := registry.Load(builtinDescriptors(), builtinTopology(), nil)
	sigReg := signalregistry.Load(builtinSignals())
	return reg, sigReg
}
