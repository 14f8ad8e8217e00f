package domain

// ResourceID is the stable identity of a tunable resource: a type byte
// plus a 16-bit id, packed so it sorts and hashes as one value.
type ResourceID uint32

// NewResourceID packs a resource type and a 16-bit id into one ResourceID.
func NewResourceID(typ uint8, id uint16) ResourceID {
	return ResourceID(typ)<<16 | ResourceID(id)
}

// Type returns the type byte of the resource id.
func (r ResourceID) Type() uint8 { return uint8(r >> 16) }

// Num returns the 16-bit id within its type.
func (r ResourceID) Num() uint16 { return uint16(r) }

// Permission is the floor required to tune a resource or call a
// permission-gated property operation.
type Permission int

const (
	PermissionThirdParty Permission = iota
	PermissionSystem
)

// ActivationMask bits for display-on / doze / off.
type ActivationMask uint8

const (
	ActivationDisplayOn ActivationMask = 1 << 0
	ActivationDoze       ActivationMask = 1 << 1
	ActivationOff        ActivationMask = 1 << 2
)

// ApplyScope is the unit of addressability a resource can be tuned at.
type ApplyScope int

const (
	ScopeCore ApplyScope = iota
	ScopeCluster
	ScopeGlobal
	ScopeCgroup
)

func (s ApplyScope) String() string {
	switch s {
	case ScopeCore:
		return "core"
	case ScopeCluster:
		return "cluster"
	case ScopeGlobal:
		return "global"
	case ScopeCgroup:
		return "cgroup"
	default:
		return "unknown"
	}
}

// Policy is the per-resource arbitration policy (spec §4.6).
type Policy int

const (
	PolicyInstant Policy = iota
	PolicyHigherIsBetter
	PolicyLowerIsBetter
	PolicyLazyFIFO
)

func (p Policy) String() string {
	switch p {
	case PolicyInstant:
		return "instant"
	case PolicyHigherIsBetter:
		return "higher_is_better"
	case PolicyLowerIsBetter:
		return "lower_is_better"
	case PolicyLazyFIFO:
		return "lazy_fifo"
	default:
		return "unknown"
	}
}

// ApplyFunc writes value for the given scope qualifier to the OS.
// ScopeQualifier is an opaque integer: core/cluster index, cgroup id,
// or 0 for a global resource.
type ApplyFunc func(scopeQualifier int, value int64) error

// TearFunc restores the default value for the given scope qualifier.
type TearFunc func(scopeQualifier int, defaultValue int64) error

// ResourceDescriptor is the immutable, validated description of one
// tunable resource, as produced by the (out-of-scope) config loader.
type ResourceDescriptor struct {
	ID             ResourceID
	Name           string
	PathTemplate   string // e.g. "/sys/class/.../cpu%d/..."
	Low, High      int64
	PermFloor      Permission
	Activation     ActivationMask
	Scope          ApplyScope
	Policy         Policy
	Unit           string
	Apply          ApplyFunc // optional; nil uses the Resource Applier default
	Tear           TearFunc  // optional; nil uses the Resource Applier default
	Default        int64     // captured at registry startup, never reassigned after
}

// Validate reports the first structural defect found in d, per the
// validation rules of spec §4.1. A descriptor that fails validation is
// dropped from the registry rather than causing startup to fail.
func (d ResourceDescriptor) Validate() error {
	if d.PathTemplate == "" {
		return ErrArgInvalid
	}
	if d.Policy < PolicyInstant || d.Policy > PolicyLazyFIFO {
		return ErrArgInvalid
	}
	if d.Low > d.High {
		return ErrArgInvalid
	}
	if d.Scope < ScopeCore || d.Scope > ScopeCgroup {
		return ErrArgInvalid
	}
	return nil
}
