package domain

// Applier abstracts the OS write/restore operations a Resource
// Applier performs for one resource (spec §4.9). Implementations
// write to sysfs, a cgroup controller, or invoke IRQ affinity
// syscalls; tests use a recording in-memory implementation.
type Applier interface {
	Apply(desc ResourceDescriptor, scopeQualifier int, value int64) error
	Tear(desc ResourceDescriptor, scopeQualifier int) error
}

// Clock abstracts time as unix nanoseconds. No component takes a
// Clock: the Timer Wheel and Request Manager each hold their own
// injectable now func, and the Pulse Monitor reads time.Now directly.
type Clock interface {
	Now() int64 // unix nanos
}
