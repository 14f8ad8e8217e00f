package applier

import (
	"sync"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

// Event is one recorded Apply or Tear call.
type Event struct {
	Desc           domain.ResourceDescriptor
	ScopeQualifier int
	Value          int64
	Teardown       bool
}

// Mock is an in-memory domain.Applier for tests, following the
// teacher's MockBackend (internal/infra/engine/mock.go): a recording
// stand-in for the real OS-facing implementation so tests never touch
// sysfs.
type Mock struct {
	mu     sync.Mutex
	Events []Event
}

// NewMock creates an empty recording Applier.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Apply(desc domain.ResourceDescriptor, scopeQualifier int, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, Event{Desc: desc, ScopeQualifier: scopeQualifier, Value: value})
	return nil
}

func (m *Mock) Tear(desc domain.ResourceDescriptor, scopeQualifier int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, Event{Desc: desc, ScopeQualifier: scopeQualifier, Value: desc.Default, Teardown: true})
	return nil
}

// Applies returns every recorded non-teardown event.
func (m *Mock) Applies() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.Events {
		if !e.Teardown {
			out = append(out, e)
		}
	}
	return out
}

// Tears returns every recorded teardown event.
func (m *Mock) Tears() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.Events {
		if e.Teardown {
			out = append(out, e)
		}
	}
	return out
}
