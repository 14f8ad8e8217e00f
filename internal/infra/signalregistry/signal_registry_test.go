package signalregistry

import (
	"testing"
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

func TestExpand_FanOutCarriesSignalTimeout(t *testing.T) {
	sigID := domain.NewSignalID(1, 0, 0)
	desc := domain.SignalDescriptor{
		ID:             sigID,
		DefaultTimeout: 4000 * time.Millisecond,
		Bundles: []domain.ResourceBundle{
			{ResourceID: domain.NewResourceID(1, 1), ScopeQualifier: 0, Value: 700},
			{ResourceID: domain.NewResourceID(2, 2), ScopeQualifier: 2, Value: 1388256},
			{ResourceID: domain.NewResourceID(2, 3), ScopeQualifier: 1, Value: 1344100},
		},
	}

	reg := Load([]domain.SignalDescriptor{desc})
	got, ok := reg.Lookup(sigID)
	if !ok {
		t.Fatalf("Lookup missing")
	}

	mutations := Expand(sigID, got)
	if len(mutations) != 3 {
		t.Fatalf("len(mutations) = %d, want 3", len(mutations))
	}
	for _, m := range mutations {
		if m.Duration != 4000*time.Millisecond {
			t.Errorf("mutation duration = %v, want 4s", m.Duration)
		}
	}
	if mutations[1].Value != 1388256 {
		t.Errorf("mutations[1].Value = %d, want 1388256", mutations[1].Value)
	}
}

func TestLoad_FirstWriteWinsOnCollision(t *testing.T) {
	sigID := domain.NewSignalID(5, 0, 0)
	first := domain.SignalDescriptor{ID: sigID, DefaultTimeout: time.Second}
	second := domain.SignalDescriptor{ID: sigID, DefaultTimeout: 2 * time.Second}

	reg := Load([]domain.SignalDescriptor{first, second})
	got, _ := reg.Lookup(sigID)
	if got.DefaultTimeout != time.Second {
		t.Fatalf("DefaultTimeout = %v, want 1s (first write should win)", got.DefaultTimeout)
	}
}

func TestPermittedFor(t *testing.T) {
	desc := domain.SignalDescriptor{PermittedPerms: []domain.Permission{domain.PermissionSystem}}
	if PermittedFor(desc, domain.PermissionThirdParty) {
		t.Errorf("third-party should not be permitted")
	}
	if !PermittedFor(desc, domain.PermissionSystem) {
		t.Errorf("system should be permitted")
	}

	unrestricted := domain.SignalDescriptor{}
	if !PermittedFor(unrestricted, domain.PermissionThirdParty) {
		t.Errorf("unrestricted signal should permit any caller")
	}
}
