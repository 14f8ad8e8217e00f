package applier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

func TestSysfsApplier_ApplyWritesSubstitutedPath(t *testing.T) {
	dir := t.TempDir()
	desc := domain.ResourceDescriptor{
		PathTemplate: filepath.Join(dir, "core%d", "freq"),
		Default:      100,
	}
	if err := os.MkdirAll(filepath.Join(dir, "core3"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	d := New()
	if err := d.Apply(desc, 3, 2200); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "core3", "freq"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "2200" {
		t.Fatalf("written value = %q, want %q", got, "2200")
	}
}

func TestSysfsApplier_TearRestoresDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "freq")
	desc := domain.ResourceDescriptor{PathTemplate: path, Default: 800}

	d := New()
	_ = d.Apply(desc, 0, 2200)
	_ = d.Tear(desc, 0)

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "800" {
		t.Fatalf("torn-down value = %q, want %q (default)", got, "800")
	}
}

func TestSysfsApplier_WriteFailureDoesNotReturnError(t *testing.T) {
	desc := domain.ResourceDescriptor{PathTemplate: "/nonexistent/dir/does/not/exist", Default: 0}
	d := New()
	if err := d.Apply(desc, 0, 1); err != nil {
		t.Fatalf("Apply on an unwritable path must be swallowed, got %v", err)
	}
}

func TestMock_RecordsApplyAndTearSeparately(t *testing.T) {
	m := NewMock()
	desc := domain.ResourceDescriptor{ID: domain.NewResourceID(1, 1), Default: 5}

	_ = m.Apply(desc, 0, 42)
	_ = m.Tear(desc, 0)

	if len(m.Applies()) != 1 || m.Applies()[0].Value != 42 {
		t.Fatalf("Applies() = %v, want one apply with value 42", m.Applies())
	}
	if len(m.Tears()) != 1 || m.Tears()[0].Value != 5 {
		t.Fatalf("Tears() = %v, want one tear restoring default 5", m.Tears())
	}
}
