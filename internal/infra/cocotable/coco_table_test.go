package cocotable

import (
	"testing"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

type recordingApplier struct {
	applies []int64
	tears   int
}

func (r *recordingApplier) Apply(desc domain.ResourceDescriptor, scopeQualifier int, value int64) error {
	r.applies = append(r.applies, value)
	return nil
}

func (r *recordingApplier) Tear(desc domain.ResourceDescriptor, scopeQualifier int) error {
	r.tears++
	return nil
}

func node(h domain.Handle, value int64, p domain.PriorityTier) CocoNode {
	return CocoNode{Handle: h, ResourceID: domain.NewResourceID(1, 1), ScopeQualifier: 0, Value: value, Priority: p}
}

func TestInsert_HigherIsBetter_OrdersDescendingWithFIFOTies(t *testing.T) {
	tab := New(nil)
	const scope = 0

	h1, h2, h3 := domain.NewHandle(1, 1), domain.NewHandle(1, 2), domain.NewHandle(1, 3)
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h1, 5, domain.PriorityThirdPartyLow))
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h2, 9, domain.PriorityThirdPartyLow))
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h3, 9, domain.PriorityThirdPartyLow)) // tie with h2, arrives later

	w, ok := tab.Winner(scope)
	if !ok || w.Handle != h2 {
		t.Fatalf("winner = %v, want h2 (first of the tied highest values)", w)
	}
}

func TestInsert_LowerIsBetter_OrdersAscending(t *testing.T) {
	tab := New(nil)
	const scope = 0

	h1, h2 := domain.NewHandle(1, 1), domain.NewHandle(1, 2)
	tab.Insert(scope, domain.PolicyLowerIsBetter, node(h1, 50, domain.PriorityThirdPartyLow))
	tab.Insert(scope, domain.PolicyLowerIsBetter, node(h2, 10, domain.PriorityThirdPartyLow))

	w, ok := tab.Winner(scope)
	if !ok || w.Handle != h2 {
		t.Fatalf("winner = %v, want h2 (lower value)", w)
	}
}

func TestInsert_Instant_AlwaysWinsImmediately(t *testing.T) {
	tab := New(nil)
	const scope = 0

	h1, h2 := domain.NewHandle(1, 1), domain.NewHandle(1, 2)
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h1, 100, domain.PriorityThirdPartyLow))
	tab.Insert(scope, domain.PolicyInstant, node(h2, 1, domain.PriorityThirdPartyLow))

	w, ok := tab.Winner(scope)
	if !ok || w.Handle != h2 {
		t.Fatalf("winner = %v, want h2 (instant policy prepends and wins)", w)
	}
}

func TestInsert_LazyFIFO_OldestSurvives(t *testing.T) {
	tab := New(nil)
	const scope = 0

	h1, h2 := domain.NewHandle(1, 1), domain.NewHandle(1, 2)
	tab.Insert(scope, domain.PolicyLazyFIFO, node(h1, 1, domain.PriorityThirdPartyLow))
	tab.Insert(scope, domain.PolicyLazyFIFO, node(h2, 2, domain.PriorityThirdPartyLow))

	w, ok := tab.Winner(scope)
	if !ok || w.Handle != h1 {
		t.Fatalf("winner = %v, want h1 (head is oldest surviving)", w)
	}
}

func TestArbitration_HigherPriorityTierAlwaysWinsRegardlessOfValue(t *testing.T) {
	tab := New(nil)
	const scope = 0

	low, high := domain.NewHandle(1, 1), domain.NewHandle(1, 2)
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(low, 1000, domain.PriorityThirdPartyLow))
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(high, 1, domain.PrioritySystemHigh))

	w, ok := tab.Winner(scope)
	if !ok || w.Handle != high {
		t.Fatalf("winner = %v, want the system_high request despite the lower value", w)
	}
}

func TestApplyCallback_FiresOnlyOnWinnerChange(t *testing.T) {
	app := &recordingApplier{}
	tab := New(app)
	const scope = 0
	desc := domain.ResourceDescriptor{ID: domain.NewResourceID(1, 1), PathTemplate: "/x"}
	tab.RegisterScope(scope, desc, 0)

	h1, h2 := domain.NewHandle(1, 1), domain.NewHandle(1, 2)
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h1, 10, domain.PriorityThirdPartyLow))
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h2, 5, domain.PriorityThirdPartyLow)) // does not win, no apply

	if len(app.applies) != 1 || app.applies[0] != 10 {
		t.Fatalf("applies = %v, want exactly one apply with value 10", app.applies)
	}
}

func TestTearCallback_FiresWhenLastNodeOnScopeRemoved(t *testing.T) {
	app := &recordingApplier{}
	tab := New(app)
	const scope = 0
	desc := domain.ResourceDescriptor{ID: domain.NewResourceID(1, 1), PathTemplate: "/x"}
	tab.RegisterScope(scope, desc, 0)

	h := domain.NewHandle(1, 1)
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h, 10, domain.PriorityThirdPartyLow))
	tab.RemoveAll(h)

	if app.tears != 1 {
		t.Fatalf("tears = %d, want 1", app.tears)
	}
	if _, ok := tab.Winner(scope); ok {
		t.Fatalf("Winner after last removal should report no winner")
	}
}

func TestRemoveAll_PromotesSuccessorWhenWinnerLeaves(t *testing.T) {
	app := &recordingApplier{}
	tab := New(app)
	const scope = 0
	desc := domain.ResourceDescriptor{ID: domain.NewResourceID(1, 1), PathTemplate: "/x"}
	tab.RegisterScope(scope, desc, 0)

	h1, h2 := domain.NewHandle(1, 1), domain.NewHandle(1, 2)
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h1, 10, domain.PriorityThirdPartyLow))
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h2, 5, domain.PriorityThirdPartyLow))

	tab.RemoveAll(h1)

	w, ok := tab.Winner(scope)
	if !ok || w.Handle != h2 {
		t.Fatalf("winner after removing h1 = %v, want h2 promoted", w)
	}
	if app.tears != 0 {
		t.Fatalf("tears = %d, want 0 (a successor was promoted, not torn down)", app.tears)
	}
}

func TestRemoveAll_NonWinnerRemoval_NoOSAction(t *testing.T) {
	app := &recordingApplier{}
	tab := New(app)
	const scope = 0
	desc := domain.ResourceDescriptor{ID: domain.NewResourceID(1, 1), PathTemplate: "/x"}
	tab.RegisterScope(scope, desc, 0)

	h1, h2 := domain.NewHandle(1, 1), domain.NewHandle(1, 2)
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h1, 10, domain.PriorityThirdPartyLow))
	tab.Insert(scope, domain.PolicyHigherIsBetter, node(h2, 5, domain.PriorityThirdPartyLow))

	appliesBefore := len(app.applies)
	tab.RemoveAll(h2) // never was the winner

	if len(app.applies) != appliesBefore {
		t.Fatalf("removing a non-winner triggered an apply call, want none")
	}
	if tab.Touches(h2) != 0 {
		t.Fatalf("Touches(h2) after removal = %d, want 0", tab.Touches(h2))
	}
}

func TestRemoveAll_MultiScopeHandleUnlinksEverywhere(t *testing.T) {
	tab := New(nil)
	h := domain.NewHandle(1, 1)
	tab.Insert(0, domain.PolicyHigherIsBetter, node(h, 1, domain.PriorityThirdPartyLow))
	tab.Insert(1, domain.PolicyHigherIsBetter, node(h, 1, domain.PriorityThirdPartyLow))
	tab.Insert(2, domain.PolicyHigherIsBetter, node(h, 1, domain.PriorityThirdPartyLow))

	if tab.Touches(h) != 3 {
		t.Fatalf("Touches(h) = %d, want 3", tab.Touches(h))
	}
	tab.RemoveAll(h)
	if tab.Touches(h) != 0 {
		t.Fatalf("Touches(h) after RemoveAll = %d, want 0", tab.Touches(h))
	}
	for _, scope := range []int{0, 1, 2} {
		if _, ok := tab.Winner(scope); ok {
			t.Fatalf("scope %d still reports a winner after RemoveAll", scope)
		}
	}
}
