package ratelimiter

import (
	"testing"
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/infra/cdm"
)

type fixedLive struct{ n int }

func (f fixedLive) LiveCount() int { return f.n }

func TestAdmitClient_PunishesBurstsIntoThrottled(t *testing.T) {
	c := cdm.New(nil)
	const pid, tid = 1, 1
	if err := c.Upsert(pid, tid); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	cfg := Config{Delta: 5 * time.Millisecond, Penalty: 2, Reward: 0.4, MaxConcurrent: 0}
	lim := New(cfg, c, fixedLive{0})

	t0 := time.Unix(0, 0)
	c.SetLastTS(tid, t0) // simulate bind happening immediately before the burst starts

	admittedCount := 0
	firstRejectAt := -1
	for i := 1; i <= 60; i++ {
		now := t0.Add(time.Duration(i) * time.Millisecond) // 1ms spacing, well under Delta
		if lim.AdmitClient(tid, now) {
			admittedCount++
		} else if firstRejectAt == -1 {
			firstRejectAt = i
		}
	}

	if firstRejectAt == -1 {
		t.Fatalf("expected some requests to be throttled, none were")
	}
	// 100 starting health, -2 per request: health reaches 0 around the
	// 50th request. Allow a small window either side since the exact
	// request where resulting-health first hits zero vs the request
	// after it is a spec-level off-by-one.
	if firstRejectAt < 49 || firstRejectAt > 51 {
		t.Fatalf("first throttled request = %d, want ~50", firstRejectAt)
	}
	if admittedCount >= 60 {
		t.Fatalf("admittedCount = %d, want fewer than 60", admittedCount)
	}

	// Once throttled, later sends in the same burst must also be rejected.
	last := t0.Add(61 * time.Millisecond)
	if lim.AdmitClient(tid, last) {
		t.Fatalf("request 61 should still be throttled")
	}
}

func TestAdmitClient_SpacedRequestsRecoverHealth(t *testing.T) {
	c := cdm.New(nil)
	const pid, tid = 1, 1
	_ = c.Upsert(pid, tid)
	c.BumpHealth(tid, -100) // drive to 0

	cfg := Config{Delta: 5 * time.Millisecond, Penalty: 2, Reward: 0.4, MaxConcurrent: 0}
	lim := New(cfg, c, fixedLive{0})

	t0 := time.Unix(0, 0)
	c.SetLastTS(tid, t0)

	// A gap 100x the threshold should reward heavily and admit.
	now := t0.Add(500 * time.Millisecond)
	if !lim.AdmitClient(tid, now) {
		t.Fatalf("well-spaced request after recovery should be admitted")
	}
}

func TestAdmitGlobal_CeilingEnforced(t *testing.T) {
	cfg := Config{MaxConcurrent: 5}
	lim := New(cfg, cdm.New(nil), fixedLive{5})
	if lim.AdmitGlobal() {
		t.Fatalf("AdmitGlobal() at ceiling should be false")
	}

	lim2 := New(cfg, cdm.New(nil), fixedLive{4})
	if !lim2.AdmitGlobal() {
		t.Fatalf("AdmitGlobal() below ceiling should be true")
	}
}

func TestAdmitGlobal_UnconfiguredMeansUnbounded(t *testing.T) {
	lim := New(Config{}, cdm.New(nil), fixedLive{1 << 20})
	if !lim.AdmitGlobal() {
		t.Fatalf("AdmitGlobal() with MaxConcurrent=0 should never reject")
	}
}
