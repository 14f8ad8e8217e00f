// Package ratelimiter implements the two independent admission gates
// of spec §4.4: a per-client reward/punish health gate and a global
// ceiling on simultaneously-active requests.
package ratelimiter

import (
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/infra/cdm"
)

// Config holds the three reward/punish parameters plus the global
// ceiling, mirroring the PropertiesConfig tunables of spec §6.
type Config struct {
	Delta   time.Duration // gap threshold below which a request is punished
	Penalty int           // health subtracted on a too-fast request
	Reward  float64       // health added per Delta of elapsed gap on a well-spaced request
	MaxConcurrent int     // global ceiling on live requests
}

// LiveCounter reports how many requests are currently live across the
// whole process, so the global gate can be checked atomically against
// the Request Manager without this package importing it.
type LiveCounter interface {
	LiveCount() int
}

// Limiter applies the per-client and global admission gates.
type Limiter struct {
	cfg  Config
	cdm  *cdm.Manager
	live LiveCounter
}

// New creates a Limiter backed by the given Client Data Manager and
// live-request counter.
func New(cfg Config, c *cdm.Manager, live LiveCounter) *Limiter {
	return &Limiter{cfg: cfg, cdm: c, live: live}
}

// AdmitClient applies the per-client reward/punish gate for tid at
// time now. last_ts is unconditionally updated — spec §4.4 requires
// this even when the request ends up rejected, so that a burst of
// rejected requests cannot reset its own gap measurement by never
// touching last_ts.
func (l *Limiter) AdmitClient(tid int, now time.Time) bool {
	last, had := l.cdm.LastTS(tid)
	l.cdm.SetLastTS(tid, now)

	if !had || last.IsZero() {
		// First request ever seen from this tid: nothing to compare
		// against, so there is no way it was "too fast". Admit and
		// let health start at its initial value.
		h, ok := l.cdm.Health(tid)
		return !ok || h > 0
	}

	gap := now.Sub(last)
	var health int
	var ok bool
	if gap < l.cfg.Delta {
		health, ok = l.cdm.BumpHealth(tid, -l.cfg.Penalty)
	} else {
		ratio := float64(gap) / float64(l.cfg.Delta)
		delta := int(l.cfg.Reward * ratio)
		health, ok = l.cdm.BumpHealth(tid, delta)
	}
	if !ok {
		return false
	}
	return health > 0
}

// AdmitGlobal applies the global concurrency ceiling.
func (l *Limiter) AdmitGlobal() bool {
	if l.cfg.MaxConcurrent <= 0 {
		return true // unconfigured: no ceiling
	}
	return l.live.LiveCount() < l.cfg.MaxConcurrent
}

// Admit applies both gates in order, short-circuiting on the cheaper
// client check first since it is the common rejection path under
// spec scenario 3 (a single misbehaving client spamming requests).
func (l *Limiter) Admit(tid int, now time.Time) bool {
	if !l.AdmitClient(tid, now) {
		return false
	}
	return l.AdmitGlobal()
}
