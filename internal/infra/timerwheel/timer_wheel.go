// Package timerwheel implements the Timer Wheel (spec §4.6): a
// deadline-ordered min-heap that fires Expire messages onto the
// Request Queue when a request's duration elapses, rather than
// mutating Coco Table state directly (DESIGN NOTES: "timer callbacks
// must not touch Coco state directly — post a message instead").
//
// The heap-plus-mutex shape, and the Push/Pop/Peek naming, follow the
// teacher's dsa.PriorityQueue (described by
// internal/infra/dsa/dsa_test.go — no dsa.go survives in the
// retrieval pack, only its test). That type orders by an effective
// priority with starvation boost; this one orders by absolute
// deadline, since a timer wheel's only job is "what fires next and
// when" — boosting never applies to a deadline.
package timerwheel

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

// entry is one scheduled expiry.
type entry struct {
	handle   domain.Handle
	deadline time.Time
	index    int // maintained by container/heap
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Wheel is a deadline-ordered min-heap of pending expiries, one per
// live handle. Arming the same handle twice replaces its deadline
// in place (used by retune, which extends a request's lifetime).
type Wheel struct {
	mu      sync.Mutex
	h       entryHeap
	byHandle map[domain.Handle]*entry
	now     func() time.Time
}

// New creates an empty Wheel.
func New() *Wheel {
	return &Wheel{byHandle: make(map[domain.Handle]*entry), now: time.Now}
}

// Arm schedules handle to expire at deadline. If handle is already
// armed, its deadline is replaced (spec §4.6: retune reschedules
// rather than stacking a second timer).
func (w *Wheel) Arm(handle domain.Handle, deadline time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.byHandle[handle]; ok {
		e.deadline = deadline
		heap.Fix(&w.h, e.index)
		return
	}
	e := &entry{handle: handle, deadline: deadline}
	heap.Push(&w.h, e)
	w.byHandle[handle] = e
}

// Disarm removes handle's pending expiry, if any. Used on cancel,
// untune, and immediately before the Expire message for an already
// fired handle is processed, so a racing retune cannot resurrect it.
func (w *Wheel) Disarm(handle domain.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.byHandle[handle]
	if !ok {
		return
	}
	heap.Remove(&w.h, e.index)
	delete(w.byHandle, handle)
}

// Armed reports whether handle currently has a pending expiry.
func (w *Wheel) Armed(handle domain.Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.byHandle[handle]
	return ok
}

// Len returns the number of pending expiries.
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.h)
}

// DuePast pops and returns every handle whose deadline is at or
// before now, oldest-deadline first.
func (w *Wheel) DuePast(now time.Time) []domain.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	var due []domain.Handle
	for len(w.h) > 0 && !w.h[0].deadline.After(now) {
		e := heap.Pop(&w.h).(*entry)
		delete(w.byHandle, e.handle)
		due = append(due, e.handle)
	}
	return due
}

// NextDeadline returns the soonest pending deadline, if any.
func (w *Wheel) NextDeadline() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.h) == 0 {
		return time.Time{}, false
	}
	return w.h[0].deadline, true
}

// Run drives the wheel on a ticker, posting Expire(handle) onto emit
// for every handle that comes due, until ctx is cancelled. emit is
// expected to be the Request Queue's Enqueue wrapped to build an
// Expire message — this package does not import queue to keep the
// dependency direction one-way (timerwheel is lower-level than the
// message types it triggers).
func (w *Wheel) Run(ctx context.Context, tick time.Duration, emit func(domain.Handle)) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, h := range w.DuePast(w.now()) {
				emit(h)
			}
		}
	}
}
