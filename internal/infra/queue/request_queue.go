// Package queue implements the Request Queue (spec §4.5): a bounded,
// multi-producer single-consumer priority queue keyed by request
// priority tier with FIFO tie-break, plus a reserved control tier
// above all traffic priorities for the Expire/GC/untune messages that
// DESIGN NOTES requires timers and background sweeps to post rather
// than mutate Coco state directly.
//
// The priority-array-of-slices shape and the "check capacity, append,
// scan highest-to-lowest on pop" algorithm are the teacher's
// scheduler.Scheduler (internal/infra/scheduler/scheduler.go),
// generalized from its five work-stealing priority classes down to
// this package's five (four traffic tiers + one control tier) and
// with back-pressure replaced by the spec's flat QUEUE_FULL rejection.
package queue

import (
	"context"
	"sync"

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

// controlTier is reserved for Expire/GC/untune messages. It always
// out-ranks every real traffic priority (spec §5: "priority above
// normal traffic").
const controlTier = domain.NumPriorityTiers

const numTiers = domain.NumPriorityTiers + 1

// Kind discriminates what a Message asks the dispatcher to do. Retune
// never appears here: it extends a deadline without touching Coco
// lists, so it is handled synchronously by whichever thread receives
// it rather than routed through the dispatcher (spec §4.6).
type Kind int

const (
	KindTune Kind = iota
	KindUntune
	KindExpire
)

// Message is one unit of dispatcher work. Exactly one of the payload
// fields is meaningful, selected by Kind.
type Message struct {
	Kind Kind

	Request      *domain.Request // KindTune
	UntuneHandle domain.Handle   // KindUntune, KindExpire

	seq int64 // internal FIFO tie-break
}

func (m Message) priorityTier() int {
	switch m.Kind {
	case KindExpire, KindUntune:
		// Pulse Monitor, GC, and explicit untune all post here above
		// normal traffic (spec §5), so a dying or cancelled request
		// tears down promptly instead of queuing behind a backlog of
		// new tune traffic.
		return controlTier
	case KindTune:
		if m.Request != nil {
			return int(m.Request.Priority)
		}
		return 0
	default:
		return controlTier
	}
}

// Queue is the bounded MPSC priority queue.
type Queue struct {
	mu       sync.Mutex
	tiers    [numTiers][]Message
	capacity int
	depth    int
	nextSeq  int64
	closed   bool
	notify   chan struct{}
}

// New creates a Queue with the given total bounded capacity across
// every tier combined.
func New(capacity int) *Queue {
	return &Queue{capacity: capacity, notify: make(chan struct{}, 1)}
}

// Enqueue admits msg if capacity remains and the queue is not closed.
// Never blocks the caller, per spec §4.5.
func (q *Queue) Enqueue(msg Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.ErrQueueFull
	}
	if q.depth >= q.capacity {
		q.mu.Unlock()
		return domain.ErrQueueFull
	}
	msg.seq = q.nextSeq
	q.nextSeq++
	tier := msg.priorityTier()
	q.tiers[tier] = append(q.tiers[tier], msg)
	q.depth++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// tryPop removes and returns the highest-tier, oldest-by-seq message,
// if any is queued.
func (q *Queue) tryPop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for tier := numTiers - 1; tier >= 0; tier-- {
		bucket := q.tiers[tier]
		if len(bucket) == 0 {
			continue
		}
		msg := bucket[0]
		q.tiers[tier] = bucket[1:]
		q.depth--
		return msg, true
	}
	return Message{}, false
}

// Dequeue blocks until a message is available, the queue is closed and
// drained, or ctx is cancelled. The sole consumer is the CC dispatcher
// (spec §5) — this method is not safe for concurrent callers.
func (q *Queue) Dequeue(ctx context.Context) (Message, bool) {
	for {
		if msg, ok := q.tryPop(); ok {
			return msg, true
		}
		q.mu.Lock()
		closedEmpty := q.closed && q.depth == 0
		q.mu.Unlock()
		if closedEmpty {
			return Message{}, false
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Message{}, false
		}
	}
}

// Close marks the queue closed: no further Enqueue calls are admitted.
// Drain should be called by the shutdown path to empty what remains
// through the normal reject path (spec §4.5).
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Drain removes every remaining message and invokes reject on each,
// used during shutdown to empty pending traffic through the normal
// reject path rather than silently dropping it.
func (q *Queue) Drain(reject func(Message)) {
	for {
		msg, ok := q.tryPop()
		if !ok {
			return
		}
		reject(msg)
	}
}

// Depth returns the total number of queued messages across every tier.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}
