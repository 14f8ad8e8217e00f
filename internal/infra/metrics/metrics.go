// Package metrics provides Prometheus metrics for the Concurrency
// Coordinator: admission outcomes, arbitration transitions, handle
// bookkeeping, and the Pulse Monitor/GC loops.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Admission ──────────────────────────────────────────────────────────────

// RequestsAdmitted tracks requests that passed both rate-limit gates.
var RequestsAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rtuned",
	Name:      "requests_admitted_total",
	Help:      "Total tune requests admitted past both rate-limit gates.",
}, []string{"kind"})

// RequestsRateLimited tracks requests rejected by the per-client gate.
var RequestsRateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rtuned",
	Name:      "requests_rate_limited_total",
	Help:      "Total requests rejected by the per-client health gate.",
})

// RequestsGlobalLimited tracks requests rejected by the concurrency ceiling.
var RequestsGlobalLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rtuned",
	Name:      "requests_global_limited_total",
	Help:      "Total requests rejected by the global concurrency ceiling.",
})

// RequestsQueueRejected tracks requests that lost to a full Request Queue.
var RequestsQueueRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rtuned",
	Name:      "requests_queue_rejected_total",
	Help:      "Total requests rejected because the Request Queue was full.",
})

// ─── Arbitration ────────────────────────────────────────────────────────────

// ArbitrationTransitions tracks winner changes on a Coco Table scope.
var ArbitrationTransitions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rtuned",
	Name:      "arbitration_transitions_total",
	Help:      "Total times a scope's winning CocoNode changed identity.",
})

// LiveHandles tracks the current live-handle count.
var LiveHandles = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rtuned",
	Name:      "live_handles",
	Help:      "Number of currently live request handles.",
})

// QueueDepth tracks the Request Queue's current depth.
var QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rtuned",
	Name:      "request_queue_depth",
	Help:      "Current depth of the Request Queue across all priority tiers.",
})

// TimerWheelDepth tracks how many expiries are currently armed.
var TimerWheelDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rtuned",
	Name:      "timer_wheel_depth",
	Help:      "Number of pending expiries armed on the Timer Wheel.",
})

// ─── Pulse & GC ─────────────────────────────────────────────────────────────

// PulseSweepDuration tracks how long a Pulse Monitor sweep took.
var PulseSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "rtuned",
	Name:      "pulse_sweep_duration_seconds",
	Help:      "Duration of one Pulse Monitor liveness sweep.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})

// GCBatchSize tracks how many dead pids one GC batch processed.
var GCBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "rtuned",
	Name:      "gc_batch_size",
	Help:      "Number of dead pids processed in one GC batch.",
	Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
})

// GCBatchDuration tracks how long one GC batch took.
var GCBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "rtuned",
	Name:      "gc_batch_duration_seconds",
	Help:      "Duration of one GC batch (drain + untune + drop).",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})
