// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Handoff result labels.
const (
	HandoffSent     = "sent"
	HandoffReceived = "received"
	HandoffEmpty    = "empty"
	HandoffExpired  = "expired"
	HandoffMismatch = "mismatch"
	HandoffCorrupt  = "corrupt"
)

var (
	initOnce sync.Once

	handoffsTotalCounter       *prometheus.CounterVec
	runsStartedCounter         prometheus.Counter
	runsCompletedCounter       prometheus.Counter
	workflowsSavedCounter      prometheus.Counter
	historyEvictedCounter      prometheus.Counter
	handoffPayloadBytesMetric  prometheus.Histogram
	janitorSweepsTotalCounter  prometheus.Counter
	janitorSlotsExpiredCounter prometheus.Counter
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		handoffsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handoffs_total",
				Help: "Total number of handoff slot operations by result.",
			},
			[]string{"result"},
		)

		runsStartedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workflow_runs_started_total",
				Help: "Total number of workflow runs started.",
			},
		)

		runsCompletedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workflow_runs_completed_total",
				Help: "Total number of workflow runs that reached their last step.",
			},
		)

		workflowsSavedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workflow_definitions_saved_total",
				Help: "Total number of workflow definition upserts.",
			},
		)

		historyEvictedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "history_entries_evicted_total",
				Help: "Total number of run history entries dropped by the size cap.",
			},
		)

		handoffPayloadBytesMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "handoff_payload_bytes",
				Help:    "Size of artifact payloads moved through the handoff slot.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		)

		janitorSweepsTotalCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "janitor_sweeps_total",
				Help: "Total number of janitor maintenance passes.",
			},
		)

		janitorSlotsExpiredCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "janitor_slots_expired_total",
				Help: "Total number of stale handoff slots dropped by the janitor.",
			},
		)

		prometheus.MustRegister(
			handoffsTotalCounter,
			runsStartedCounter,
			runsCompletedCounter,
			workflowsSavedCounter,
			historyEvictedCounter,
			handoffPayloadBytesMetric,
			janitorSweepsTotalCounter,
			janitorSlotsExpiredCounter,
		)

		// Ensure the vector is visible at /metrics before first increment.
		for _, result := range []string{
			HandoffSent,
			HandoffReceived,
			HandoffEmpty,
			HandoffExpired,
			HandoffMismatch,
			HandoffCorrupt,
		} {
			handoffsTotalCounter.WithLabelValues(result)
		}
	})
}

func IncHandoff(result string) {
	Init()
	handoffsTotalCounter.WithLabelValues(result).Inc()
}

func IncRunStarted() {
	Init()
	runsStartedCounter.Inc()
}

func IncRunCompleted() {
	Init()
	runsCompletedCounter.Inc()
}

func IncWorkflowSaved() {
	Init()
	workflowsSavedCounter.Inc()
}

func IncHistoryEvicted(n int) {
	Init()
	historyEvictedCounter.Add(float64(n))
}

func ObserveHandoffPayloadBytes(n int) {
	Init()
	handoffPayloadBytesMetric.Observe(float64(n))
}

func IncJanitorSweep() {
	Init()
	janitorSweepsTotalCounter.Inc()
}

func IncJanitorSlotExpired() {
	Init()
	janitorSlotsExpiredCounter.Inc()
}
