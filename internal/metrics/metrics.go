// Package metrics exposes the Prometheus counters and gauges that
// make spec.md §8's testable properties visible to an operator:
// retries exhausted, skips coalesced, prefetches started/finished,
// queue depth, and desyncs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RetriesExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playerctld_retries_exhausted_total",
		Help: "Streams whose retry budget (retry.Ledger) was exhausted before giving up.",
	})

	SkipsCoalescedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerctld_skips_coalesced_total",
		Help: "Skip presses absorbed into an already in-flight skip session, by direction.",
	}, []string{"direction"})

	SkipsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerctld_skips_started_total",
		Help: "Skip presses that began a new find-next search, by direction.",
	}, []string{"direction"})

	PrefetchesStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playerctld_prefetches_started_total",
		Help: "Prefetch lookaheads launched by start_prefetch_next_item.",
	})

	PrefetchesFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerctld_prefetches_finished_total",
		Help: "Prefetch lookaheads that reached a terminal positional state, by outcome.",
	}, []string{"outcome"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playerctld_queue_depth",
		Help: "Current QueuedStreams population, in-flight item included.",
	})

	DesyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerctld_desyncs_total",
		Help: "Queue desyncs (ErrDesync/ErrShiftMismatch) observed, by source.",
	}, []string{"source"})
)

// ObserveSkipOutcome records a skip press's coalescer outcome against
// the direction it was requested in.
func ObserveSkipOutcome(direction string, coalesced bool) {
	if coalesced {
		SkipsCoalescedTotal.WithLabelValues(direction).Inc()
		return
	}
	SkipsStartedTotal.WithLabelValues(direction).Inc()
}

// ObservePrefetchFinished records a prefetch lookahead's terminal
// positional state.
func ObservePrefetchFinished(outcome string) {
	PrefetchesFinishedTotal.WithLabelValues(outcome).Inc()
}

// ObserveDesync records a queue desync, tagged with the caller that
// observed it (e.g. "remove_front", "shift").
func ObserveDesync(source string) {
	DesyncsTotal.WithLabelValues(source).Inc()
}
