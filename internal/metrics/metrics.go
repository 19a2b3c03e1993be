package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage counters and gauges.

var (
	// Matcher
	MatcherTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "together",
		Subsystem: "matcher",
		Name:      "ticks_total",
		Help:      "Total matcher ticks",
	})

	MatcherMatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "together",
		Subsystem: "matcher",
		Name:      "matches_total",
		Help:      "Total reciprocal matches promoted to optimistic connections",
	})

	MatcherSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "together",
		Subsystem: "matcher",
		Name:      "submissions_total",
		Help:      "Total attestation submissions by outcome",
	}, []string{"outcome"})

	MatcherSkippedCapTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "together",
		Subsystem: "matcher",
		Name:      "skipped_cap_total",
		Help:      "Total matches skipped because the unconfirmed pair cap was reached",
	})

	// Reaper
	ReaperDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "together",
		Subsystem: "reaper",
		Name:      "deleted_total",
		Help:      "Total expired pending connections deleted",
	})

	// Watcher
	WatcherEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "together",
		Subsystem: "watcher",
		Name:      "events_total",
		Help:      "Total Together events seen by outcome",
	}, []string{"outcome"})

	WatcherChunkErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "together",
		Subsystem: "watcher",
		Name:      "chunk_errors_total",
		Help:      "Total log range fetches that failed after retries",
	})

	WatcherCursorBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "together",
		Subsystem: "watcher",
		Name:      "cursor_block",
		Help:      "Last fully processed block number",
	})

	WatcherChunkSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "together",
		Subsystem: "watcher",
		Name:      "chunk_size",
		Help:      "Current adaptive log fetch chunk size",
	})

	// HTTP intents
	IntentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "together",
		Subsystem: "api",
		Name:      "intents_created_total",
		Help:      "Total pending connection intents accepted",
	})
)
