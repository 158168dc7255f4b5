// Package observability exposes domain-level Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	completionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "progression",
		Name:      "completions_total",
		Help:      "Routine completions committed, partitioned by whether they counted toward the streak.",
	}, []string{"kind"})
	xpAwardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "progression",
		Name:      "xp_awarded_total",
		Help:      "XP awarded through routine completions and challenge rewards.",
	})
	streakTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "progression",
		Name:      "streak_transitions_total",
		Help:      "Streak transitions applied by the progression engine.",
	}, []string{"transition"})
	completionConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "progression",
		Name:      "version_conflicts_total",
		Help:      "Completion commits that lost a compare-and-set race and were re-applied.",
	})
	lastCompletionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chizen",
		Subsystem: "progression",
		Name:      "last_completion_timestamp_seconds",
		Help:      "Unix timestamp of the most recent committed completion.",
	})
	routinesServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "routines",
		Name:      "served_total",
		Help:      "Daily routines served, partitioned by where they came from.",
	}, []string{"source"})
	generatorFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "routines",
		Name:      "generator_fallbacks_total",
		Help:      "Routines substituted with the built-in fallback after a generator failure.",
	})
	narrationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "narration",
		Name:      "failures_total",
		Help:      "Text-to-speech requests that returned no audio.",
	})
	cacheErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Routine cache operations that failed and were treated as misses.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(
		completionsTotal,
		xpAwardedTotal,
		streakTransitions,
		completionConflicts,
		lastCompletionGauge,
		routinesServed,
		generatorFallbacks,
		narrationFailures,
		cacheErrors,
	)
}

// RecordCompletion counts a committed completion and the XP it awarded.
func RecordCompletion(full bool, xp int, transition string, ts time.Time) {
	kind := "partial"
	if full {
		kind = "full"
	}
	completionsTotal.WithLabelValues(kind).Inc()
	streakTransitions.WithLabelValues(transition).Inc()
	RecordXPAwarded(xp)
	if !ts.IsZero() {
		lastCompletionGauge.Set(float64(ts.Unix()))
	}
}

// RecordXPAwarded adds to the awarded XP counter.
func RecordXPAwarded(xp int) {
	if xp > 0 {
		xpAwardedTotal.Add(float64(xp))
	}
}

// RecordCompletionConflict counts a lost compare-and-set.
func RecordCompletionConflict() {
	completionConflicts.Inc()
}

// RecordRoutineServed counts a daily routine by source (cached, existing, generated).
func RecordRoutineServed(source string) {
	routinesServed.WithLabelValues(source).Inc()
}

// RecordGeneratorFallback counts a fallback substitution.
func RecordGeneratorFallback() {
	generatorFallbacks.Inc()
}

// RecordNarrationFailure counts a failed synthesis.
func RecordNarrationFailure() {
	narrationFailures.Inc()
}

// RecordCacheError counts a swallowed cache failure.
func RecordCacheError(op string) {
	cacheErrors.WithLabelValues(op).Inc()
}
