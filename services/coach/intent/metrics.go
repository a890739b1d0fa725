// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "coachpilot"

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "intent",
		Name:      "classifications_total",
		Help:      "Utterance classifications by accepted label and deciding stage.",
	}, []string{"label", "source"})

	lowConfidenceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "intent",
		Name:      "low_confidence_total",
		Help:      "Gateway verdicts discarded for falling below the acceptance threshold.",
	})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "intent",
		Name:      "cache_hits_total",
		Help:      "Confirmation results served from cache.",
	})

	classifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "intent",
		Name:      "classify_duration_seconds",
		Help:      "End-to-end classification latency.",
		Buckets:   prometheus.DefBuckets,
	})
)

// recordResult updates the classification counters for one verdict.
func recordResult(r *Result) {
	classificationsTotal.WithLabelValues(string(r.Label), r.Source).Inc()
	if r.LowConfidence {
		lowConfidenceTotal.Inc()
	}
	if r.Cached {
		cacheHitsTotal.Inc()
	}
	classifyDuration.Observe(r.Duration.Seconds())
}
