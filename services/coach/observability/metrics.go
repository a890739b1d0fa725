// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the
// coaching dialogue service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring dialogue
// operations. Metrics include:
//   - Session lifecycle counters (started, completed, archived, expired)
//   - Turn counters by response type
//   - Plan generation counters (model-generated vs fallback)
//   - Turn latency histograms
//   - Active session gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "coachpilot"

// Subsystem for dialogue metrics
const dialogueSubsystem = "dialogue"

// DialogueMetrics holds all Prometheus metrics for dialogue operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring session flow
// and plan generation. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type DialogueMetrics struct {
	// SessionsTotal counts session lifecycle transitions.
	// Labels: event (started, completed, archived, expired)
	SessionsTotal *prometheus.CounterVec

	// TurnsTotal counts processed turns by response type.
	// Labels: type (follow_up, action_plan), intent
	TurnsTotal *prometheus.CounterVec

	// PlansTotal counts generated action plans.
	// Labels: source (gateway, fallback)
	PlansTotal *prometheus.CounterVec

	// EventsTotal counts inbound channel events by disposition.
	// Labels: result (processed, duplicate, self, invalid)
	EventsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures end to end turn processing latency.
	// Labels: type (follow_up, action_plan)
	TurnDurationSeconds *prometheus.HistogramVec

	// ActiveSessions tracks sessions that have not reached a terminal stage.
	ActiveSessions prometheus.Gauge

	// GatewayFailuresTotal counts language gateway calls that exhausted
	// retries and fell back to deterministic behavior.
	// Labels: capability (classify, score, questions, plan)
	GatewayFailuresTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of DialogueMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *DialogueMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Outputs
//
//   - *DialogueMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *DialogueMetrics {
	DefaultMetrics = &DialogueMetrics{
		SessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: dialogueSubsystem,
				Name:      "sessions_total",
				Help:      "Total session lifecycle transitions by event",
			},
			[]string{"event"},
		),

		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: dialogueSubsystem,
				Name:      "turns_total",
				Help:      "Total processed turns by response type and intent",
			},
			[]string{"type", "intent"},
		),

		PlansTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: dialogueSubsystem,
				Name:      "plans_total",
				Help:      "Total generated action plans by source",
			},
			[]string{"source"},
		),

		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: dialogueSubsystem,
				Name:      "events_total",
				Help:      "Total inbound channel events by disposition",
			},
			[]string{"result"},
		),

		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: dialogueSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "End to end turn processing latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0},
			},
			[]string{"type"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: dialogueSubsystem,
				Name:      "active_sessions",
				Help:      "Number of sessions not yet in a terminal stage",
			},
		),

		GatewayFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: dialogueSubsystem,
				Name:      "gateway_failures_total",
				Help:      "Total gateway calls that fell back to deterministic behavior",
			},
			[]string{"capability"},
		),
	}
	return DefaultMetrics
}

// RecordSession increments the session lifecycle counter. No-op when
// metrics are not initialized, which keeps tests free of registry setup.
func RecordSession(event string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.SessionsTotal.WithLabelValues(event).Inc()
}

// RecordTurn increments the turn counter and observes its duration.
func RecordTurn(responseType, intent string, seconds float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.TurnsTotal.WithLabelValues(responseType, intent).Inc()
	DefaultMetrics.TurnDurationSeconds.WithLabelValues(responseType).Observe(seconds)
}

// RecordPlan increments the plan counter for the given source.
func RecordPlan(fallback bool) {
	if DefaultMetrics == nil {
		return
	}
	source := "gateway"
	if fallback {
		source = "fallback"
	}
	DefaultMetrics.PlansTotal.WithLabelValues(source).Inc()
}

// RecordEvent increments the inbound event counter for a disposition.
func RecordEvent(result string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.EventsTotal.WithLabelValues(result).Inc()
}

// RecordGatewayFailure increments the gateway fallback counter.
func RecordGatewayFailure(capability string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.GatewayFailuresTotal.WithLabelValues(capability).Inc()
}

// AddActiveSessions adjusts the active session gauge by delta.
func AddActiveSessions(delta float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ActiveSessions.Add(delta)
}

// SetActiveSessions overwrites the active session gauge. The sweeper uses
// this to correct drift after evicting expired sessions.
func SetActiveSessions(count float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ActiveSessions.Set(count)
}
