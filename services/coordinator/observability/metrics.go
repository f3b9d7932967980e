// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the coordinator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring change
// operation coordination. Metrics include:
//   - Request counters and latency histograms (by route and status)
//   - Operation lifecycle counters (creations, state transitions)
//   - Lock contention counters
//   - Event fan-out counters and watch session gauges
//   - Snapshot persistence counters
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
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "switchyard"

// Subsystem for coordinator metrics
const coordinatorSubsystem = "coordinator"

// CoordinatorMetrics holds all Prometheus metrics for the coordination engine.
//
// Initialize once at startup via InitMetrics(). Label cardinality stays
// bounded: routes are gin templates, statuses come from the fixed
// operation state machine, and components are the operator-curated
// component registry.
type CoordinatorMetrics struct {
	// RequestsTotal counts API requests.
	// Labels: method, route (gin template), status (HTTP code)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures request latency.
	// Labels: method, route
	RequestDurationSeconds *prometheus.HistogramVec

	// OperationsCreatedTotal counts successfully created operations.
	OperationsCreatedTotal prometheus.Counter

	// StateTransitionsTotal counts committed status changes.
	// Labels: from_status, to_status
	StateTransitionsTotal *prometheus.CounterVec

	// LockFailuresTotal counts rejected transitions due to lock contention.
	// Labels: component
	LockFailuresTotal *prometheus.CounterVec

	// EventsPublishedTotal counts operation events fanned out to the bus.
	EventsPublishedTotal prometheus.Counter

	// EventsDroppedTotal counts events dropped on slow watch subscribers.
	EventsDroppedTotal prometheus.Counter

	// WatchSessions tracks currently connected watch streams.
	WatchSessions prometheus.Gauge

	// SnapshotSavesTotal counts snapshot persistence attempts.
	// Labels: status (success, error)
	SnapshotSavesTotal *prometheus.CounterVec
}

var (
	// DefaultMetrics is the singleton instance, set by InitMetrics().
	DefaultMetrics *CoordinatorMetrics

	initOnce sync.Once
)

// InitMetrics initializes and registers the default metrics instance.
//
// Registration with the default Prometheus registry happens exactly once;
// later calls return the already-initialized singleton, which keeps
// repeated service construction in tests from tripping duplicate
// registration panics.
func InitMetrics() *CoordinatorMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &CoordinatorMetrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: coordinatorSubsystem,
					Name:      "requests_total",
					Help:      "Total API requests by method, route, and status",
				},
				[]string{"method", "route", "status"},
			),

			RequestDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: coordinatorSubsystem,
					Name:      "request_duration_seconds",
					Help:      "API request latency in seconds",
					Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
				},
				[]string{"method", "route"},
			),

			OperationsCreatedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: coordinatorSubsystem,
					Name:      "operations_created_total",
					Help:      "Total change operations created",
				},
			),

			StateTransitionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: coordinatorSubsystem,
					Name:      "state_transitions_total",
					Help:      "Committed operation status changes by from and to status",
				},
				[]string{"from_status", "to_status"},
			),

			LockFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: coordinatorSubsystem,
					Name:      "lock_failures_total",
					Help:      "Transitions rejected because a component lock was contested",
				},
				[]string{"component"},
			),

			EventsPublishedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: coordinatorSubsystem,
					Name:      "events_published_total",
					Help:      "Operation events fanned out to watch subscribers",
				},
			),

			EventsDroppedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: coordinatorSubsystem,
					Name:      "events_dropped_total",
					Help:      "Operation events dropped on slow watch subscribers",
				},
			),

			WatchSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: coordinatorSubsystem,
					Name:      "watch_sessions",
					Help:      "Currently connected watch streams",
				},
			),

			SnapshotSavesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: coordinatorSubsystem,
					Name:      "snapshot_saves_total",
					Help:      "Snapshot persistence attempts by outcome",
				},
				[]string{"status"},
			),
		}
	})

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records one completed API request.
func (m *CoordinatorMetrics) RecordRequest(method, route string, status int, seconds float64) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}

// RecordOperationCreated increments the creation counter.
func (m *CoordinatorMetrics) RecordOperationCreated() {
	m.OperationsCreatedTotal.Inc()
}

// RecordTransition records a committed status change.
func (m *CoordinatorMetrics) RecordTransition(fromStatus, toStatus string) {
	m.StateTransitionsTotal.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordLockFailure records a transition rejected on a contested component.
func (m *CoordinatorMetrics) RecordLockFailure(component string) {
	m.LockFailuresTotal.WithLabelValues(component).Inc()
}

// RecordEventPublished increments the fan-out counter.
func (m *CoordinatorMetrics) RecordEventPublished() {
	m.EventsPublishedTotal.Inc()
}

// RecordEventDropped increments the slow-subscriber drop counter.
func (m *CoordinatorMetrics) RecordEventDropped() {
	m.EventsDroppedTotal.Inc()
}

// WatchStarted increments the watch session gauge.
func (m *CoordinatorMetrics) WatchStarted() {
	m.WatchSessions.Inc()
}

// WatchEnded decrements the watch session gauge.
func (m *CoordinatorMetrics) WatchEnded() {
	m.WatchSessions.Dec()
}

// RecordSnapshotSave records one snapshot persistence attempt.
func (m *CoordinatorMetrics) RecordSnapshotSave(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SnapshotSavesTotal.WithLabelValues(status).Inc()
}
