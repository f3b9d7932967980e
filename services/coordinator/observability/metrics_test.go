// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

// newTestMetrics creates a CoordinatorMetrics instance with a custom registry.
// This avoids conflicts with the global Prometheus registry and allows
// parallel testing.
func newTestMetrics(t *testing.T) *CoordinatorMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsystem,
			Name:      "requests_total",
			Help:      "Total API requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	requestDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsystem,
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	operationsCreatedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsystem,
			Name:      "operations_created_total",
			Help:      "Total change operations created",
		},
	)

	stateTransitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsystem,
			Name:      "state_transitions_total",
			Help:      "Committed operation status changes by from and to status",
		},
		[]string{"from_status", "to_status"},
	)

	lockFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsystem,
			Name:      "lock_failures_total",
			Help:      "Transitions rejected because a component lock was contested",
		},
		[]string{"component"},
	)

	eventsPublishedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsystem,
			Name:      "events_published_total",
			Help:      "Operation events fanned out to watch subscribers",
		},
	)

	eventsDroppedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsystem,
			Name:      "events_dropped_total",
			Help:      "Operation events dropped on slow watch subscribers",
		},
	)

	watchSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsystem,
			Name:      "watch_sessions",
			Help:      "Currently connected watch streams",
		},
	)

	snapshotSavesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinatorSubsystem,
			Name:      "snapshot_saves_total",
			Help:      "Snapshot persistence attempts by outcome",
		},
		[]string{"status"},
	)

	// Register all metrics with the test registry
	reg.MustRegister(
		requestsTotal,
		requestDurationSeconds,
		operationsCreatedTotal,
		stateTransitionsTotal,
		lockFailuresTotal,
		eventsPublishedTotal,
		eventsDroppedTotal,
		watchSessions,
		snapshotSavesTotal,
	)

	return &CoordinatorMetrics{
		RequestsTotal:          requestsTotal,
		RequestDurationSeconds: requestDurationSeconds,
		OperationsCreatedTotal: operationsCreatedTotal,
		StateTransitionsTotal:  stateTransitionsTotal,
		LockFailuresTotal:      lockFailuresTotal,
		EventsPublishedTotal:   eventsPublishedTotal,
		EventsDroppedTotal:     eventsDroppedTotal,
		WatchSessions:          watchSessions,
		SnapshotSavesTotal:     snapshotSavesTotal,
	}
}

// ============================================================================
// InitMetrics Tests
// ============================================================================

func TestInitMetrics(t *testing.T) {
	// Call InitMetrics
	result := InitMetrics()

	// Verify it returns a valid CoordinatorMetrics
	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}

	// Verify DefaultMetrics is set
	if DefaultMetrics == nil {
		t.Fatal("DefaultMetrics should be set after InitMetrics()")
	}

	// Verify DefaultMetrics is the same as the returned value
	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}

	// Repeated calls return the same instance instead of re-registering.
	again := InitMetrics()
	if again != result {
		t.Error("second InitMetrics() call should return the same instance")
	}

	// Verify all fields are set
	if result.RequestsTotal == nil {
		t.Error("RequestsTotal should not be nil")
	}
	if result.RequestDurationSeconds == nil {
		t.Error("RequestDurationSeconds should not be nil")
	}
	if result.OperationsCreatedTotal == nil {
		t.Error("OperationsCreatedTotal should not be nil")
	}
	if result.StateTransitionsTotal == nil {
		t.Error("StateTransitionsTotal should not be nil")
	}
	if result.LockFailuresTotal == nil {
		t.Error("LockFailuresTotal should not be nil")
	}
	if result.EventsPublishedTotal == nil {
		t.Error("EventsPublishedTotal should not be nil")
	}
	if result.EventsDroppedTotal == nil {
		t.Error("EventsDroppedTotal should not be nil")
	}
	if result.WatchSessions == nil {
		t.Error("WatchSessions should not be nil")
	}
	if result.SnapshotSavesTotal == nil {
		t.Error("SnapshotSavesTotal should not be nil")
	}

	// Verify metrics can be used
	result.RecordRequest("POST", "/api/v1/operations", 200, 0.002)
	result.RecordOperationCreated()
	result.RecordTransition("planned", "in_progress")
	result.WatchStarted()
	result.WatchEnded()
}

// ============================================================================
// Constants Tests
// ============================================================================

func TestConstants(t *testing.T) {
	if metricsNamespace != "switchyard" {
		t.Errorf("metricsNamespace = %q, want %q", metricsNamespace, "switchyard")
	}
	if coordinatorSubsystem != "coordinator" {
		t.Errorf("coordinatorSubsystem = %q, want %q", coordinatorSubsystem, "coordinator")
	}
}

// ============================================================================
// CoordinatorMetrics Struct Tests
// ============================================================================

func TestCoordinatorMetrics_Fields(t *testing.T) {
	m := newTestMetrics(t)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal should not be nil")
	}
	if m.RequestDurationSeconds == nil {
		t.Error("RequestDurationSeconds should not be nil")
	}
	if m.OperationsCreatedTotal == nil {
		t.Error("OperationsCreatedTotal should not be nil")
	}
	if m.StateTransitionsTotal == nil {
		t.Error("StateTransitionsTotal should not be nil")
	}
	if m.LockFailuresTotal == nil {
		t.Error("LockFailuresTotal should not be nil")
	}
	if m.EventsPublishedTotal == nil {
		t.Error("EventsPublishedTotal should not be nil")
	}
	if m.EventsDroppedTotal == nil {
		t.Error("EventsDroppedTotal should not be nil")
	}
	if m.WatchSessions == nil {
		t.Error("WatchSessions should not be nil")
	}
	if m.SnapshotSavesTotal == nil {
		t.Error("SnapshotSavesTotal should not be nil")
	}
}

// ============================================================================
// RecordRequest Tests
// ============================================================================

func TestCoordinatorMetrics_RecordRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest("POST", "/api/v1/operations", 200, 0.003)

	val := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/v1/operations", "200"))
	if val != 1 {
		t.Errorf("RequestsTotal[POST,/api/v1/operations,200] = %f, want 1", val)
	}

	count := testutil.CollectAndCount(m.RequestDurationSeconds)
	if count == 0 {
		t.Error("Expected at least one duration metric to be collected")
	}
}

func TestCoordinatorMetrics_RecordRequest_Multiple(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest("POST", "/api/v1/operations", 200, 0.001)
	m.RecordRequest("POST", "/api/v1/operations", 200, 0.002)
	m.RecordRequest("POST", "/api/v1/operations", 423, 0.001)
	m.RecordRequest("GET", "/api/v1/operations", 200, 0.0005)

	okVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/v1/operations", "200"))
	if okVal != 2 {
		t.Errorf("RequestsTotal[POST,200] = %f, want 2", okVal)
	}

	lockedVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/v1/operations", "423"))
	if lockedVal != 1 {
		t.Errorf("RequestsTotal[POST,423] = %f, want 1", lockedVal)
	}

	getVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/v1/operations", "200"))
	if getVal != 1 {
		t.Errorf("RequestsTotal[GET,200] = %f, want 1", getVal)
	}
}

// ============================================================================
// Operation Lifecycle Counter Tests
// ============================================================================

func TestCoordinatorMetrics_RecordOperationCreated(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordOperationCreated()
	m.RecordOperationCreated()

	val := testutil.ToFloat64(m.OperationsCreatedTotal)
	if val != 2 {
		t.Errorf("OperationsCreatedTotal = %f, want 2", val)
	}
}

func TestCoordinatorMetrics_RecordTransition(t *testing.T) {
	m := newTestMetrics(t)

	tests := []struct {
		from string
		to   string
	}{
		{"planned", "in_progress"},
		{"in_progress", "paused"},
		{"paused", "in_progress"},
		{"in_progress", "completed"},
		{"planned", "canceled"},
		{"in_progress", "aborted"},
	}

	for _, tt := range tests {
		m.RecordTransition(tt.from, tt.to)

		val := testutil.ToFloat64(m.StateTransitionsTotal.WithLabelValues(tt.from, tt.to))
		if val != 1 {
			t.Errorf("StateTransitionsTotal[%s,%s] = %f, want 1", tt.from, tt.to, val)
		}
	}
}

func TestCoordinatorMetrics_RecordTransition_Multiple(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordTransition("planned", "in_progress")
	m.RecordTransition("planned", "in_progress")
	m.RecordTransition("planned", "in_progress")

	val := testutil.ToFloat64(m.StateTransitionsTotal.WithLabelValues("planned", "in_progress"))
	if val != 3 {
		t.Errorf("StateTransitionsTotal[planned,in_progress] = %f, want 3", val)
	}
}

func TestCoordinatorMetrics_RecordLockFailure(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordLockFailure("payments-api")
	m.RecordLockFailure("payments-api")
	m.RecordLockFailure("edge-router")

	paymentsVal := testutil.ToFloat64(m.LockFailuresTotal.WithLabelValues("payments-api"))
	if paymentsVal != 2 {
		t.Errorf("LockFailuresTotal[payments-api] = %f, want 2", paymentsVal)
	}

	routerVal := testutil.ToFloat64(m.LockFailuresTotal.WithLabelValues("edge-router"))
	if routerVal != 1 {
		t.Errorf("LockFailuresTotal[edge-router] = %f, want 1", routerVal)
	}
}

// ============================================================================
// Event Fan-Out Tests
// ============================================================================

func TestCoordinatorMetrics_RecordEventPublished(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEventPublished()
	m.RecordEventPublished()
	m.RecordEventPublished()

	val := testutil.ToFloat64(m.EventsPublishedTotal)
	if val != 3 {
		t.Errorf("EventsPublishedTotal = %f, want 3", val)
	}
}

func TestCoordinatorMetrics_RecordEventDropped(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEventDropped()

	val := testutil.ToFloat64(m.EventsDroppedTotal)
	if val != 1 {
		t.Errorf("EventsDroppedTotal = %f, want 1", val)
	}
}

// ============================================================================
// WatchStarted/WatchEnded Tests
// ============================================================================

func TestCoordinatorMetrics_WatchLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.WatchStarted()
	m.WatchStarted()
	m.WatchStarted()

	val := testutil.ToFloat64(m.WatchSessions)
	if val != 3 {
		t.Errorf("After 3 starts: WatchSessions = %f, want 3", val)
	}

	m.WatchEnded()

	val = testutil.ToFloat64(m.WatchSessions)
	if val != 2 {
		t.Errorf("After 1 end: WatchSessions = %f, want 2", val)
	}

	m.WatchEnded()
	m.WatchEnded()

	val = testutil.ToFloat64(m.WatchSessions)
	if val != 0 {
		t.Errorf("After all ends: WatchSessions = %f, want 0", val)
	}
}

// ============================================================================
// RecordSnapshotSave Tests
// ============================================================================

func TestCoordinatorMetrics_RecordSnapshotSave(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSnapshotSave(nil)
	m.RecordSnapshotSave(nil)
	m.RecordSnapshotSave(errors.New("disk full"))

	successVal := testutil.ToFloat64(m.SnapshotSavesTotal.WithLabelValues("success"))
	if successVal != 2 {
		t.Errorf("SnapshotSavesTotal[success] = %f, want 2", successVal)
	}

	errorVal := testutil.ToFloat64(m.SnapshotSavesTotal.WithLabelValues("error"))
	if errorVal != 1 {
		t.Errorf("SnapshotSavesTotal[error] = %f, want 1", errorVal)
	}
}

// ============================================================================
// Integration / Scenario Tests
// ============================================================================

func TestCoordinatorMetrics_OperationLifecycleScenario(t *testing.T) {
	m := newTestMetrics(t)

	// Simulate a complete operation: create, start, pause, resume, finish.
	m.RecordOperationCreated()
	m.RecordRequest("POST", "/api/v1/operations", 200, 0.002)

	m.RecordTransition("planned", "in_progress")
	m.RecordTransition("in_progress", "paused")
	m.RecordTransition("paused", "in_progress")
	m.RecordTransition("in_progress", "completed")

	for i := 0; i < 4; i++ {
		m.RecordEventPublished()
		m.RecordRequest("PATCH", "/api/v1/operations/:id", 200, 0.001)
	}

	createdVal := testutil.ToFloat64(m.OperationsCreatedTotal)
	if createdVal != 1 {
		t.Errorf("OperationsCreatedTotal = %f, want 1", createdVal)
	}

	publishedVal := testutil.ToFloat64(m.EventsPublishedTotal)
	if publishedVal != 4 {
		t.Errorf("EventsPublishedTotal = %f, want 4", publishedVal)
	}

	completedVal := testutil.ToFloat64(m.StateTransitionsTotal.WithLabelValues("in_progress", "completed"))
	if completedVal != 1 {
		t.Errorf("StateTransitionsTotal[in_progress,completed] = %f, want 1", completedVal)
	}
}

func TestCoordinatorMetrics_ContestedLockScenario(t *testing.T) {
	m := newTestMetrics(t)

	// Two operations race for the same component; one start is rejected.
	m.RecordTransition("planned", "in_progress")
	m.RecordLockFailure("billing-db")
	m.RecordRequest("PATCH", "/api/v1/operations/:id", 423, 0.001)

	failVal := testutil.ToFloat64(m.LockFailuresTotal.WithLabelValues("billing-db"))
	if failVal != 1 {
		t.Errorf("LockFailuresTotal[billing-db] = %f, want 1", failVal)
	}

	lockedVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("PATCH", "/api/v1/operations/:id", "423"))
	if lockedVal != 1 {
		t.Errorf("RequestsTotal[423] = %f, want 1", lockedVal)
	}
}

// ============================================================================
// Concurrent Safety Tests
// ============================================================================

func TestCoordinatorMetrics_ConcurrentSafety(t *testing.T) {
	m := newTestMetrics(t)

	done := make(chan bool, 100)

	// Run multiple goroutines performing various metric operations
	for i := 0; i < 20; i++ {
		go func() {
			m.RecordRequest("POST", "/api/v1/operations", 200, 0.001)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordTransition("planned", "in_progress")
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordOperationCreated()
			m.RecordEventPublished()
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.WatchStarted()
			m.WatchEnded()
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordLockFailure("shared-cache")
			m.RecordEventDropped()
			m.RecordSnapshotSave(nil)
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 100; i++ {
		<-done
	}

	// Verify expected values
	requestsVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/v1/operations", "200"))
	if requestsVal != 20 {
		t.Errorf("RequestsTotal[POST,200] = %f, want 20", requestsVal)
	}

	transitionsVal := testutil.ToFloat64(m.StateTransitionsTotal.WithLabelValues("planned", "in_progress"))
	if transitionsVal != 20 {
		t.Errorf("StateTransitionsTotal[planned,in_progress] = %f, want 20", transitionsVal)
	}

	createdVal := testutil.ToFloat64(m.OperationsCreatedTotal)
	if createdVal != 20 {
		t.Errorf("OperationsCreatedTotal = %f, want 20", createdVal)
	}

	sessionsVal := testutil.ToFloat64(m.WatchSessions)
	if sessionsVal != 0 {
		t.Errorf("WatchSessions = %f, want 0", sessionsVal)
	}
}
