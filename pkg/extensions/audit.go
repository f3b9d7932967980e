// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent is one security- or change-relevant action recorded by
// the coordinator.
//
// EventType namespaces events as "category.action" so sinks can filter
// and alert without parsing:
//
//   - "auth.issue", "auth.failed"
//   - "component.create", "tag.create"
//   - "operation.create", "operation.update", "operation.transition"
//   - "subscription.create"
//   - "system.start", "system.stop", "snapshot.save", "snapshot.restore"
//
// Transition events carry the old and new status under the "from" and
// "to" metadata keys, which is what an after-incident review actually
// wants: who moved operation 1234 into in_progress and when.
type AuditEvent struct {
	// EventType is the "category.action" name listed above.
	EventType string

	// Timestamp in UTC. Sinks fill in time.Now().UTC() when zero.
	Timestamp time.Time

	// UserID is the authenticated username behind the action, or
	// "system" for the coordinator's own lifecycle events.
	UserID string

	// Action is the verb: "create", "update", "subscribe", "issue".
	Action string

	// ResourceType and ResourceID name the touched resource, e.g.
	// "operation" / "1234" or "component" / "payments-db".
	ResourceType string
	ResourceID   string

	// Outcome is "success", "failure", "blocked", or "error".
	// Blocked covers the coordination refusals: lock conflicts and
	// unmet dependencies.
	Outcome string

	// Metadata carries event-specific detail. Established keys:
	// "from"/"to" on transitions, "error" on failures, "components"
	// for the affected component list.
	Metadata map[string]any
}

// AuditFilter narrows a Query. Zero fields mean no constraint; set
// fields combine with AND.
type AuditFilter struct {
	// EventTypes limits results to these event types.
	EventTypes []string

	// UserID limits results to one user's actions.
	UserID string

	// StartTime (inclusive) and EndTime (exclusive) bound the window.
	StartTime time.Time
	EndTime   time.Time

	// ResourceType and ResourceID limit results to one resource.
	ResourceType string
	ResourceID   string

	// Outcome limits results to one outcome.
	Outcome string

	// Limit caps the result count; zero leaves it to the sink.
	Limit int

	// Offset skips results for pagination.
	Offset int
}

// AuditLogger persists audit events.
//
// The coordinator calls Log on its write path after each committed
// change, so implementations must be concurrency-safe and must not
// block on the network; buffer and ship asynchronously. Flush drains
// any buffer and runs once during shutdown.
//
// The open source build wires the InfluxDB-backed logger from the
// coordinator's audit package when INFLUX_URL is configured and
// NopAuditLogger otherwise. Enterprise builds substitute their SIEM
// integration through ServiceOptions.
type AuditLogger interface {
	// Log records one event. Implementations stamp a zero Timestamp.
	Log(ctx context.Context, event AuditEvent) error

	// Query returns matching events, newest first. Write-only sinks
	// return an explanatory error instead.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush persists buffered events. Called before shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards everything. It is the default when no audit
// backend is configured.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Query returns no events.
func (l *NopAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

// Flush is a no-op.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

var _ AuditLogger = (*NopAuditLogger)(nil)
