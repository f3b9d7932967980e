// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/switchyard/pkg/extensions"
)

// --- Mocks ---

type mockPointWriter struct {
	points  []*write.Point
	flushes int
	errCh   chan error
}

func (m *mockPointWriter) WritePoint(point *write.Point) {
	m.points = append(m.points, point)
}

func (m *mockPointWriter) Flush() {
	m.flushes++
}

func (m *mockPointWriter) Errors() <-chan error {
	if m.errCh == nil {
		m.errCh = make(chan error)
	}
	return m.errCh
}

type mockQuerier struct {
	lastQuery string
	err       error
}

func (m *mockQuerier) Query(ctx context.Context, q string) (*api.QueryTableResult, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return nil, nil
}

// --- Fixtures ---

func newTestLogger() (*InfluxAuditLogger, *mockPointWriter, *mockQuerier) {
	writer := &mockPointWriter{}
	querier := &mockQuerier{}

	logger := &InfluxAuditLogger{
		writeAPI:    writer,
		queryAPI:    querier,
		bucket:      "audit",
		measurement: DefaultMeasurement,
		service:     "coordinator",
	}

	return logger, writer, querier
}

func tagValue(p *write.Point, key string) string {
	for _, tag := range p.TagList() {
		if tag.Key == key {
			return tag.Value
		}
	}
	return ""
}

func fieldByKey(p *write.Point, key string) interface{} {
	for _, field := range p.FieldList() {
		if field.Key == key {
			return field.Value
		}
	}
	return nil
}

// --- Log Tests ---

func TestLog_WritesPoint(t *testing.T) {
	logger, writer, _ := newTestLogger()

	savedAt := time.Date(2025, 11, 14, 9, 30, 0, 0, time.UTC)
	err := logger.Log(context.Background(), extensions.AuditEvent{
		EventType:    "operation.transition",
		Timestamp:    savedAt,
		UserID:       "casey",
		Action:       "update",
		ResourceType: "operation",
		ResourceID:   "1234",
		Outcome:      "success",
		Metadata: map[string]any{
			"from": "planned",
			"to":   "in_progress",
		},
	})
	if err != nil {
		t.Fatalf("Log returned error: %v", err)
	}

	if len(writer.points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(writer.points))
	}
	p := writer.points[0]

	if p.Name() != "audit_events" {
		t.Errorf("expected measurement audit_events, got %s", p.Name())
	}
	if !p.Time().Equal(savedAt) {
		t.Errorf("expected timestamp %v, got %v", savedAt, p.Time())
	}

	wantTags := map[string]string{
		"event_type":    "operation.transition",
		"user_id":       "casey",
		"resource_type": "operation",
		"outcome":       "success",
		"service":       "coordinator",
	}
	for key, want := range wantTags {
		if got := tagValue(p, key); got != want {
			t.Errorf("tag %s: expected %q, got %q", key, want, got)
		}
	}

	if got := fieldByKey(p, "action"); got != "update" {
		t.Errorf("field action: expected update, got %v", got)
	}
	if got := fieldByKey(p, "resource_id"); got != "1234" {
		t.Errorf("field resource_id: expected 1234, got %v", got)
	}
	if got := fieldByKey(p, "meta_from"); got != "planned" {
		t.Errorf("field meta_from: expected planned, got %v", got)
	}
	if got := fieldByKey(p, "meta_to"); got != "in_progress" {
		t.Errorf("field meta_to: expected in_progress, got %v", got)
	}
}

func TestLog_RequiresEventType(t *testing.T) {
	logger, writer, _ := newTestLogger()

	err := logger.Log(context.Background(), extensions.AuditEvent{UserID: "casey"})
	if err == nil {
		t.Fatal("expected error for missing event type")
	}
	if len(writer.points) != 0 {
		t.Errorf("expected no points written, got %d", len(writer.points))
	}
}

func TestLog_DefaultsUserAndTimestamp(t *testing.T) {
	logger, writer, _ := newTestLogger()

	before := time.Now().UTC()
	err := logger.Log(context.Background(), extensions.AuditEvent{
		EventType: "system.start",
	})
	if err != nil {
		t.Fatalf("Log returned error: %v", err)
	}

	p := writer.points[0]
	if got := tagValue(p, "user_id"); got != "anonymous" {
		t.Errorf("expected anonymous user, got %q", got)
	}
	if p.Time().Before(before) {
		t.Errorf("expected timestamp to be set, got %v", p.Time())
	}
}

func TestLog_ContextCancelled(t *testing.T) {
	logger, writer, _ := newTestLogger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := logger.Log(ctx, extensions.AuditEvent{EventType: "auth.issue"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(writer.points) != 0 {
		t.Errorf("expected no points written, got %d", len(writer.points))
	}
}

func TestLog_MetadataCoercion(t *testing.T) {
	logger, writer, _ := newTestLogger()

	err := logger.Log(context.Background(), extensions.AuditEvent{
		EventType: "operation.create",
		UserID:    "casey",
		Metadata: map[string]any{
			"count":      3,
			"components": []string{"db", "gateway"},
		},
	})
	if err != nil {
		t.Fatalf("Log returned error: %v", err)
	}

	p := writer.points[0]
	// The point converts ints to int64
	if got := fieldByKey(p, "meta_count"); got != int64(3) {
		t.Errorf("field meta_count: expected int64(3), got %v (%T)", got, got)
	}
	if got := fieldByKey(p, "meta_components"); got != "[db gateway]" {
		t.Errorf("field meta_components: expected stringified slice, got %v", got)
	}
}

// --- Query Tests ---

func TestBuildFluxQuery_Defaults(t *testing.T) {
	logger, _, _ := newTestLogger()

	flux := logger.buildFluxQuery(extensions.AuditFilter{})

	for _, want := range []string{
		`from(bucket: "audit")`,
		`range(start: 1970-01-01T00:00:00Z)`,
		`r._measurement == "audit_events"`,
		`pivot(rowKey: ["_time"]`,
		`sort(columns: ["_time"], desc: true)`,
		`limit(n: 100, offset: 0)`,
	} {
		if !strings.Contains(flux, want) {
			t.Errorf("expected query to contain %q, got:\n%s", want, flux)
		}
	}
}

func TestBuildFluxQuery_FullFilter(t *testing.T) {
	logger, _, _ := newTestLogger()

	flux := logger.buildFluxQuery(extensions.AuditFilter{
		EventTypes:   []string{"auth.issue", "auth.failed"},
		UserID:       "casey",
		StartTime:    time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC),
		ResourceType: "operation",
		ResourceID:   "1234",
		Outcome:      "failure",
		Limit:        25,
		Offset:       50,
	})

	for _, want := range []string{
		`range(start: 2025-11-14T00:00:00Z, stop: 2025-11-15T00:00:00Z)`,
		`r.event_type == "auth.issue" or r.event_type == "auth.failed"`,
		`r.user_id == "casey"`,
		`r.resource_type == "operation"`,
		`r.outcome == "failure"`,
		`r.resource_id == "1234"`,
		`limit(n: 25, offset: 50)`,
	} {
		if !strings.Contains(flux, want) {
			t.Errorf("expected query to contain %q, got:\n%s", want, flux)
		}
	}

	// Field filters must come after the pivot, tag filters before
	pivotAt := strings.Index(flux, "pivot(")
	resourceIDAt := strings.Index(flux, `r.resource_id`)
	userIDAt := strings.Index(flux, `r.user_id`)
	if resourceIDAt < pivotAt {
		t.Error("resource_id filter should follow the pivot")
	}
	if userIDAt > pivotAt {
		t.Error("user_id filter should precede the pivot")
	}
}

func TestQuery_PropagatesError(t *testing.T) {
	logger, _, querier := newTestLogger()
	querier.err = errors.New("connection refused")

	_, err := logger.Query(context.Background(), extensions.AuditFilter{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestQuery_EmptyResult(t *testing.T) {
	logger, _, querier := newTestLogger()

	events, err := logger.Query(context.Background(), extensions.AuditFilter{UserID: "casey"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
	if !strings.Contains(querier.lastQuery, `r.user_id == "casey"`) {
		t.Errorf("expected filter in query, got:\n%s", querier.lastQuery)
	}
}

// --- Flush Tests ---

func TestFlush(t *testing.T) {
	logger, writer, _ := newTestLogger()

	if err := logger.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if writer.flushes != 1 {
		t.Errorf("expected 1 flush, got %d", writer.flushes)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := logger.Flush(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- Config Tests ---

func TestNewInfluxAuditLogger_Validation(t *testing.T) {
	cases := []struct {
		name string
		cfg  InfluxConfig
	}{
		{"missing url", InfluxConfig{Org: "aleutian", Bucket: "audit"}},
		{"missing org", InfluxConfig{URL: "http://localhost:8086", Bucket: "audit"}},
		{"missing bucket", InfluxConfig{URL: "http://localhost:8086", Org: "aleutian"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewInfluxAuditLogger(tc.cfg); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestFieldValue(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"string", "db", "db"},
		{"bool", true, true},
		{"int", 42, 42},
		{"float", 1.5, 1.5},
		{"slice", []string{"a", "b"}, "[a b]"},
		{"map", map[string]int{"a": 1}, "map[a:1]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fieldValue(tc.in); got != tc.want {
				t.Errorf("fieldValue(%v): expected %v, got %v", tc.in, tc.want, got)
			}
		})
	}
}
