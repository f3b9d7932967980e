// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit provides a time-series backed audit logger for the
// coordinator. Events are written to InfluxDB as points tagged by
// event type, user, and outcome, so operators can chart who changed
// what and alert on failure spikes.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/switchyard/pkg/extensions"
)

const (
	// DefaultMeasurement is the InfluxDB measurement audit events are
	// written under.
	DefaultMeasurement = "audit_events"

	// DefaultQueryLimit bounds Query results when the filter does not
	// set a limit.
	DefaultQueryLimit = 100

	// metadataFieldPrefix marks point fields that carry event metadata.
	metadataFieldPrefix = "meta_"
)

// pointWriter is the slice of the influx write API the logger uses.
// The non-blocking API buffers points and flushes in the background,
// so Log never stalls the coordinator's write path.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
	Errors() <-chan error
}

// fluxQuerier is the slice of the influx query API the logger uses.
type fluxQuerier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// InfluxConfig holds connection settings for the audit logger.
type InfluxConfig struct {
	// URL is the InfluxDB server URL (e.g. http://localhost:8086).
	URL string

	// Token authenticates against the server.
	Token string

	// Org is the InfluxDB organization.
	Org string

	// Bucket receives the audit events.
	Bucket string

	// Measurement overrides DefaultMeasurement when set.
	Measurement string

	// Service names this coordinator instance in the service tag, so
	// several coordinators can share one bucket. Defaults to
	// "coordinator".
	Service string
}

// InfluxAuditLogger records audit events in InfluxDB.
//
// Writes are asynchronous: Log enqueues a point and returns, the
// client's background writer batches and sends. Failed batches are
// logged and dropped. Call Flush before shutdown to push buffered
// events, and Close to release the client.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type InfluxAuditLogger struct {
	client      influxdb2.Client
	writeAPI    pointWriter
	queryAPI    fluxQuerier
	bucket      string
	measurement string
	service     string
}

var _ extensions.AuditLogger = (*InfluxAuditLogger)(nil)

// NewInfluxAuditLogger connects to InfluxDB with the given settings.
func NewInfluxAuditLogger(cfg InfluxConfig) (*InfluxAuditLogger, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx url is required")
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx org and bucket are required")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	if cfg.Service == "" {
		cfg.Service = "coordinator"
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	l := &InfluxAuditLogger{
		client:      client,
		writeAPI:    client.WriteAPI(cfg.Org, cfg.Bucket),
		queryAPI:    client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
		service:     cfg.Service,
	}

	go l.drainWriteErrors()

	return l, nil
}

// drainWriteErrors logs failed batch writes. The channel closes when
// the client is closed, which ends the goroutine.
func (l *InfluxAuditLogger) drainWriteErrors() {
	for err := range l.writeAPI.Errors() {
		slog.Warn("audit event write failed", "error", err)
	}
}

// Log enqueues an audit event for asynchronous delivery.
func (l *InfluxAuditLogger) Log(ctx context.Context, event extensions.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.EventType == "" {
		return errors.New("audit event type is required")
	}
	if event.UserID == "" {
		event.UserID = "anonymous"
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	tags := map[string]string{
		"event_type": event.EventType,
		"user_id":    event.UserID,
		"service":    l.service,
	}
	if event.ResourceType != "" {
		tags["resource_type"] = event.ResourceType
	}
	if event.Outcome != "" {
		tags["outcome"] = event.Outcome
	}

	// resource_id stays a field, ids are unbounded
	fields := map[string]interface{}{
		"action":      event.Action,
		"resource_id": event.ResourceID,
	}
	for k, v := range event.Metadata {
		fields[metadataFieldPrefix+k] = fieldValue(v)
	}

	l.writeAPI.WritePoint(influxdb2.NewPoint(l.measurement, tags, fields, event.Timestamp))

	return nil
}

// fieldValue coerces metadata values into types influx accepts.
func fieldValue(v any) any {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Query retrieves stored audit events matching the filter, newest
// first.
func (l *InfluxAuditLogger) Query(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	result, err := l.queryAPI.Query(ctx, l.buildFluxQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}

	var events []extensions.AuditEvent
	for result != nil && result.Next() {
		events = append(events, eventFromRecord(result.Record()))
	}
	if result != nil && result.Err() != nil {
		return nil, fmt.Errorf("read audit query results: %w", result.Err())
	}

	return events, nil
}

// buildFluxQuery translates an AuditFilter into a Flux pipeline. Tag
// filters run before the pivot, field filters after it.
func (l *InfluxAuditLogger) buildFluxQuery(filter extensions.AuditFilter) string {
	var b strings.Builder

	start := "1970-01-01T00:00:00Z"
	if !filter.StartTime.IsZero() {
		start = filter.StartTime.UTC().Format(time.RFC3339)
	}
	if filter.EndTime.IsZero() {
		fmt.Fprintf(&b, "from(bucket: %q)\n  |> range(start: %s)\n", l.bucket, start)
	} else {
		fmt.Fprintf(&b, "from(bucket: %q)\n  |> range(start: %s, stop: %s)\n",
			l.bucket, start, filter.EndTime.UTC().Format(time.RFC3339))
	}

	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %q)\n", l.measurement)

	if len(filter.EventTypes) > 0 {
		clauses := make([]string, 0, len(filter.EventTypes))
		for _, et := range filter.EventTypes {
			clauses = append(clauses, fmt.Sprintf("r.event_type == %q", et))
		}
		fmt.Fprintf(&b, "  |> filter(fn: (r) => %s)\n", strings.Join(clauses, " or "))
	}
	if filter.UserID != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.user_id == %q)\n", filter.UserID)
	}
	if filter.ResourceType != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.resource_type == %q)\n", filter.ResourceType)
	}
	if filter.Outcome != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.outcome == %q)\n", filter.Outcome)
	}

	b.WriteString("  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n")

	if filter.ResourceID != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.resource_id == %q)\n", filter.ResourceID)
	}

	b.WriteString("  |> sort(columns: [\"_time\"], desc: true)\n")

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	fmt.Fprintf(&b, "  |> limit(n: %d, offset: %d)\n", limit, filter.Offset)

	return b.String()
}

// eventFromRecord rebuilds an AuditEvent from a pivoted flux record.
func eventFromRecord(rec *query.FluxRecord) extensions.AuditEvent {
	event := extensions.AuditEvent{
		EventType:    stringColumn(rec, "event_type"),
		Timestamp:    rec.Time(),
		UserID:       stringColumn(rec, "user_id"),
		Action:       stringColumn(rec, "action"),
		ResourceType: stringColumn(rec, "resource_type"),
		ResourceID:   stringColumn(rec, "resource_id"),
		Outcome:      stringColumn(rec, "outcome"),
	}

	for key, value := range rec.Values() {
		if !strings.HasPrefix(key, metadataFieldPrefix) {
			continue
		}
		if event.Metadata == nil {
			event.Metadata = make(map[string]any)
		}
		event.Metadata[strings.TrimPrefix(key, metadataFieldPrefix)] = value
	}

	return event
}

func stringColumn(rec *query.FluxRecord, key string) string {
	if s, ok := rec.ValueByKey(key).(string); ok {
		return s
	}
	return ""
}

// Flush pushes buffered events to the server.
func (l *InfluxAuditLogger) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.writeAPI.Flush()
	return nil
}

// Close flushes buffered events and releases the client. The logger
// must not be used afterwards.
func (l *InfluxAuditLogger) Close() {
	l.writeAPI.Flush()
	l.client.Close()
}
