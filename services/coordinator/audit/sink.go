// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// DefaultStatusMeasurement is the measurement operation lifecycle
// points are written to.
const DefaultStatusMeasurement = "operation_status"

// StatusSink drains the engine's broadcast bus into a time series, one
// point per operation event. The coordinator runs one sink alongside
// the watch sessions so lifecycle history survives restarts and can be
// graphed next to the audit trail.
type StatusSink struct {
	writer      pointWriter
	measurement string
	service     string
}

// NewStatusSink builds a sink sharing the audit logger's write path,
// so both land in the same bucket over one batching connection.
func NewStatusSink(logger *InfluxAuditLogger) *StatusSink {
	return &StatusSink{
		writer:      logger.writeAPI,
		measurement: DefaultStatusMeasurement,
		service:     logger.service,
	}
}

// Run consumes events until the channel closes. It is meant to be
// called in its own goroutine with the channel of a bus subscriber
// owned by the sink.
func (s *StatusSink) Run(events <-chan datatypes.Operation) {
	for op := range events {
		s.record(op)
	}
	slog.Debug("status sink drained", "measurement", s.measurement)
}

func (s *StatusSink) record(op datatypes.Operation) {
	point := influxdb2.NewPoint(
		s.measurement,
		map[string]string{
			"status":  string(op.Status),
			"service": s.service,
		},
		map[string]interface{}{
			"id":    int64(op.ID),
			"title": op.Title,
		},
		time.Now().UTC(),
	)
	s.writer.WritePoint(point)
}
