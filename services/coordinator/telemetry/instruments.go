// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Instruments contains pre-defined OTel instruments for the coordinator's
// persistence path.
//
// Description:
//
//	Covers snapshot save latency and payload size. Request-level metrics
//	live in the observability package on native Prometheus counters;
//	these instruments flow through whichever metric exporter Init
//	configured, which in the default setup is the same /metrics endpoint.
//
// Thread Safety: Safe for concurrent use after creation.
type Instruments struct {
	// SnapshotSaveDuration records snapshot save latency in seconds.
	SnapshotSaveDuration metric.Float64Histogram

	// SnapshotSizeBytes records serialized snapshot payload sizes.
	SnapshotSizeBytes metric.Int64Histogram
}

// NewInstruments creates the coordinator's OTel instruments on the meter.
//
// Example:
//
//	inst, err := telemetry.NewInstruments(otel.Meter("coordinator"))
//	if err != nil {
//	    return fmt.Errorf("create instruments: %w", err)
//	}
//	inst.RecordSnapshotSave(ctx, elapsed.Seconds(), size)
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	inst := &Instruments{}
	var err error

	inst.SnapshotSaveDuration, err = meter.Float64Histogram(
		"switchyard_snapshot_save_duration_seconds",
		metric.WithDescription("Snapshot save latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create snapshot_save_duration: %w", err)
	}

	inst.SnapshotSizeBytes, err = meter.Int64Histogram(
		"switchyard_snapshot_size_bytes",
		metric.WithDescription("Serialized snapshot payload size"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create snapshot_size_bytes: %w", err)
	}

	return inst, nil
}

// RecordSnapshotSave records one snapshot save.
func (i *Instruments) RecordSnapshotSave(ctx context.Context, seconds float64, sizeBytes int64) {
	i.SnapshotSaveDuration.Record(ctx, seconds)
	i.SnapshotSizeBytes.Record(ctx, sizeBytes)
}
