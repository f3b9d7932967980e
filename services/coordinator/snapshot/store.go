// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package snapshot persists the coordinator's entity graph.
//
// The engine serializes its full state (users, components, tags,
// operations, next id) into a single snapshot value; this package owns
// where that value lives between process runs. The lock table is never
// persisted, it is derived from operation status on restore.
//
// Three stores are provided:
//
//   - FileStore: one JSON file, written atomically via temp file and
//     rename. The default for single-node deployments; the file is
//     greppable and restorable by hand.
//   - BadgerStore: embedded key-value storage for hosts where the
//     snapshot should live alongside other durable state. In-memory
//     mode backs tests.
//   - GCSMirror: decorator that keeps timestamped copies of every save
//     in a Cloud Storage bucket with retention pruning, for disaster
//     recovery beyond the host.
//
// All stores serialize whole snapshots; there is no partial update. A
// coordinator saves on a timer and once more on shutdown, so the
// snapshot on disk is at most one interval behind the live state.
package snapshot

import (
	"context"
	"errors"

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
// Callers treat it as "start empty", not as a failure.
var ErrNoSnapshot = errors.New("no snapshot has been saved yet")

// Store persists and recovers engine snapshots.
//
// Implementations must be safe for concurrent use; the coordinator
// calls Save from its persistence loop while handlers may trigger
// an extra save on demand.
type Store interface {
	// Save persists the snapshot, replacing any previous one.
	Save(ctx context.Context, snap datatypes.Snapshot) error

	// Load returns the most recently saved snapshot, or ErrNoSnapshot.
	Load(ctx context.Context) (datatypes.Snapshot, error)

	// Close releases resources. The store is unusable afterwards.
	Close() error
}
