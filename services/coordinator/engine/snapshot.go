// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// ErrIncompatibleSnapshot is returned when a snapshot's version has a
// different major version than this engine writes.
var ErrIncompatibleSnapshot = errors.New("incompatible snapshot version")

// Snapshot deep-copies the full entity graph. The lock table is not
// serialized; Restore re-derives it from operation statuses.
func (e *Engine) Snapshot() datatypes.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := datatypes.Snapshot{
		Version:    datatypes.SnapshotVersion,
		SavedAt:    time.Now().UTC(),
		NextID:     e.nextID,
		Users:      make(map[string]datatypes.User, len(e.users)),
		Components: make(map[string]datatypes.Component, len(e.components)),
		Tags:       make(map[string]datatypes.Tag, len(e.tags)),
		Operations: make(map[uint64]datatypes.Operation, len(e.operations)),
	}
	for name, u := range e.users {
		snap.Users[name] = datatypes.User{Name: u.Name, Subscriptions: u.Subscriptions.Clone()}
	}
	for name, c := range e.components {
		cp := *c
		cp.Owners = append([]string{}, c.Owners...)
		snap.Components[name] = cp
	}
	for name, t := range e.tags {
		snap.Tags[name] = *t
	}
	for id, op := range e.operations {
		snap.Operations[id] = op.Clone()
	}
	return snap
}

// Restore replaces the engine's state with the snapshot's and rebuilds
// the lock table from live operations. An empty snapshot version is
// treated as the first format version.
func (e *Engine) Restore(snap datatypes.Snapshot) error {
	version := strings.TrimSpace(snap.Version)
	if version == "" {
		version = "v1"
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) || semver.Major(version) != semver.Major(datatypes.SnapshotVersion) {
		return fmt.Errorf("%w: got %q, want major %s", ErrIncompatibleSnapshot, snap.Version, semver.Major(datatypes.SnapshotVersion))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.users = make(map[string]*datatypes.User, len(snap.Users))
	for name, u := range snap.Users {
		subs := u.Subscriptions
		if subs.Operations == nil && subs.Components == nil && subs.Tags == nil {
			subs = datatypes.NewSubscriptionSet()
		}
		e.users[name] = &datatypes.User{Name: u.Name, Subscriptions: subs.Clone()}
	}
	e.components = make(map[string]*datatypes.Component, len(snap.Components))
	for name, c := range snap.Components {
		cp := c
		cp.Owners = append([]string{}, c.Owners...)
		e.components[name] = &cp
	}
	e.tags = make(map[string]*datatypes.Tag, len(snap.Tags))
	for name, t := range snap.Tags {
		tp := t
		e.tags[name] = &tp
	}
	e.operations = make(map[uint64]*datatypes.Operation, len(snap.Operations))
	for id, op := range snap.Operations {
		cp := op.Clone()
		e.operations[id] = &cp
	}

	e.nextID = FirstOperationID
	if snap.NextID > e.nextID {
		e.nextID = snap.NextID
	}
	for id := range e.operations {
		if id >= e.nextID {
			e.nextID = id + 1
		}
	}

	e.rebuildLocksLocked()
	return nil
}

// rebuildLocksLocked derives the lock table from scratch out of the
// restored operations. Lower ids win on conflict; a component that
// cannot be acquired is logged and skipped rather than failing the
// restore, since older stores may predate runtime lock enforcement.
func (e *Engine) rebuildLocksLocked() {
	e.locks = NewLockTable()

	ids := make([]uint64, 0, len(e.operations))
	for id, op := range e.operations {
		if op.Status.HoldsLocks() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		op := e.operations[id]
		desired := e.desiredLocksLocked(op)
		names := make([]string, 0, len(desired))
		for name := range desired {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, component := range names {
			if err := e.locks.Acquire(component, desired[component], id); err != nil {
				slog.Warn("skipping conflicting lock during restore",
					"operation_id", id,
					"component", component,
					"mode", string(desired[component]),
					"error", err)
			}
		}
	}
}
