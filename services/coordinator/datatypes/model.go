// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the entity model and wire types for the
// coordinator service: users, components, tags, operations, the
// operation lifecycle states, subscription sets, and the snapshot form
// the whole graph serializes to.
package datatypes

import (
	"fmt"
	"time"
)

// OperationState is the lifecycle status of an Operation. The wire
// form is snake_case.
type OperationState string

const (
	StatePlanned    OperationState = "planned"
	StateInProgress OperationState = "in_progress"
	StatePaused     OperationState = "paused"
	StateCompleted  OperationState = "completed"
	StateAborted    OperationState = "aborted"
	StateCanceled   OperationState = "canceled"
)

// AllOperationStates lists every state, in lifecycle order.
var AllOperationStates = []OperationState{
	StatePlanned,
	StateInProgress,
	StatePaused,
	StateCompleted,
	StateAborted,
	StateCanceled,
}

// ParseOperationState converts a wire string into an OperationState.
func ParseOperationState(s string) (OperationState, error) {
	switch OperationState(s) {
	case StatePlanned, StateInProgress, StatePaused, StateCompleted, StateAborted, StateCanceled:
		return OperationState(s), nil
	}
	return "", fmt.Errorf("unknown operation status: %q", s)
}

// CanTransitionTo reports whether the state machine allows moving from
// s to next. A self-transition is always legal.
func (s OperationState) CanTransitionTo(next OperationState) bool {
	if s == next {
		return true
	}
	switch s {
	case StatePlanned:
		return next == StateInProgress || next == StateCanceled
	case StatePaused:
		return next == StateInProgress
	case StateInProgress:
		return next == StatePaused || next == StateCompleted || next == StateAborted
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OperationState) IsTerminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateCanceled
}

// HoldsLocks reports whether an operation in this state keeps its
// component locks. Paused operations retain locks until they finish.
func (s OperationState) HoldsLocks() bool {
	return s == StateInProgress || s == StatePaused
}

// User is an operator identity. Users are created on first
// authentication and never deleted.
type User struct {
	Name          string          `json:"name"`
	Subscriptions SubscriptionSet `json:"subscriptions"`
}

// Component is a named shared resource operations act on.
type Component struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owners      []string `json:"owners"`
}

// Tag is a free-form label operations can carry.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Operation is a tracked unit of change work.
//
// Invariants maintained by the engine: Locks is always a subset of
// Components; all list fields are trimmed, sorted, and deduplicated;
// referenced components, tags, operations, and users exist.
type Operation struct {
	ID          uint64            `json:"id"`
	Title       string            `json:"title"`
	Purpose     string            `json:"purpose"`
	URL         string            `json:"url"`
	Components  []string          `json:"components"`
	Locks       []string          `json:"locks"`
	Tags        []string          `json:"tags"`
	DependsOn   []uint64          `json:"depends_on"`
	Operators   []string          `json:"operators"`
	Status      OperationState    `json:"status"`
	Annotations map[string]string `json:"annotations"`
}

// Clone returns a deep copy so callers can hand Operations across
// goroutine boundaries without sharing slices with the store.
func (o *Operation) Clone() Operation {
	out := *o
	out.Components = append([]string(nil), o.Components...)
	out.Locks = append([]string(nil), o.Locks...)
	out.Tags = append([]string(nil), o.Tags...)
	out.DependsOn = append([]uint64(nil), o.DependsOn...)
	out.Operators = append([]string(nil), o.Operators...)
	out.Annotations = make(map[string]string, len(o.Annotations))
	for k, v := range o.Annotations {
		out.Annotations[k] = v
	}
	return out
}

// SubscriptionSet records a user's standing interests. The three sets
// are kept sorted so listings are deterministic.
type SubscriptionSet struct {
	Operations []uint64 `json:"operations"`
	Components []string `json:"components"`
	Tags       []string `json:"tags"`
}

// NewSubscriptionSet returns an empty set with non-nil members so the
// wire form is [] rather than null.
func NewSubscriptionSet() SubscriptionSet {
	return SubscriptionSet{
		Operations: []uint64{},
		Components: []string{},
		Tags:       []string{},
	}
}

// AddOperation inserts an operation id, keeping order. Re-adding is a
// no-op.
func (s *SubscriptionSet) AddOperation(id uint64) {
	s.Operations = insertUint64(s.Operations, id)
}

// AddComponent inserts a component name, keeping order.
func (s *SubscriptionSet) AddComponent(name string) {
	s.Components = insertString(s.Components, name)
}

// AddTag inserts a tag name, keeping order.
func (s *SubscriptionSet) AddTag(name string) {
	s.Tags = insertString(s.Tags, name)
}

// Matches reports whether op is interesting to this set: its id is
// subscribed, or any of its components or tags intersect the
// subscribed names.
func (s *SubscriptionSet) Matches(op *Operation) bool {
	for _, id := range s.Operations {
		if id == op.ID {
			return true
		}
	}
	for _, c := range s.Components {
		for _, oc := range op.Components {
			if c == oc {
				return true
			}
		}
	}
	for _, t := range s.Tags {
		for _, ot := range op.Tags {
			if t == ot {
				return true
			}
		}
	}
	return false
}

// Clone returns a copy that shares no storage with the original.
func (s *SubscriptionSet) Clone() SubscriptionSet {
	return SubscriptionSet{
		Operations: append([]uint64{}, s.Operations...),
		Components: append([]string{}, s.Components...),
		Tags:       append([]string{}, s.Tags...),
	}
}

func insertUint64(sorted []uint64, v uint64) []uint64 {
	lo := 0
	for lo < len(sorted) && sorted[lo] < v {
		lo++
	}
	if lo < len(sorted) && sorted[lo] == v {
		return sorted
	}
	sorted = append(sorted, 0)
	copy(sorted[lo+1:], sorted[lo:])
	sorted[lo] = v
	return sorted
}

func insertString(sorted []string, v string) []string {
	lo := 0
	for lo < len(sorted) && sorted[lo] < v {
		lo++
	}
	if lo < len(sorted) && sorted[lo] == v {
		return sorted
	}
	sorted = append(sorted, "")
	copy(sorted[lo+1:], sorted[lo:])
	sorted[lo] = v
	return sorted
}

// SnapshotVersion is the current snapshot format. Loaders refuse
// snapshots written by a newer major version.
const SnapshotVersion = "v1"

// Snapshot is the serializable form of the whole entity graph. The
// lock table is never serialized; it is re-derived from the active
// operations on restore.
type Snapshot struct {
	Version    string               `json:"version"`
	SavedAt    time.Time            `json:"saved_at"`
	NextID     uint64               `json:"next_id"`
	Users      map[string]User      `json:"users"`
	Components map[string]Component `json:"components"`
	Tags       map[string]Tag       `json:"tags"`
	Operations map[uint64]Operation `json:"operations"`
}
