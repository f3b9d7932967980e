// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Operation state tests
// =============================================================================

func TestOperationState_TransitionTable(t *testing.T) {
	allowed := map[OperationState][]OperationState{
		StatePlanned:    {StateInProgress, StateCanceled},
		StatePaused:     {StateInProgress},
		StateInProgress: {StatePaused, StateCompleted, StateAborted},
	}

	permitted := func(from, to OperationState) bool {
		if from == to {
			return true
		}
		for _, next := range allowed[from] {
			if next == to {
				return true
			}
		}
		return false
	}

	// Every ordered pair, no exceptions.
	for _, from := range AllOperationStates {
		for _, to := range AllOperationStates {
			assert.Equalf(t, permitted(from, to), from.CanTransitionTo(to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestParseOperationState(t *testing.T) {
	for _, s := range AllOperationStates {
		parsed, err := ParseOperationState(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseOperationState("running")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running")

	_, err = ParseOperationState("")
	require.Error(t, err)
}

func TestOperationState_Classification(t *testing.T) {
	terminal := map[OperationState]bool{
		StateCompleted: true,
		StateAborted:   true,
		StateCanceled:  true,
	}
	holdsLocks := map[OperationState]bool{
		StateInProgress: true,
		StatePaused:     true,
	}

	for _, s := range AllOperationStates {
		assert.Equalf(t, terminal[s], s.IsTerminal(), "IsTerminal(%s)", s)
		assert.Equalf(t, holdsLocks[s], s.HoldsLocks(), "HoldsLocks(%s)", s)
	}
}

func TestOperationState_WireFormat(t *testing.T) {
	data, err := json.Marshal(StateInProgress)
	require.NoError(t, err)
	assert.Equal(t, `"in_progress"`, string(data))
}

// =============================================================================
// Operation tests
// =============================================================================

func TestOperation_CloneIsDeep(t *testing.T) {
	op := Operation{
		ID:          1234,
		Title:       "swap disks",
		Components:  []string{"db"},
		Locks:       []string{"db"},
		Tags:        []string{"urgent"},
		DependsOn:   []uint64{1200},
		Operators:   []string{"alice"},
		Status:      StatePlanned,
		Annotations: map[string]string{"ticket": "OPS-9"},
	}

	clone := op.Clone()
	clone.Components[0] = "tampered"
	clone.DependsOn[0] = 1
	clone.Annotations["ticket"] = "changed"

	assert.Equal(t, []string{"db"}, op.Components)
	assert.Equal(t, []uint64{1200}, op.DependsOn)
	assert.Equal(t, "OPS-9", op.Annotations["ticket"])
}

// =============================================================================
// Subscription set tests
// =============================================================================

func TestSubscriptionSet_AddKeepsSortedUnique(t *testing.T) {
	set := NewSubscriptionSet()

	set.AddComponent("zeta")
	set.AddComponent("alpha")
	set.AddComponent("zeta")
	set.AddOperation(9)
	set.AddOperation(3)
	set.AddOperation(9)
	set.AddTag("infra")

	assert.Equal(t, []string{"alpha", "zeta"}, set.Components)
	assert.Equal(t, []uint64{3, 9}, set.Operations)
	assert.Equal(t, []string{"infra"}, set.Tags)
}

func TestSubscriptionSet_Matches(t *testing.T) {
	op := Operation{
		ID:         7,
		Components: []string{"db", "api"},
		Tags:       []string{"urgent"},
	}

	t.Run("matches by operation id", func(t *testing.T) {
		set := NewSubscriptionSet()
		set.AddOperation(7)
		assert.True(t, set.Matches(&op))
	})

	t.Run("different id alone does not match", func(t *testing.T) {
		set := NewSubscriptionSet()
		set.AddOperation(8)
		assert.False(t, set.Matches(&op))
	})

	t.Run("matches by component regardless of tags", func(t *testing.T) {
		set := NewSubscriptionSet()
		set.AddComponent("db")
		assert.True(t, set.Matches(&op))
	})

	t.Run("matches by tag", func(t *testing.T) {
		set := NewSubscriptionSet()
		set.AddTag("urgent")
		assert.True(t, set.Matches(&op))
	})

	t.Run("empty set matches nothing", func(t *testing.T) {
		set := NewSubscriptionSet()
		assert.False(t, set.Matches(&op))
	})
}

func TestSubscriptionSet_CloneIsIndependent(t *testing.T) {
	set := NewSubscriptionSet()
	set.AddComponent("db")

	clone := set.Clone()
	clone.AddComponent("api")

	assert.Equal(t, []string{"db"}, set.Components)
	assert.Equal(t, []string{"api", "db"}, clone.Components)
}

// =============================================================================
// Snapshot tests
// =============================================================================

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	snap := Snapshot{
		Version: SnapshotVersion,
		NextID:  1236,
		Users: map[string]User{
			"alice": {Name: "alice", Subscriptions: NewSubscriptionSet()},
		},
		Components: map[string]Component{
			"db": {Name: "db", Description: "database", Owners: []string{"alice"}},
		},
		Tags: map[string]Tag{
			"urgent": {Name: "urgent", Description: "hot"},
		},
		Operations: map[uint64]Operation{
			1234: {
				ID: 1234, Title: "t", Purpose: "p",
				URL:        "https://x.example.com",
				Components: []string{"db"}, Locks: []string{},
				Tags: []string{}, DependsOn: []uint64{},
				Operators: []string{"alice"}, Status: StateInProgress,
				Annotations: map[string]string{},
			},
		},
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"in_progress"`)
	assert.Contains(t, string(data), `"next_id":1236`)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, snap.NextID, decoded.NextID)
	assert.Equal(t, snap.Operations[1234].Status, decoded.Operations[1234].Status)
	assert.Equal(t, snap.Components["db"].Owners, decoded.Components["db"].Owners)
}
