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

import "sort"

// LockMode is how a component is held: any number of shared holders,
// or one exclusive holder, never a mix.
type LockMode string

const (
	LockShared    LockMode = "shared"
	LockExclusive LockMode = "exclusive"
)

// LockTable tracks which components are held and by which operations.
// An entry exists only while at least one operation holds the
// component; the last release removes it.
//
// # Thread Safety
//
// Not safe for concurrent use on its own. The table is owned by the
// Engine and only touched under the Engine's store lock.
type LockTable struct {
	entries map[string]*lockEntry
}

type lockEntry struct {
	mode    LockMode
	holders map[uint64]struct{}
}

// NewLockTable returns an empty table.
func NewLockTable() *LockTable {
	return &LockTable{entries: make(map[string]*lockEntry)}
}

// Acquire takes the component for the holder in the given mode.
//
// Re-acquiring a component already held by the same operation in the
// same mode is a no-op. A sole holder may change its mode in place.
// Any shared/exclusive conflict fails with LockFailedError and leaves
// the table unchanged.
func (t *LockTable) Acquire(component string, mode LockMode, holder uint64) error {
	e, ok := t.entries[component]
	if !ok {
		t.entries[component] = &lockEntry{
			mode:    mode,
			holders: map[uint64]struct{}{holder: {}},
		}
		return nil
	}

	if _, held := e.holders[holder]; held {
		if e.mode == mode {
			return nil
		}
		if len(e.holders) == 1 {
			e.mode = mode
			return nil
		}
		// Other shared holders present, cannot go exclusive.
		return &LockFailedError{Component: component}
	}

	if e.mode == LockExclusive || mode == LockExclusive {
		return &LockFailedError{Component: component}
	}
	e.holders[holder] = struct{}{}
	return nil
}

// Release drops the holder's claim on the component. Releasing a
// component the holder does not hold is a no-op.
func (t *LockTable) Release(component string, holder uint64) {
	e, ok := t.entries[component]
	if !ok {
		return
	}
	delete(e.holders, holder)
	if len(e.holders) == 0 {
		delete(t.entries, component)
	}
}

// Mode returns the current mode of a component, if locked.
func (t *LockTable) Mode(component string) (LockMode, bool) {
	e, ok := t.entries[component]
	if !ok {
		return "", false
	}
	return e.mode, true
}

// Holds reports whether the operation currently holds the component.
func (t *LockTable) Holds(component string, holder uint64) bool {
	e, ok := t.entries[component]
	if !ok {
		return false
	}
	_, held := e.holders[holder]
	return held
}

// HeldBy lists the components the operation holds, sorted.
func (t *LockTable) HeldBy(holder uint64) []string {
	var out []string
	for component, e := range t.entries {
		if _, held := e.holders[holder]; held {
			out = append(out, component)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of locked components.
func (t *LockTable) Len() int {
	return len(t.entries)
}

// View returns a copy of the table as component name to mode, for
// inspection and tests.
func (t *LockTable) View() map[string]LockMode {
	out := make(map[string]LockMode, len(t.entries))
	for component, e := range t.entries {
		out[component] = e.mode
	}
	return out
}
