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
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/AleutianAI/switchyard/pkg/validation"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// normalizeOperation trims free text, canonicalizes every set field
// to sorted unique form, and guarantees non-nil collections so stored
// operations compare and serialize predictably.
func normalizeOperation(op datatypes.Operation) datatypes.Operation {
	op.Title = validation.TrimName(op.Title)
	op.Purpose = validation.TrimName(op.Purpose)
	op.URL = validation.TrimName(op.URL)
	op.Components = validation.NormalizeSet(op.Components)
	op.Locks = validation.NormalizeSet(op.Locks)
	op.Tags = validation.NormalizeSet(op.Tags)
	op.DependsOn = validation.NormalizeIDSet(op.DependsOn)
	op.Operators = validation.NormalizeSet(op.Operators)
	if op.Annotations == nil {
		op.Annotations = make(map[string]string)
	}
	return op
}

// upsertLocked runs the full commit pipeline for a normalized
// operation: field validation and referential integrity, transition
// legality, the dependency gate, then the lock transition. Nothing is
// mutated unless every step passes. Returns a clone of the committed
// value for broadcasting after the store lock is released.
//
// Callers must hold the write lock.
func (e *Engine) upsertLocked(op datatypes.Operation) (datatypes.Operation, bool, error) {
	if err := e.validateOperationLocked(&op); err != nil {
		return datatypes.Operation{}, false, err
	}

	prev := e.operations[op.ID]
	if prev != nil {
		if !prev.Status.CanTransitionTo(op.Status) {
			return datatypes.Operation{}, false, &InvalidTransitionError{From: prev.Status, To: op.Status}
		}
	} else if op.Status != datatypes.StatePlanned {
		return datatypes.Operation{}, false, fmt.Errorf("%w: operation %d must begin planned", ErrInternal, op.ID)
	}

	if op.Status == datatypes.StateInProgress {
		for _, dep := range op.DependsOn {
			if e.operations[dep].Status != datatypes.StateCompleted {
				return datatypes.Operation{}, false, ErrUnmetDependency
			}
		}
	}

	if err := e.applyLockTransitionLocked(prev, &op); err != nil {
		return datatypes.Operation{}, false, err
	}

	e.operations[op.ID] = &op
	changed := prev == nil || !reflect.DeepEqual(*prev, op)
	if prev != nil && prev.Status != op.Status && e.cfg.OnTransition != nil {
		e.cfg.OnTransition(prev.Status, op.Status)
	}
	return op.Clone(), changed, nil
}

// validateOperationLocked checks field presence, referential
// integrity, and the locks-within-components rule. The operation must
// already be normalized.
func (e *Engine) validateOperationLocked(op *datatypes.Operation) error {
	if op.Title == "" {
		return &BlankItemError{Field: "title"}
	}
	if op.Purpose == "" {
		return &BlankItemError{Field: "purpose"}
	}
	if !validation.ValidHTTPURL(op.URL) {
		return ErrInvalidURLScheme
	}
	if len(op.Components) == 0 {
		return &MissingItemError{Kind: "component"}
	}
	for _, name := range op.Components {
		if _, ok := e.components[name]; !ok {
			return &NotFoundError{Entity: "component", ID: name}
		}
	}
	for _, name := range op.Locks {
		if !containsString(op.Components, name) {
			return ErrLockingNonAffectedComponent
		}
	}
	for _, name := range op.Tags {
		if _, ok := e.tags[name]; !ok {
			return &NotFoundError{Entity: "tag", ID: name}
		}
	}
	for _, dep := range op.DependsOn {
		if _, ok := e.operations[dep]; !ok {
			return &NotFoundError{Entity: "operation", ID: strconv.FormatUint(dep, 10)}
		}
	}
	if len(op.Operators) == 0 {
		return &MissingItemError{Kind: "operator"}
	}
	for _, name := range op.Operators {
		if _, ok := e.users[name]; !ok {
			return &NotFoundError{Entity: "user", ID: name}
		}
	}
	return nil
}

func containsString(sorted []string, s string) bool {
	i := sort.SearchStrings(sorted, s)
	return i < len(sorted) && sorted[i] == s
}

// lockUndo records one lock-table mutation so a partial acquisition
// can be rolled back.
type lockUndo struct {
	component string
	hadMode   LockMode
	held      bool
}

// applyLockTransitionLocked moves the lock table from prev's holdings
// to next's requirements. Locked components take exclusive locks; the
// remaining affected components take shared locks when some other
// live operation lists them as locked. On any conflict the table is
// restored and a LockFailedError for the offending component is
// returned.
func (e *Engine) applyLockTransitionLocked(prev, next *datatypes.Operation) error {
	holder := next.ID

	if !next.Status.HoldsLocks() {
		if prev != nil && prev.Status.HoldsLocks() {
			for _, component := range e.locks.HeldBy(holder) {
				e.locks.Release(component, holder)
			}
		}
		return nil
	}

	desired := e.desiredLocksLocked(next)
	names := make([]string, 0, len(desired))
	for name := range desired {
		names = append(names, name)
	}
	sort.Strings(names)

	var journal []lockUndo
	var failed error
	for _, component := range names {
		mode := desired[component]
		if e.locks.Holds(component, holder) {
			cur, _ := e.locks.Mode(component)
			if cur == mode {
				continue
			}
			if err := e.locks.Acquire(component, mode, holder); err != nil {
				failed = err
				break
			}
			journal = append(journal, lockUndo{component: component, hadMode: cur, held: true})
		} else {
			if err := e.locks.Acquire(component, mode, holder); err != nil {
				failed = err
				break
			}
			journal = append(journal, lockUndo{component: component})
		}
	}
	if failed != nil {
		for i := len(journal) - 1; i >= 0; i-- {
			u := journal[i]
			if u.held {
				// A mode change only succeeds for a sole holder, so
				// restoring the old mode cannot fail.
				_ = e.locks.Acquire(u.component, u.hadMode, holder)
			} else {
				e.locks.Release(u.component, holder)
			}
		}
		return failed
	}

	for _, component := range e.locks.HeldBy(holder) {
		if _, ok := desired[component]; !ok {
			e.locks.Release(component, holder)
		}
	}
	return nil
}

// desiredLocksLocked computes the lock set a live operation needs:
// exclusive on every locked component, shared on every other affected
// component that some other live operation intends to lock.
func (e *Engine) desiredLocksLocked(op *datatypes.Operation) map[string]LockMode {
	desired := make(map[string]LockMode, len(op.Components))
	for _, name := range op.Locks {
		desired[name] = LockExclusive
	}
	for _, name := range op.Components {
		if _, ok := desired[name]; ok {
			continue
		}
		if e.componentContestedLocked(name, op.ID) {
			desired[name] = LockShared
		}
	}
	return desired
}

// componentContestedLocked reports whether any other non-terminal
// operation lists the component among its locks.
func (e *Engine) componentContestedLocked(component string, selfID uint64) bool {
	for id, other := range e.operations {
		if id == selfID || other.Status.IsTerminal() {
			continue
		}
		if containsString(other.Locks, component) {
			return true
		}
	}
	return false
}
