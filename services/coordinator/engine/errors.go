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

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// The engine fails with a closed set of error kinds so the transport
// can map each one to a stable status code. Kinds without context are
// sentinels; kinds carrying context are typed errors. Wire messages
// match the existing protocol.
var (
	ErrMissingToken                = errors.New("missing authentication token")
	ErrInvalidToken                = errors.New("invalid authentication token")
	ErrInvalidURLScheme            = errors.New("url should have http or https scheme")
	ErrLockingNonAffectedComponent = errors.New("locked component must be one of the affected components")
	ErrUnmetDependency             = errors.New("Dependent operations must be completed before starting this operation")
	ErrSubscribingMultipleEntities = errors.New("exactly one of operation, component, or tag must be specified")
	ErrInternal                    = errors.New("internal error")
)

// NotFoundError reports an unresolved entity reference.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// AlreadyExistsError reports an identifier collision on create.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

// MissingItemError reports a required list that is empty after
// normalization.
type MissingItemError struct {
	Kind string
}

func (e *MissingItemError) Error() string {
	return fmt.Sprintf("at least one %s is required", e.Kind)
}

// BlankItemError reports a required string that is empty after
// trimming.
type BlankItemError struct {
	Field string
}

func (e *BlankItemError) Error() string {
	return fmt.Sprintf("%s must not be blank", e.Field)
}

// InvalidTransitionError reports a lifecycle change the state machine
// forbids.
type InvalidTransitionError struct {
	From datatypes.OperationState
	To   datatypes.OperationState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// LockFailedError reports a shared/exclusive conflict on a component.
type LockFailedError struct {
	Component string
}

func (e *LockFailedError) Error() string {
	return fmt.Sprintf("failed to acquire lock on component %s", e.Component)
}
