// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the coordination core: the entity store
// with validation and referential integrity, the operation lifecycle
// state machine, the dependency gate, the component lock coordinator,
// and the subscription-matching broadcaster.
//
// # Concurrency
//
// A single RWMutex guards the entire store plus the lock table. Reads
// take shared access; every mutation holds exclusive access from
// validation through commit, so cross-entity checks and lock
// acquisition are atomic with the write they protect. Broadcast
// delivery happens after the lock is released.
package engine

import (
	"sort"
	"strconv"
	"sync"

	"github.com/AleutianAI/switchyard/pkg/validation"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// FirstOperationID is where server-assigned operation numbering
// starts.
const FirstOperationID = 1234

// Config carries the engine's optional collaborator hooks. The zero
// value is a fully working engine.
type Config struct {
	// BusBuffer is the per-subscriber broadcast buffer size.
	BusBuffer int

	// OnTransition is called after a committed status change.
	OnTransition func(from, to datatypes.OperationState)

	// OnBroadcastDrop is called when a slow subscriber misses an event.
	OnBroadcastDrop func(subscriberID string)
}

// Engine is the coordination core. Create it with New.
type Engine struct {
	mu         sync.RWMutex
	users      map[string]*datatypes.User
	components map[string]*datatypes.Component
	tags       map[string]*datatypes.Tag
	operations map[uint64]*datatypes.Operation
	nextID     uint64
	locks      *LockTable
	bus        *Bus
	cfg        Config
}

// New creates an empty engine.
func New(cfg Config) *Engine {
	return &Engine{
		users:      make(map[string]*datatypes.User),
		components: make(map[string]*datatypes.Component),
		tags:       make(map[string]*datatypes.Tag),
		operations: make(map[uint64]*datatypes.Operation),
		nextID:     FirstOperationID,
		locks:      NewLockTable(),
		bus:        NewBus(cfg.BusBuffer, cfg.OnBroadcastDrop),
		cfg:        cfg,
	}
}

// Close shuts down the broadcast bus, ending every live subscriber.
func (e *Engine) Close() {
	e.bus.Close()
}

// Stats is a point-in-time view of store sizes.
type Stats struct {
	Users            int
	Components       int
	Tags             int
	Operations       int
	LockedComponents int
}

// Stats returns current entity counts.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Users:            len(e.users),
		Components:       len(e.components),
		Tags:             len(e.tags),
		Operations:       len(e.operations),
		LockedComponents: e.locks.Len(),
	}
}

// ---- users ----

// EnsureUser creates the user on first sight and returns the
// normalized username. Used by the authentication flow.
func (e *Engine) EnsureUser(name string) (string, error) {
	name = validation.TrimName(name)
	if name == "" {
		return "", &BlankItemError{Field: "username"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.users[name]; !ok {
		e.users[name] = &datatypes.User{
			Name:          name,
			Subscriptions: datatypes.NewSubscriptionSet(),
		}
	}
	return name, nil
}

// CreateUser registers a new user, failing if the name is taken.
func (e *Engine) CreateUser(name string) error {
	name = validation.TrimName(name)
	if name == "" {
		return &BlankItemError{Field: "username"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.users[name]; ok {
		return &AlreadyExistsError{Entity: "user", ID: name}
	}
	e.users[name] = &datatypes.User{
		Name:          name,
		Subscriptions: datatypes.NewSubscriptionSet(),
	}
	return nil
}

// UserExists reports whether the username resolves to a known user.
func (e *Engine) UserExists(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.users[validation.TrimName(name)]
	return ok
}

// ---- components ----

// CreateComponent validates and stores a new component.
func (e *Engine) CreateComponent(c datatypes.Component) error {
	c.Name = validation.TrimName(c.Name)
	c.Description = validation.TrimName(c.Description)
	c.Owners = validation.NormalizeSet(c.Owners)

	if c.Name == "" {
		return &BlankItemError{Field: "name"}
	}
	if c.Description == "" {
		return &BlankItemError{Field: "description"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.components[c.Name]; ok {
		return &AlreadyExistsError{Entity: "component", ID: c.Name}
	}
	if len(c.Owners) == 0 {
		return &MissingItemError{Kind: "owner"}
	}
	for _, owner := range c.Owners {
		if _, ok := e.users[owner]; !ok {
			return &NotFoundError{Entity: "user", ID: owner}
		}
	}
	e.components[c.Name] = &c
	return nil
}

// Component looks a component up by name.
func (e *Engine) Component(name string) (datatypes.Component, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.components[validation.TrimName(name)]
	if !ok {
		return datatypes.Component{}, &NotFoundError{Entity: "component", ID: name}
	}
	out := *c
	out.Owners = append([]string{}, c.Owners...)
	return out, nil
}

// Components lists every component, sorted by name.
func (e *Engine) Components() []datatypes.Component {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]datatypes.Component, 0, len(e.components))
	for _, c := range e.components {
		cp := *c
		cp.Owners = append([]string{}, c.Owners...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ---- tags ----

// CreateTag validates and stores a new tag.
func (e *Engine) CreateTag(t datatypes.Tag) error {
	t.Name = validation.TrimName(t.Name)
	t.Description = validation.TrimName(t.Description)

	if t.Name == "" {
		return &BlankItemError{Field: "name"}
	}
	if t.Description == "" {
		return &BlankItemError{Field: "description"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tags[t.Name]; ok {
		return &AlreadyExistsError{Entity: "tag", ID: t.Name}
	}
	e.tags[t.Name] = &t
	return nil
}

// Tag looks a tag up by name.
func (e *Engine) Tag(name string) (datatypes.Tag, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.tags[validation.TrimName(name)]
	if !ok {
		return datatypes.Tag{}, &NotFoundError{Entity: "tag", ID: name}
	}
	return *t, nil
}

// Tags lists every tag, sorted by name.
func (e *Engine) Tags() []datatypes.Tag {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]datatypes.Tag, 0, len(e.tags))
	for _, t := range e.tags {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ---- operations ----

// Filter narrows an operation listing. Values within a field are
// OR-ed; fields are AND-ed. Empty fields do not constrain.
type Filter struct {
	Components []string
	Tags       []string
	Operators  []string
	Statuses   []datatypes.OperationState
}

func (f *Filter) matches(op *datatypes.Operation) bool {
	if len(f.Components) > 0 && !intersects(f.Components, op.Components) {
		return false
	}
	if len(f.Tags) > 0 && !intersects(f.Tags, op.Tags) {
		return false
	}
	if len(f.Operators) > 0 && !intersects(f.Operators, op.Operators) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == op.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// CreateOperation assigns the next id to the draft, forces the status
// to planned, defaults operators to the requester when empty, and
// commits it through the full validation pipeline.
func (e *Engine) CreateOperation(draft datatypes.Operation, requester string) (uint64, error) {
	op := normalizeOperation(draft)
	if len(op.Operators) == 0 && validation.TrimName(requester) != "" {
		op.Operators = []string{validation.TrimName(requester)}
	}

	e.mu.Lock()
	op.ID = e.nextID
	op.Status = datatypes.StatePlanned
	committed, changed, err := e.upsertLocked(op)
	if err == nil {
		e.nextID++
	}
	e.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if changed {
		e.bus.Publish(committed)
	}
	return committed.ID, nil
}

// OperationPatch is a partial update; nil fields are untouched.
// Annotations entries merge into the existing map.
type OperationPatch struct {
	Title       *string
	Purpose     *string
	URL         *string
	Components  *[]string
	Locks       *[]string
	Tags        *[]string
	DependsOn   *[]uint64
	Operators   *[]string
	Status      *datatypes.OperationState
	Annotations map[string]string
}

// UpdateOperation applies a partial update to an existing operation
// through the full validation pipeline.
func (e *Engine) UpdateOperation(id uint64, patch OperationPatch) error {
	e.mu.Lock()
	committed, changed, err := e.applyPatchLocked(id, patch)
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		e.bus.Publish(committed)
	}
	return nil
}

func (e *Engine) applyPatchLocked(id uint64, patch OperationPatch) (datatypes.Operation, bool, error) {
	prev, ok := e.operations[id]
	if !ok {
		return datatypes.Operation{}, false, &NotFoundError{Entity: "operation", ID: strconv.FormatUint(id, 10)}
	}

	draft := prev.Clone()
	if patch.Title != nil {
		draft.Title = *patch.Title
	}
	if patch.Purpose != nil {
		draft.Purpose = *patch.Purpose
	}
	if patch.URL != nil {
		draft.URL = *patch.URL
	}
	if patch.Components != nil {
		draft.Components = *patch.Components
	}
	if patch.Locks != nil {
		draft.Locks = *patch.Locks
	}
	if patch.Tags != nil {
		draft.Tags = *patch.Tags
	}
	if patch.DependsOn != nil {
		draft.DependsOn = *patch.DependsOn
	}
	if patch.Operators != nil {
		draft.Operators = *patch.Operators
	}
	if patch.Status != nil {
		draft.Status = *patch.Status
	}
	for k, v := range patch.Annotations {
		draft.Annotations[k] = v
	}

	return e.upsertLocked(normalizeOperation(draft))
}

// Operation looks an operation up by id.
func (e *Engine) Operation(id uint64) (datatypes.Operation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	op, ok := e.operations[id]
	if !ok {
		return datatypes.Operation{}, &NotFoundError{Entity: "operation", ID: strconv.FormatUint(id, 10)}
	}
	return op.Clone(), nil
}

// Operations lists matching operations, sorted by id.
func (e *Engine) Operations(f Filter) []datatypes.Operation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.operationsLocked(&f)
}

func (e *Engine) operationsLocked(f *Filter) []datatypes.Operation {
	out := make([]datatypes.Operation, 0, len(e.operations))
	for _, op := range e.operations {
		if f == nil || f.matches(op) {
			out = append(out, op.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- subscriptions ----

// Subscribe records the user's interest in exactly one of an
// operation, a component, or a tag. Re-subscribing is a no-op.
func (e *Engine) Subscribe(username string, req datatypes.SubscribeRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.users[validation.TrimName(username)]
	if !ok {
		return &NotFoundError{Entity: "user", ID: username}
	}

	targets := 0
	if req.Operation != nil {
		targets++
	}
	if req.Component != nil {
		targets++
	}
	if req.Tag != nil {
		targets++
	}
	if targets != 1 {
		return ErrSubscribingMultipleEntities
	}

	switch {
	case req.Operation != nil:
		id := *req.Operation
		if _, ok := e.operations[id]; !ok {
			return &NotFoundError{Entity: "operation", ID: strconv.FormatUint(id, 10)}
		}
		user.Subscriptions.AddOperation(id)
	case req.Component != nil:
		name := validation.TrimName(*req.Component)
		if _, ok := e.components[name]; !ok {
			return &NotFoundError{Entity: "component", ID: name}
		}
		user.Subscriptions.AddComponent(name)
	default:
		name := validation.TrimName(*req.Tag)
		if _, ok := e.tags[name]; !ok {
			return &NotFoundError{Entity: "tag", ID: name}
		}
		user.Subscriptions.AddTag(name)
	}
	return nil
}

// Subscriptions returns a copy of the user's subscription sets.
func (e *Engine) Subscriptions(username string) (datatypes.SubscriptionSet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	user, ok := e.users[validation.TrimName(username)]
	if !ok {
		return datatypes.SubscriptionSet{}, &NotFoundError{Entity: "user", ID: username}
	}
	return user.Subscriptions.Clone(), nil
}

// ---- watch / events ----

// WatchState atomically snapshots the current operations, the user's
// subscription set, and a fresh broadcast subscription, so a watch
// stream observes every change after its snapshot.
func (e *Engine) WatchState(username string) ([]datatypes.Operation, datatypes.SubscriptionSet, *Subscriber, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	user, ok := e.users[validation.TrimName(username)]
	if !ok {
		return nil, datatypes.SubscriptionSet{}, nil, &NotFoundError{Entity: "user", ID: username}
	}
	ops := e.operationsLocked(nil)
	set := user.Subscriptions.Clone()
	sub := e.bus.Subscribe()
	return ops, set, sub, nil
}

// SubscribeEvents attaches a raw listener to the broadcast bus. Used
// by sinks that observe every committed change.
func (e *Engine) SubscribeEvents() *Subscriber {
	return e.bus.Subscribe()
}

// UnsubscribeEvents detaches a listener and closes its channel.
func (e *Engine) UnsubscribeEvents(s *Subscriber) {
	e.bus.Unsubscribe(s)
}
