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
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// DefaultSubscriberBuffer is the per-subscriber event buffer. A
// subscriber that falls this far behind starts missing events.
const DefaultSubscriberBuffer = 256

// Subscriber is one receive handle on the broadcast bus. Events arrive
// on C until Unsubscribe (or Close) closes it.
type Subscriber struct {
	ID string
	C  <-chan datatypes.Operation

	ch chan datatypes.Operation
}

// Bus fans committed operation changes out to live subscribers.
// Delivery is non-blocking: an event that does not fit a subscriber's
// buffer is dropped for that subscriber, never queued against the
// writer.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	buffer      int
	onDrop      func(subscriberID string)
	closed      bool
}

// NewBus creates a bus with the given per-subscriber buffer size.
// onDrop, if non-nil, is called for every dropped event.
func NewBus(buffer int, onDrop func(subscriberID string)) *Bus {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		buffer:      buffer,
		onDrop:      onDrop,
	}
}

// Subscribe registers a new receive handle.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan datatypes.Operation, b.buffer)
	s := &Subscriber{
		ID: uuid.NewString(),
		C:  ch,
		ch: ch,
	}
	if b.closed {
		close(ch)
		return s
	}
	b.subscribers[s.ID] = s
	return s
}

// Unsubscribe removes the handle and closes its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[s.ID]; !ok {
		return
	}
	delete(b.subscribers, s.ID)
	close(s.ch)
}

// Publish delivers op to every subscriber that has buffer room and
// drops it for the rest.
func (b *Bus) Publish(op datatypes.Operation) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, s := range b.subscribers {
		select {
		case s.ch <- op:
		default:
			if b.onDrop != nil {
				b.onDrop(s.ID)
			}
			slog.Debug("broadcast dropped for slow subscriber",
				"subscriber_id", s.ID,
				"operation_id", op.ID)
		}
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subscribers {
		delete(b.subscribers, id)
		close(s.ch)
	}
}

// Subscribers returns the number of live handles.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
