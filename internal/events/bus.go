/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	// Maintenance lifecycle notifications, one per non-empty resource
	// category when a window begins or concludes.
	EventMaintenanceStart EventType = "maintenance.start"
	EventMaintenanceEnd   EventType = "maintenance.end"

	// Window bookkeeping events.
	EventWindowCreated EventType = "window.created"
	EventWindowUpdated EventType = "window.updated"
	EventWindowDeleted EventType = "window.deleted"
)

// Types lists every event type the bus carries, for consumers that
// want to fan out everything (e.g. the external event bus bridge).
func Types() []EventType {
	return []EventType{
		EventMaintenanceStart,
		EventMaintenanceEnd,
		EventWindowCreated,
		EventWindowUpdated,
		EventWindowDeleted,
	}
}

// Payload generic event payload.
type Payload map[string]any

// Event pairs a type with its payload for subscribers.
type Event struct {
	Type    EventType
	Payload Payload
}

// Subscriber receives events.
type Subscriber chan Event

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for the given event types.
func (b *Bus) Subscribe(eventTypes ...EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	for _, eventType := range eventTypes {
		b.subs[eventType] = append(b.subs[eventType], ch)
	}
	b.mu.Unlock()
	return ch
}

// Publish sends the payload to subscribers. Slow subscribers are
// skipped rather than blocking the publisher. Sends happen under the
// read lock so Unsubscribe cannot close a channel mid-send; the sends
// are non-blocking, so holding the lock here never stalls the bus.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ev := Event{Type: eventType, Payload: payload}
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- ev:
		default:
		}
	}
}

// Unsubscribe removes the subscriber from every type it was registered
// for and closes its channel.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, subs := range b.subs {
		for i, candidate := range subs {
			if candidate == sub {
				b.subs[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	close(sub)
}
