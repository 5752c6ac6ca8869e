/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/netmaint/netmaint/internal/events"
)

type captureBackend struct {
	mu        sync.Mutex
	envelopes []Envelope
	fail      bool
	closed    bool
}

func (c *captureBackend) Publish(ctx context.Context, env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("backend down")
	}
	c.envelopes = append(c.envelopes, env)
	return nil
}

func (c *captureBackend) Name() string { return "capture" }

func (c *captureBackend) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureBackend) snapshot() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Envelope(nil), c.envelopes...)
}

func TestForwarderRelaysEvents(t *testing.T) {
	bus := events.NewBus()
	backend := &captureBackend{}
	f := NewForwarder(bus, backend, "node-a", zerolog.Nop())
	defer f.Close()

	bus.Publish(events.EventMaintenanceStart, events.Payload{"window_id": "mw-1"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		got := backend.snapshot()
		if len(got) == 1 {
			env := got[0]
			if env.EventType != events.EventMaintenanceStart {
				t.Fatalf("event type = %s", env.EventType)
			}
			if env.NodeID != "node-a" {
				t.Fatalf("node id = %s", env.NodeID)
			}
			if env.MessageID == "" || env.Timestamp.IsZero() {
				t.Fatalf("incomplete envelope: %+v", env)
			}
			if env.Payload["window_id"] != "mw-1" {
				t.Fatalf("payload = %v", env.Payload)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("event never forwarded, got %d envelopes", len(got))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestForwarderCoversAllEventTypes(t *testing.T) {
	bus := events.NewBus()
	backend := &captureBackend{}
	f := NewForwarder(bus, backend, "node-a", zerolog.Nop())
	defer f.Close()

	for _, eventType := range events.Types() {
		bus.Publish(eventType, events.Payload{"window_id": "mw-all"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if got := backend.snapshot(); len(got) == len(events.Types()) {
			seen := make(map[events.EventType]bool, len(got))
			for _, env := range got {
				seen[env.EventType] = true
			}
			for _, eventType := range events.Types() {
				if !seen[eventType] {
					t.Fatalf("event type %s never forwarded", eventType)
				}
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("forwarded %d of %d event types", len(backend.snapshot()), len(events.Types()))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestForwarderSurvivesBackendErrors(t *testing.T) {
	bus := events.NewBus()
	backend := &captureBackend{fail: true}
	f := NewForwarder(bus, backend, "node-a", zerolog.Nop())

	bus.Publish(events.EventWindowCreated, events.Payload{"window_id": "mw-err"})
	time.Sleep(50 * time.Millisecond)

	backend.mu.Lock()
	backend.fail = false
	backend.mu.Unlock()

	bus.Publish(events.EventWindowCreated, events.Payload{"window_id": "mw-ok"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		got := backend.snapshot()
		if len(got) == 1 && got[0].Payload["window_id"] == "mw-ok" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("forwarder did not recover: %v", got)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !backend.closed {
		t.Fatal("backend not closed")
	}
}
