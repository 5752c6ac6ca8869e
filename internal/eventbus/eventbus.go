/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus to an external
// broker so other systems (and other netmaint nodes) observe
// maintenance lifecycle events.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/netmaint/netmaint/internal/events"
	"github.com/netmaint/netmaint/internal/telemetry"
)

// Envelope is the wire format for externally published events.
type Envelope struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // For deduplication
}

// Backend delivers envelopes to an external broker.
type Backend interface {
	Publish(ctx context.Context, env Envelope) error
	Name() string
	Close() error
}

// Forwarder subscribes to every event type on the in-process bus and
// relays each event through the configured backend.
type Forwarder struct {
	backend Backend
	nodeID  string
	logger  zerolog.Logger

	sub    events.Subscriber
	bus    *events.Bus
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewForwarder starts relaying events from bus to backend.
func NewForwarder(bus *events.Bus, backend Backend, nodeID string, logger zerolog.Logger) *Forwarder {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Forwarder{
		backend: backend,
		nodeID:  nodeID,
		logger:  logger.With().Str("component", "eventbus").Str("backend", backend.Name()).Logger(),
		sub:     bus.Subscribe(events.Types()...),
		bus:     bus,
		cancel:  cancel,
	}

	f.wg.Add(1)
	go f.run(ctx)
	return f
}

func (f *Forwarder) run(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-f.sub:
			if !ok {
				return
			}
			f.forward(ctx, ev)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, ev events.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	env := Envelope{
		EventType: ev.Type,
		Payload:   ev.Payload,
		Timestamp: time.Now().UTC(),
		NodeID:    f.nodeID,
		MessageID: uuid.NewString(),
	}
	if err := f.backend.Publish(pubCtx, env); err != nil {
		f.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("failed to forward event")
		return
	}

	telemetry.EventsPublishedTotal.WithLabelValues(string(ev.Type), f.backend.Name()).Inc()
	f.logger.Debug().Str("event_type", string(ev.Type)).Str("message_id", env.MessageID).Msg("event forwarded")
}

// Close stops the relay and closes the backend.
func (f *Forwarder) Close() error {
	f.cancel()
	f.bus.Unsubscribe(f.sub)
	f.wg.Wait()
	return f.backend.Close()
}
