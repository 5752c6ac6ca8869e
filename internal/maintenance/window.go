/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package maintenance implements the maintenance-window lifecycle
// engine: window model, target classification, schedule store, and
// the timer-driven scheduler.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/netmaint/netmaint/internal/events"
	"github.com/netmaint/netmaint/internal/topology"
)

// TimeLayout is the fixed timestamp pattern used in window records.
const TimeLayout = "2006-01-02T15:04:05-0700"

// ErrInvalidInterval reports a window whose start is not before its end.
var ErrInvalidInterval = errors.New("window start must be before end")

// Record is the wire/storage representation of a window.
type Record struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
	Items []any  `json:"items"`
}

// Patch is a partial update; nil fields are untouched.
type Patch struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
	Items *[]any  `json:"items"`
}

// Window is one scheduled maintenance period. Windows are treated as
// immutable after construction: WithPatch builds an updated copy so
// in-flight triggers never observe a half-applied update.
type Window struct {
	ID    string
	Start time.Time
	End   time.Time
	Items []Item

	bus    events.Publisher
	logger zerolog.Logger
}

// New creates a window. A fresh id is generated when none is supplied
// (callers restoring persisted state pass the stored id).
func New(id string, start, end time.Time, items []Item, bus events.Publisher, logger zerolog.Logger) *Window {
	if id == "" {
		id = uuid.NewString()
	}
	return &Window{
		ID:     id,
		Start:  start.UTC(),
		End:    end.UTC(),
		Items:  items,
		bus:    bus,
		logger: logger.With().Str("window_id", id).Logger(),
	}
}

// FromRecord builds a window from its wire representation. Timestamps
// must match TimeLayout; a parse failure fails the whole record. Items
// whose references cannot be resolved are dropped individually and
// reported, the same policy ApplyPatch uses.
func FromRecord(ctx context.Context, rec Record, resolver topology.Resolver, bus events.Publisher, logger zerolog.Logger) (*Window, error) {
	start, err := parseTimestamp(rec.Start)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	end, err := parseTimestamp(rec.End)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	dec := itemDecoder{resolver: resolver, logger: logger}
	items := dec.decodeAll(ctx, rec.Items)

	return New(rec.ID, start, end, items, bus, logger), nil
}

// ToRecord returns the wire representation of the window.
func (w *Window) ToRecord() Record {
	items := make([]any, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, item.AsDict())
	}
	return Record{
		ID:    w.ID,
		Start: w.Start.Format(TimeLayout),
		End:   w.End.Format(TimeLayout),
		Items: items,
	}
}

// WithPatch returns a copy of the window with the patch applied.
// Fields absent from the patch are untouched. Timestamp parse failures
// fail the whole patch before any field changes; unresolvable items
// are dropped individually.
func (w *Window) WithPatch(ctx context.Context, patch Patch, resolver topology.Resolver) (*Window, error) {
	start, end := w.Start, w.End
	if patch.Start != nil {
		parsed, err := parseTimestamp(*patch.Start)
		if err != nil {
			return nil, fmt.Errorf("parse start: %w", err)
		}
		start = parsed
	}
	if patch.End != nil {
		parsed, err := parseTimestamp(*patch.End)
		if err != nil {
			return nil, fmt.Errorf("parse end: %w", err)
		}
		end = parsed
	}

	items := w.Items
	if patch.Items != nil {
		dec := itemDecoder{resolver: resolver, logger: w.logger}
		items = dec.decodeAll(ctx, *patch.Items)
	}

	// w.logger already carries window_id; going through New would tag
	// it a second time.
	return &Window{
		ID:     w.ID,
		Start:  start,
		End:    end,
		Items:  items,
		bus:    w.bus,
		logger: w.logger,
	}, nil
}

// Begin announces the start of maintenance: one event per non-empty
// resource category. Malformed items were already excluded at decode
// time, so the trigger cannot fail.
func (w *Window) Begin(ctx context.Context) {
	w.logger.Info().Time("start", w.Start).Msg("maintenance window starting")
	w.notify(events.EventMaintenanceStart)
}

// Conclude announces the end of maintenance, symmetric to Begin.
func (w *Window) Conclude(ctx context.Context) {
	w.logger.Info().Time("end", w.End).Msg("maintenance window ending")
	w.notify(events.EventMaintenanceEnd)
}

func (w *Window) notify(eventType events.EventType) {
	if w.bus == nil {
		return
	}

	c := Classify(w.Items)

	if len(c.Switches) > 0 {
		w.publishCategory(eventType, "switches", c.Switches)
	}
	if len(c.UNIs) > 0 {
		resources := make([]any, len(c.UNIs))
		for i, uni := range c.UNIs {
			resources[i] = uni.AsDict()
		}
		w.publishCategory(eventType, "unis", resources)
	}
	if len(c.Links) > 0 {
		resources := make([]any, len(c.Links))
		for i, link := range c.Links {
			resources[i] = link.AsDict()
		}
		w.publishCategory(eventType, "links", resources)
	}
}

func (w *Window) publishCategory(eventType events.EventType, category string, resources []any) {
	w.bus.Publish(eventType, events.Payload{
		"window_id": w.ID,
		"category":  category,
		"resources": resources,
	})
}

// parseTimestamp parses a record timestamp and normalizes it to UTC.
func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
