/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/netmaint/netmaint/internal/events"
	"github.com/netmaint/netmaint/internal/telemetry"
	"github.com/netmaint/netmaint/internal/topology"
)

// ErrStartInPast rejects windows scheduled to begin before now.
var ErrStartInPast = errors.New("window start is in the past")

// Service orchestrates the schedule store and the scheduler so the
// two stay consistent: a window is stored if and only if its jobs are
// armed (until they fire).
type Service struct {
	store     *Store
	scheduler *Scheduler
	resolver  topology.Resolver
	bus       *events.Bus
	logger    zerolog.Logger
	locks     *windowLocks
}

// NewService wires the lifecycle engine together.
func NewService(store *Store, scheduler *Scheduler, resolver topology.Resolver, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		scheduler: scheduler,
		resolver:  resolver,
		bus:       bus,
		logger:    logger.With().Str("component", "maintenance").Logger(),
		locks:     newWindowLocks(),
	}
}

// windowLocks hands out one mutex per window id so create, update,
// and delete on the same window run atomically end to end. An update
// is a read-modify-write spanning the store and the scheduler;
// without the lock two concurrent patches can both read the same base
// window and the slower one silently reverts the faster one's fields.
// Operations on different windows never contend. Entries are
// reference counted and dropped when the last holder releases.
type windowLocks struct {
	mu    sync.Mutex
	locks map[string]*windowLock
}

type windowLock struct {
	sync.Mutex
	refs int
}

func newWindowLocks() *windowLocks {
	return &windowLocks{locks: make(map[string]*windowLock)}
}

// acquire blocks until the caller owns the lock for id and returns
// the matching release function.
func (l *windowLocks) acquire(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &windowLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// Restore loads persisted windows and re-arms their jobs. Windows
// whose end already passed are pruned instead of rescheduled.
func (s *Service) Restore(ctx context.Context) error {
	windows, err := s.store.Load(ctx, s.resolver, s.bus)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, w := range windows {
		if w.End.Before(now) {
			s.logger.Info().Str("window_id", w.ID).Time("end", w.End).Msg("pruning expired window")
			if err := s.store.Delete(ctx, w.ID); err != nil {
				s.logger.Error().Err(err).Str("window_id", w.ID).Msg("failed to prune expired window")
			}
			continue
		}
		if err := s.scheduler.Schedule(w); err != nil {
			return fmt.Errorf("schedule restored window %s: %w", w.ID, err)
		}
	}
	return nil
}

// CreateWindow validates, stores, and schedules a new window. If
// scheduling fails the stored entry is rolled back so the store never
// holds an unscheduled window.
func (s *Service) CreateWindow(ctx context.Context, rec Record) (*Window, error) {
	ctx, span := telemetry.StartSpan(ctx, "maintenance", "CreateWindow")
	defer span.End()

	w, err := FromRecord(ctx, rec, s.resolver, s.bus, s.logger)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.AddSpanAttributes(span, map[string]any{"window_id": w.ID, "items": len(w.Items)})
	if !w.Start.Before(w.End) {
		return nil, ErrInvalidInterval
	}
	if w.Start.Before(time.Now().UTC()) {
		return nil, ErrStartInPast
	}

	release := s.locks.acquire(w.ID)
	defer release()

	if err := s.store.Create(ctx, w); err != nil {
		return nil, err
	}
	if err := s.scheduler.Schedule(w); err != nil {
		if delErr := s.store.Delete(ctx, w.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("window_id", w.ID).Msg("rollback after scheduling failure failed")
		}
		return nil, fmt.Errorf("schedule window %s: %w", w.ID, err)
	}

	s.publishLifecycle(events.EventWindowCreated, w)
	s.logger.Info().Str("window_id", w.ID).Time("start", w.Start).Time("end", w.End).Msg("window created")
	return w, nil
}

// UpdateWindow applies a partial update and retargets the window's
// jobs. The patch is fully validated before any state changes; if
// rescheduling fails, the previous window is restored. Updates to the
// same window are serialized, so the read, the patch, and the swap
// form one atomic step even while the patch blocks in resolver
// lookups.
func (s *Service) UpdateWindow(ctx context.Context, id string, patch Patch) (*Window, error) {
	ctx, span := telemetry.StartSpan(ctx, "maintenance", "UpdateWindow")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"window_id": id})

	release := s.locks.acquire(id)
	defer release()

	current, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWindowNotFound, id)
	}

	updated, err := current.WithPatch(ctx, patch, s.resolver)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !updated.Start.Before(updated.End) {
		return nil, ErrInvalidInterval
	}

	if err := s.store.Replace(ctx, updated); err != nil {
		return nil, err
	}
	if err := s.scheduler.Reschedule(updated); err != nil {
		if replErr := s.store.Replace(ctx, current); replErr != nil {
			s.logger.Error().Err(replErr).Str("window_id", id).Msg("rollback after rescheduling failure failed")
		}
		return nil, fmt.Errorf("reschedule window %s: %w", id, err)
	}

	s.publishLifecycle(events.EventWindowUpdated, updated)
	s.logger.Info().Str("window_id", id).Msg("window updated")
	return updated, nil
}

// DeleteWindow unschedules and removes a window. Deleting an unknown
// id is a no-op.
func (s *Service) DeleteWindow(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "maintenance", "DeleteWindow")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"window_id": id})

	release := s.locks.acquire(id)
	defer release()

	_, existed := s.store.Get(id)

	s.scheduler.UnscheduleID(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	if existed {
		s.bus.Publish(events.EventWindowDeleted, events.Payload{"window_id": id})
		s.logger.Info().Str("window_id", id).Msg("window deleted")
	}
	return nil
}

// GetWindow returns a stored window.
func (s *Service) GetWindow(id string) (*Window, error) {
	w, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWindowNotFound, id)
	}
	return w, nil
}

// ListWindows returns all windows ordered by start time.
func (s *Service) ListWindows() []*Window {
	return s.store.List()
}

// Shutdown stops the scheduler.
func (s *Service) Shutdown() {
	s.scheduler.Stop()
}

func (s *Service) publishLifecycle(eventType events.EventType, w *Window) {
	rec := w.ToRecord()
	s.bus.Publish(eventType, events.Payload{
		"window_id": w.ID,
		"start":     rec.Start,
		"end":       rec.End,
		"items":     rec.Items,
	})
}
