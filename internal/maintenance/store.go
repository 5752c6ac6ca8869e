/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/netmaint/netmaint/internal/events"
	"github.com/netmaint/netmaint/internal/models"
	"github.com/netmaint/netmaint/internal/telemetry"
	"github.com/netmaint/netmaint/internal/topology"
)

// ErrWindowNotFound reports an unknown window id.
var ErrWindowNotFound = errors.New("window not found")

// ErrWindowExists reports a create for an id already stored.
var ErrWindowExists = errors.New("window already exists")

// Store is the authoritative mapping from window id to window. Writes
// are serialized by the store mutex; reads observe a consistent
// snapshot. When constructed with a database handle, every mutation is
// persisted so the schedule survives restarts.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger

	mu      sync.RWMutex
	windows map[string]*Window
}

// NewStore creates a store. db may be nil for a purely in-memory
// schedule (used in tests).
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:      db,
		logger:  logger.With().Str("component", "store").Logger(),
		windows: make(map[string]*Window),
	}
}

// Load restores persisted windows into the store and returns them so
// the caller can arm their jobs. Records whose timestamps no longer
// parse are skipped with an error log rather than failing the boot.
func (s *Store) Load(ctx context.Context, resolver topology.Resolver, bus events.Publisher) ([]*Window, error) {
	if s.db == nil {
		return nil, nil
	}

	var recs []models.WindowRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}

	loaded := make([]*Window, 0, len(recs))
	s.mu.Lock()
	for _, rec := range recs {
		var doc Record
		if err := json.Unmarshal(rec.Document, &doc); err != nil {
			s.logger.Error().Err(err).Str("window_id", rec.ID).Msg("skipping corrupt window record")
			continue
		}
		w, err := FromRecord(ctx, doc, resolver, bus, s.logger)
		if err != nil {
			s.logger.Error().Err(err).Str("window_id", rec.ID).Msg("skipping unparsable window record")
			continue
		}
		s.windows[w.ID] = w
		loaded = append(loaded, w)
	}
	telemetry.WindowsActive.Set(float64(len(s.windows)))
	s.mu.Unlock()

	s.logger.Info().Int("windows", len(loaded)).Msg("schedule restored from storage")
	return loaded, nil
}

// Create stores a new window.
func (s *Store) Create(ctx context.Context, w *Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[w.ID]; ok {
		return fmt.Errorf("%w: %s", ErrWindowExists, w.ID)
	}
	if err := s.persist(ctx, w, true); err != nil {
		return err
	}
	s.windows[w.ID] = w
	telemetry.WindowsActive.Set(float64(len(s.windows)))
	return nil
}

// Replace swaps in an updated window for an existing id.
func (s *Store) Replace(ctx context.Context, w *Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[w.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrWindowNotFound, w.ID)
	}
	if err := s.persist(ctx, w, false); err != nil {
		return err
	}
	s.windows[w.ID] = w
	return nil
}

// Get returns the window for id, if stored.
func (s *Store) Get(id string) (*Window, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[id]
	return w, ok
}

// Delete removes a window. Deleting an absent id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		if err := s.db.WithContext(ctx).Delete(&models.WindowRecord{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete window %s: %w", id, err)
		}
	}
	delete(s.windows, id)
	telemetry.WindowsActive.Set(float64(len(s.windows)))
	return nil
}

// List returns a snapshot of all windows ordered by start time.
func (s *Store) List() []*Window {
	s.mu.RLock()
	out := make([]*Window, 0, len(s.windows))
	for _, w := range s.windows {
		out = append(out, w)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// persist writes the window record. Caller holds s.mu.
func (s *Store) persist(ctx context.Context, w *Window, create bool) error {
	if s.db == nil {
		return nil
	}

	doc, err := json.Marshal(w.ToRecord())
	if err != nil {
		return fmt.Errorf("serialize window %s: %w", w.ID, err)
	}

	rec := models.WindowRecord{
		ID:       w.ID,
		StartsAt: w.Start,
		EndsAt:   w.End,
		Document: doc,
	}

	tx := s.db.WithContext(ctx)
	if create {
		err = tx.Create(&rec).Error
	} else {
		err = tx.Save(&rec).Error
	}
	if err != nil {
		return fmt.Errorf("persist window %s: %w", w.ID, err)
	}
	return nil
}
