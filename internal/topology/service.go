/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package topology tracks the network inventory that maintenance
// windows reference and resolves identifiers to live resource objects.
package topology

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInterfaceNotFound reports an unresolvable interface identifier.
var ErrInterfaceNotFound = errors.New("interface not found")

// Resolver maps interface identifiers to live interface objects.
type Resolver interface {
	GetInterfaceByID(ctx context.Context, id string) (*Interface, error)
}

// Service is an in-memory network inventory. Safe for concurrent use.
type Service struct {
	logger zerolog.Logger

	mu         sync.RWMutex
	interfaces map[string]*Interface
}

// NewService creates an empty inventory.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		logger:     logger.With().Str("component", "topology").Logger(),
		interfaces: make(map[string]*Interface),
	}
}

// GetInterfaceByID resolves an interface identifier.
func (s *Service) GetInterfaceByID(ctx context.Context, id string) (*Interface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intf, ok := s.interfaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInterfaceNotFound, id)
	}
	return intf, nil
}

// AddInterface registers or replaces an interface in the inventory.
func (s *Service) AddInterface(intf *Interface) error {
	if intf.ID == "" {
		return fmt.Errorf("interface id required")
	}
	s.mu.Lock()
	s.interfaces[intf.ID] = intf
	s.mu.Unlock()
	return nil
}

// RemoveInterface drops an interface from the inventory. Removing an
// unknown id is a no-op.
func (s *Service) RemoveInterface(id string) {
	s.mu.Lock()
	delete(s.interfaces, id)
	s.mu.Unlock()
}

// ListInterfaces returns a snapshot of the inventory ordered by id.
func (s *Service) ListInterfaces() []*Interface {
	s.mu.RLock()
	out := make([]*Interface, 0, len(s.interfaces))
	for _, intf := range s.interfaces {
		out = append(out, intf)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// inventoryFile is the YAML seed file shape.
type inventoryFile struct {
	Interfaces []*Interface `yaml:"interfaces"`
}

// LoadInventory seeds the inventory from a YAML file.
func (s *Service) LoadInventory(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read inventory: %w", err)
	}

	var file inventoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse inventory: %w", err)
	}

	loaded := 0
	for _, intf := range file.Interfaces {
		if intf.ID == "" {
			s.logger.Warn().Str("name", intf.Name).Msg("skipping inventory entry without id")
			continue
		}
		if err := s.AddInterface(intf); err != nil {
			return err
		}
		loaded++
	}

	s.logger.Info().Int("interfaces", loaded).Str("path", path).Msg("topology inventory loaded")
	return nil
}
