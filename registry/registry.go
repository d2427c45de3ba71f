// Package registry keeps script-source records for a Lunar host: an
// in-memory store that preserves insertion order, plus YAML manifest
// loading so a directory of scripts can be described declaratively.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/glowlabs/lunar"
)

// Script is one registered unit of source.
type Script struct {
	ID     uuid.UUID `yaml:"id"`
	Name   string    `yaml:"name"`
	Source string    `yaml:"source"`
}

// Store is a thread-safe, insertion-ordered script collection.
type Store struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Script
	order []uuid.UUID
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[uuid.UUID]*Script)}
}

// Add registers source under name with a fresh ID and returns the record.
func (s *Store) Add(name, source string) *Script {
	sc := &Script{ID: uuid.New(), Name: name, Source: source}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sc.ID] = sc
	s.order = append(s.order, sc.ID)
	return sc
}

// Get looks a script up by ID.
func (s *Store) Get(id uuid.UUID) (*Script, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.byID[id]
	return sc, ok
}

// ByName returns the first script registered under name.
func (s *Store) ByName(name string) (*Script, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if sc := s.byID[id]; sc.Name == name {
			return sc, true
		}
	}
	return nil, false
}

// Remove deletes a script by ID.
func (s *Store) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the scripts in insertion order.
func (s *Store) List() []*Script {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Script, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len reports the number of registered scripts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Records converts the store's contents for a loader run.
func (s *Store) Records() []lunar.LoadRecord {
	list := s.List()
	out := make([]lunar.LoadRecord, 0, len(list))
	for _, sc := range list {
		out = append(out, lunar.LoadRecord{Name: sc.Name, Source: sc.Source})
	}
	return out
}
