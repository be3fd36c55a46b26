package tle

import (
	"sync"
	"time"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
)

// Store provides thread-safe access to the loaded dataset per constellation.
// A single writer installs datasets; pipeline stages read concurrently.
type Store struct {
	mu       sync.RWMutex
	datasets map[constellation.ID]*Dataset
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{
		datasets: make(map[constellation.ID]*Dataset),
	}
}

// Get returns the current dataset for the constellation, or nil.
func (s *Store) Get(id constellation.ID) *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.datasets[id]
}

// Set replaces the current dataset for the constellation.
func (s *Store) Set(ds *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[ds.Constellation] = ds
}

// AgeSeconds returns the age of the constellation's dataset in seconds,
// or -1 if none is loaded.
func (s *Store) AgeSeconds(id constellation.ID) float64 {
	ds := s.Get(id)
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}
