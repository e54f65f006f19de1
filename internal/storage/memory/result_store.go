package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

// ResultStore records harvested results in insertion order.
type ResultStore struct {
	mu      sync.RWMutex
	results []harvest.StoredResult
	err     error
}

// NewResultStore constructs a ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// FailWith makes every later StoreResult call return err.
func (s *ResultStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// StoreResult appends result.
func (s *ResultStore) StoreResult(_ context.Context, result harvest.StoredResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

// Results returns a snapshot of stored results.
func (s *ResultStore) Results() []harvest.StoredResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]harvest.StoredResult(nil), s.results...)
}
