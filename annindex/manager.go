package annindex

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrIndexMissing is returned when a backbone has no published
	// index yet.
	ErrIndexMissing = errors.New("annindex: no index published for backbone")

	// ErrZeroQuery is returned for query vectors with zero L2 norm.
	ErrZeroQuery = errors.New("annindex: query vector has zero norm")
)

// ErrDimensionMismatch indicates that a query vector disagrees with
// the indexed dimensionality.
type ErrDimensionMismatch struct {
	Backbone string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("annindex: dimension mismatch for backbone %q: expected %d, got %d", e.Backbone, e.Expected, e.Actual)
}

// Manager holds the published index per backbone and swaps in
// replacements atomically. Readers racing a publish see either the old
// or the new index in full, never a partial one.
type Manager struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewManager creates an empty index manager.
func NewManager() *Manager {
	return &Manager{
		indexes: make(map[string]*Index),
	}
}

// Publish swaps in a freshly built index for its backbone. The
// previous index, if any, is dropped; in-flight searches against it
// finish on their own reference.
func (m *Manager) Publish(idx *Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[idx.backbone] = idx
}

// Get returns the published index for a backbone.
func (m *Manager) Get(backbone string) (*Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indexes[backbone]
	if !ok {
		return nil, ErrIndexMissing
	}
	return idx, nil
}

// Exists reports whether a backbone has a published index.
func (m *Manager) Exists(backbone string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[backbone]
	return ok
}

// Metadata returns the build metadata for a backbone's index.
func (m *Manager) Metadata(backbone string) (Metadata, error) {
	idx, err := m.Get(backbone)
	if err != nil {
		return Metadata{}, err
	}
	return idx.Metadata(), nil
}

// Query runs a search against the published index for a backbone.
func (m *Manager) Query(backbone string, query []float32, limit int, minScore float32) ([]Result, error) {
	idx, err := m.Get(backbone)
	if err != nil {
		return nil, err
	}
	return idx.Search(query, limit, minScore)
}
