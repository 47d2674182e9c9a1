package vecstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/melodex/embedstore/distance"
)

var (
	// ErrUnknownBackbone is returned for operations on a backbone that
	// has never seen an upsert or a cold load.
	ErrUnknownBackbone = errors.New("vecstore: unknown backbone")

	// ErrZeroVector is returned when an upserted vector has zero L2
	// norm. Cosine similarity is undefined for such vectors, so they
	// are rejected at the write boundary.
	ErrZeroVector = errors.New("vecstore: vector has zero norm")

	// ErrEmptyKey is returned when the backbone or file identifier is
	// empty.
	ErrEmptyKey = errors.New("vecstore: backbone and file id must be non-empty")
)

// ErrDimensionMismatch indicates that an upserted or queried vector
// disagrees with the backbone's established dimensionality.
type ErrDimensionMismatch struct {
	Backbone string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vecstore: dimension mismatch for backbone %q: expected %d, got %d", e.Backbone, e.Expected, e.Actual)
}

// Entry is a single hot-tier record, as handed to promotion.
type Entry struct {
	FileID string
	Vector []float32
	Seq    uint64
}

// Store holds the hot and cold partitions for all backbones.
// All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	backbones map[string]*backbone
}

type backbone struct {
	dim  int
	hot  *hotPartition
	cold *coldPartition
}

// New creates an empty record store.
func New() *Store {
	return &Store{
		backbones: make(map[string]*backbone),
	}
}

// get returns the backbone or nil.
func (s *Store) get(name string) *backbone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backbones[name]
}

// getOrCreate registers the backbone with the given dimensionality on
// first use. Returns ErrDimensionMismatch if it already exists with a
// different dimensionality.
func (s *Store) getOrCreate(name string, dim int) (*backbone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.backbones[name]
	if !ok {
		b = &backbone{
			dim:  dim,
			hot:  newHotPartition(),
			cold: newColdPartition(dim),
		}
		s.backbones[name] = b
		return b, nil
	}
	if b.dim != dim {
		return nil, &ErrDimensionMismatch{Backbone: name, Expected: b.dim, Actual: dim}
	}
	return b, nil
}

// Upsert writes a vector into the hot partition, registering the
// backbone on first use, and returns the assigned sequence number.
// The vector is copied; the caller may reuse the slice.
func (s *Store) Upsert(name, fileID string, vector []float32) (uint64, error) {
	if name == "" || fileID == "" {
		return 0, ErrEmptyKey
	}
	if len(vector) == 0 {
		return 0, &ErrDimensionMismatch{Backbone: name, Expected: dimensionOrActual(s, name, 0), Actual: 0}
	}
	if distance.Norm(vector) == 0 {
		return 0, ErrZeroVector
	}

	b, err := s.getOrCreate(name, len(vector))
	if err != nil {
		return 0, err
	}
	return b.hot.upsert(fileID, vector), nil
}

// RestoreHot reinstates a hot entry with an explicit sequence number.
// Used by WAL replay; the hot sequence counter is advanced so new
// upserts continue above replayed ones. Stale replays (an older seq
// for a key already holding a newer one) are ignored.
func (s *Store) RestoreHot(name, fileID string, vector []float32, seq uint64) error {
	if name == "" || fileID == "" {
		return ErrEmptyKey
	}
	b, err := s.getOrCreate(name, len(vector))
	if err != nil {
		return err
	}
	b.hot.restore(fileID, vector, seq)
	return nil
}

// LoadCold replaces the cold partition contents for a backbone,
// registering it if needed. Used when reloading persisted snapshots.
func (s *Store) LoadCold(name string, dim int, ids []string, vectors []float32) error {
	if name == "" {
		return ErrEmptyKey
	}
	if dim <= 0 || len(vectors) != len(ids)*dim {
		return fmt.Errorf("vecstore: malformed cold load for backbone %q: %d ids, %d floats, dim %d", name, len(ids), len(vectors), dim)
	}
	b, err := s.getOrCreate(name, dim)
	if err != nil {
		return err
	}
	b.cold.load(ids, vectors)
	return nil
}

// Dimension returns the established dimensionality for a backbone.
func (s *Store) Dimension(name string) (int, bool) {
	b := s.get(name)
	if b == nil {
		return 0, false
	}
	return b.dim, true
}

// Backbones returns all registered backbone names, sorted.
func (s *Store) Backbones() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.backbones))
	for name := range s.backbones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetHot returns a copy of the hot-tier vector for a key.
func (s *Store) GetHot(name, fileID string) ([]float32, bool) {
	b := s.get(name)
	if b == nil {
		return nil, false
	}
	return b.hot.get(fileID)
}

// GetCold returns a copy of the cold-tier vector for a key.
func (s *Store) GetCold(name, fileID string) ([]float32, bool) {
	b := s.get(name)
	if b == nil {
		return nil, false
	}
	return b.cold.get(fileID)
}

// CountHot returns the number of live hot entries for a backbone.
func (s *Store) CountHot(name string) int {
	b := s.get(name)
	if b == nil {
		return 0
	}
	return b.hot.count()
}

// CountCold returns the number of live cold rows for a backbone.
func (s *Store) CountCold(name string) int {
	b := s.get(name)
	if b == nil {
		return 0
	}
	return b.cold.count()
}

// DrainHotSnapshot returns a copy of all current hot entries for a
// backbone together with the sequence watermark at the time of the
// snapshot. It does not remove anything; eviction is a separate step
// taken only after the entries have been durably merged into cold.
func (s *Store) DrainHotSnapshot(name string) ([]Entry, uint64, error) {
	b := s.get(name)
	if b == nil {
		return nil, 0, ErrUnknownBackbone
	}
	entries, watermark := b.hot.snapshot()
	return entries, watermark, nil
}

// EvictHotUpTo removes the hot entries whose sequence number is at or
// below the watermark. Entries written after the watermark are left
// untouched.
func (s *Store) EvictHotUpTo(name string, watermark uint64) {
	b := s.get(name)
	if b == nil {
		return
	}
	b.hot.evictUpTo(watermark)
}

// ColdSnapshot returns an immutable copy of the cold partition.
func (s *Store) ColdSnapshot(name string) (*ColdSnapshot, error) {
	b := s.get(name)
	if b == nil {
		return nil, ErrUnknownBackbone
	}
	return b.cold.snapshot(), nil
}

// MergedColdSnapshot returns the cold partition as it would look after
// merging the given entries, without mutating anything. Promotion
// builds the replacement index from this view so that a failed build
// leaves the cold partition untouched.
func (s *Store) MergedColdSnapshot(name string, entries []Entry) (*ColdSnapshot, error) {
	b := s.get(name)
	if b == nil {
		return nil, ErrUnknownBackbone
	}
	snap := b.cold.snapshot()
	return snap.overlay(entries), nil
}

// ApplyMerge folds the entries into the cold partition with
// last-write-wins semantics per fileID. Called by promotion only after
// the replacement index has been built and published.
func (s *Store) ApplyMerge(name string, entries []Entry) error {
	b := s.get(name)
	if b == nil {
		return ErrUnknownBackbone
	}
	b.cold.merge(entries)
	return nil
}

func dimensionOrActual(s *Store, name string, actual int) int {
	if dim, ok := s.Dimension(name); ok {
		return dim
	}
	return actual
}
