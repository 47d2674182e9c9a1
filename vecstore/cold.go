package vecstore

import (
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// coldPartition is the read-optimized bulk store: row-aligned id and
// vector columns, append-only between compactions. A re-merged fileID
// appends a fresh row and tombstones the old one in a Roaring bitmap;
// compaction rewrites the columns once a quarter of the rows are dead.
type coldPartition struct {
	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors []float32
	rows    map[string]int // fileID -> live row
	dead    *roaring.Bitmap
}

func newColdPartition(dim int) *coldPartition {
	return &coldPartition{
		dim:  dim,
		rows: make(map[string]int),
		dead: roaring.New(),
	}
}

func (c *coldPartition) get(fileID string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	row, ok := c.rows[fileID]
	if !ok {
		return nil, false
	}
	off := row * c.dim
	return slices.Clone(c.vectors[off : off+c.dim]), true
}

func (c *coldPartition) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// load replaces the partition contents wholesale. The inputs are
// assumed live (one row per id, no tombstones).
func (c *coldPartition) load(ids []string, vectors []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ids = slices.Clone(ids)
	c.vectors = slices.Clone(vectors)
	c.rows = make(map[string]int, len(ids))
	for i, id := range ids {
		c.rows[id] = i
	}
	c.dead = roaring.New()
}

// merge folds entries in with last-write-wins per fileID, then
// compacts if the dead fraction reached 25%.
func (c *coldPartition) merge(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		if prev, ok := c.rows[e.FileID]; ok {
			c.dead.Add(uint32(prev))
		}
		row := len(c.ids)
		c.ids = append(c.ids, e.FileID)
		c.vectors = append(c.vectors, e.Vector...)
		c.rows[e.FileID] = row
	}

	if dead := int(c.dead.GetCardinality()); dead > 0 && dead*4 >= len(c.ids) {
		c.compactLocked()
	}
}

// compactLocked rewrites the columns with tombstoned rows dropped.
func (c *coldPartition) compactLocked() {
	live := len(c.ids) - int(c.dead.GetCardinality())
	ids := make([]string, 0, live)
	vectors := make([]float32, 0, live*c.dim)

	for row, id := range c.ids {
		if c.dead.Contains(uint32(row)) {
			continue
		}
		off := row * c.dim
		c.rows[id] = len(ids)
		ids = append(ids, id)
		vectors = append(vectors, c.vectors[off:off+c.dim]...)
	}

	c.ids = ids
	c.vectors = vectors
	c.dead = roaring.New()
}

// snapshot returns a live-rows-only copy of the partition.
func (c *coldPartition) snapshot() *ColdSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	live := len(c.rows)
	snap := &ColdSnapshot{
		Dim:     c.dim,
		IDs:     make([]string, 0, live),
		Vectors: make([]float32, 0, live*c.dim),
	}
	for row, id := range c.ids {
		if c.dead.Contains(uint32(row)) {
			continue
		}
		off := row * c.dim
		snap.IDs = append(snap.IDs, id)
		snap.Vectors = append(snap.Vectors, c.vectors[off:off+c.dim]...)
	}
	return snap
}

// ColdSnapshot is an immutable copy of a cold partition, handed to
// index builds and snapshot persistence.
type ColdSnapshot struct {
	Dim     int
	IDs     []string
	Vectors []float32
}

// Len returns the number of rows.
func (s *ColdSnapshot) Len() int {
	return len(s.IDs)
}

// At returns row i without copying. Callers must not mutate it.
func (s *ColdSnapshot) At(i int) (string, []float32) {
	off := i * s.Dim
	return s.IDs[i], s.Vectors[off : off+s.Dim]
}

// overlay returns a new snapshot with the entries merged in,
// last-write-wins per fileID. The receiver is unchanged.
func (s *ColdSnapshot) overlay(entries []Entry) *ColdSnapshot {
	replaced := make(map[string][]float32, len(entries))
	for _, e := range entries {
		replaced[e.FileID] = e.Vector
	}

	out := &ColdSnapshot{
		Dim:     s.Dim,
		IDs:     make([]string, 0, len(s.IDs)+len(entries)),
		Vectors: make([]float32, 0, (len(s.IDs)+len(entries))*s.Dim),
	}
	for i, id := range s.IDs {
		vec, ok := replaced[id]
		if ok {
			delete(replaced, id)
		} else {
			off := i * s.Dim
			vec = s.Vectors[off : off+s.Dim]
		}
		out.IDs = append(out.IDs, id)
		out.Vectors = append(out.Vectors, vec...)
	}

	// Entries for new keys keep their drain order (sorted by fileID).
	for _, e := range entries {
		if vec, ok := replaced[e.FileID]; ok {
			out.IDs = append(out.IDs, e.FileID)
			out.Vectors = append(out.Vectors, vec...)
			delete(replaced, e.FileID)
		}
	}
	return out
}
