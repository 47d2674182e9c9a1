package vecstore

import (
	"slices"
	"sort"
	"sync"
)

type hotEntry struct {
	vector []float32
	seq    uint64
}

// hotPartition is the write-optimized keyed buffer. A plain map keyed
// by fileID gives O(1) upserts and natural last-write-wins semantics;
// the per-partition sequence counter is what makes watermark eviction
// safe under concurrent writes.
type hotPartition struct {
	mu      sync.RWMutex
	entries map[string]hotEntry
	seq     uint64
}

func newHotPartition() *hotPartition {
	return &hotPartition{
		entries: make(map[string]hotEntry),
	}
}

func (h *hotPartition) upsert(fileID string, vector []float32) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	h.entries[fileID] = hotEntry{
		vector: slices.Clone(vector),
		seq:    h.seq,
	}
	return h.seq
}

// restore reinstates an entry at an explicit sequence number, keeping
// the counter ahead of it. An older seq for a key that already holds a
// newer one is dropped.
func (h *hotPartition) restore(fileID string, vector []float32, seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if seq > h.seq {
		h.seq = seq
	}
	if cur, ok := h.entries[fileID]; ok && cur.seq >= seq {
		return
	}
	h.entries[fileID] = hotEntry{
		vector: slices.Clone(vector),
		seq:    seq,
	}
}

func (h *hotPartition) get(fileID string) ([]float32, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.entries[fileID]
	if !ok {
		return nil, false
	}
	return slices.Clone(e.vector), true
}

func (h *hotPartition) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// snapshot copies out all current entries, sorted by fileID, together
// with the current sequence watermark.
func (h *hotPartition) snapshot() ([]Entry, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := make([]Entry, 0, len(h.entries))
	for fileID, e := range h.entries {
		entries = append(entries, Entry{
			FileID: fileID,
			Vector: slices.Clone(e.vector),
			Seq:    e.seq,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].FileID < entries[j].FileID
	})
	return entries, h.seq
}

// evictUpTo removes entries with seq <= watermark. An entry
// re-upserted after the snapshot carries a higher seq and stays.
func (h *hotPartition) evictUpTo(watermark uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for fileID, e := range h.entries {
		if e.seq <= watermark {
			delete(h.entries, fileID)
		}
	}
}
