package wal

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodex/embedstore/internal/compress"
)

func TestWAL_AppendReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, Options{})
	require.NoError(t, err)

	require.NoError(t, w.AppendUpsert("effnet", "track-1", []float32{1, 0}, 1))
	require.NoError(t, w.AppendUpsert("effnet", "track-2", []float32{0, 1}, 2))
	require.NoError(t, w.AppendUpsert("musicnn", "track-1", []float32{0.5, 0.5, 0.5}, 1))
	require.NoError(t, w.Close())

	w, err = Open(dir, Options{})
	require.NoError(t, err)
	defer w.Close()

	records, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "effnet", records[0].Backbone)
	assert.Equal(t, "track-1", records[0].FileID)
	assert.Equal(t, []float32{1, 0}, records[0].Vector)
	assert.Equal(t, uint64(1), records[0].Seq)
	assert.Equal(t, "musicnn", records[2].Backbone)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, records[2].Vector)
}

func TestWAL_CheckpointFiltersReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, Options{})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AppendUpsert("effnet", "a", []float32{1}, 1))
	require.NoError(t, w.AppendUpsert("effnet", "b", []float32{2}, 2))
	require.NoError(t, w.AppendUpsert("musicnn", "a", []float32{3}, 1))
	require.NoError(t, w.AppendCheckpoint("effnet", 2))
	require.NoError(t, w.AppendUpsert("effnet", "c", []float32{4}, 3))

	records, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The checkpoint only covers effnet seq <= 2.
	assert.Equal(t, "musicnn", records[0].Backbone)
	assert.Equal(t, "c", records[1].FileID)
	assert.Equal(t, uint64(3), records[1].Seq)
}

func TestWAL_Compact(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, Options{})
	require.NoError(t, err)
	defer w.Close()

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, w.AppendUpsert("effnet", "a", []float32{float32(i)}, i))
	}
	require.NoError(t, w.AppendCheckpoint("effnet", 9))

	before, err := os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)

	require.NoError(t, w.Compact())

	after, err := os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Less(t, after.Size(), before.Size())

	records, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(10), records[0].Seq)
	assert.Equal(t, []float32{10}, records[0].Vector)

	// The log stays appendable after compaction.
	require.NoError(t, w.AppendUpsert("effnet", "b", []float32{11}, 11))
	records, err = w.Replay()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestWAL_Compressed(t *testing.T) {
	for _, ctype := range []compress.Type{compress.LZ4, compress.ZSTD} {
		t.Run(ctype.String(), func(t *testing.T) {
			dir := t.TempDir()

			w, err := Open(dir, Options{Compression: ctype})
			require.NoError(t, err)

			vec := make([]float32, 256)
			for i := range vec {
				vec[i] = 0.25
			}
			require.NoError(t, w.AppendUpsert("effnet", "a", vec, 1))
			require.NoError(t, w.Close())

			// Reopen without stating the compression; the header
			// carries it.
			w, err = Open(dir, Options{})
			require.NoError(t, err)
			defer w.Close()

			records, err := w.Replay()
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, vec, records[0].Vector)
		})
	}
}

func TestWAL_TruncatedTail(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, Options{})
	require.NoError(t, err)
	require.NoError(t, w.AppendUpsert("effnet", "a", []float32{1, 2}, 1))
	require.NoError(t, w.AppendUpsert("effnet", "b", []float32{3, 4}, 2))
	require.NoError(t, w.Close())

	// Chop a few bytes off the final record, as a crash mid-append
	// would.
	path := filepath.Join(dir, FileName)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	w, err = Open(dir, Options{})
	require.NoError(t, err)
	defer w.Close()

	records, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].FileID)
}

func TestWAL_BadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("not a wal file at all"), 0o644))

	_, err := Open(dir, Options{})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestWAL_OversizedIdentifier(t *testing.T) {
	w, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	defer w.Close()

	huge := strings.Repeat("x", math.MaxUint16+1)

	err = w.AppendUpsert("effnet", huge, []float32{1}, 1)
	assert.ErrorIs(t, err, ErrKeyTooLong)
	err = w.AppendUpsert(huge, "track-1", []float32{1}, 1)
	assert.ErrorIs(t, err, ErrKeyTooLong)
	err = w.AppendCheckpoint(huge, 1)
	assert.ErrorIs(t, err, ErrKeyTooLong)

	// A rejected identifier leaves nothing in the log; the boundary
	// length still goes through intact.
	edge := strings.Repeat("y", math.MaxUint16)
	require.NoError(t, w.AppendUpsert("effnet", edge, []float32{2}, 2))

	records, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, edge, records[0].FileID)
}

func TestWAL_EmptyReplay(t *testing.T) {
	w, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	defer w.Close()

	records, err := w.Replay()
	require.NoError(t, err)
	assert.Empty(t, records)
}
