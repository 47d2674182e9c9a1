package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	require.NoError(t, s.Put(ctx, "cold/effnet.snap", []byte("payload")))

	data, err := s.Get(ctx, "cold/effnet.snap")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestLocalStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	require.NoError(t, s.Put(ctx, "manifest.json", []byte("v1")))
	require.NoError(t, s.Put(ctx, "manifest.json", []byte("v2")))

	data, err := s.Get(ctx, "manifest.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestLocalStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	require.NoError(t, s.Put(ctx, "a", []byte("x")))
	require.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing blob is not an error.
	assert.NoError(t, s.Delete(ctx, "a"))
}

func TestLocalStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	require.NoError(t, s.Put(ctx, "cold/b.snap", []byte("b")))
	require.NoError(t, s.Put(ctx, "cold/a.snap", []byte("a")))
	require.NoError(t, s.Put(ctx, "manifest.json", []byte("m")))

	names, err := s.List(ctx, "cold/")
	require.NoError(t, err)
	assert.Equal(t, []string{"cold/a.snap", "cold/b.snap"}, names)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"cold/a.snap", "cold/b.snap", "manifest.json"}, all)
}

func TestLocalStore_ListEmptyRoot(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir() + "/does-not-exist")

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
