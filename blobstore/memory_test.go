package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "a", []byte("x")))

	data, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	src := []byte("abc")
	require.NoError(t, s.Put(ctx, "a", src))
	src[0] = 'z'

	data, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	// Mutating the returned slice must not affect the store either.
	data[0] = 'q'
	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "cold/b", nil))
	require.NoError(t, s.Put(ctx, "cold/a", nil))
	require.NoError(t, s.Put(ctx, "wal/0", nil))

	names, err := s.List(ctx, "cold/")
	require.NoError(t, err)
	assert.Equal(t, []string{"cold/a", "cold/b"}, names)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "a", []byte("x")))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}
