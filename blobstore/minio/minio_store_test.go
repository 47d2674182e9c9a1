package minio

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"github.com/melodex/embedstore/blobstore"
)

func TestStore_KeyJoining(t *testing.T) {
	s := NewStore(nil, "embeddings", "melodex")
	assert.Equal(t, "melodex/cold/effnet.snap", s.key("cold/effnet.snap"))

	// A trailing slash on the prefix must not double up.
	s = NewStore(nil, "embeddings", "melodex/")
	assert.Equal(t, "melodex/cold/effnet.snap", s.key("cold/effnet.snap"))

	s = NewStore(nil, "embeddings", "")
	assert.Equal(t, "cold/effnet.snap", s.key("cold/effnet.snap"))
}

func TestStore_TrimKey(t *testing.T) {
	s := NewStore(nil, "embeddings", "melodex")
	assert.Equal(t, "cold/effnet.snap", s.trimKey("melodex/cold/effnet.snap"))
	assert.Equal(t, "", s.trimKey("melodex"))

	s = NewStore(nil, "embeddings", "melodex/")
	assert.Equal(t, "cold/effnet.snap", s.trimKey("melodex/cold/effnet.snap"))

	s = NewStore(nil, "embeddings", "")
	assert.Equal(t, "manifest.json", s.trimKey("manifest.json"))
}

func TestStore_RoundTripKeyMapping(t *testing.T) {
	for _, prefix := range []string{"", "melodex", "melodex/", "a/b"} {
		s := NewStore(nil, "embeddings", prefix)
		for _, name := range []string{"manifest.json", "cold/effnet.snap"} {
			assert.Equal(t, name, s.trimKey(s.key(name)), "prefix %q name %q", prefix, name)
		}
	}
}

func TestTranslateErr(t *testing.T) {
	assert.ErrorIs(t, translateErr(minio.ErrorResponse{Code: "NoSuchKey"}), blobstore.ErrNotFound)
	assert.ErrorIs(t, translateErr(minio.ErrorResponse{Code: "NotFound"}), blobstore.ErrNotFound)

	// Anything else passes through untranslated.
	accessDenied := minio.ErrorResponse{Code: "AccessDenied"}
	assert.Equal(t, error(accessDenied), translateErr(accessDenied))

	plain := errors.New("connection refused")
	assert.Equal(t, plain, translateErr(plain))
}
