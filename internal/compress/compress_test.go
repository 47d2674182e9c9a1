package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockRoundTrip(t *testing.T) {
	// Compressible payload.
	data := bytes.Repeat([]byte("embedding vector payload "), 100)

	for _, typ := range []Type{None, LZ4, ZSTD} {
		t.Run(typ.String(), func(t *testing.T) {
			block, err := Block(data, typ)
			require.NoError(t, err)

			if typ != None {
				assert.Less(t, len(block), len(data))
			}

			out, err := Unblock(block, typ)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestBlock_IncompressibleFallsBackToRaw(t *testing.T) {
	// Tiny high-entropy payload that no codec shrinks.
	data := []byte{0x7f, 0x01, 0xc3, 0x9a}

	for _, typ := range []Type{LZ4, ZSTD} {
		block, err := Block(data, typ)
		require.NoError(t, err)

		out, err := Unblock(block, typ)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}
}

func TestBlock_Empty(t *testing.T) {
	block, err := Block(nil, ZSTD)
	require.NoError(t, err)

	out, err := Unblock(block, ZSTD)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUnblock_Truncated(t *testing.T) {
	_, err := Unblock([]byte{1, 2, 3}, ZSTD)
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("zstd")
	require.NoError(t, err)
	assert.Equal(t, ZSTD, typ)

	typ, err = ParseType("")
	require.NoError(t, err)
	assert.Equal(t, None, typ)

	_, err = ParseType("snappy")
	assert.Error(t, err)
}
