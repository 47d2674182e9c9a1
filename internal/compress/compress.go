// Package compress provides self-describing block compression for the
// WAL and cold snapshot files.
//
// Block format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// If CompressedSize == 0, Data is stored raw. The algorithm is not part
// of the block; callers record it in their own file headers.
package compress

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used for a block stream.
type Type uint8

const (
	// None stores blocks raw.
	None Type = 0
	// LZ4 uses LZ4 block compression (fast, good for WAL appends).
	LZ4 Type = 1
	// ZSTD uses zstd block compression (better ratio, good for snapshots).
	ZSTD Type = 2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseType returns the Type for a stable name, as stored in manifests.
func ParseType(name string) (Type, error) {
	switch name {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("compress: unknown type %q", name)
	}
}

const headerSize = 8

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Block compresses data with the given algorithm and returns a
// self-describing block. Falls back to raw storage when compression
// does not shrink the payload.
func Block(data []byte, t Type) ([]byte, error) {
	var compressed []byte

	switch t {
	case None:
		// Stored raw below.
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4: %w", err)
		}
		if n > 0 && n < len(data) {
			compressed = buf[:n]
		}
	case ZSTD:
		enc := getZstdEncoder()
		out := enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
		if len(out) < len(data) {
			compressed = out
		}
	default:
		return nil, fmt.Errorf("compress: unknown type %d", t)
	}

	if compressed == nil {
		block := make([]byte, headerSize+len(data))
		binary.LittleEndian.PutUint32(block[0:4], uint32(len(data)))
		binary.LittleEndian.PutUint32(block[4:8], 0)
		copy(block[headerSize:], data)
		return block, nil
	}

	block := make([]byte, headerSize+len(compressed))
	binary.LittleEndian.PutUint32(block[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(block[4:8], uint32(len(compressed)))
	copy(block[headerSize:], compressed)
	return block, nil
}

// Unblock decompresses a block produced by Block with the same Type.
func Unblock(block []byte, t Type) ([]byte, error) {
	if len(block) < headerSize {
		return nil, fmt.Errorf("compress: block too short: %d bytes", len(block))
	}

	usize := binary.LittleEndian.Uint32(block[0:4])
	csize := binary.LittleEndian.Uint32(block[4:8])
	payload := block[headerSize:]

	if csize == 0 {
		if uint32(len(payload)) != usize {
			return nil, fmt.Errorf("compress: raw block size mismatch: header %d, payload %d", usize, len(payload))
		}
		out := make([]byte, usize)
		copy(out, payload)
		return out, nil
	}

	if uint32(len(payload)) != csize {
		return nil, fmt.Errorf("compress: block size mismatch: header %d, payload %d", csize, len(payload))
	}

	switch t {
	case LZ4:
		out := make([]byte, usize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4: %w", err)
		}
		if uint32(n) != usize {
			return nil, fmt.Errorf("compress: lz4 size mismatch: header %d, got %d", usize, n)
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, usize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("compress: zstd: %w", err)
		}
		if uint32(len(out)) != usize {
			return nil, fmt.Errorf("compress: zstd size mismatch: header %d, got %d", usize, len(out))
		}
		return out, nil
	case None:
		return nil, fmt.Errorf("compress: compressed block with type none")
	default:
		return nil, fmt.Errorf("compress: unknown type %d", t)
	}
}
