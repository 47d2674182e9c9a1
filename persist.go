package embedstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/melodex/embedstore/annindex"
	"github.com/melodex/embedstore/blobstore"
	"github.com/melodex/embedstore/codec"
	"github.com/melodex/embedstore/internal/compress"
	"github.com/melodex/embedstore/vecstore"
)

// On-disk layout under the blob store root:
//
//	manifest.json        codec-encoded manifest
//	cold/<backbone>.snap binary cold snapshot
const (
	manifestBlob   = "manifest.json"
	coldBlobPrefix = "cold/"

	snapshotVersion = 1
)

var snapshotMagic = [4]byte{'M', 'X', 'S', 'N'}

type manifest struct {
	Version   int                         `json:"version"`
	Codec     string                      `json:"codec"`
	UpdatedAt time.Time                   `json:"updated_at"`
	Backbones map[string]manifestBackbone `json:"backbones"`
}

type manifestBackbone struct {
	Dimension int       `json:"dimension"`
	Blob      string    `json:"blob"`
	ColdCount int       `json:"cold_count"`
	ListCount int       `json:"list_count"`
	BuiltAt   time.Time `json:"built_at"`
}

func coldBlobName(backbone string) string {
	return coldBlobPrefix + backbone + ".snap"
}

// loadState restores cold partitions from persisted snapshots and
// rebuilds their indexes. Index rebuild reuses the persisted list
// count; built_at reflects the rebuild, not the original build.
func (s *Store) loadState(ctx context.Context) error {
	data, err := s.blobs.Get(ctx, manifestBlob)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil // fresh store
		}
		return fmt.Errorf("read manifest: %w", err)
	}

	m, err := s.decodeManifest(data)
	if err != nil {
		return err
	}

	for name, mb := range m.Backbones {
		blob, err := s.blobs.Get(ctx, mb.Blob)
		if err != nil {
			return fmt.Errorf("read snapshot for %q: %w", name, err)
		}
		snap, err := decodeSnapshot(blob)
		if err != nil {
			return fmt.Errorf("decode snapshot for %q: %w", name, err)
		}
		if snap.Dim != mb.Dimension {
			return fmt.Errorf("snapshot for %q has dimension %d, manifest says %d", name, snap.Dim, mb.Dimension)
		}
		if err := s.records.LoadCold(name, snap.Dim, snap.IDs, snap.Vectors); err != nil {
			return fmt.Errorf("load cold tier for %q: %w", name, err)
		}

		buildOpts := &annindex.BuildOptions{ListCount: mb.ListCount}
		for _, fn := range s.opts.indexOptions {
			fn(buildOpts)
		}
		idx, err := annindex.Build(ctx, name, snap, buildOpts)
		if err != nil {
			return fmt.Errorf("rebuild index for %q: %w", name, err)
		}
		s.indexes.Publish(idx)
	}
	return nil
}

// persistBackbone writes the cold snapshot for one backbone and folds
// it into the manifest.
func (s *Store) persistBackbone(ctx context.Context, backbone string, snap *vecstore.ColdSnapshot, meta annindex.Metadata) error {
	blobName := coldBlobName(backbone)

	data, err := encodeSnapshot(snap, s.opts.compression)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.blobs.Put(ctx, blobName, data); err != nil {
		s.opts.logger.LogSnapshot(ctx, backbone, blobName, err)
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.opts.logger.LogSnapshot(ctx, backbone, blobName, nil)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	m := manifest{Version: 1, Backbones: make(map[string]manifestBackbone)}
	if data, err := s.blobs.Get(ctx, manifestBlob); err == nil {
		decoded, err := s.decodeManifest(data)
		if err != nil {
			return err
		}
		m = decoded
	} else if !errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("read manifest: %w", err)
	}
	if m.Backbones == nil {
		m.Backbones = make(map[string]manifestBackbone)
	}

	m.Codec = s.opts.codec.Name()
	m.UpdatedAt = time.Now().UTC()
	m.Backbones[backbone] = manifestBackbone{
		Dimension: snap.Dim,
		Blob:      blobName,
		ColdCount: snap.Len(),
		ListCount: meta.ListCount,
		BuiltAt:   meta.BuiltAt,
	}

	encoded, err := s.opts.codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := s.blobs.Put(ctx, manifestBlob, encoded); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// decodeManifest parses manifest bytes, honoring the codec name the
// file records: a manifest written under a different configured codec
// is re-decoded with the codec it names.
func (s *Store) decodeManifest(data []byte) (manifest, error) {
	var m manifest
	if err := s.opts.codec.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Codec == "" || m.Codec == s.opts.codec.Name() {
		return m, nil
	}

	c, ok := codec.ByName(m.Codec)
	if !ok {
		return manifest{}, fmt.Errorf("manifest written with unknown codec %q", m.Codec)
	}
	m = manifest{}
	if err := c.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("decode manifest with codec %s: %w", c.Name(), err)
	}
	return m, nil
}

// replayWAL reinstates unpromoted hot entries from the log.
func (s *Store) replayWAL(ctx context.Context) error {
	records, err := s.log.Replay()
	if err != nil {
		s.opts.logger.LogRecovery(ctx, 0, err)
		return err
	}
	for _, rec := range records {
		if err := s.records.RestoreHot(rec.Backbone, rec.FileID, rec.Vector, rec.Seq); err != nil {
			s.opts.logger.LogRecovery(ctx, len(records), err)
			return err
		}
	}
	s.opts.logger.LogRecovery(ctx, len(records), nil)
	return nil
}

// Snapshot layout: a fixed header followed by one compression block.
//
//	[magic 4][version u16][compression u8][reserved u8][dim u32][count u32]
//	[compress.Block of rows]
//
// Each row is [idLen u16][id bytes][dim * float32 LE].
func encodeSnapshot(snap *vecstore.ColdSnapshot, ctype compress.Type) ([]byte, error) {
	payload := make([]byte, 0, snap.Len()*(16+snap.Dim*4))
	for i := 0; i < snap.Len(); i++ {
		id, vec := snap.At(i)
		payload = binary.LittleEndian.AppendUint16(payload, uint16(len(id)))
		payload = append(payload, id...)
		for _, v := range vec {
			payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(v))
		}
	}

	block, err := compress.Block(payload, ctype)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 16+len(block))
	out = append(out, snapshotMagic[:]...)
	out = binary.LittleEndian.AppendUint16(out, snapshotVersion)
	out = append(out, byte(ctype), 0)
	out = binary.LittleEndian.AppendUint32(out, uint32(snap.Dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(snap.Len()))
	out = append(out, block...)
	return out, nil
}

func decodeSnapshot(data []byte) (*vecstore.ColdSnapshot, error) {
	if len(data) < 16 {
		return nil, errors.New("snapshot too short")
	}
	if [4]byte(data[0:4]) != snapshotMagic {
		return nil, errors.New("snapshot has bad magic")
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", v)
	}
	ctype := compress.Type(data[6])
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	count := int(binary.LittleEndian.Uint32(data[12:16]))

	payload, err := compress.Unblock(data[16:], ctype)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	snap := &vecstore.ColdSnapshot{
		Dim:     dim,
		IDs:     make([]string, 0, count),
		Vectors: make([]float32, 0, count*dim),
	}
	for i := 0; i < count; i++ {
		if len(payload) < 2 {
			return nil, errors.New("snapshot row truncated")
		}
		idLen := int(binary.LittleEndian.Uint16(payload))
		payload = payload[2:]
		if len(payload) < idLen+dim*4 {
			return nil, errors.New("snapshot row truncated")
		}
		snap.IDs = append(snap.IDs, string(payload[:idLen]))
		payload = payload[idLen:]
		for d := 0; d < dim; d++ {
			snap.Vectors = append(snap.Vectors, math.Float32frombits(binary.LittleEndian.Uint32(payload[d*4:])))
		}
		payload = payload[dim*4:]
	}
	if len(payload) != 0 {
		return nil, errors.New("snapshot has trailing bytes")
	}
	return snap, nil
}
