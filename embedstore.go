package embedstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/melodex/embedstore/annindex"
	"github.com/melodex/embedstore/blobstore"
	"github.com/melodex/embedstore/vecstore"
	"github.com/melodex/embedstore/wal"
)

// Tier identifies which partition a vector was read from.
type Tier string

const (
	// TierHot is the write-optimized partition.
	TierHot Tier = "hot"
	// TierCold is the read-optimized partition.
	TierCold Tier = "cold"
)

// VectorRecord is a point-lookup result.
type VectorRecord struct {
	Backbone string
	FileID   string
	Vector   []float32
	Tier     Tier
}

// SearchResult is a single similarity-search hit.
type SearchResult struct {
	FileID string
	Score  float32
	Vector []float32
}

// BackboneStats describes one backbone's partitions and index.
type BackboneStats struct {
	Backbone         string
	Dimension        int
	HotCount         int
	ColdCount        int
	IndexPresent     bool
	IndexBuiltAt     time.Time
	IndexSizeAtBuild int
	IndexListCount   int
}

// Store is the tiered embedding store. All methods are safe for
// concurrent use.
type Store struct {
	opts    options
	records *vecstore.Store
	indexes *annindex.Manager
	blobs   blobstore.BlobStore
	log     *wal.WAL
	limiter *rate.Limiter
	closed  atomic.Bool

	// One permit per backbone keeps promotions mutually exclusive
	// without serializing promotions across backbones.
	promoMu sync.Mutex
	promos  map[string]*semaphore.Weighted

	// Serializes manifest read-modify-write cycles.
	persistMu sync.Mutex
}

// Open creates a Store, loading any persisted state when a data
// directory or blob store is configured.
func Open(ctx context.Context, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)

	s := &Store{
		opts:    opts,
		records: vecstore.New(),
		indexes: annindex.NewManager(),
		blobs:   opts.blobStore,
		promos:  make(map[string]*semaphore.Weighted),
	}

	if opts.ingestLimit > 0 {
		burst := opts.ingestBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(opts.ingestLimit, burst)
	}

	if s.blobs == nil && opts.dataDir != "" {
		s.blobs = blobstore.NewLocalStore(opts.dataDir)
	}

	if s.blobs != nil {
		if err := s.loadState(ctx); err != nil {
			return nil, fmt.Errorf("embedstore: load state: %w", err)
		}
	}

	if opts.walEnabled {
		if opts.dataDir == "" {
			return nil, fmt.Errorf("embedstore: WAL requires a data directory")
		}
		walOpts := wal.Options{Compression: opts.compression}
		for _, fn := range opts.walOptions {
			fn(&walOpts)
		}
		w, err := wal.Open(opts.dataDir, walOpts)
		if err != nil {
			return nil, fmt.Errorf("embedstore: open WAL: %w", err)
		}
		s.log = w

		if err := s.replayWAL(ctx); err != nil {
			w.Close()
			return nil, fmt.Errorf("embedstore: replay WAL: %w", err)
		}
	}

	return s, nil
}

// Upsert writes a vector for (backbone, fileID) into the hot tier.
// The first upsert for a backbone fixes its dimensionality; later
// writes with a different dimensionality fail with
// ErrDimensionMismatch. Re-upserting a fileID replaces its vector.
//
// The write is immediately visible to GetVector but becomes
// searchable only after the next promotion.
func (s *Store) Upsert(ctx context.Context, backbone, fileID string, vector []float32) error {
	start := time.Now()
	err := s.upsert(ctx, backbone, fileID, vector)
	s.opts.metricsCollector.RecordUpsert(time.Since(start), err)
	s.opts.logger.LogUpsert(ctx, backbone, fileID, len(vector), err)
	return err
}

func (s *Store) upsert(ctx context.Context, backbone, fileID string, vector []float32) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	seq, err := s.records.Upsert(backbone, fileID, vector)
	if err != nil {
		return translateError(err)
	}

	if s.log != nil {
		if err := s.log.AppendUpsert(backbone, fileID, vector, seq); err != nil {
			return fmt.Errorf("embedstore: log upsert: %w", err)
		}
	}
	return nil
}

// Search runs an ANN similarity query against the published index for
// a backbone. Results are ordered by descending cosine score, ties
// broken by ascending file id. Returns ErrIndexMissing until the
// first promotion publishes an index; hot-tier entries are never
// searched.
func (s *Store) Search(ctx context.Context, backbone string, query []float32, optFns ...SearchOption) ([]SearchResult, error) {
	start := time.Now()
	so := applySearchOptions(optFns)
	results, err := s.search(backbone, query, so)
	s.opts.metricsCollector.RecordSearch(so.limit, time.Since(start), err)
	s.opts.logger.LogSearch(ctx, backbone, so.limit, len(results), err)
	return results, err
}

func (s *Store) search(backbone string, query []float32, so searchOptions) ([]SearchResult, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	hits, err := s.indexes.Query(backbone, query, so.limit, so.minScore)
	if err != nil {
		return nil, translateError(err)
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{
			FileID: h.FileID,
			Score:  h.Score,
			Vector: h.Vector,
		}
	}
	return results, nil
}

// GetVector returns the stored vector for (backbone, fileID),
// regardless of tier. The hot tier wins when the key is present in
// both, since it holds the most recent upsert. Returns ErrNotFound
// when the key exists in neither tier.
func (s *Store) GetVector(ctx context.Context, backbone, fileID string) (*VectorRecord, error) {
	start := time.Now()
	rec, err := s.getVector(backbone, fileID)
	s.opts.metricsCollector.RecordGetVector(time.Since(start), err)
	return rec, err
}

func (s *Store) getVector(backbone, fileID string) (*VectorRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	if vec, ok := s.records.GetHot(backbone, fileID); ok {
		return &VectorRecord{Backbone: backbone, FileID: fileID, Vector: vec, Tier: TierHot}, nil
	}
	if vec, ok := s.records.GetCold(backbone, fileID); ok {
		return &VectorRecord{Backbone: backbone, FileID: fileID, Vector: vec, Tier: TierCold}, nil
	}
	return nil, fmt.Errorf("%w: backbone %q file %q", ErrNotFound, backbone, fileID)
}

// Stats returns per-backbone partition sizes and index metadata,
// sorted by backbone name.
func (s *Store) Stats(ctx context.Context) ([]BackboneStats, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	names := s.records.Backbones()
	stats := make([]BackboneStats, 0, len(names))
	for _, name := range names {
		dim, _ := s.records.Dimension(name)
		bs := BackboneStats{
			Backbone:  name,
			Dimension: dim,
			HotCount:  s.records.CountHot(name),
			ColdCount: s.records.CountCold(name),
		}
		if meta, err := s.indexes.Metadata(name); err == nil {
			bs.IndexPresent = true
			bs.IndexBuiltAt = meta.BuiltAt
			bs.IndexSizeAtBuild = meta.SizeAtBuild
			bs.IndexListCount = meta.ListCount
		}
		stats = append(stats, bs)
	}
	return stats, nil
}

// IndexMetadata returns the published index metadata for a backbone,
// or ErrIndexMissing.
func (s *Store) IndexMetadata(backbone string) (annindex.Metadata, error) {
	meta, err := s.indexes.Metadata(backbone)
	if err != nil {
		return annindex.Metadata{}, translateError(err)
	}
	return meta, nil
}

// Backbones returns all registered backbone names, sorted.
func (s *Store) Backbones() []string {
	return s.records.Backbones()
}

// Close flushes and closes the store. Further operations return
// ErrClosed. Close is idempotent.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.log != nil {
		return s.log.Close()
	}
	return nil
}

func (s *Store) promotionPermit(backbone string) *semaphore.Weighted {
	s.promoMu.Lock()
	defer s.promoMu.Unlock()

	sem, ok := s.promos[backbone]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.promos[backbone] = sem
	}
	return sem
}
