package embedstore

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/melodex/embedstore/annindex"
)

// PromoteStatus reports the outcome of a promotion cycle.
type PromoteStatus string

const (
	// StatusPromoted means hot entries were merged and a new index
	// was published.
	StatusPromoted PromoteStatus = "promoted"
	// StatusNoOp means the hot tier was empty and a current index was
	// already published, so nothing needed to move.
	StatusNoOp PromoteStatus = "noop"
)

// PromoteResult summarizes a completed promotion.
type PromoteResult struct {
	Backbone  string
	Status    PromoteStatus
	Promoted  int
	ColdCount int
	ListCount int
	Message   string
}

// Promote runs one promotion cycle for a backbone: drain the hot
// tier at a sequence watermark, build a replacement index over the
// merged view, publish it by pointer swap, and only then fold the
// drained entries into the cold tier and evict them from hot.
//
// Any failure before publish leaves both tiers and the published
// index exactly as they were. Upserts are never blocked; entries
// written after the drain watermark stay hot for the next cycle.
//
// At most one promotion per backbone runs at a time; a second request
// while one is in flight fails fast with ErrPromotionConflict.
// Promotions of distinct backbones proceed independently.
// Per-call build overrides (e.g. pinning the IVF list count) are
// applied on top of any store-level WithIndexOptions.
func (s *Store) Promote(ctx context.Context, backbone string, optFns ...func(*annindex.BuildOptions)) (*PromoteResult, error) {
	start := time.Now()
	res, err := s.promote(ctx, backbone, optFns)
	promoted := 0
	listCount := 0
	if res != nil {
		promoted = res.Promoted
		listCount = res.ListCount
	}
	s.opts.metricsCollector.RecordPromotion(promoted, time.Since(start), err)
	s.opts.logger.LogPromotion(ctx, backbone, promoted, listCount, time.Since(start), err)
	return res, err
}

func (s *Store) promote(ctx context.Context, backbone string, optFns []func(*annindex.BuildOptions)) (*PromoteResult, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	sem := s.promotionPermit(backbone)
	if !sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %s", ErrPromotionConflict, backbone)
	}
	defer sem.Release(1)

	// Draining: snapshot the hot tier at a watermark. Nothing is
	// removed yet.
	entries, watermark, err := s.records.DrainHotSnapshot(backbone)
	if err != nil {
		return nil, translateError(err)
	}

	if len(entries) == 0 && s.indexes.Exists(backbone) {
		meta, _ := s.indexes.Metadata(backbone)
		return &PromoteResult{
			Backbone:  backbone,
			Status:    StatusNoOp,
			ColdCount: s.records.CountCold(backbone),
			ListCount: meta.ListCount,
			Message:   "hot tier empty, published index already current",
		}, nil
	}

	// Merging: a non-mutating view of cold plus the drained entries.
	// The cold tier itself changes only after publish succeeds.
	merged, err := s.records.MergedColdSnapshot(backbone, entries)
	if err != nil {
		return nil, translateError(err)
	}

	// Indexing: build the replacement over the merged view.
	buildOpts := &annindex.BuildOptions{}
	for _, fn := range s.opts.indexOptions {
		fn(buildOpts)
	}
	for _, fn := range optFns {
		fn(buildOpts)
	}
	idx, err := annindex.Build(ctx, backbone, merged, buildOpts)
	if err != nil {
		return nil, &PromotionError{Backbone: backbone, Stage: "indexing", cause: err}
	}

	// Publishing: the commit point. Readers swap to the new index
	// atomically; everything after this is cleanup that cannot undo
	// the promotion.
	s.indexes.Publish(idx)

	if err := s.records.ApplyMerge(backbone, entries); err != nil {
		return nil, &PromotionError{Backbone: backbone, Stage: "merging", cause: err}
	}
	s.records.EvictHotUpTo(backbone, watermark)

	// The cold snapshot must be durable before the WAL forgets the
	// promoted upserts: checkpointing first would leave a crash window
	// where acknowledged vectors exist in neither the snapshot nor the
	// log.
	if s.blobs != nil {
		if err := s.persistBackbone(ctx, backbone, merged, idx.Metadata()); err != nil {
			return nil, &PromotionError{Backbone: backbone, Stage: "persisting", cause: err}
		}
	}

	if s.log != nil && len(entries) > 0 {
		if err := s.log.AppendCheckpoint(backbone, watermark); err != nil {
			return nil, &PromotionError{Backbone: backbone, Stage: "checkpointing", cause: err}
		}
		if err := s.log.Compact(); err != nil {
			return nil, &PromotionError{Backbone: backbone, Stage: "checkpointing", cause: err}
		}
	}

	return &PromoteResult{
		Backbone:  backbone,
		Status:    StatusPromoted,
		Promoted:  len(entries),
		ColdCount: merged.Len(),
		ListCount: idx.Metadata().ListCount,
		Message:   fmt.Sprintf("merged %d hot entries, cold tier now %d", len(entries), merged.Len()),
	}, nil
}

// PromoteAll promotes every registered backbone concurrently and
// returns the results sorted by backbone name. The first failure
// cancels the remaining promotions.
func (s *Store) PromoteAll(ctx context.Context) ([]*PromoteResult, error) {
	names := s.records.Backbones()
	results := make([]*PromoteResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			res, err := s.Promote(gctx, name)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
