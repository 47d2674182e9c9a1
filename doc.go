// Package embedstore is an embedded tiered vector store for audio
// embedding workloads.
//
// A music-library manager tags tracks with embedding vectors produced
// by ML backbones (EfficientNet-audio, MusiCNN, and so on). Each
// backbone gets two partitions: a write-optimized Hot tier absorbing
// the steady upsert stream from the tagging pipeline, and a
// read-optimized Cold tier backing similarity search through an
// immutable ANN index. A background promotion moves drained hot
// entries into cold and publishes a freshly built index by pointer
// swap, without ever blocking concurrent upserts.
//
// Basic usage:
//
//	store, err := embedstore.Open(ctx)
//	if err != nil { ... }
//	defer store.Close()
//
//	_ = store.Upsert(ctx, "effnet", "track-001", vec)
//
//	res, err := store.Promote(ctx, "effnet")
//	hits, err := store.Search(ctx, "effnet", query,
//		embedstore.WithLimit(10), embedstore.WithMinScore(0.3))
//
// Search serves the index only; freshly upserted vectors become
// searchable after the next promotion. GetVector reads both tiers and
// always reflects the latest upsert.
package embedstore
