// Package vecstore implements the tiered record store for per-track
// embedding vectors.
//
// Vectors are keyed by (backbone, fileID). Each backbone owns two
// partitions:
//
//   - Hot: an upsert-optimized keyed buffer fed continuously by the
//     tagging pipeline. Every write is stamped with a per-backbone
//     monotonic sequence number; a drain captures a snapshot plus the
//     sequence watermark, and eviction removes exactly the entries at
//     or below that watermark. Writes landing after the watermark
//     survive eviction, which is what lets promotion run concurrently
//     with ingestion without losing or double-applying writes.
//
//   - Cold: a columnar bulk store (flattened float32 rows) written only
//     by promotion merges. Rows superseded by a re-merged key are
//     tombstoned in a Roaring bitmap and physically dropped by
//     compaction once the dead fraction grows.
//
// A backbone is registered implicitly by its first upsert, which also
// fixes its dimensionality for good.
package vecstore
