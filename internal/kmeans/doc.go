// Package kmeans implements Lloyd's algorithm over flattened float32
// vectors. It backs the IVF index's partitioning step.
//
// Callers are expected to pass L2-normalized vectors when the target
// metric is cosine similarity; on unit vectors squared L2 ordering is
// equivalent to cosine ordering.
package kmeans
