// Package annindex builds and serves the approximate-nearest-neighbor
// indexes that back similarity search over the cold tier.
//
// The index is an inverted-file (IVF) layout: vectors are partitioned
// into lists by k-means on their L2-normalized forms, and a search
// probes only the lists whose centroids are closest to the query.
// Since all scoring is cosine, squared L2 on unit vectors gives the
// same ordering, which is what the clustering runs on.
//
// Indexes are immutable once built. The Manager publishes a newly
// built index by swapping the pointer for its backbone; readers hold
// whatever index was current when their search began.
package annindex
