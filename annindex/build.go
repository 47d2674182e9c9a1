package annindex

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/melodex/embedstore/distance"
	"github.com/melodex/embedstore/internal/kmeans"
	"github.com/melodex/embedstore/vecstore"
)

const (
	// MinListCount and MaxListCount bound the automatically derived
	// IVF list count.
	MinListCount = 4
	MaxListCount = 1024

	defaultMaxIterations = 25
)

// BuildOptions tunes index construction.
type BuildOptions struct {
	// ListCount is the number of IVF lists. Zero derives it from the
	// dataset size.
	ListCount int

	// ProbeCount is the number of lists a search probes. Zero derives
	// it from the list count.
	ProbeCount int

	// MaxIterations caps the k-means refinement loop.
	MaxIterations int

	// Seed drives centroid initialization. Builds with the same seed
	// over the same data are reproducible.
	Seed int64

	// Parallelism caps concurrent workers during list assignment.
	// Zero means GOMAXPROCS.
	Parallelism int
}

func (o *BuildOptions) withDefaults() BuildOptions {
	opts := BuildOptions{}
	if o != nil {
		opts = *o
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return opts
}

// DeriveListCount picks an IVF list count for n vectors: sqrt(n),
// clamped to [MinListCount, MaxListCount] and never above n.
func DeriveListCount(n int) int {
	if n <= 0 {
		return 0
	}
	lists := int(math.Round(math.Sqrt(float64(n))))
	if lists < MinListCount {
		lists = MinListCount
	}
	if lists > MaxListCount {
		lists = MaxListCount
	}
	if lists > n {
		lists = n
	}
	return lists
}

// Build constructs an immutable IVF index from a cold snapshot. The
// snapshot may be empty, which yields a valid index that matches
// nothing.
func Build(ctx context.Context, backbone string, snap *vecstore.ColdSnapshot, opts *BuildOptions) (*Index, error) {
	o := opts.withDefaults()

	n := snap.Len()
	lists := o.ListCount
	if lists <= 0 {
		lists = DeriveListCount(n)
	}
	if lists > n {
		lists = n
	}

	probes := o.ProbeCount
	if probes <= 0 {
		probes = lists / 4
	}
	if probes < 1 {
		probes = 1
	}
	if probes > lists && lists > 0 {
		probes = lists
	}

	idx := &Index{
		backbone: backbone,
		dim:      snap.Dim,
		ids:      snap.IDs,
		vectors:  snap.Vectors,
		norms:    make([]float32, n),
		probes:   probes,
		meta: Metadata{
			Backbone:    backbone,
			BuiltAt:     time.Now().UTC(),
			SizeAtBuild: n,
			ListCount:   lists,
		},
	}

	if n == 0 {
		return idx, nil
	}

	// Cluster on normalized copies so squared L2 orders like cosine.
	normalized := make([]float32, len(snap.Vectors))
	copy(normalized, snap.Vectors)
	for i := 0; i < n; i++ {
		off := i * snap.Dim
		row := normalized[off : off+snap.Dim]
		if !distance.NormalizeL2InPlace(row) {
			return nil, fmt.Errorf("annindex: zero-norm vector at row %d (%s)", i, snap.IDs[i])
		}
		idx.norms[i] = distance.Norm(snap.Vectors[off : off+snap.Dim])
	}

	if lists <= 1 {
		// A single posting list is just a brute scan.
		idx.postings = [][]int32{all(n)}
		idx.centroids = centroidOf(normalized, snap.Dim)
		return idx, nil
	}

	rng := rand.New(rand.NewSource(o.Seed))
	idx.centroids = kmeans.Train(normalized, snap.Dim, lists, o.MaxIterations, rng)

	assignments := make([]int32, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Parallelism)

	const chunk = 1024
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		start, end := start, end
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				off := i * snap.Dim
				assignments[i] = int32(kmeans.Assign(normalized[off:off+snap.Dim], idx.centroids, snap.Dim))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("annindex: build %s: %w", backbone, err)
	}

	idx.postings = make([][]int32, lists)
	for i, list := range assignments {
		idx.postings[list] = append(idx.postings[list], int32(i))
	}
	return idx, nil
}

func all(n int) []int32 {
	rows := make([]int32, n)
	for i := range rows {
		rows[i] = int32(i)
	}
	return rows
}

func centroidOf(vectors []float32, dim int) []float32 {
	centroid := make([]float32, dim)
	n := len(vectors) / dim
	for i := 0; i < n; i++ {
		off := i * dim
		for d := 0; d < dim; d++ {
			centroid[d] += vectors[off+d]
		}
	}
	for d := 0; d < dim; d++ {
		centroid[d] /= float32(n)
	}
	return centroid
}
