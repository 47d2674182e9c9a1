package annindex

import (
	"slices"
	"sort"
	"time"

	"github.com/melodex/embedstore/distance"
	"github.com/melodex/embedstore/internal/kmeans"
)

// MaxLimit caps the number of results a single search may return.
const MaxLimit = 100

// Metadata describes a built index.
type Metadata struct {
	Backbone    string    `json:"backbone"`
	BuiltAt     time.Time `json:"built_at"`
	SizeAtBuild int       `json:"size_at_build"`
	ListCount   int       `json:"list_count"`
}

// Result is a single search hit.
type Result struct {
	FileID string
	Score  float32
	Vector []float32
}

// Index is an immutable IVF index over one backbone's cold tier.
// Safe for concurrent reads; never mutated after Build returns.
type Index struct {
	backbone  string
	dim       int
	ids       []string
	vectors   []float32 // raw, row-aligned with ids
	norms     []float32 // precomputed L2 norms per row
	centroids []float32
	postings  [][]int32
	probes    int
	meta      Metadata
}

// Metadata returns the build metadata.
func (x *Index) Metadata() Metadata {
	return x.meta
}

// Dim returns the vector dimensionality.
func (x *Index) Dim() int {
	return x.dim
}

type scored struct {
	row   int32
	score float32
}

// Search returns up to limit hits with cosine score >= minScore,
// ordered by descending score with ties broken by ascending file id.
// The limit is clamped to [1, MaxLimit]. An empty result with no error
// means no row cleared the threshold.
func (x *Index) Search(query []float32, limit int, minScore float32) ([]Result, error) {
	if len(query) != x.dim {
		return nil, &ErrDimensionMismatch{Backbone: x.backbone, Expected: x.dim, Actual: len(query)}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if len(x.ids) == 0 {
		return nil, nil
	}

	if distance.Norm(query) == 0 {
		return nil, ErrZeroQuery
	}
	qhat := slices.Clone(query)
	distance.NormalizeL2InPlace(qhat)

	var rows []int32
	if len(x.postings) == 1 {
		rows = x.postings[0]
	} else {
		for _, list := range kmeans.Closest(qhat, x.centroids, x.dim, x.probes) {
			rows = append(rows, x.postings[list]...)
		}
	}

	candidates := make([]scored, 0, len(rows))
	for _, row := range rows {
		off := int(row) * x.dim
		score := distance.Dot(qhat, x.vectors[off:off+x.dim]) / x.norms[row]
		if score < minScore {
			continue
		}
		candidates = append(candidates, scored{row: row, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return x.ids[candidates[i].row] < x.ids[candidates[j].row]
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		off := int(c.row) * x.dim
		results[i] = Result{
			FileID: x.ids[c.row],
			Score:  c.score,
			Vector: slices.Clone(x.vectors[off : off+x.dim]),
		}
	}
	return results, nil
}
