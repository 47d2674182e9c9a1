package kmeans

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two well-separated clusters in 2D.
func clusteredVectors() []float32 {
	return []float32{
		0.1, 0.1,
		0.2, 0.0,
		0.0, 0.2,
		10.0, 10.1,
		10.2, 9.9,
		9.9, 10.0,
	}
}

func TestTrain_SeparatesClusters(t *testing.T) {
	vectors := clusteredVectors()
	rng := rand.New(rand.NewSource(1))

	centroids := Train(vectors, 2, 2, 25, rng)
	require.Len(t, centroids, 4)

	// The two centroids must land in different clusters: one near the
	// origin, one near (10, 10).
	a := Assign([]float32{0, 0}, centroids, 2)
	b := Assign([]float32{10, 10}, centroids, 2)
	assert.NotEqual(t, a, b)
}

func TestTrain_Deterministic(t *testing.T) {
	vectors := clusteredVectors()

	c1 := Train(vectors, 2, 3, 25, rand.New(rand.NewSource(42)))
	c2 := Train(vectors, 2, 3, 25, rand.New(rand.NewSource(42)))
	assert.Equal(t, c1, c2)
}

func TestTrain_KEqualsN(t *testing.T) {
	vectors := []float32{1, 0, 0, 1, 1, 1}
	rng := rand.New(rand.NewSource(1))

	centroids := Train(vectors, 2, 3, 25, rng)
	require.Len(t, centroids, 6)

	// With k == n every point becomes its own centroid, so every point
	// assigns to a centroid at distance zero.
	for i := 0; i < 3; i++ {
		vec := vectors[i*2 : (i+1)*2]
		j := Assign(vec, centroids, 2)
		assert.Equal(t, vec, centroids[j*2:(j+1)*2])
	}
}

func TestClosest(t *testing.T) {
	centroids := []float32{
		0, 0,
		5, 5,
		10, 10,
	}

	got := Closest([]float32{1, 1}, centroids, 2, 2)
	assert.Equal(t, []int{0, 1}, got)

	// n larger than k is capped.
	got = Closest([]float32{1, 1}, centroids, 2, 10)
	assert.Len(t, got, 3)
}
