package cluster

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrastat/landsig/internal/divergence"
	"github.com/terrastat/landsig/internal/signature"
)

func mustCollection(t *testing.T, vecs [][]float64) *signature.Collection {
	t.Helper()
	sigs := make([]signature.Signature, len(vecs))
	for i, v := range vecs {
		sigs[i] = signature.Signature{Tile: signature.TileID{Row: i}, Probs: v}
	}
	c, err := signature.New(sigs, signature.Options{})
	require.NoError(t, err)
	return c
}

func TestKMedoidsTwoObviousGroups(t *testing.T) {
	// Two tight groups: forest-dominated and cropland-dominated tiles.
	c := mustCollection(t, [][]float64{
		{0.9, 0.1, 0},
		{0.85, 0.15, 0},
		{0.95, 0.05, 0},
		{0, 0.1, 0.9},
		{0, 0.15, 0.85},
		{0, 0.05, 0.95},
	})

	res, err := KMedoids(context.Background(), c, 2, divergence.Options{})
	require.NoError(t, err)
	require.Len(t, res.Medoids, 2)
	require.Len(t, res.Assignments, 6)

	// The first three tiles share one cluster, the last three the other.
	first := res.Assignments[0]
	assert.Equal(t, first, res.Assignments[1])
	assert.Equal(t, first, res.Assignments[2])
	second := res.Assignments[3]
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, res.Assignments[4])
	assert.Equal(t, second, res.Assignments[5])
}

func TestKMedoidsSingleCluster(t *testing.T) {
	c := mustCollection(t, [][]float64{
		{0.5, 0.5},
		{0.6, 0.4},
		{0.4, 0.6},
	})

	res, err := KMedoids(context.Background(), c, 1, divergence.Options{})
	require.NoError(t, err)
	require.Len(t, res.Medoids, 1)
	for _, a := range res.Assignments {
		assert.Equal(t, 0, a)
	}
}

func TestKMedoidsKEqualsN(t *testing.T) {
	c := mustCollection(t, [][]float64{
		{1, 0},
		{0, 1},
	})

	res, err := KMedoids(context.Background(), c, 2, divergence.Options{})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Cost, 1e-12)
}

func TestKMedoidsDeterministic(t *testing.T) {
	vecs := [][]float64{
		{0.7, 0.3, 0}, {0.2, 0.8, 0}, {0, 0.4, 0.6},
		{0.5, 0.5, 0}, {0.1, 0.1, 0.8}, {0.33, 0.33, 0.34},
	}
	c := mustCollection(t, vecs)

	first, err := KMedoids(context.Background(), c, 3, divergence.Options{Workers: 4})
	require.NoError(t, err)
	second, err := KMedoids(context.Background(), c, 3, divergence.Options{Workers: 1})
	require.NoError(t, err)

	assert.Equal(t, first.Medoids, second.Medoids)
	assert.Equal(t, first.Assignments, second.Assignments)
}

func TestKMedoidsBadInput(t *testing.T) {
	c := mustCollection(t, [][]float64{{1, 0}})

	_, err := KMedoids(context.Background(), c, 0, divergence.Options{})
	assert.Error(t, err)

	_, err = KMedoids(context.Background(), c, 2, divergence.Options{})
	assert.Error(t, err)

	_, err = KMedoids(context.Background(), nil, 1, divergence.Options{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, signature.ErrEmptyCollection))
}
