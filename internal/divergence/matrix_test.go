package divergence

import (
	"context"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrastat/landsig/internal/signature"
)

func mustCollection(t *testing.T, vecs [][]float64, opts signature.Options) *signature.Collection {
	t.Helper()
	sigs := make([]signature.Signature, len(vecs))
	for i, v := range vecs {
		sigs[i] = signature.Signature{Tile: signature.TileID{Row: i}, Probs: v}
	}
	c, err := signature.New(sigs, opts)
	require.NoError(t, err)
	return c
}

func TestPairwiseScenarioOne(t *testing.T) {
	// A = [[1,0],[0,1]], B = [[1,0]] → M = [[0],[ln 2]].
	a := mustCollection(t, [][]float64{{1, 0}, {0, 1}}, signature.Options{})
	b := mustCollection(t, [][]float64{{1, 0}}, signature.Options{})

	m, err := Pairwise(context.Background(), a, b, Options{})
	require.NoError(t, err)

	require.Equal(t, 2, m.Rows)
	require.Equal(t, 1, m.Cols)
	assert.InDelta(t, 0, m.At(0, 0), 1e-12)
	assert.InDelta(t, math.Log(2), m.At(1, 0), 1e-12)
}

func TestPairwiseScenarioTwo(t *testing.T) {
	// Single identical tile on each side → M = [[0]].
	a := mustCollection(t, [][]float64{{0.5, 0.5}}, signature.Options{})
	b := mustCollection(t, [][]float64{{0.5, 0.5}}, signature.Options{})

	m, err := Pairwise(context.Background(), a, b, Options{})
	require.NoError(t, err)

	require.Equal(t, 1, m.Rows)
	require.Equal(t, 1, m.Cols)
	assert.InDelta(t, 0, m.At(0, 0), 1e-12)
}

func TestPairwiseDimensionMismatch(t *testing.T) {
	a := mustCollection(t, [][]float64{{1, 0}}, signature.Options{})
	b := mustCollection(t, [][]float64{{1, 0, 0}}, signature.Options{})

	_, err := Pairwise(context.Background(), a, b, Options{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, signature.ErrDimensionMismatch))
}

func TestPairwiseNilCollection(t *testing.T) {
	a := mustCollection(t, [][]float64{{1, 0}}, signature.Options{})

	_, err := Pairwise(context.Background(), a, nil, Options{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, signature.ErrEmptyCollection))
}

func TestPairwiseCanceledContext(t *testing.T) {
	a := mustCollection(t, [][]float64{{1, 0}, {0, 1}}, signature.Options{})
	b := mustCollection(t, [][]float64{{0.5, 0.5}}, signature.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Pairwise(ctx, a, b, Options{Workers: 1})
	require.Error(t, err)
	assert.True(t, eris.Is(err, context.Canceled))
}

func TestPairwiseEntriesFiniteNonNegative(t *testing.T) {
	a := mustCollection(t, [][]float64{
		{0.2, 0.3, 0.5},
		{1, 0, 0},
		{0, 0, 1},
		{0.1, 0.1, 0.8},
	}, signature.Options{})
	b := mustCollection(t, [][]float64{
		{0.4, 0.4, 0.2},
		{0, 1, 0},
		{0.33, 0.33, 0.34},
	}, signature.Options{})

	m, err := Pairwise(context.Background(), a, b, Options{Workers: 2})
	require.NoError(t, err)

	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			v := m.At(i, j)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "entry (%d,%d) not finite", i, j)
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestPairwiseSymmetricAcrossSwap(t *testing.T) {
	vecsA := [][]float64{{0.6, 0.4}, {0.1, 0.9}}
	vecsB := [][]float64{{0.5, 0.5}, {0.8, 0.2}, {0, 1}}
	a := mustCollection(t, vecsA, signature.Options{})
	b := mustCollection(t, vecsB, signature.Options{})

	ab, err := Pairwise(context.Background(), a, b, Options{})
	require.NoError(t, err)
	ba, err := Pairwise(context.Background(), b, a, Options{})
	require.NoError(t, err)

	for i := 0; i < ab.Rows; i++ {
		for j := 0; j < ab.Cols; j++ {
			assert.InDelta(t, ab.At(i, j), ba.At(j, i), 1e-12)
		}
	}
}
