package divergence

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrastat/landsig/internal/signature"
)

func matrixFromRows(t *testing.T, rows [][]float64) *Matrix {
	t.Helper()
	require.NotEmpty(t, rows)
	m := NewMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		require.Len(t, r, m.Cols)
		for j, v := range r {
			m.Set(i, j, v)
		}
	}
	return m
}

func TestReduceScenarioThree(t *testing.T) {
	// Known 3×2 matrix from a worked example:
	// row_min = [0.1, 0.5, 0.05], argmax_row = 1;
	// col_min = [0.1, 0.05], argmax_col = 0.
	m := matrixFromRows(t, [][]float64{
		{0.1, 0.9},
		{0.5, 0.5},
		{0.2, 0.05},
	})

	red := Reduce(m)
	assert.Equal(t, []float64{0.1, 0.5, 0.05}, red.RowMin)
	assert.Equal(t, []float64{0.1, 0.05}, red.ColMin)
	assert.Equal(t, 1, Argmax(red.RowMin))
	assert.Equal(t, 0, Argmax(red.ColMin))
}

func TestReduceLengthsAndBounds(t *testing.T) {
	m := matrixFromRows(t, [][]float64{
		{0.3, 0.7, 0.2},
		{0.6, 0.1, 0.9},
	})

	red := Reduce(m)
	require.Len(t, red.RowMin, m.Rows)
	require.Len(t, red.ColMin, m.Cols)

	for i := 0; i < m.Rows; i++ {
		rowMax := math.Inf(-1)
		for j := 0; j < m.Cols; j++ {
			rowMax = math.Max(rowMax, m.At(i, j))
		}
		assert.LessOrEqual(t, red.RowMin[i], rowMax)
	}
	for j := 0; j < m.Cols; j++ {
		colMax := math.Inf(-1)
		for i := 0; i < m.Rows; i++ {
			colMax = math.Max(colMax, m.At(i, j))
		}
		assert.LessOrEqual(t, red.ColMin[j], colMax)
	}
}

func TestReduceDegenerateShapes(t *testing.T) {
	tests := []struct {
		name   string
		rows   [][]float64
		rowMin []float64
		colMin []float64
	}{
		{
			name:   "single row",
			rows:   [][]float64{{0.4, 0.2, 0.6}},
			rowMin: []float64{0.2},
			colMin: []float64{0.4, 0.2, 0.6},
		},
		{
			name:   "single column",
			rows:   [][]float64{{0.4}, {0.2}, {0.6}},
			rowMin: []float64{0.4, 0.2, 0.6},
			colMin: []float64{0.2},
		},
		{
			name:   "single cell",
			rows:   [][]float64{{0.3}},
			rowMin: []float64{0.3},
			colMin: []float64{0.3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			red := Reduce(matrixFromRows(t, tt.rows))
			assert.Equal(t, tt.rowMin, red.RowMin)
			assert.Equal(t, tt.colMin, red.ColMin)
		})
	}
}

func TestArgmaxTiesFirstOccurrence(t *testing.T) {
	tests := []struct {
		name string
		v    []float64
		want int
	}{
		{name: "all equal", v: []float64{0.5, 0.5, 0.5}, want: 0},
		{name: "tie later", v: []float64{0.1, 0.9, 0.9}, want: 1},
		{name: "single", v: []float64{0.2}, want: 0},
		{name: "max at end", v: []float64{0.1, 0.2, 0.3}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Argmax(tt.v))
		})
	}
}

func TestCompareScenarioOne(t *testing.T) {
	// The second tile of A has no close counterpart in B and wins the
	// extremal search.
	a := mustCollection(t, [][]float64{{1, 0}, {0, 1}}, signature.Options{})
	b := mustCollection(t, [][]float64{{1, 0}}, signature.Options{})

	res, err := Compare(context.Background(), a, b, Options{})
	require.NoError(t, err)

	assert.InDelta(t, 0, res.RowMin[0], 1e-12)
	assert.InDelta(t, math.Log(2), res.RowMin[1], 1e-12)
	assert.Equal(t, 1, res.ExtremalA.Index)
	assert.Equal(t, signature.TileID{Row: 1}, res.ExtremalA.Tile)
	assert.InDelta(t, math.Log(2), res.ExtremalA.Distance, 1e-12)
	assert.Equal(t, 0, res.ExtremalB.Index)
}

func TestCompareScenarioTwo(t *testing.T) {
	a := mustCollection(t, [][]float64{{0.5, 0.5}}, signature.Options{})
	b := mustCollection(t, [][]float64{{0.5, 0.5}}, signature.Options{})

	res, err := Compare(context.Background(), a, b, Options{})
	require.NoError(t, err)

	assert.Equal(t, []float64{0}, res.RowMin)
	assert.Equal(t, []float64{0}, res.ColMin)
	assert.Equal(t, 0, res.ExtremalA.Index)
	assert.Equal(t, 0, res.ExtremalB.Index)
}

func TestCompareDeterministic(t *testing.T) {
	vecsA := [][]float64{{0.6, 0.4}, {0.1, 0.9}, {0.5, 0.5}}
	vecsB := [][]float64{{0.5, 0.5}, {0.9, 0.1}}
	a := mustCollection(t, vecsA, signature.Options{})
	b := mustCollection(t, vecsB, signature.Options{})

	first, err := Compare(context.Background(), a, b, Options{Workers: 4})
	require.NoError(t, err)
	second, err := Compare(context.Background(), a, b, Options{Workers: 1})
	require.NoError(t, err)

	assert.Equal(t, first.ExtremalA, second.ExtremalA)
	assert.Equal(t, first.ExtremalB, second.ExtremalB)
	assert.Equal(t, first.RowMin, second.RowMin)
	assert.Equal(t, first.ColMin, second.ColMin)
}
