package divergence

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/terrastat/landsig/internal/signature"
)

// Reduction holds the per-row and per-column minima of a divergence matrix:
// each tile's distance to its best match in the opposing collection.
type Reduction struct {
	RowMin []float64
	ColMin []float64
}

// Reduce computes row and column minima in one pass over the matrix.
func Reduce(m *Matrix) Reduction {
	rowMin := make([]float64, m.Rows)
	colMin := make([]float64, m.Cols)
	for j := range colMin {
		colMin[j] = math.Inf(1)
	}
	for i := 0; i < m.Rows; i++ {
		row := m.Row(i)
		rowMin[i] = floats.Min(row)
		for j, v := range row {
			if v < colMin[j] {
				colMin[j] = v
			}
		}
	}
	return Reduction{RowMin: rowMin, ColMin: colMin}
}

// Argmax returns the index of the largest value, first occurrence on ties,
// so repeated runs over identically ordered input pick the same tile.
func Argmax(v []float64) int {
	return floats.MaxIdx(v)
}

// Extremal identifies the tile whose best-match distance is the largest in
// its collection: the most locally distinctive pattern relative to the other
// region.
type Extremal struct {
	Index    int              `json:"index"`
	Tile     signature.TileID `json:"tile"`
	Distance float64          `json:"distance"`
}

// Result bundles everything the comparison produces: the matrix, the reduced
// vectors, and the extremal tile on each side, plus the counts of tiles the
// collections excluded during construction.
type Result struct {
	Matrix *Matrix
	RowMin []float64
	ColMin []float64

	ExtremalA Extremal
	ExtremalB Extremal

	ExcludedA int
	ExcludedB int
}

// Compare runs the full pipeline: pairwise matrix, reductions, extremal
// search. Pure function of its inputs; nothing is retained across calls.
func Compare(ctx context.Context, a, b *signature.Collection, opts Options) (*Result, error) {
	m, err := Pairwise(ctx, a, b, opts)
	if err != nil {
		return nil, err
	}
	red := Reduce(m)
	ia := Argmax(red.RowMin)
	ib := Argmax(red.ColMin)
	return &Result{
		Matrix: m,
		RowMin: red.RowMin,
		ColMin: red.ColMin,
		ExtremalA: Extremal{Index: ia, Tile: a.At(ia).Tile, Distance: red.RowMin[ia]},
		ExtremalB: Extremal{Index: ib, Tile: b.At(ib).Tile, Distance: red.ColMin[ib]},
		ExcludedA: a.ExcludedMissing + a.ExcludedInvalid,
		ExcludedB: b.ExcludedMissing + b.ExcludedInvalid,
	}, nil
}
