package divergence

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terrastat/landsig/internal/signature"
)

// Matrix is a dense R×C divergence matrix stored row-major. Entry (i,j) is
// the divergence between tile i of collection A and tile j of collection B.
type Matrix struct {
	Rows int
	Cols int
	data []float64
}

// NewMatrix allocates a zero R×C matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, data: make([]float64, rows*cols)}
}

// At returns entry (i, j).
func (m *Matrix) At(i, j int) float64 { return m.data[i*m.Cols+j] }

// Set writes entry (i, j).
func (m *Matrix) Set(i, j int, v float64) { m.data[i*m.Cols+j] = v }

// Row returns a view of row i. The slice aliases the matrix storage.
func (m *Matrix) Row(i int) []float64 { return m.data[i*m.Cols : (i+1)*m.Cols] }

// Options configures the pairwise computation.
type Options struct {
	// Workers caps the number of goroutines computing rows.
	// Zero means GOMAXPROCS.
	Workers int
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Pairwise computes the full divergence matrix between two collections.
// Each worker owns whole rows, so writes land in disjoint cells and no
// locking is needed. Cancellation is checked per row; a canceled context
// returns the context error with no partial matrix.
func Pairwise(ctx context.Context, a, b *signature.Collection, opts Options) (*Matrix, error) {
	if a == nil || a.Len() == 0 || b == nil || b.Len() == 0 {
		return nil, eris.Wrap(signature.ErrEmptyCollection, "divergence: pairwise")
	}
	if a.Dim() != b.Dim() {
		return nil, eris.Wrapf(signature.ErrDimensionMismatch,
			"divergence: collection A has %d categories, B has %d", a.Dim(), b.Dim())
	}

	overlap := a.Policy() == signature.MissingOverlap || b.Policy() == signature.MissingOverlap
	m := NewMatrix(a.Len(), b.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i := 0; i < a.Len(); i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sa := a.At(i)
			row := m.Row(i)
			for j := 0; j < b.Len(); j++ {
				sb := b.At(j)
				if overlap {
					row[j] = jsdOverlap(sa, sb)
				} else {
					row[j] = JSD(sa.Probs, sb.Probs)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "divergence: pairwise")
	}

	zap.L().Debug("divergence: matrix computed",
		zap.Int("rows", m.Rows),
		zap.Int("cols", m.Cols),
	)
	return m, nil
}
