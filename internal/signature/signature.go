package signature

import (
	"math"

	"github.com/rotisserie/eris"
)

// MissingPolicy controls how tiles with undefined category entries are handled.
type MissingPolicy string

const (
	// MissingExclude drops tiles with any undefined entry at construction time.
	MissingExclude MissingPolicy = "exclude"
	// MissingOverlap keeps such tiles; divergence is later computed over
	// jointly defined categories only.
	MissingOverlap MissingPolicy = "overlap"
)

// Sentinel errors for collection validation. Checked with eris.Is.
var (
	ErrEmptyCollection     = eris.New("signature: empty collection")
	ErrDimensionMismatch   = eris.New("signature: dimension mismatch")
	ErrInvalidDistribution = eris.New("signature: invalid distribution")
)

// SumTolerance is the allowed deviation of a signature's defined entries from 1.
const SumTolerance = 1e-6

// TileID identifies a tile by its window row and column within the source grid.
type TileID struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Signature is one tile's land-cover composition: a probability vector over a
// fixed, ordered set of categories. Defined marks which entries carry data;
// a nil Defined means all entries are defined.
type Signature struct {
	Tile    TileID
	Probs   []float64
	Defined []bool
}

// FullyDefined reports whether every category entry carries data.
func (s Signature) FullyDefined() bool {
	if s.Defined == nil {
		return true
	}
	for _, d := range s.Defined {
		if !d {
			return false
		}
	}
	return true
}

// validate checks that the defined entries form a probability distribution.
func (s Signature) validate(dim int) error {
	if len(s.Probs) != dim {
		return eris.Wrapf(ErrDimensionMismatch, "tile (%d,%d): got %d categories, want %d",
			s.Tile.Row, s.Tile.Col, len(s.Probs), dim)
	}
	if s.Defined != nil && len(s.Defined) != dim {
		return eris.Wrapf(ErrDimensionMismatch, "tile (%d,%d): defined mask length %d, want %d",
			s.Tile.Row, s.Tile.Col, len(s.Defined), dim)
	}
	sum := 0.0
	any := false
	for k, p := range s.Probs {
		if s.Defined != nil && !s.Defined[k] {
			continue
		}
		if math.IsNaN(p) {
			// NaN outside the defined mask is a missing entry, handled by policy.
			continue
		}
		if p < 0 {
			return eris.Wrapf(ErrInvalidDistribution, "tile (%d,%d): negative entry %g at category %d",
				s.Tile.Row, s.Tile.Col, p, k)
		}
		sum += p
		any = true
	}
	if !any {
		// All entries undefined; the missing policy decides, not validation.
		return nil
	}
	if math.Abs(sum-1) > SumTolerance {
		return eris.Wrapf(ErrInvalidDistribution, "tile (%d,%d): entries sum to %g",
			s.Tile.Row, s.Tile.Col, sum)
	}
	return nil
}

// hasUndefined reports whether any entry is missing (NaN or masked out).
func (s Signature) hasUndefined() bool {
	for k, p := range s.Probs {
		if math.IsNaN(p) {
			return true
		}
		if s.Defined != nil && !s.Defined[k] {
			return true
		}
	}
	return false
}
