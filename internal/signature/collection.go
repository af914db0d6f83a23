package signature

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures collection construction.
type Options struct {
	// Policy decides what happens to tiles with undefined entries.
	// Defaults to MissingExclude.
	Policy MissingPolicy
}

func (o Options) policy() MissingPolicy {
	if o.Policy == "" {
		return MissingExclude
	}
	return o.Policy
}

// Collection is an ordered set of signatures sharing one category ordering.
// Validation happens once here, at the input boundary, so the pairwise
// divergence loop never sees a malformed vector.
type Collection struct {
	dim    int
	sigs   []Signature
	policy MissingPolicy

	// ExcludedMissing counts tiles dropped under MissingExclude.
	ExcludedMissing int
	// ExcludedInvalid counts tiles rejected for negative entries or a bad sum.
	ExcludedInvalid int
}

// Dim returns the category dimensionality shared by all signatures.
func (c *Collection) Dim() int { return c.dim }

// Len returns the number of retained tiles.
func (c *Collection) Len() int { return len(c.sigs) }

// At returns the i-th signature in original order.
func (c *Collection) At(i int) Signature { return c.sigs[i] }

// Policy returns the missing-data policy the collection was built with.
func (c *Collection) Policy() MissingPolicy { return c.policy }

// IDs returns the tile identifiers in original order.
func (c *Collection) IDs() []TileID {
	ids := make([]TileID, len(c.sigs))
	for i, s := range c.sigs {
		ids[i] = s.Tile
	}
	return ids
}

// New builds a collection from signature vectors. Tiles with invalid
// distributions are rejected individually and counted; tiles with undefined
// entries are dropped or retained per the missing policy. Returns
// ErrEmptyCollection if no tiles survive, and ErrDimensionMismatch before any
// tile-level processing if the vectors do not agree on dimensionality.
func New(sigs []Signature, opts Options) (*Collection, error) {
	if len(sigs) == 0 {
		return nil, eris.Wrap(ErrEmptyCollection, "no tiles supplied")
	}
	dim := len(sigs[0].Probs)
	if dim == 0 {
		return nil, eris.Wrap(ErrDimensionMismatch, "zero-length signature vector")
	}
	// Dimensions are checked across the whole input before anything else, so a
	// mismatch is reported with no partial result.
	for _, s := range sigs {
		if len(s.Probs) != dim {
			return nil, eris.Wrapf(ErrDimensionMismatch, "tile (%d,%d): got %d categories, want %d",
				s.Tile.Row, s.Tile.Col, len(s.Probs), dim)
		}
	}

	c := &Collection{dim: dim, policy: opts.policy()}
	for _, s := range sigs {
		// The missing policy is applied before distribution validation: a tile
		// with undefined entries is a data-gap case, not a data-quality error.
		if s.hasUndefined() {
			switch c.policy {
			case MissingExclude:
				c.ExcludedMissing++
				continue
			case MissingOverlap:
				// Reflect NaN entries in the Defined mask and renormalize the rest.
				s = withMask(s)
				if !anyDefined(s.Defined) {
					// Nothing to overlap with; the tile carries no data at all.
					c.ExcludedMissing++
					continue
				}
			}
		}
		if err := s.validate(dim); err != nil {
			if eris.Is(err, ErrInvalidDistribution) {
				c.ExcludedInvalid++
				zap.L().Debug("signature: rejected tile", zap.Error(err))
				continue
			}
			return nil, err
		}
		c.sigs = append(c.sigs, s)
	}

	if len(c.sigs) == 0 {
		return nil, eris.Wrapf(ErrEmptyCollection, "all %d tiles excluded (%d missing, %d invalid)",
			len(sigs), c.ExcludedMissing, c.ExcludedInvalid)
	}
	if c.ExcludedMissing > 0 || c.ExcludedInvalid > 0 {
		zap.L().Info("signature: collection built with exclusions",
			zap.Int("retained", len(c.sigs)),
			zap.Int("excluded_missing", c.ExcludedMissing),
			zap.Int("excluded_invalid", c.ExcludedInvalid),
		)
	}
	return c, nil
}

// TileCounts carries raw category counts for one tile. Counts hold only valid
// cells; NoData cells are excluded upstream by the raster layer.
type TileCounts struct {
	Tile   TileID
	Counts []int
}

// FromCounts normalizes per-tile category counts into signatures and builds a
// collection. A tile with zero valid cells becomes an all-undefined signature
// handled by the missing policy.
func FromCounts(tiles []TileCounts, dim int, opts Options) (*Collection, error) {
	if len(tiles) == 0 {
		return nil, eris.Wrap(ErrEmptyCollection, "no tiles supplied")
	}
	sigs := make([]Signature, 0, len(tiles))
	for _, t := range tiles {
		if len(t.Counts) != dim {
			return nil, eris.Wrapf(ErrDimensionMismatch, "tile (%d,%d): got %d categories, want %d",
				t.Tile.Row, t.Tile.Col, len(t.Counts), dim)
		}
		probs := make([]float64, dim)
		total := 0
		for _, n := range t.Counts {
			total += n
		}
		if total == 0 {
			for k := range probs {
				probs[k] = math.NaN()
			}
		} else {
			for k, n := range t.Counts {
				probs[k] = float64(n) / float64(total)
			}
		}
		sigs = append(sigs, Signature{Tile: t.Tile, Probs: probs})
	}
	return New(sigs, opts)
}

func anyDefined(mask []bool) bool {
	for _, d := range mask {
		if d {
			return true
		}
	}
	return false
}

// withMask returns a copy of s whose Defined mask reflects NaN entries and
// whose defined entries are renormalized to sum to 1.
func withMask(s Signature) Signature {
	defined := make([]bool, len(s.Probs))
	probs := make([]float64, len(s.Probs))
	copy(probs, s.Probs)
	sum := 0.0
	for k, p := range probs {
		defined[k] = !math.IsNaN(p) && (s.Defined == nil || s.Defined[k])
		if defined[k] {
			sum += p
		}
	}
	if sum > 0 {
		for k := range probs {
			if defined[k] {
				probs[k] /= sum
			}
		}
	}
	return Signature{Tile: s.Tile, Probs: probs, Defined: defined}
}
