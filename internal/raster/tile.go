package raster

import (
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrastat/landsig/internal/signature"
)

// DefaultWindow is the tile edge length in cells.
const DefaultWindow = 100

// CategorySet fixes the ordered set of land-cover codes a signature spans.
// The position of a code in the set is its index in every signature vector.
type CategorySet struct {
	codes []int16
	index map[int16]int
}

// NewCategorySet builds a category set from an ordered, duplicate-free code list.
func NewCategorySet(codes []int16) (*CategorySet, error) {
	if len(codes) == 0 {
		return nil, eris.New("raster: empty category set")
	}
	index := make(map[int16]int, len(codes))
	for i, c := range codes {
		if _, dup := index[c]; dup {
			return nil, eris.Errorf("raster: duplicate category code %d", c)
		}
		index[c] = i
	}
	return &CategorySet{codes: append([]int16(nil), codes...), index: index}, nil
}

// Len returns the number of categories.
func (cs *CategorySet) Len() int { return len(cs.codes) }

// Codes returns the category codes in signature order.
func (cs *CategorySet) Codes() []int16 { return append([]int16(nil), cs.codes...) }

// Index returns the signature index for a code.
func (cs *CategorySet) Index(code int16) (int, bool) {
	i, ok := cs.index[code]
	return i, ok
}

// Codes scans the grids and returns every distinct non-NoData code in
// ascending order, usable as a category set when no palette is given.
func Codes(grids ...*Grid) []int16 {
	seen := make(map[int16]struct{})
	for _, g := range grids {
		for r := 0; r < g.Height; r++ {
			for c := 0; c < g.Width; c++ {
				code := g.At(r, c)
				if code == g.NoData {
					continue
				}
				seen[code] = struct{}{}
			}
		}
	}
	codes := make([]int16, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}

// TileOptions configures the tiling pass.
type TileOptions struct {
	// Window is the tile edge in cells. Defaults to DefaultWindow.
	Window int
	// Mask, when set, is evaluated at each tile's center in map coordinates;
	// tiles outside the mask are skipped entirely.
	Mask func(x, y float64) bool
}

// Tile partitions the grid into window×window tiles and counts category
// occurrences per tile. NoData cells and codes outside the category set are
// not counted, so a tile entirely off the valid raster yields zero counts
// and becomes an undefined signature downstream. Edge tiles may be smaller
// than the window; their counts cover only cells inside the extent.
func Tile(g *Grid, cs *CategorySet, opts TileOptions) []signature.TileCounts {
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}

	tileRows := (g.Height + window - 1) / window
	tileCols := (g.Width + window - 1) / window

	var tiles []signature.TileCounts
	var masked, unknown int
	for tr := 0; tr < tileRows; tr++ {
		for tc := 0; tc < tileCols; tc++ {
			if opts.Mask != nil {
				x, y := tileCenter(g, tr, tc, window)
				if !opts.Mask(x, y) {
					masked++
					continue
				}
			}

			counts := make([]int, cs.Len())
			rowEnd := min((tr+1)*window, g.Height)
			colEnd := min((tc+1)*window, g.Width)
			for r := tr * window; r < rowEnd; r++ {
				for c := tc * window; c < colEnd; c++ {
					code := g.At(r, c)
					if code == g.NoData {
						continue
					}
					k, ok := cs.Index(code)
					if !ok {
						unknown++
						continue
					}
					counts[k]++
				}
			}
			tiles = append(tiles, signature.TileCounts{
				Tile:   signature.TileID{Row: tr, Col: tc},
				Counts: counts,
			})
		}
	}

	if masked > 0 || unknown > 0 {
		zap.L().Debug("raster: tiling skipped data",
			zap.Int("masked_tiles", masked),
			zap.Int("unknown_code_cells", unknown),
		)
	}
	return tiles
}

// tileCenter returns the map coordinates of a tile's center, clamped to the
// raster extent for partial edge tiles.
func tileCenter(g *Grid, tr, tc, window int) (x, y float64) {
	rowEnd := min((tr+1)*window, g.Height)
	colEnd := min((tc+1)*window, g.Width)
	midRow := (tr*window + rowEnd - 1) / 2
	midCol := (tc*window + colEnd - 1) / 2
	return g.CellCenter(midRow, midCol)
}
