package boundary

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// Boundary is a region outline used to mask tiles. Containment uses the
// even-odd rule over all rings, so holes punched by interior rings behave
// as expected without tracking ring orientation.
type Boundary struct {
	Name  string
	rings [][]float64
	bbox  *geom.Bounds
}

// LoadShapefile reads every polygon record from a shapefile and merges their
// rings into one boundary. The name attribute is taken from the given field
// of the first record when present.
func LoadShapefile(path, nameField string) (*Boundary, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	for i, f := range reader.Fields() {
		if trimField(f.String()) == nameField {
			nameIdx = i
		}
	}

	b := &Boundary{bbox: geom.NewBounds(geom.XY)}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly.NumParts == 0 || len(poly.Points) == 0 {
			skipped++
			continue
		}
		if b.Name == "" && nameIdx >= 0 {
			b.Name = trimField(reader.Attribute(nameIdx))
		}
		b.addRings(poly)
	}
	if len(b.rings) == 0 {
		return nil, eris.Errorf("boundary: no polygon records in %s", path)
	}
	if skipped > 0 {
		zap.L().Debug("boundary: skipped non-polygon records",
			zap.String("shapefile", path),
			zap.Int("skipped", skipped),
		)
	}
	return b, nil
}

// FromPolygon builds a boundary from a go-geom polygon, for callers that
// already have a geometry in hand.
func FromPolygon(name string, p *geom.Polygon) (*Boundary, error) {
	if p == nil || p.NumLinearRings() == 0 {
		return nil, eris.New("boundary: empty polygon")
	}
	b := &Boundary{Name: name, bbox: geom.NewBounds(geom.XY)}
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i).FlatCoords()
		b.rings = append(b.rings, append([]float64(nil), ring...))
	}
	b.bbox.Extend(p)
	return b, nil
}

// addRings appends each part of a shapefile polygon as a flat ring.
func (b *Boundary) addRings(p *shp.Polygon) {
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if len(flat) < 8 {
			// Fewer than four points cannot close a ring.
			continue
		}
		b.rings = append(b.rings, flat)
		b.bbox.Extend(geom.NewLinearRingFlat(geom.XY, flat))
	}
}

// Contains reports whether the point lies inside the boundary.
func (b *Boundary) Contains(x, y float64) bool {
	if !b.bbox.OverlapsPoint(geom.XY, geom.Coord{x, y}) {
		return false
	}
	inside := false
	for _, ring := range b.rings {
		if xy.IsPointInRing(geom.XY, geom.Coord{x, y}, ring) {
			inside = !inside
		}
	}
	return inside
}

// Mask adapts the boundary to the raster tiling mask signature.
func (b *Boundary) Mask() func(x, y float64) bool {
	return b.Contains
}

func trimField(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return s[:i]
		}
	}
	return s
}
