// Package export writes comparison results to XLSX workbooks.
package export

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/terrastat/landsig/internal/divergence"
	"github.com/terrastat/landsig/internal/palette"
	"github.com/terrastat/landsig/internal/signature"
)

// Options configures the workbook contents.
type Options struct {
	// Palette, when set, adds a Categories sheet and labels the signature
	// sheets with category names instead of raw codes.
	Palette *palette.Palette

	// IncludeSignatures adds one sheet per collection with the full
	// per-tile distributions. Off by default; these sheets dominate file
	// size for large rasters.
	IncludeSignatures bool
}

// WriteResult writes the full comparison to an XLSX workbook: a summary
// sheet, the divergence matrix, and the reduced row/column minima with
// their tile coordinates.
func WriteResult(path string, res *divergence.Result, a, b *signature.Collection, opts Options) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, res, a, b); err != nil {
		return err
	}
	if err := addMatrixSheet(f, res, a, b); err != nil {
		return err
	}
	if err := addMinimaSheet(f, "Row Minima", res.RowMin, a.IDs(), res.ExtremalA.Index); err != nil {
		return err
	}
	if err := addMinimaSheet(f, "Col Minima", res.ColMin, b.IDs(), res.ExtremalB.Index); err != nil {
		return err
	}
	if opts.IncludeSignatures {
		if err := addSignatureSheet(f, "Signatures A", a, opts.Palette); err != nil {
			return err
		}
		if err := addSignatureSheet(f, "Signatures B", b, opts.Palette); err != nil {
			return err
		}
	}
	if opts.Palette != nil {
		if err := addCategorySheet(f, opts.Palette); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addSummarySheet(f *xlsx.File, res *divergence.Result, a, b *signature.Collection) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	kv := func(key string, set func(c *xlsx.Cell)) {
		row := sheet.AddRow()
		row.AddCell().SetString(key)
		set(row.AddCell())
	}

	kv("Tiles A", func(c *xlsx.Cell) { c.SetInt(a.Len()) })
	kv("Tiles B", func(c *xlsx.Cell) { c.SetInt(b.Len()) })
	kv("Excluded A", func(c *xlsx.Cell) { c.SetInt(res.ExcludedA) })
	kv("Excluded B", func(c *xlsx.Cell) { c.SetInt(res.ExcludedB) })
	kv("Extremal A", func(c *xlsx.Cell) { c.SetString(tileLabel(res.ExtremalA.Tile)) })
	kv("Extremal A Distance", func(c *xlsx.Cell) { c.SetFloat(res.ExtremalA.Distance) })
	kv("Extremal B", func(c *xlsx.Cell) { c.SetString(tileLabel(res.ExtremalB.Tile)) })
	kv("Extremal B Distance", func(c *xlsx.Cell) { c.SetFloat(res.ExtremalB.Distance) })
	return nil
}

func addMatrixSheet(f *xlsx.File, res *divergence.Result, a, b *signature.Collection) error {
	sheet, err := f.AddSheet("Matrix")
	if err != nil {
		return eris.Wrap(err, "export: add matrix sheet")
	}

	header := sheet.AddRow()
	header.AddCell().SetString("")
	for _, id := range b.IDs() {
		header.AddCell().SetString(tileLabel(id))
	}

	idsA := a.IDs()
	for i := 0; i < res.Matrix.Rows; i++ {
		row := sheet.AddRow()
		row.AddCell().SetString(tileLabel(idsA[i]))
		for _, v := range res.Matrix.Row(i) {
			row.AddCell().SetFloat(v)
		}
	}
	return nil
}

func addMinimaSheet(f *xlsx.File, name string, minima []float64, ids []signature.TileID, extremal int) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	header := sheet.AddRow()
	for _, h := range []string{"Tile", "Row", "Col", "Min Distance", "Extremal"} {
		header.AddCell().SetString(h)
	}

	for i, v := range minima {
		row := sheet.AddRow()
		row.AddCell().SetString(tileLabel(ids[i]))
		row.AddCell().SetInt(ids[i].Row)
		row.AddCell().SetInt(ids[i].Col)
		row.AddCell().SetFloat(v)
		mark := ""
		if i == extremal {
			mark = "x"
		}
		row.AddCell().SetString(mark)
	}
	return nil
}

func addSignatureSheet(f *xlsx.File, name string, c *signature.Collection, pal *palette.Palette) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	header := sheet.AddRow()
	header.AddCell().SetString("Tile")
	for j := 0; j < c.Dim(); j++ {
		header.AddCell().SetString(componentLabel(j, pal))
	}

	for i := 0; i < c.Len(); i++ {
		sig := c.At(i)
		row := sheet.AddRow()
		row.AddCell().SetString(tileLabel(sig.Tile))
		for _, p := range sig.Probs {
			row.AddCell().SetFloat(p)
		}
	}
	return nil
}

func addCategorySheet(f *xlsx.File, pal *palette.Palette) error {
	sheet, err := f.AddSheet("Categories")
	if err != nil {
		return eris.Wrap(err, "export: add categories sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Code", "Label", "Color"} {
		header.AddCell().SetString(h)
	}

	for _, code := range pal.Codes() {
		row := sheet.AddRow()
		row.AddCell().SetInt(int(code))
		row.AddCell().SetString(pal.Label(code))
		row.AddCell().SetString(pal.Color(code))
	}
	return nil
}

// componentLabel names the j-th distribution component. With a palette the
// label follows the ascending code order used by raster.NewCategorySet.
func componentLabel(j int, pal *palette.Palette) string {
	if pal != nil {
		codes := pal.Codes()
		if j < len(codes) {
			return pal.Label(codes[j])
		}
	}
	return fmt.Sprintf("c%d", j)
}

func tileLabel(id signature.TileID) string {
	return fmt.Sprintf("r%dc%d", id.Row, id.Col)
}
