package raster

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Grid is an in-memory categorical raster. Cells are stored row-major with
// row 0 at the top edge, matching the Esri ASCII grid layout. Coordinates
// are in the raster's own reference system; no reprojection happens here.
type Grid struct {
	Width    int
	Height   int
	CellSize float64
	// XLL, YLL locate the lower-left corner of the grid.
	XLL    float64
	YLL    float64
	NoData int16

	cells []int16
}

// NewGrid allocates a grid filled with the NoData code.
func NewGrid(width, height int, cellSize, xll, yll float64, noData int16) *Grid {
	cells := make([]int16, width*height)
	for i := range cells {
		cells[i] = noData
	}
	return &Grid{
		Width:    width,
		Height:   height,
		CellSize: cellSize,
		XLL:      xll,
		YLL:      yll,
		NoData:   noData,
		cells:    cells,
	}
}

// At returns the category code at (row, col).
func (g *Grid) At(row, col int) int16 { return g.cells[row*g.Width+col] }

// Set writes the category code at (row, col).
func (g *Grid) Set(row, col int, code int16) { g.cells[row*g.Width+col] = code }

// CellCenter returns the map coordinates of a cell's center.
func (g *Grid) CellCenter(row, col int) (x, y float64) {
	x = g.XLL + (float64(col)+0.5)*g.CellSize
	y = g.YLL + (float64(g.Height-row)-0.5)*g.CellSize
	return x, y
}

// ReadASCII parses an Esri ASCII grid. Header keys are case-insensitive;
// xllcenter/yllcenter variants are converted to corner coordinates.
func ReadASCII(r io.Reader) (*Grid, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	header := map[string]float64{}
	var firstData string
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, eris.Wrap(err, "raster: read header")
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if err == io.EOF {
				break
			}
			continue
		}
		key := strings.ToLower(fields[0])
		if isHeaderKey(key) {
			if len(fields) != 2 {
				return nil, eris.Errorf("raster: malformed header line %q", strings.TrimSpace(line))
			}
			v, parseErr := strconv.ParseFloat(fields[1], 64)
			if parseErr != nil {
				return nil, eris.Wrapf(parseErr, "raster: parse header %s", key)
			}
			header[key] = v
			continue
		}
		// First non-header line starts the data block.
		firstData = line
		break
	}

	ncols, ok := header["ncols"]
	if !ok {
		return nil, eris.New("raster: missing ncols header")
	}
	nrows, ok := header["nrows"]
	if !ok {
		return nil, eris.New("raster: missing nrows header")
	}
	cellSize, ok := header["cellsize"]
	if !ok {
		return nil, eris.New("raster: missing cellsize header")
	}
	width, height := int(ncols), int(nrows)
	if width <= 0 || height <= 0 {
		return nil, eris.Errorf("raster: invalid dimensions %dx%d", width, height)
	}

	xll, xOK := header["xllcorner"]
	if !xOK {
		if xc, ok := header["xllcenter"]; ok {
			xll = xc - cellSize/2
		}
	}
	yll, yOK := header["yllcorner"]
	if !yOK {
		if yc, ok := header["yllcenter"]; ok {
			yll = yc - cellSize/2
		}
	}

	noData := int16(-9999)
	if nd, ok := header["nodata_value"]; ok {
		noData = int16(nd)
	}

	g := NewGrid(width, height, cellSize, xll, yll, noData)

	// Stream cell values; the grid is written top row first.
	idx := 0
	total := width * height
	consume := func(tok string) error {
		if idx >= total {
			return eris.Errorf("raster: more than %d cells in data block", total)
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return eris.Wrapf(err, "raster: parse cell %d", idx)
		}
		g.cells[idx] = int16(v)
		idx++
		return nil
	}
	for _, tok := range strings.Fields(firstData) {
		if err := consume(tok); err != nil {
			return nil, err
		}
	}
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		if err := consume(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: scan data block")
	}
	if idx != total {
		return nil, eris.Errorf("raster: got %d cells, want %d", idx, total)
	}

	return g, nil
}

// ReadASCIIFile opens and parses an Esri ASCII grid file.
func ReadASCIIFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadASCII(f)
}

func isHeaderKey(key string) bool {
	switch key {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}
