package palette

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Entry describes one land-cover category: its raw raster code, a readable
// label, and a hex color for downstream rendering. The palette is purely
// informational; none of the divergence math reads it.
type Entry struct {
	Code  int16  `yaml:"code"`
	Label string `yaml:"label"`
	Color string `yaml:"color"`
}

// Palette maps raster category codes to labels and colors.
type Palette struct {
	entries map[int16]Entry
}

type paletteFile struct {
	Categories []Entry `yaml:"categories"`
}

var titleCaser = cases.Title(language.English)

// Read parses a palette from YAML. Labels are normalized to title case and
// colors to lower-case hex. Duplicate codes are an error.
func Read(r io.Reader) (*Palette, error) {
	var pf paletteFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&pf); err != nil {
		return nil, eris.Wrap(err, "palette: decode yaml")
	}
	if len(pf.Categories) == 0 {
		return nil, eris.New("palette: no categories")
	}

	entries := make(map[int16]Entry, len(pf.Categories))
	for _, e := range pf.Categories {
		if _, dup := entries[e.Code]; dup {
			return nil, eris.Errorf("palette: duplicate code %d", e.Code)
		}
		e.Label = titleCaser.String(strings.TrimSpace(e.Label))
		e.Color = strings.ToLower(strings.TrimSpace(e.Color))
		entries[e.Code] = e
	}
	return &Palette{entries: entries}, nil
}

// ReadFile opens and parses a palette YAML file.
func ReadFile(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "palette: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Read(f)
}

// Len returns the number of categories.
func (p *Palette) Len() int { return len(p.entries) }

// Label returns the label for a code, or an empty string when unknown.
func (p *Palette) Label(code int16) string { return p.entries[code].Label }

// Color returns the hex color for a code, or an empty string when unknown.
func (p *Palette) Color(code int16) string { return p.entries[code].Color }

// Codes returns the category codes in ascending order, usable as the
// category set for signature extraction.
func (p *Palette) Codes() []int16 {
	codes := make([]int16, 0, len(p.entries))
	for c := range p.entries {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
