package divergence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terrastat/landsig/internal/signature"
)

func TestJSDSymmetry(t *testing.T) {
	tests := []struct {
		name string
		p    []float64
		q    []float64
	}{
		{name: "uniform vs skewed", p: []float64{0.25, 0.25, 0.25, 0.25}, q: []float64{0.7, 0.1, 0.1, 0.1}},
		{name: "disjoint support", p: []float64{1, 0}, q: []float64{0, 1}},
		{name: "partial overlap", p: []float64{0.5, 0.5, 0}, q: []float64{0, 0.5, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, JSD(tt.p, tt.q), JSD(tt.q, tt.p), 1e-12)
		})
	}
}

func TestJSDIdentity(t *testing.T) {
	vecs := [][]float64{
		{1, 0, 0},
		{0.5, 0.5},
		{0.2, 0.3, 0.5},
	}
	for _, p := range vecs {
		assert.InDelta(t, 0, JSD(p, p), 1e-12)
	}
}

func TestJSDBounds(t *testing.T) {
	tests := []struct {
		name string
		p    []float64
		q    []float64
	}{
		{name: "identical", p: []float64{0.5, 0.5}, q: []float64{0.5, 0.5}},
		{name: "disjoint", p: []float64{1, 0}, q: []float64{0, 1}},
		{name: "mixed", p: []float64{0.9, 0.1}, q: []float64{0.1, 0.9}},
		{name: "zero heavy", p: []float64{1, 0, 0, 0}, q: []float64{0.25, 0.25, 0.25, 0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := JSD(tt.p, tt.q)
			assert.GreaterOrEqual(t, d, 0.0)
			assert.LessOrEqual(t, d, MaxJSD+1e-12)
		})
	}
}

func TestJSDDisjointIsLn2(t *testing.T) {
	// Fully disjoint support reaches the natural-log bound exactly.
	d := JSD([]float64{1, 0}, []float64{0, 1})
	assert.InDelta(t, math.Log(2), d, 1e-12)
}

func TestKLConvention(t *testing.T) {
	// 0·log(0/x) terms contribute nothing.
	p := []float64{0.5, 0.5, 0}
	q := []float64{0.25, 0.25, 0.5}
	got := KL(p, q)
	want := 0.5*math.Log(0.5/0.25) + 0.5*math.Log(0.5/0.25)
	assert.InDelta(t, want, got, 1e-12)
}

func TestJSDOverlapRenormalizes(t *testing.T) {
	// Category 2 is undefined on one side; the comparison runs over the joint
	// support {0, 1} with each side renormalized.
	a := signature.Signature{
		Probs:   []float64{0.3, 0.3, math.NaN()},
		Defined: []bool{true, true, false},
	}
	b := signature.Signature{
		Probs: []float64{0.25, 0.25, 0.5},
	}
	got := jsdOverlap(a, b)
	want := JSD([]float64{0.5, 0.5}, []float64{0.5, 0.5})
	assert.InDelta(t, want, got, 1e-12)
}

func TestJSDOverlapDisjointSupport(t *testing.T) {
	// No shared mass over the joint mask: maximally dissimilar.
	a := signature.Signature{
		Probs:   []float64{1, 0, math.NaN()},
		Defined: []bool{true, true, false},
	}
	b := signature.Signature{
		Probs:   []float64{math.NaN(), 0, 1},
		Defined: []bool{false, true, true},
	}
	assert.InDelta(t, MaxJSD, jsdOverlap(a, b), 1e-12)
}
