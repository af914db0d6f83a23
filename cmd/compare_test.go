package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrastat/landsig/internal/config"
	"github.com/terrastat/landsig/internal/divergence"
	"github.com/terrastat/landsig/internal/model"
)

func writeASC(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func setTestConfig(t *testing.T) {
	t.Helper()
	orig := cfg
	cfg = &config.Config{}
	cfg.Compare.Window = 100
	cfg.Compare.Policy = "exclude"
	t.Cleanup(func() { cfg = orig })
}

const ascUniform = `ncols 2
nrows 2
xllcorner 0
yllcorner 0
cellsize 10
NODATA_value -1
1 1
2 2
`

const ascShifted = `ncols 2
nrows 2
xllcorner 0
yllcorner 0
cellsize 10
NODATA_value -1
1 2
2 2
`

func TestRunComparisonIdenticalRasters(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	a := writeASC(t, dir, "a.asc", ascUniform)
	b := writeASC(t, dir, "b.asc", ascUniform)

	cmp, err := runComparison(context.Background(), model.RunParams{
		SourceA: a,
		SourceB: b,
		Window:  2,
		Policy:  "exclude",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, cmp.summary.TilesA)
	assert.Equal(t, 1, cmp.summary.TilesB)
	assert.InDelta(t, 0, cmp.summary.ExtremalA.Distance, 1e-12)
	assert.InDelta(t, 0, cmp.summary.RowMinMean, 1e-12)
}

func TestRunComparisonDifferingRasters(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	a := writeASC(t, dir, "a.asc", ascUniform)
	b := writeASC(t, dir, "b.asc", ascShifted)

	cmp, err := runComparison(context.Background(), model.RunParams{
		SourceA: a,
		SourceB: b,
		Window:  2,
		Policy:  "exclude",
	})
	require.NoError(t, err)

	assert.Greater(t, cmp.summary.ExtremalA.Distance, 0.0)
	assert.LessOrEqual(t, cmp.summary.ExtremalA.Distance, divergence.MaxJSD)
}

func TestRunComparisonPerTileWindows(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	a := writeASC(t, dir, "a.asc", ascUniform)
	b := writeASC(t, dir, "b.asc", ascUniform)

	// Window 1 makes each cell its own tile; the code-2 tiles are disjoint
	// from the code-1 tiles, so both extremal distances stay at zero only
	// because every tile has an identical partner.
	cmp, err := runComparison(context.Background(), model.RunParams{
		SourceA: a,
		SourceB: b,
		Window:  1,
		Policy:  "exclude",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, cmp.summary.TilesA)
	assert.InDelta(t, 0, cmp.summary.ExtremalA.Distance, 1e-12)
	assert.InDelta(t, 0, cmp.summary.ExtremalB.Distance, 1e-12)
}

func TestRunComparisonWithClustering(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	a := writeASC(t, dir, "a.asc", ascUniform)
	b := writeASC(t, dir, "b.asc", ascUniform)

	cmp, err := runComparison(context.Background(), model.RunParams{
		SourceA: a,
		SourceB: b,
		Window:  1,
		Policy:  "exclude",
		K:       2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cmp.summary.ClusterK)
	assert.Len(t, cmp.summary.Medoids, 2)
	// Two pure-code groups cluster perfectly.
	assert.InDelta(t, 0, cmp.summary.ClusterCost, 1e-12)
}

func TestRunComparisonMissingRaster(t *testing.T) {
	setTestConfig(t)
	_, err := runComparison(context.Background(), model.RunParams{
		SourceA: filepath.Join(t.TempDir(), "nope.asc"),
		SourceB: filepath.Join(t.TempDir(), "nope.asc"),
		Window:  2,
		Policy:  "exclude",
	})
	assert.Error(t, err)
}

func TestSummarizeMeans(t *testing.T) {
	res := &divergence.Result{
		RowMin: []float64{0.1, 0.5, 0.05},
		ColMin: []float64{0.1, 0.05},
	}
	s := summarize(res)
	assert.InDelta(t, (0.1+0.5+0.05)/3, s.RowMinMean, 1e-12)
	assert.InDelta(t, (0.1+0.05)/2, s.ColMinMean, 1e-12)
	assert.False(t, math.IsNaN(s.RowMinMean))
}
