package fetch

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZip(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{
		"region.shp":        "shp data",
		"region.dbf":        "dbf data",
		"nested/region.prj": "prj data",
	})

	dest := t.TempDir()
	files, err := ExtractZip(zipPath, dest)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	// Nested paths are flattened.
	for _, name := range []string{"region.shp", "region.dbf", "region.prj"} {
		_, err := os.Stat(filepath.Join(dest, name))
		assert.NoError(t, err, name)
	}
}

func TestExtractZipMissing(t *testing.T) {
	_, err := ExtractZip(filepath.Join(t.TempDir(), "absent.zip"), t.TempDir())
	assert.Error(t, err)
}

func TestFindByExt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "region.SHP"), []byte("x"), 0o644))

	path, err := FindByExt(dir, ".shp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "region.SHP"), path)

	_, err = FindByExt(dir, ".dbf")
	assert.Error(t, err)
}
