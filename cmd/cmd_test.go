package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/crater/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectExport = `{
  "title": "Soil Survey",
  "description": "Field campaign 2025",
  "values": [
    {"attribute": "project/dataset/id", "set_index": 0, "text": "ds1"},
    {"attribute": "project/dataset/id", "set_index": 1, "text": "ds2"},
    {"attribute": "project/dataset/title", "set_index": 1, "text": "Second dataset"},
    {"attribute": "project/dataset/creator/name", "set_prefix": "0", "set_index": 0, "text": "Jane Doe"},
    {"attribute": "project/dataset/creator/affiliation", "set_prefix": "0", "set_index": 0, "text": "Uni A"}
  ]
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, logs bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func buildDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(src, []byte(projectExport), 0o644))
	db := filepath.Join(dir, "facts.db")

	out, err := run(t, "build-facts", src, db)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 5 values")
	return db
}

func TestBuildFactsReplacesOutput(t *testing.T) {
	db := buildDB(t)
	src := filepath.Join(filepath.Dir(db), "export.json")
	out, err := run(t, "build-facts", src, db)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 5 values", "rebuilt, not appended")
}

func TestSets(t *testing.T) {
	db := buildDB(t)
	out, err := run(t, "sets", "--facts", db)
	require.NoError(t, err)
	assert.Contains(t, out, "INDEX")
	assert.Contains(t, out, "ds1")
	assert.Contains(t, out, "ds2")
}

func TestSetsFromEnvironment(t *testing.T) {
	db := buildDB(t)
	t.Setenv("CRATER_FACTS_PATH", db)
	out, err := run(t, "sets")
	require.NoError(t, err)
	assert.Contains(t, out, "ds2")
}

func TestSetsRequiresFacts(t *testing.T) {
	_, err := run(t, "sets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "facts.path")
}

func TestExportAndInspect(t *testing.T) {
	db := buildDB(t)
	base := t.TempDir()
	outDir := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "crater.prom")

	out, err := run(t, "export",
		"--facts", db,
		"--base-dir", base,
		"-o", outDir,
		"--metrics-file", metricsFile)
	require.NoError(t, err)
	assert.Contains(t, out, "datasets: 2  persons: 1")

	archives, err := filepath.Glob(filepath.Join(base, "crate-*.zip"))
	require.NoError(t, err)
	require.Len(t, archives, 1)
	for _, folder := range []string{"ds1", "ds2"} {
		fi, err := os.Stat(filepath.Join(archives[0][:len(archives[0])-len(".zip")], folder))
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}

	_, err = os.Stat(filepath.Join(outDir, "Soil Survey.json"))
	assert.NoError(t, err)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `crater_exports_total{outcome="success"} 1`)

	out, err = run(t, "inspect", archives[0])
	require.NoError(t, err)
	assert.Contains(t, out, "ro-crate-metadata.json")
	assert.Contains(t, out, "ds1/")
	assert.Contains(t, out, "#jane-doe")
	assert.Contains(t, out, "Second dataset")
}

func TestExportSelection(t *testing.T) {
	db := buildDB(t)
	out, err := run(t, "export", "--facts", db, "--base-dir", t.TempDir(), "--select", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "datasets: 1  persons: 0")

	_, err = run(t, "export", "--facts", db, "--base-dir", t.TempDir(), "--select", "7")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	db := buildDB(t)
	out, err := run(t, "validate", "--facts", db, "--title", "Renamed")
	require.NoError(t, err)
	assert.Contains(t, out, `"Renamed"`)
	assert.Contains(t, out, "ds1/")
	assert.Contains(t, out, "datasets: 2  persons: 1  organizations: 1")
}

func TestConfigErrorWritesNothing(t *testing.T) {
	db := buildDB(t)
	dir := t.TempDir()
	schemaFile := filepath.Join(dir, "schema.toml")
	require.NoError(t, os.WriteFile(schemaFile, []byte("[dataset]\nfile_name = \"project/dataset/id\"\ntitle = 5\n"), 0o644))
	base := t.TempDir()

	_, err := run(t, "export", "--facts", db, "--schema", schemaFile, "--base-dir", base)
	var ce *api.ConfigError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, "dataset.title", ce.Key)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMissingSchemaFile(t *testing.T) {
	db := buildDB(t)
	_, err := run(t, "validate", "--facts", db, "--schema", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
