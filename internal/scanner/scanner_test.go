package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterebden/sql-perf-linter/internal/analyzer"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newScanner(t *testing.T, workers int) *Scanner {
	t.Helper()
	a, err := analyzer.New(analyzer.Config{})
	require.NoError(t, err)
	return New(a, workers)
}

func TestScanFiles(t *testing.T) {
	dir := t.TempDir()
	clean := writeFile(t, dir, "001_add_column.sql", "ALTER TABLE t ADD COLUMN c int;\n")
	dirty := writeFile(t, dir, "002_rewrite.sql", "VACUUM FULL t;\n")

	reports, err := newScanner(t, 2).Scan(context.Background(), []string{clean, dirty})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, clean, reports[0].Path)
	assert.Empty(t, reports[0].Report.Findings)

	assert.Equal(t, dirty, reports[1].Path)
	require.Len(t, reports[1].Report.Findings, 1)
	assert.Equal(t, "rewrite.table-rewrite", reports[1].Report.Findings[0].RuleID)
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "002_b.sql", "DROP TABLE b;\n")
	writeFile(t, dir, "001_a.sql", "DROP TABLE a;\n")
	writeFile(t, dir, "README.md", "not sql\n")
	writeFile(t, dir, filepath.Join(".hidden", "003_c.sql"), "DROP TABLE c;\n")

	reports, err := newScanner(t, 0).Scan(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, reports, 2, "only .sql files outside hidden directories")

	// Directory contents come back sorted.
	assert.Equal(t, filepath.Join(dir, "001_a.sql"), reports[0].Path)
	assert.Equal(t, filepath.Join(dir, "002_b.sql"), reports[1].Path)
}

func TestScanResultsKeepInputOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"c.sql", "a.sql", "b.sql"} {
		paths = append(paths, writeFile(t, dir, name, "DROP TABLE x;\n"))
	}

	reports, err := newScanner(t, 3).Scan(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for i, path := range paths {
		assert.Equal(t, path, reports[i].Path)
	}
}

func TestScanMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.sql")

	reports, err := newScanner(t, 1).Scan(context.Background(), []string{missing})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, missing, reports[0].Path)
	assert.Error(t, reports[0].Err)
	assert.Nil(t, reports[0].Report)
}

func TestScanUnreadableFileDoesNotAffectOthers(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "001_rewrite.sql", "VACUUM FULL t;\n")
	missing := filepath.Join(dir, "002_missing.sql")

	reports, err := newScanner(t, 2).Scan(context.Background(), []string{good, missing})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	require.NoError(t, reports[0].Err)
	require.Len(t, reports[0].Report.Findings, 1)
	assert.Equal(t, "rewrite.table-rewrite", reports[0].Report.Findings[0].RuleID)

	assert.Error(t, reports[1].Err)
	assert.Nil(t, reports[1].Report)
}

func TestScanCanceledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sql", "DROP TABLE a;\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newScanner(t, 1).Scan(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}
