package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/peterebden/sql-perf-linter/internal/analyzer"
)

// FileReport pairs a migration file with its analysis. Err is set when the
// file could not be read; Report is nil in that case. A failed file never
// affects the others in the same scan.
type FileReport struct {
	Path   string
	Report *analyzer.Report
	Err    error
}

// Scanner analyzes a set of migration files concurrently.
type Scanner struct {
	analyzer *analyzer.Analyzer
	workers  int
}

// New builds a Scanner. workers <= 0 means one worker per CPU.
func New(a *analyzer.Analyzer, workers int) *Scanner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{analyzer: a, workers: workers}
}

// Scan resolves each argument (file or directory) to .sql files, analyzes
// them with a bounded worker pool, and returns reports in the resolved
// input order regardless of which worker finished first. An unreadable file
// is recorded on its own FileReport and the rest are still analyzed; the
// returned error is reserved for context cancellation and directory walk
// failures.
func (s *Scanner) Scan(ctx context.Context, args []string) ([]FileReport, error) {
	paths, err := resolve(args)
	if err != nil {
		return nil, err
	}

	reports := make([]FileReport, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				reports[i] = FileReport{Path: path, Err: fmt.Errorf("reading %s: %w", path, err)}
				return nil
			}
			reports[i] = FileReport{Path: path, Report: s.analyzer.AnalyzeScript(string(data))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// resolve expands directories to their .sql files, sorted, and keeps plain
// file arguments as given. A path that cannot be stat'ed is kept so the read
// failure is reported against that file alone.
func resolve(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != arg {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".sql") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}
