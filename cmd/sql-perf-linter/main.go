package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/peterebden/sql-perf-linter/internal/analyzer"
	"github.com/peterebden/sql-perf-linter/internal/config"
	"github.com/peterebden/sql-perf-linter/internal/scanner"
)

// CLI configuration
var (
	version = "0.1.0"

	// Flags
	outputFormat string
	configPath   string
	failOn       string
	noColorFlag  bool
	workersFlag  int
)

const (
	exitClean    = 0
	exitFindings = 1
	exitError    = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	cmd := buildCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)

	exitCode := exitClean
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		code, err := runLint(cmd, args, stdout)
		exitCode = code
		return err
	}

	if err := cmd.Execute(); err != nil {
		if exitCode == exitClean {
			return exitError
		}
		return exitCode
	}
	return exitCode
}

func buildCommand(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "sql-perf-linter [files or directories]",
		Short:        "PostgreSQL 9.6 migration lock analyzer",
		Long:         "Analyzes schema migration scripts for operations that take disruptive locks or rewrite tables on PostgreSQL 9.6. Reads from stdin when no paths are given.",
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, yaml")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to "+config.FileName)
	cmd.Flags().StringVar(&failOn, "fail-on", "warning", "lowest severity that fails the run: info, warning, critical")
	cmd.Flags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "number of files analyzed in parallel (0 = number of CPUs)")

	cmd.AddCommand(buildRulesCommand(stdout))
	return cmd
}

func runLint(cmd *cobra.Command, args []string, stdout io.Writer) (int, error) {
	failSeverity, ok := analyzer.ParseSeverity(failOn)
	if !ok {
		return exitError, fmt.Errorf("unknown severity %q for --fail-on", failOn)
	}

	a, err := buildAnalyzer()
	if err != nil {
		return exitError, err
	}

	var reports []scanner.FileReport
	if len(args) == 0 {
		reports, err = lintStdin(a)
	} else {
		reports, err = scanner.New(a, workersFlag).Scan(cmd.Context(), args)
	}
	if err != nil {
		return exitError, err
	}

	if noColorFlag {
		color.NoColor = true
	}
	if err := renderReports(stdout, reports); err != nil {
		return exitError, err
	}

	// Unreadable files are rendered alongside the others but count as an
	// operational failure, not a lint one.
	code := exitClean
	for _, fr := range reports {
		if fr.Err != nil {
			code = exitError
		} else if code == exitClean && fr.Report.HasSeverity(failSeverity) {
			code = exitFindings
		}
	}
	return code, nil
}

func buildAnalyzer() (*analyzer.Analyzer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	acfg, err := cfg.AnalyzerConfig()
	if err != nil {
		return nil, err
	}
	return analyzer.New(acfg)
}

func lintStdin(a *analyzer.Analyzer) ([]scanner.FileReport, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return []scanner.FileReport{{Path: "<stdin>", Report: a.AnalyzeScript(string(data))}}, nil
}

func buildRulesCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the registered rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := analyzer.Rules()
			switch outputFormat {
			case "json":
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			case "yaml":
				enc := yaml.NewEncoder(stdout)
				enc.SetIndent(2)
				return enc.Encode(infos)
			default:
				for _, info := range infos {
					fmt.Fprintf(stdout, "%-36s [%s] %s\n", info.ID, info.Severity, info.Description)
				}
				return nil
			}
		},
	}
}

// renderReports dispatches on the output format.
func renderReports(w io.Writer, reports []scanner.FileReport) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(buildOutput(reports))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return enc.Encode(buildOutput(reports))
	case "text":
		renderText(w, reports)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

var severityColors = map[string]*color.Color{
	"critical": color.New(color.FgRed, color.Bold),
	"warning":  color.New(color.FgYellow),
	"info":     color.New(color.FgCyan),
}

func renderText(w io.Writer, reports []scanner.FileReport) {
	totals := map[string]int{}
	files := 0
	errored := 0
	for _, fr := range reports {
		files++
		if fr.Err != nil {
			errored++
			fmt.Fprintf(w, "%s: error: %v\n", fr.Path, fr.Err)
			continue
		}
		for _, f := range fr.Report.Findings {
			label := f.Severity.String()
			if c, ok := severityColors[label]; ok {
				label = c.Sprint(strings.ToUpper(label))
			} else {
				label = strings.ToUpper(label)
			}
			fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n",
				fr.Path, f.Span.Start.Line, f.Span.Start.Column, label, f.RuleID, f.Message)
			if f.SuggestedFix != "" {
				for _, line := range strings.Split(f.SuggestedFix, "\n") {
					fmt.Fprintf(w, "    %s\n", line)
				}
			}
		}
		for sev, n := range fr.Report.CountBySeverity() {
			totals[sev] += n
		}
	}

	total := 0
	for _, n := range totals {
		total += n
	}
	if total == 0 && errored == 0 {
		fmt.Fprintf(w, "%d file(s) analyzed, no findings\n", files)
		return
	}
	fmt.Fprintf(w, "\n%d file(s) analyzed, %d finding(s): %d critical, %d warning, %d info",
		files, total, totals["critical"], totals["warning"], totals["info"])
	if errored > 0 {
		fmt.Fprintf(w, ", %d file(s) unreadable", errored)
	}
	fmt.Fprintln(w)
}

// Output structures for JSON/YAML

type Output struct {
	Summary OutputSummary `json:"summary" yaml:"summary"`
	Files   []FileOutput  `json:"files" yaml:"files"`
}

type OutputSummary struct {
	FilesAnalyzed int            `json:"files_analyzed" yaml:"files_analyzed"`
	TotalFindings int            `json:"total_findings" yaml:"total_findings"`
	BySeverity    map[string]int `json:"by_severity" yaml:"by_severity"`
}

type FileOutput struct {
	Path     string             `json:"path" yaml:"path"`
	Error    string             `json:"error,omitempty" yaml:"error,omitempty"`
	Findings []analyzer.Finding `json:"findings" yaml:"findings"`
}

func buildOutput(reports []scanner.FileReport) Output {
	out := Output{
		Summary: OutputSummary{
			FilesAnalyzed: len(reports),
			BySeverity:    map[string]int{"critical": 0, "warning": 0, "info": 0},
		},
		Files: make([]FileOutput, len(reports)),
	}
	for i, fr := range reports {
		if fr.Err != nil {
			out.Files[i] = FileOutput{Path: fr.Path, Error: fr.Err.Error(), Findings: []analyzer.Finding{}}
			continue
		}
		out.Files[i] = FileOutput{Path: fr.Path, Findings: fr.Report.Findings}
		if out.Files[i].Findings == nil {
			out.Files[i].Findings = []analyzer.Finding{}
		}
		for sev, n := range fr.Report.CountBySeverity() {
			out.Summary.BySeverity[sev] += n
			out.Summary.TotalFindings += n
		}
	}
	return out
}
