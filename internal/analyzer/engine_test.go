package analyzer

import (
	"strings"
	"testing"

	"github.com/peterebden/sql-perf-linter/internal/operation"
	"github.com/peterebden/sql-perf-linter/internal/parser"
)

func TestPanickingRuleIsIsolated(t *testing.T) {
	idx := len(rules)
	rules = append(rules, Rule{
		ID:          "test.always-panics",
		Description: "panics on every statement",
		Severity:    SeverityWarning,
		Check: func(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
			panic("boom")
		},
	})
	defer func() { rules = rules[:idx] }()

	a, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report := a.AnalyzeScript("VACUUM FULL t;")

	want := []string{"rewrite.table-rewrite", RuleErrorID}
	got := ruleIDs(report)
	if len(got) != len(want) {
		t.Fatalf("findings = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("findings = %v, want %v", got, want)
		}
	}

	f := report.Findings[1]
	if f.Severity != SeverityWarning {
		t.Errorf("rule-error severity = %v, want %v", f.Severity, SeverityWarning)
	}
	if !strings.Contains(f.Message, "test.always-panics") {
		t.Errorf("rule-error message %q does not name the failed rule", f.Message)
	}
	if f.Span.Start.Offset != report.Findings[0].Span.Start.Offset {
		t.Errorf("rule-error span %v does not anchor on the statement", f.Span)
	}
}
