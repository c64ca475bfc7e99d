package analyzer

import (
	"reflect"
	"strings"
	"testing"
)

// analyze runs the default-config analyzer over one script.
func analyze(t *testing.T, input string) *Report {
	t.Helper()
	a, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a.AnalyzeScript(input)
}

// ruleIDs extracts the ordered rule IDs from a report.
func ruleIDs(report *Report) []string {
	ids := make([]string, len(report.Findings))
	for i, f := range report.Findings {
		ids[i] = f.RuleID
	}
	return ids
}

func TestAnalyzeCleanMigration(t *testing.T) {
	script := `
BEGIN;
SET LOCAL lock_timeout = '3s';
ALTER TABLE users ADD COLUMN age int;
ALTER TABLE users ADD CONSTRAINT fk_org FOREIGN KEY (org_id) REFERENCES orgs (id) NOT VALID;
COMMIT;
ALTER TABLE users VALIDATE CONSTRAINT fk_org;
CREATE INDEX CONCURRENTLY idx_users_age ON users (age);
`
	report := analyze(t, script)
	if len(report.Findings) != 0 {
		t.Errorf("clean migration produced findings: %v", ruleIDs(report))
	}
}

func TestAnalyzeSingleFindingCases(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		ruleID string
		sev    Severity
	}{
		{"add column with default", "ALTER TABLE t ADD COLUMN c int DEFAULT 5;", "rewrite.table-rewrite", SeverityCritical},
		{"add column not null no default", "ALTER TABLE t ADD COLUMN c int NOT NULL;", "column.add-not-null", SeverityWarning},
		{"alter column type", "ALTER TABLE t ALTER COLUMN c TYPE bigint;", "rewrite.table-rewrite", SeverityCritical},
		{"cluster", "CLUSTER t;", "rewrite.table-rewrite", SeverityCritical},
		{"vacuum full", "VACUUM FULL t;", "rewrite.table-rewrite", SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := analyze(t, tt.sql)
			if len(report.Findings) != 1 {
				t.Fatalf("got %d findings %v, want exactly 1", len(report.Findings), ruleIDs(report))
			}
			f := report.Findings[0]
			if f.RuleID != tt.ruleID {
				t.Errorf("got rule %s, want %s", f.RuleID, tt.ruleID)
			}
			if f.Severity != tt.sev {
				t.Errorf("got severity %s, want %s", f.Severity, tt.sev)
			}
		})
	}
}

func TestAnalyzeValidatedForeignKey(t *testing.T) {
	// The FK's ShareRowExclusive sits at the default blocking threshold, so
	// the generic lock rule and the constraint rule both report it.
	report := analyze(t, "ALTER TABLE orders ADD CONSTRAINT fk FOREIGN KEY (uid) REFERENCES users (id);")
	got := ruleIDs(report)
	want := []string{"lock.blocking-operation", "constraint.validated-foreign-key"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// NOT VALID skips the existing-row scan and silences both.
	report = analyze(t, "ALTER TABLE orders ADD CONSTRAINT fk FOREIGN KEY (uid) REFERENCES users (id) NOT VALID;")
	if len(report.Findings) != 0 {
		t.Errorf("NOT VALID constraint flagged: %v", ruleIDs(report))
	}
}

func TestAnalyzeRewriteFindingShape(t *testing.T) {
	report := analyze(t, "ALTER TABLE accounts ADD COLUMN balance numeric(10,2) NOT NULL DEFAULT 0;")
	if len(report.Findings) != 1 {
		t.Fatalf("got %d findings: %v", len(report.Findings), ruleIDs(report))
	}
	f := report.Findings[0]
	if !f.CausesTableRewrite {
		t.Error("rewrite flag not set")
	}
	if f.LockMode != "AccessExclusive" {
		t.Errorf("got lock mode %q", f.LockMode)
	}
	if !strings.Contains(f.Message, "accounts") {
		t.Errorf("message does not name the table: %q", f.Message)
	}
	if f.SuggestedFix == "" {
		t.Error("no suggested fix rendered")
	}
	if f.Span.Start.Line != 1 {
		t.Errorf("got span line %d, want 1", f.Span.Start.Line)
	}
}

func TestAnalyzeBlockingOperation(t *testing.T) {
	// SET NOT NULL scans under AccessExclusive: both the constraint rule and
	// the generic blocking rule report it independently.
	report := analyze(t, "ALTER TABLE t ALTER COLUMN c SET NOT NULL;")
	got := ruleIDs(report)
	want := []string{"lock.blocking-operation", "constraint.set-not-null"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Metadata-only changes hold AccessExclusive too, but only briefly.
	report = analyze(t, "ALTER TABLE t ALTER COLUMN c DROP NOT NULL;")
	if len(report.Findings) != 0 {
		t.Errorf("metadata-only change flagged: %v", ruleIDs(report))
	}
}

func TestAnalyzeLockThreshold(t *testing.T) {
	a, err := New(Config{
		EnabledRules:  []string{"lock.blocking-operation"},
		LockThreshold: DefaultLockThreshold,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// ShareUpdateExclusive sits below the default threshold.
	report := a.AnalyzeScript("ALTER TABLE t VALIDATE CONSTRAINT fk;")
	if len(report.Findings) != 0 {
		t.Errorf("VALIDATE CONSTRAINT flagged at default threshold: %v", ruleIDs(report))
	}

	a, err = New(Config{
		EnabledRules:  []string{"lock.blocking-operation"},
		LockThreshold: 1, // anything above LockNone
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report = a.AnalyzeScript("ALTER TABLE t VALIDATE CONSTRAINT fk;")
	if len(report.Findings) != 1 {
		t.Errorf("got %v, want the blocking finding at a lowered threshold", ruleIDs(report))
	}
}

func TestAnalyzeIndexRules(t *testing.T) {
	// A lone CREATE INDEX gets only the non-concurrent advice.
	report := analyze(t, "CREATE INDEX idx ON t (c);")
	if got := ruleIDs(report); !reflect.DeepEqual(got, []string{"index.non-concurrent"}) {
		t.Errorf("got %v", got)
	}

	// Sharing a transaction with other schema changes adds the lock-duration
	// finding.
	script := `
BEGIN;
ALTER TABLE t ADD COLUMN c int;
CREATE INDEX idx ON t (c);
COMMIT;
`
	report = analyze(t, script)
	got := ruleIDs(report)
	want := []string{"index.non-concurrent", "index.inside-transaction"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAnalyzeConcurrentIndexInTransaction(t *testing.T) {
	script := `
BEGIN;
CREATE INDEX CONCURRENTLY idx ON t (c);
COMMIT;
`
	report := analyze(t, script)
	if len(report.Findings) != 1 {
		t.Fatalf("got %d findings: %v", len(report.Findings), ruleIDs(report))
	}
	f := report.Findings[0]
	if f.RuleID != "txn.illegal-in-transaction" {
		t.Errorf("got rule %s", f.RuleID)
	}
	if f.Severity != SeverityCritical {
		t.Errorf("got severity %s, want critical", f.Severity)
	}
}

func TestAnalyzeVacuumInTransaction(t *testing.T) {
	report := analyze(t, "BEGIN;\nVACUUM t;\nCOMMIT;")
	if got := ruleIDs(report); !reflect.DeepEqual(got, []string{"txn.illegal-in-transaction"}) {
		t.Errorf("got %v", got)
	}
}

func TestAnalyzeNoLockTimeout(t *testing.T) {
	// A rewrite inside an explicit transaction without a lock_timeout draws
	// the settings finding alongside the rewrite one.
	script := `
BEGIN;
ALTER TABLE t ALTER COLUMN c TYPE bigint;
COMMIT;
`
	report := analyze(t, script)
	got := ruleIDs(report)
	want := []string{"rewrite.table-rewrite", "settings.no-lock-timeout"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// SET LOCAL before the rewrite silences it.
	script = `
BEGIN;
SET LOCAL lock_timeout = '3s';
ALTER TABLE t ALTER COLUMN c TYPE bigint;
COMMIT;
`
	report = analyze(t, script)
	if got := ruleIDs(report); !reflect.DeepEqual(got, []string{"rewrite.table-rewrite"}) {
		t.Errorf("got %v", got)
	}
}

func TestAnalyzeSessionSetCarriesIntoTransaction(t *testing.T) {
	script := `
SET lock_timeout = '3s';
BEGIN;
ALTER TABLE t ALTER COLUMN c TYPE bigint;
COMMIT;
`
	report := analyze(t, script)
	if got := ruleIDs(report); !reflect.DeepEqual(got, []string{"rewrite.table-rewrite"}) {
		t.Errorf("session-level SET not honored: %v", got)
	}
}

func TestAnalyzeSetAfterStatementDoesNotCount(t *testing.T) {
	script := `
BEGIN;
ALTER TABLE t ALTER COLUMN c TYPE bigint;
SET LOCAL lock_timeout = '3s';
COMMIT;
`
	report := analyze(t, script)
	got := ruleIDs(report)
	want := []string{"rewrite.table-rewrite", "settings.no-lock-timeout"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SET after the statement should not count: got %v, want %v", got, want)
	}
}

func TestAnalyzeParseErrorFindings(t *testing.T) {
	// A malformed statement yields a critical syntax finding; the rest of the
	// file is still analyzed.
	report := analyze(t, "ALTER TABLE ;\nVACUUM FULL t;")
	got := ruleIDs(report)
	want := []string{ParseErrorID, "rewrite.table-rewrite"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if report.Findings[0].Severity != SeverityCritical {
		t.Errorf("syntax finding severity %s, want critical", report.Findings[0].Severity)
	}
}

func TestAnalyzeUnterminatedLiteral(t *testing.T) {
	report := analyze(t, "VACUUM FULL t;\nINSERT INTO t VALUES ('oops;")
	got := ruleIDs(report)
	want := []string{"rewrite.table-rewrite", ParseErrorID}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if !strings.Contains(report.Findings[1].Message, "not analyzed") {
		t.Errorf("file-level error should say the rest was skipped: %q", report.Findings[1].Message)
	}
}

func TestAnalyzeOrderingDeterministic(t *testing.T) {
	script := `
BEGIN;
ALTER TABLE a ALTER COLUMN x TYPE bigint;
ALTER TABLE b ALTER COLUMN y SET NOT NULL;
CREATE INDEX idx ON c (z);
COMMIT;
`
	first := analyze(t, script)
	for i := 0; i < 10; i++ {
		again := analyze(t, script)
		if !reflect.DeepEqual(ruleIDs(first), ruleIDs(again)) {
			t.Fatalf("orderings differ: %v vs %v", ruleIDs(first), ruleIDs(again))
		}
	}
	// Findings are ordered by position first.
	var lastOffset int
	for _, f := range first.Findings {
		if f.Span.Start.Offset < lastOffset {
			t.Fatalf("findings out of source order: %v", ruleIDs(first))
		}
		lastOffset = f.Span.Start.Offset
	}
}

func TestAnalyzeRuleSubset(t *testing.T) {
	script := "ALTER TABLE t ALTER COLUMN c SET NOT NULL;"

	full, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	subset, err := New(Config{EnabledRules: []string{"constraint.set-not-null"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fullIDs := ruleIDs(full.AnalyzeScript(script))
	subsetIDs := ruleIDs(subset.AnalyzeScript(script))
	if !reflect.DeepEqual(subsetIDs, []string{"constraint.set-not-null"}) {
		t.Fatalf("got %v", subsetIDs)
	}
	// The subset's findings are a sub-sequence of the full run's.
	j := 0
	for _, id := range fullIDs {
		if j < len(subsetIDs) && id == subsetIDs[j] {
			j++
		}
	}
	if j != len(subsetIDs) {
		t.Errorf("subset %v is not a sub-sequence of %v", subsetIDs, fullIDs)
	}
}

func TestAnalyzeDisabledRules(t *testing.T) {
	a, err := New(Config{DisabledRules: []string{"index.non-concurrent"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report := a.AnalyzeScript("CREATE INDEX idx ON t (c);")
	if len(report.Findings) != 0 {
		t.Errorf("disabled rule still fired: %v", ruleIDs(report))
	}
}

func TestAnalyzeSeverityOverride(t *testing.T) {
	a, err := New(Config{
		SeverityOverrides: map[string]Severity{"index.non-concurrent": SeverityCritical},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report := a.AnalyzeScript("CREATE INDEX idx ON t (c);")
	if len(report.Findings) != 1 || report.Findings[0].Severity != SeverityCritical {
		t.Errorf("override not applied: %+v", report.Findings)
	}
}

func TestAnalyzeUnknownRuleRejected(t *testing.T) {
	if _, err := New(Config{EnabledRules: []string{"no.such-rule"}}); err == nil {
		t.Error("expected an error for an unknown rule id")
	}
	if _, err := New(Config{SeverityOverrides: map[string]Severity{"no.such-rule": SeverityInfo}}); err == nil {
		t.Error("expected an error for an unknown override id")
	}
}

func TestAnalyzeOpaqueStatementsAreSilent(t *testing.T) {
	report := analyze(t, "SELECT * FROM t;\nINSERT INTO t VALUES (1);\nGRANT SELECT ON t TO r;")
	if len(report.Findings) != 0 {
		t.Errorf("opaque statements produced findings: %v", ruleIDs(report))
	}
}

func TestRulesRegistry(t *testing.T) {
	infos := Rules()
	if len(infos) == 0 {
		t.Fatal("empty rule registry")
	}
	seen := make(map[string]bool)
	for _, info := range infos {
		if info.ID == "" || info.Description == "" {
			t.Errorf("incomplete rule info: %+v", info)
		}
		if seen[info.ID] {
			t.Errorf("duplicate rule id %s", info.ID)
		}
		seen[info.ID] = true
	}
	for _, reserved := range []string{ParseErrorID, RuleErrorID} {
		if seen[reserved] {
			t.Errorf("reserved id %s registered as a rule", reserved)
		}
	}
}

func TestReportHelpers(t *testing.T) {
	report := analyze(t, "VACUUM FULL t;\nCREATE INDEX idx ON t (c);")
	counts := report.CountBySeverity()
	if counts["critical"] != 1 || counts["warning"] != 1 {
		t.Errorf("got counts %v", counts)
	}
	if !report.HasSeverity(SeverityCritical) {
		t.Error("HasSeverity(critical) = false")
	}
	if report.HasSeverity(SeverityCritical + 1) {
		t.Error("HasSeverity above critical should be false")
	}
}
