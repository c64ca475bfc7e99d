package analyzer

import (
	"fmt"

	"github.com/peterebden/sql-perf-linter/internal/lexer"
	"github.com/peterebden/sql-perf-linter/internal/operation"
	"github.com/peterebden/sql-perf-linter/internal/parser"
)

// Config selects which rules run and how their findings are graded. The zero
// value runs the full registry at default severities.
type Config struct {
	// EnabledRules restricts the run to these rule IDs. Empty means all.
	EnabledRules []string
	// DisabledRules removes rule IDs from the enabled set.
	DisabledRules []string
	// SeverityOverrides replaces the default severity per rule ID.
	SeverityOverrides map[string]Severity
	// LockThreshold is the weakest lock the blocking-operation rule reports.
	// LockNone selects the default.
	LockThreshold operation.LockMode
}

// Analyzer checks migration scripts for operations that take disruptive
// locks or rewrite tables on PostgreSQL 9.6.
type Analyzer struct {
	engine *engine
}

// New builds an Analyzer. It fails if the config names a rule the registry
// does not have.
func New(cfg Config) (*Analyzer, error) {
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &Analyzer{engine: eng}, nil
}

// AnalyzeScript runs the full pipeline over one migration script: lex, parse
// with recovery, classify, track transaction scopes, then evaluate every
// active rule against every statement. Parse errors surface as findings
// rather than aborting the run, so one broken statement never hides what the
// rules have to say about the rest of the file.
func (a *Analyzer) AnalyzeScript(input string) *Report {
	result := parser.Parse(input)

	var findings []Finding
	for _, perr := range result.Errors {
		findings = append(findings, parseErrorFinding(perr))
	}

	scopes := BuildScopes(result.Statements)
	for i, stmt := range result.Statements {
		ops := operation.Classify(stmt)
		if len(ops) == 0 {
			continue
		}
		findings = append(findings, a.engine.evaluate(stmt, ops, scopes[i])...)
	}

	sortFindings(findings)
	return &Report{Findings: findings}
}

func parseErrorFinding(perr *parser.ParseError) Finding {
	msg := fmt.Sprintf("syntax error: %s", perr.Msg)
	if perr.FileLevel {
		msg = fmt.Sprintf("syntax error: %s; statements after this point were not analyzed", perr.Msg)
	}
	return Finding{
		RuleID:    ParseErrorID,
		Severity:  SeverityCritical,
		Span:      lexer.Span{Start: perr.Pos, End: perr.Pos},
		Message:   msg,
		ruleIndex: -1,
	}
}
