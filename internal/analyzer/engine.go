package analyzer

import (
	"fmt"
	"sort"

	"github.com/peterebden/sql-perf-linter/internal/operation"
	"github.com/peterebden/sql-perf-linter/internal/parser"
)

// engine runs the active rule set over classified statements.
type engine struct {
	active    []int // indices into rules, registration order
	overrides map[string]Severity
	env       Env
}

func newEngine(cfg Config) (*engine, error) {
	byID := make(map[string]int, len(rules))
	for i, r := range rules {
		byID[r.ID] = i
	}
	for id := range cfg.SeverityOverrides {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("severity override for unknown rule %q", id)
		}
	}

	enabled := make(map[int]bool, len(rules))
	if len(cfg.EnabledRules) == 0 {
		for i := range rules {
			enabled[i] = true
		}
	} else {
		for _, id := range cfg.EnabledRules {
			i, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("unknown rule %q", id)
			}
			enabled[i] = true
		}
	}
	for _, id := range cfg.DisabledRules {
		i, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown rule %q", id)
		}
		delete(enabled, i)
	}

	var active []int
	for i := range rules {
		if enabled[i] {
			active = append(active, i)
		}
	}

	env := Env{LockThreshold: cfg.LockThreshold}
	if env.LockThreshold == operation.LockNone {
		env.LockThreshold = DefaultLockThreshold
	}
	return &engine{active: active, overrides: cfg.SeverityOverrides, env: env}, nil
}

// evaluate runs every active rule over one statement. A panicking rule is
// isolated: it yields a single engine.rule-error finding and the remaining
// rules still run.
func (e *engine) evaluate(stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	var out []Finding
	for _, idx := range e.active {
		out = append(out, e.runRule(idx, stmt, ops, scope)...)
	}
	return out
}

func (e *engine) runRule(idx int, stmt *parser.Statement, ops []operation.Operation, scope *Scope) (out []Finding) {
	rule := rules[idx]
	defer func() {
		if r := recover(); r != nil {
			out = []Finding{{
				RuleID:    RuleErrorID,
				Severity:  SeverityWarning,
				Span:      stmt.Span,
				Message:   fmt.Sprintf("rule %s failed on this statement: %v", rule.ID, r),
				ruleIndex: idx,
			}}
		}
	}()
	found := rule.Check(&e.env, stmt, ops, scope)
	for i := range found {
		found[i].ruleIndex = idx
		found[i].Severity = e.severityFor(rule)
	}
	return found
}

func (e *engine) severityFor(rule Rule) Severity {
	if sev, ok := e.overrides[rule.ID]; ok {
		return sev
	}
	return rule.Severity
}

// sortFindings orders findings by source position, then by rule registration
// order so repeated runs over the same input always agree byte for byte.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Span.Start.Offset != findings[j].Span.Start.Offset {
			return findings[i].Span.Start.Offset < findings[j].Span.Start.Offset
		}
		return findings[i].ruleIndex < findings[j].ruleIndex
	})
}
