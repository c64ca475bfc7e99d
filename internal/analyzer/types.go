package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/peterebden/sql-perf-linter/internal/lexer"
)

// Severity classifies how urgently a finding should be acted on.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON renders severities by name in machine output.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalYAML renders severities by name in machine output.
func (s Severity) MarshalYAML() (any, error) {
	return s.String(), nil
}

// UnmarshalJSON accepts the severity names MarshalJSON emits.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	sev, ok := ParseSeverity(name)
	if !ok {
		return fmt.Errorf("unknown severity %q", name)
	}
	*s = sev
	return nil
}

// ParseSeverity converts a severity name to its Severity. Used by the
// configuration surface for per-rule overrides and exit-code thresholds.
func ParseSeverity(name string) (Severity, bool) {
	switch strings.ToLower(name) {
	case "info":
		return SeverityInfo, true
	case "warning":
		return SeverityWarning, true
	case "critical":
		return SeverityCritical, true
	default:
		return SeverityInfo, false
	}
}

// Reserved finding identifiers that are not rules: syntax problems reported
// by the lexer/parser, and internal rule evaluation failures.
const (
	ParseErrorID = "syntax.parse-error"
	RuleErrorID  = "engine.rule-error"
)

// Finding is one issue reported against a statement. Findings are immutable
// once aggregated.
type Finding struct {
	RuleID   string     `json:"rule_id" yaml:"rule_id"`
	Severity Severity   `json:"severity" yaml:"severity"`
	Span     lexer.Span `json:"span" yaml:"span"`
	Message  string     `json:"message" yaml:"message"`
	// SuggestedFix is remediation text, empty when none is known.
	SuggestedFix string `json:"suggested_fix,omitempty" yaml:"suggested_fix,omitempty"`
	// LockMode names the lock the flagged operation takes, empty for
	// findings not tied to an operation.
	LockMode           string `json:"lock_mode,omitempty" yaml:"lock_mode,omitempty"`
	CausesTableRewrite bool   `json:"causes_table_rewrite" yaml:"causes_table_rewrite"`

	// ruleIndex orders findings from different rules on the same statement by
	// rule registration order. Syntax findings use -1.
	ruleIndex int
}

// Report is the ordered, unfiltered list of findings for one file. Severity
// filtering and rendering belong to the caller.
type Report struct {
	Findings []Finding
}

// CountBySeverity returns the number of findings per severity name.
func (r *Report) CountBySeverity() map[string]int {
	counts := map[string]int{
		SeverityCritical.String(): 0,
		SeverityWarning.String():  0,
		SeverityInfo.String():     0,
	}
	for _, f := range r.Findings {
		counts[f.Severity.String()]++
	}
	return counts
}

// HasSeverity reports whether any finding is at or above the given severity.
func (r *Report) HasSeverity(min Severity) bool {
	for _, f := range r.Findings {
		if f.Severity >= min {
			return true
		}
	}
	return false
}
