// Package suggester renders safe-migration remediation text for findings.
// The catalog of suggestions lives in an embedded YAML file, keyed by rule id
// with optional operation-specific variants, and is rendered through
// text/template against the statement's extracted metadata.
package suggester

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed suggestions.yaml
var suggestionsYAML []byte

// ErrNoSuggestion is returned when no suggestion exists for a rule.
var ErrNoSuggestion = fmt.Errorf("no suggestion available for this rule")

// yamlRoot is the root structure of suggestions.yaml.
type yamlRoot struct {
	Suggestions []suggestionDef `yaml:"suggestions"`
}

// suggestionDef is a single suggestion entry. Operation narrows the entry to
// one operation kind; an entry without one is the rule's generic fallback.
type suggestionDef struct {
	Rule      string `yaml:"rule"`
	Operation string `yaml:"operation,omitempty"`
	Fix       string `yaml:"fix"`
}

// suggestions maps rule id → operation name (or "") → fix template.
var suggestions map[string]map[string]string

func init() {
	var root yamlRoot
	if err := yaml.Unmarshal(suggestionsYAML, &root); err != nil {
		panic(fmt.Sprintf("failed to parse suggestions.yaml: %v", err))
	}
	suggestions = make(map[string]map[string]string)
	for _, def := range root.Suggestions {
		byOp, ok := suggestions[def.Rule]
		if !ok {
			byOp = make(map[string]string)
			suggestions[def.Rule] = byOp
		}
		byOp[def.Operation] = def.Fix
	}
}

// Has reports whether any suggestion exists for the rule.
func Has(ruleID string) bool {
	_, ok := suggestions[ruleID]
	return ok
}

// Render returns the remediation text for a rule applied to an operation.
// The operation-specific entry wins over the rule's generic one.
func Render(ruleID, operation string, data map[string]any) (string, error) {
	byOp, ok := suggestions[ruleID]
	if !ok {
		return "", ErrNoSuggestion
	}
	tmplStr, ok := byOp[operation]
	if !ok {
		if tmplStr, ok = byOp[""]; !ok {
			return "", ErrNoSuggestion
		}
	}
	return renderTemplate(tmplStr, data), nil
}

// renderTemplate executes the fix template. On any template problem the raw
// text is returned rather than failing the finding.
func renderTemplate(tmplStr string, data map[string]any) string {
	funcMap := template.FuncMap{
		"join":   strings.Join,
		"printf": fmt.Sprintf,
	}
	tmpl, err := template.New("suggestion").Funcs(funcMap).Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}
	return strings.TrimSpace(buf.String())
}
