// Package metadata turns classified operations into the template data that
// remediation suggestions are rendered with. Identifiers are quoted here so
// suggested SQL stays valid when names need quoting.
package metadata

import (
	"github.com/peterebden/sql-perf-linter/internal/operation"
)

// Extract builds the template data for one operation. Only fields the
// statement actually provided are present, so templates can use conditional
// sections for optional names.
func Extract(op operation.Operation) map[string]any {
	data := map[string]any{
		"Operation": op.Kind.String(),
		"LockMode":  op.Meta.Lock.String(),
	}
	if op.Table != "" {
		data["TableName"] = QuoteQualified(op.Table)
	}
	if op.Column != "" {
		data["ColumnName"] = QuoteIdentifier(op.Column)
	}
	if op.Index != "" {
		data["IndexName"] = QuoteQualified(op.Index)
	}
	if op.Constraint != "" {
		data["ConstraintName"] = QuoteIdentifier(op.Constraint)
	}
	if op.TypeName != "" {
		data["TypeName"] = op.TypeName
	}
	return data
}
