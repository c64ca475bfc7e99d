package analyzer

import (
	"fmt"

	"github.com/peterebden/sql-perf-linter/internal/metadata"
	"github.com/peterebden/sql-perf-linter/internal/operation"
	"github.com/peterebden/sql-perf-linter/internal/parser"
	"github.com/peterebden/sql-perf-linter/internal/suggester"
)

// Env carries the tunables rules consult.
type Env struct {
	// LockThreshold is the weakest lock mode the blocking-operation rule
	// reports.
	LockThreshold operation.LockMode
}

// DefaultLockThreshold reports locks that block concurrent writes and reads
// of the schema.
const DefaultLockThreshold = operation.ShareRowExclusive

// CheckFunc evaluates one rule against one statement. Rules are pure: they
// read the statement, its classified operations and its transactional scope,
// and return findings. They never suppress each other.
type CheckFunc func(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding

// Rule is one registered check. The registry is a static table built at
// startup so the rule set is auditable and evaluation order reproducible.
type Rule struct {
	ID          string
	Description string
	Severity    Severity
	Check       CheckFunc
}

// RuleInfo is the stable registry surface exposed to external configuration.
type RuleInfo struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
}

// Rules returns the registry in registration order.
func Rules() []RuleInfo {
	infos := make([]RuleInfo, len(rules))
	for i, r := range rules {
		infos[i] = RuleInfo{ID: r.ID, Description: r.Description, Severity: r.Severity}
	}
	return infos
}

// rules is the static catalog. Registration order is the secondary sort key
// for findings, so new rules go at the end.
var rules = []Rule{
	{
		ID:          "rewrite.table-rewrite",
		Description: "operation rewrites the whole table while holding a strong lock",
		Severity:    SeverityCritical,
		Check:       checkTableRewrite,
	},
	{
		ID:          "lock.blocking-operation",
		Description: "operation holds a lock at or above the configured threshold for a table-scan duration",
		Severity:    SeverityWarning,
		Check:       checkBlockingOperation,
	},
	{
		ID:          "column.add-not-null",
		Description: "ADD COLUMN NOT NULL without DEFAULT fails on non-empty tables",
		Severity:    SeverityWarning,
		Check:       checkAddNotNull,
	},
	{
		ID:          "index.non-concurrent",
		Description: "CREATE INDEX without CONCURRENTLY blocks writes for the build duration",
		Severity:    SeverityWarning,
		Check:       checkNonConcurrentIndex,
	},
	{
		ID:          "index.inside-transaction",
		Description: "index built inside a transaction holds its lock for the whole transaction",
		Severity:    SeverityWarning,
		Check:       checkIndexInsideTransaction,
	},
	{
		ID:          "txn.illegal-in-transaction",
		Description: "statement cannot run inside an explicit transaction block",
		Severity:    SeverityCritical,
		Check:       checkIllegalInTransaction,
	},
	{
		ID:          "constraint.validated-foreign-key",
		Description: "FOREIGN KEY without NOT VALID validates existing rows under a strong lock",
		Severity:    SeverityWarning,
		Check:       checkValidatedForeignKey,
	},
	{
		ID:          "constraint.validated-check",
		Description: "CHECK constraint without NOT VALID validates existing rows under AccessExclusive",
		Severity:    SeverityWarning,
		Check:       checkValidatedCheck,
	},
	{
		ID:          "constraint.set-not-null",
		Description: "SET NOT NULL scans the whole table under AccessExclusive on 9.6",
		Severity:    SeverityWarning,
		Check:       checkSetNotNull,
	},
	{
		ID:          "constraint.unique-inline",
		Description: "UNIQUE/PRIMARY KEY constraint builds its index under AccessExclusive",
		Severity:    SeverityWarning,
		Check:       checkUniqueInline,
	},
	{
		ID:          "settings.no-lock-timeout",
		Description: "rewrite-triggering statement without a lock_timeout in its transaction",
		Severity:    SeverityWarning,
		Check:       checkNoLockTimeout,
	},
}

// finding assembles a Finding for an operation, rendering its suggested fix
// from the remediation catalog.
func finding(ruleID string, stmt *parser.Statement, op operation.Operation, message string) Finding {
	fix, err := suggester.Render(ruleID, op.Kind.String(), metadata.Extract(op))
	if err != nil {
		fix = ""
	}
	return Finding{
		RuleID:             ruleID,
		Span:               stmt.Span,
		Message:            message,
		SuggestedFix:       fix,
		LockMode:           op.Meta.Lock.String(),
		CausesTableRewrite: op.Meta.Rewrite,
	}
}

// tableRef names the operation's table for messages, with a fallback for
// statements that did not name one.
func tableRef(op operation.Operation) string {
	if op.Table != "" {
		return op.Table
	}
	return "the table"
}

func checkTableRewrite(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	var out []Finding
	for _, op := range ops {
		if !op.Meta.Rewrite {
			continue
		}
		msg := fmt.Sprintf("%s forces a full rewrite of %s under %s; the table is unavailable for the whole rewrite",
			op.Kind, tableRef(op), op.Meta.Lock)
		out = append(out, finding("rewrite.table-rewrite", stmt, op, msg))
	}
	return out
}

func checkBlockingOperation(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	var out []Finding
	for _, op := range ops {
		if op.Meta.Rewrite || op.Meta.MetadataOnly || op.Meta.Lock < env.LockThreshold {
			continue
		}
		msg := fmt.Sprintf("%s holds %s on %s while it scans the table, blocking concurrent writes",
			op.Kind, op.Meta.Lock, tableRef(op))
		out = append(out, finding("lock.blocking-operation", stmt, op, msg))
	}
	return out
}

func checkAddNotNull(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	var out []Finding
	for _, op := range ops {
		if op.Kind != operation.AddColumnNotNullNoDefault {
			continue
		}
		msg := fmt.Sprintf("adding column %s as NOT NULL without a DEFAULT fails if %s has any rows",
			op.Column, tableRef(op))
		out = append(out, finding("column.add-not-null", stmt, op, msg))
	}
	return out
}

func checkNonConcurrentIndex(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	var out []Finding
	for _, op := range ops {
		if op.Kind != operation.CreateIndexPlain {
			continue
		}
		msg := fmt.Sprintf("CREATE INDEX blocks writes to %s for the whole build; use CREATE INDEX CONCURRENTLY",
			tableRef(op))
		out = append(out, finding("index.non-concurrent", stmt, op, msg))
	}
	return out
}

func checkIndexInsideTransaction(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	if !scope.Explicit || scope.SchemaChangesOtherThan(stmt) == 0 {
		return nil
	}
	var out []Finding
	for _, op := range ops {
		if op.Kind != operation.CreateIndexPlain {
			continue
		}
		msg := fmt.Sprintf("index build on %s shares a transaction with other schema changes, so its lock is held until the whole transaction commits; split it into its own migration",
			tableRef(op))
		out = append(out, finding("index.inside-transaction", stmt, op, msg))
	}
	return out
}

func checkIllegalInTransaction(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	if !scope.Explicit {
		return nil
	}
	var out []Finding
	for _, op := range ops {
		if op.Meta.InTransaction {
			continue
		}
		msg := fmt.Sprintf("%s cannot run inside an explicit transaction block; PostgreSQL rejects it outright", op.Kind)
		out = append(out, finding("txn.illegal-in-transaction", stmt, op, msg))
	}
	return out
}

func checkValidatedForeignKey(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	var out []Finding
	for _, op := range ops {
		if op.Kind != operation.AddForeignKey {
			continue
		}
		msg := fmt.Sprintf("adding a FOREIGN KEY to %s validates every existing row under %s; add it NOT VALID and VALIDATE separately",
			tableRef(op), op.Meta.Lock)
		out = append(out, finding("constraint.validated-foreign-key", stmt, op, msg))
	}
	return out
}

func checkValidatedCheck(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	var out []Finding
	for _, op := range ops {
		if op.Kind != operation.AddCheckConstraintValidated {
			continue
		}
		msg := fmt.Sprintf("adding a CHECK constraint to %s validates every existing row under %s; add it NOT VALID and VALIDATE separately",
			tableRef(op), op.Meta.Lock)
		out = append(out, finding("constraint.validated-check", stmt, op, msg))
	}
	return out
}

func checkSetNotNull(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	var out []Finding
	for _, op := range ops {
		if op.Kind != operation.SetNotNull {
			continue
		}
		msg := fmt.Sprintf("SET NOT NULL on %s.%s scans the whole table under AccessExclusive",
			tableRef(op), op.Column)
		out = append(out, finding("constraint.set-not-null", stmt, op, msg))
	}
	return out
}

func checkUniqueInline(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	var out []Finding
	for _, op := range ops {
		if op.Kind != operation.AddUniqueConstraint && op.Kind != operation.AddPrimaryKey {
			continue
		}
		msg := fmt.Sprintf("%s on %s builds its backing index under AccessExclusive; build the index concurrently and adopt it with USING INDEX",
			op.Kind, tableRef(op))
		out = append(out, finding("constraint.unique-inline", stmt, op, msg))
	}
	return out
}

func checkNoLockTimeout(env *Env, stmt *parser.Statement, ops []operation.Operation, scope *Scope) []Finding {
	if !scope.Explicit {
		return nil
	}
	rewrite := operation.Operation{}
	found := false
	for _, op := range ops {
		if op.Meta.Rewrite {
			rewrite, found = op, true
			break
		}
	}
	if !found {
		return nil
	}
	if _, ok := scope.Setting(stmt, "lock_timeout"); ok {
		return nil
	}
	if _, ok := scope.Setting(stmt, "statement_timeout"); ok {
		return nil
	}
	f := finding("settings.no-lock-timeout", stmt, rewrite, fmt.Sprintf(
		"no lock_timeout is set before this rewrite of %s; if it queues behind a long transaction it blocks all later access for the wait plus the rewrite",
		tableRef(rewrite)))
	// The timeout advice stands on its own; the rewrite rule reports the
	// rewrite itself.
	f.CausesTableRewrite = false
	return []Finding{f}
}
