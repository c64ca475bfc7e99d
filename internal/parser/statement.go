package parser

import (
	"fmt"

	"github.com/peterebden/sql-perf-linter/internal/lexer"
)

// Kind identifies the statement forms the parser models. Anything it does not
// model is KindOther, an opaque statement carrying only its raw text and span.
type Kind int

const (
	KindOther Kind = iota
	KindBegin
	KindCommit
	KindRollback
	KindSet
	KindCreateTable
	KindCreateIndex
	KindDropTable
	KindDropIndex
	KindAlterTable
	KindAlterIndex
	KindTruncate
	KindCluster
	KindVacuum
	KindReindex
)

func (k Kind) String() string {
	switch k {
	case KindBegin:
		return "BEGIN"
	case KindCommit:
		return "COMMIT"
	case KindRollback:
		return "ROLLBACK"
	case KindSet:
		return "SET"
	case KindCreateTable:
		return "CREATE TABLE"
	case KindCreateIndex:
		return "CREATE INDEX"
	case KindDropTable:
		return "DROP TABLE"
	case KindDropIndex:
		return "DROP INDEX"
	case KindAlterTable:
		return "ALTER TABLE"
	case KindAlterIndex:
		return "ALTER INDEX"
	case KindTruncate:
		return "TRUNCATE"
	case KindCluster:
		return "CLUSTER"
	case KindVacuum:
		return "VACUUM"
	case KindReindex:
		return "REINDEX"
	default:
		return "OTHER"
	}
}

// Statement is a single parsed top-level statement. Statements are immutable
// once produced; spans are non-overlapping and strictly increasing across a
// script.
type Statement struct {
	Kind Kind
	// Raw is the statement's source text without the trailing semicolon.
	Raw  string
	Span lexer.Span

	// Target is the primary object the statement operates on: the table for
	// ALTER/CREATE/DROP/TRUNCATE/CLUSTER, the index for DROP INDEX.
	Target string

	// SET fields.
	SetName  string
	SetValue string
	SetLocal bool

	// CREATE/DROP INDEX fields. Table is the indexed table for CREATE INDEX.
	Unique       bool
	Concurrently bool
	Table        string

	// VACUUM FULL.
	Full bool

	// ALTER TABLE sub-clauses, in source order.
	Actions []AlterAction
}

// ActionKind identifies an ALTER TABLE sub-clause.
type ActionKind int

const (
	ActionOther ActionKind = iota
	ActionAddColumn
	ActionDropColumn
	ActionAlterColumnType
	ActionSetNotNull
	ActionDropNotNull
	ActionSetDefault
	ActionDropDefault
	ActionAddConstraint
	ActionDropConstraint
	ActionValidateConstraint
	ActionRename
)

// ConstraintKind identifies the constraint form of an ActionAddConstraint.
type ConstraintKind int

const (
	ConstraintNone ConstraintKind = iota
	ConstraintForeignKey
	ConstraintCheck
	ConstraintUnique
	ConstraintPrimaryKey
	ConstraintOther
)

// AlterAction is one structured sub-clause of an ALTER TABLE statement.
type AlterAction struct {
	Kind ActionKind
	Pos  lexer.Position

	// Column-level detail.
	Column     string
	TypeName   string
	NotNull    bool // NOT NULL given on ADD COLUMN
	HasDefault bool // DEFAULT expression present
	HasUsing   bool // USING clause on ALTER COLUMN TYPE

	// Constraint detail for ActionAddConstraint / ActionValidateConstraint.
	Constraint     ConstraintKind
	ConstraintName string
	NotValid       bool
	UsingIndex     bool // UNIQUE/PRIMARY KEY ... USING INDEX existing_index
}

// ParseError is a recoverable syntax problem anchored at a best-guess
// boundary, or (when FileLevel) an unterminated construct that makes the rest
// of the file unparseable.
type ParseError struct {
	Msg       string
	Pos       lexer.Position
	FileLevel bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Result is the outcome of parsing one migration script.
type Result struct {
	Statements []*Statement
	Errors     []*ParseError
}
