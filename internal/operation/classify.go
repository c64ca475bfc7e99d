package operation

import (
	"github.com/peterebden/sql-perf-linter/internal/lexer"
	"github.com/peterebden/sql-perf-linter/internal/parser"
)

// Operation is one classified schema operation. The Meta is attached at
// classification time so rules never consult the registry themselves.
type Operation struct {
	Kind Kind
	Meta Meta
	Pos  lexer.Position

	// Object names, where the statement provides them.
	Table      string
	Column     string
	Index      string
	Constraint string
	TypeName   string
}

// Classify maps a parsed statement onto its operations. Transaction control
// and SET statements classify to nothing: the context tracker owns them.
// Opaque statements classify to a single Other operation.
func Classify(stmt *parser.Statement) []Operation {
	switch stmt.Kind {
	case parser.KindBegin, parser.KindCommit, parser.KindRollback, parser.KindSet:
		return nil
	case parser.KindCreateTable:
		return []Operation{op(CreateTable, stmt, Operation{Table: stmt.Target})}
	case parser.KindCreateIndex:
		kind := CreateIndexPlain
		if stmt.Concurrently {
			kind = CreateIndexConcurrently
		}
		return []Operation{op(kind, stmt, Operation{Table: stmt.Table, Index: stmt.Target})}
	case parser.KindDropIndex:
		kind := DropIndexPlain
		if stmt.Concurrently {
			kind = DropIndexConcurrently
		}
		return []Operation{op(kind, stmt, Operation{Index: stmt.Target})}
	case parser.KindDropTable:
		return []Operation{op(DropTable, stmt, Operation{Table: stmt.Target})}
	case parser.KindTruncate:
		return []Operation{op(Truncate, stmt, Operation{Table: stmt.Target})}
	case parser.KindCluster:
		return []Operation{op(Cluster, stmt, Operation{Table: stmt.Target})}
	case parser.KindVacuum:
		kind := Vacuum
		if stmt.Full {
			kind = VacuumFull
		}
		return []Operation{op(kind, stmt, Operation{Table: stmt.Target})}
	case parser.KindReindex:
		return []Operation{op(Reindex, stmt, Operation{Index: stmt.Target})}
	case parser.KindAlterIndex:
		return []Operation{op(RenameObject, stmt, Operation{Index: stmt.Target})}
	case parser.KindAlterTable:
		return classifyAlterTable(stmt)
	default:
		return []Operation{op(Other, stmt, Operation{})}
	}
}

// classifyAlterTable yields one operation per sub-clause, each independently
// evaluable by rules.
func classifyAlterTable(stmt *parser.Statement) []Operation {
	ops := make([]Operation, 0, len(stmt.Actions))
	for _, action := range stmt.Actions {
		o := Operation{
			Pos:        action.Pos,
			Table:      stmt.Target,
			Column:     action.Column,
			Constraint: action.ConstraintName,
			TypeName:   action.TypeName,
		}
		o.Kind = classifyAction(action)
		o.Meta = MetaFor(o.Kind)
		ops = append(ops, o)
	}
	if len(ops) == 0 {
		return []Operation{op(Other, stmt, Operation{Table: stmt.Target})}
	}
	return ops
}

func classifyAction(action parser.AlterAction) Kind {
	switch action.Kind {
	case parser.ActionAddColumn:
		switch {
		case action.HasDefault:
			return AddColumnWithDefault
		case action.NotNull:
			return AddColumnNotNullNoDefault
		default:
			return AddColumnNullable
		}
	case parser.ActionDropColumn:
		return DropColumn
	case parser.ActionAlterColumnType:
		return AlterColumnType
	case parser.ActionSetNotNull:
		return SetNotNull
	case parser.ActionDropNotNull:
		return DropNotNull
	case parser.ActionSetDefault:
		return SetDefault
	case parser.ActionDropDefault:
		return DropDefault
	case parser.ActionAddConstraint:
		return classifyConstraint(action)
	case parser.ActionDropConstraint:
		return DropConstraint
	case parser.ActionValidateConstraint:
		return ValidateConstraint
	case parser.ActionRename:
		return RenameObject
	default:
		return Other
	}
}

func classifyConstraint(action parser.AlterAction) Kind {
	switch action.Constraint {
	case parser.ConstraintForeignKey:
		if action.NotValid {
			return AddForeignKeyNotValid
		}
		return AddForeignKey
	case parser.ConstraintCheck:
		if action.NotValid {
			return AddCheckConstraintNotValid
		}
		return AddCheckConstraintValidated
	case parser.ConstraintUnique:
		if action.UsingIndex {
			return AddUniqueUsingIndex
		}
		return AddUniqueConstraint
	case parser.ConstraintPrimaryKey:
		if action.UsingIndex {
			return AddUniqueUsingIndex
		}
		return AddPrimaryKey
	default:
		return Other
	}
}

// op builds an Operation for a whole statement, filling kind, metadata and
// position.
func op(kind Kind, stmt *parser.Statement, detail Operation) Operation {
	detail.Kind = kind
	detail.Meta = MetaFor(kind)
	detail.Pos = stmt.Span.Start
	return detail
}
