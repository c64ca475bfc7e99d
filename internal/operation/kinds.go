// Package operation maps parsed statements onto a closed taxonomy of schema
// operations, each annotated with its PostgreSQL 9.6 locking and rewrite
// behavior. Rules reason about operations, never about raw SQL text.
package operation

// LockMode is a PostgreSQL table lock strength, ordered weakest to strongest.
// The ordering matches PostgreSQL's lock conflict hierarchy, so modes compare
// meaningfully with <.
type LockMode int

const (
	LockNone LockMode = iota
	AccessShare
	RowShare
	RowExclusive
	ShareUpdateExclusive
	Share
	ShareRowExclusive
	Exclusive
	AccessExclusive
)

func (l LockMode) String() string {
	switch l {
	case AccessShare:
		return "AccessShare"
	case RowShare:
		return "RowShare"
	case RowExclusive:
		return "RowExclusive"
	case ShareUpdateExclusive:
		return "ShareUpdateExclusive"
	case Share:
		return "Share"
	case ShareRowExclusive:
		return "ShareRowExclusive"
	case Exclusive:
		return "Exclusive"
	case AccessExclusive:
		return "AccessExclusive"
	default:
		return ""
	}
}

// ParseLockMode converts a lock mode name back to its LockMode. Used by the
// configuration surface for the blocking-lock threshold.
func ParseLockMode(name string) (LockMode, bool) {
	for l := AccessShare; l <= AccessExclusive; l++ {
		if l.String() == name {
			return l, true
		}
	}
	return LockNone, false
}

// Kind is the closed enumeration of schema operations the analyzer
// understands. One statement can carry several kinds: an ALTER TABLE with N
// sub-clauses classifies to N operations.
type Kind int

const (
	Other Kind = iota
	CreateTable
	AddColumnWithDefault
	AddColumnNotNullNoDefault
	AddColumnNullable
	DropColumn
	AlterColumnType
	SetNotNull
	DropNotNull
	SetDefault
	DropDefault
	AddForeignKey
	AddForeignKeyNotValid
	AddCheckConstraintValidated
	AddCheckConstraintNotValid
	AddUniqueConstraint
	AddUniqueUsingIndex
	AddPrimaryKey
	DropConstraint
	ValidateConstraint
	RenameObject
	CreateIndexPlain
	CreateIndexConcurrently
	DropIndexPlain
	DropIndexConcurrently
	DropTable
	Truncate
	Cluster
	Vacuum
	VacuumFull
	Reindex
)

func (k Kind) String() string {
	switch k {
	case CreateTable:
		return "CREATE TABLE"
	case AddColumnWithDefault:
		return "ADD COLUMN with DEFAULT"
	case AddColumnNotNullNoDefault:
		return "ADD COLUMN NOT NULL without DEFAULT"
	case AddColumnNullable:
		return "ADD COLUMN"
	case DropColumn:
		return "DROP COLUMN"
	case AlterColumnType:
		return "ALTER COLUMN TYPE"
	case SetNotNull:
		return "SET NOT NULL"
	case DropNotNull:
		return "DROP NOT NULL"
	case SetDefault:
		return "SET DEFAULT"
	case DropDefault:
		return "DROP DEFAULT"
	case AddForeignKey:
		return "ADD FOREIGN KEY"
	case AddForeignKeyNotValid:
		return "ADD FOREIGN KEY NOT VALID"
	case AddCheckConstraintValidated:
		return "ADD CHECK"
	case AddCheckConstraintNotValid:
		return "ADD CHECK NOT VALID"
	case AddUniqueConstraint:
		return "ADD UNIQUE"
	case AddUniqueUsingIndex:
		return "ADD UNIQUE USING INDEX"
	case AddPrimaryKey:
		return "ADD PRIMARY KEY"
	case DropConstraint:
		return "DROP CONSTRAINT"
	case ValidateConstraint:
		return "VALIDATE CONSTRAINT"
	case RenameObject:
		return "RENAME"
	case CreateIndexPlain:
		return "CREATE INDEX"
	case CreateIndexConcurrently:
		return "CREATE INDEX CONCURRENTLY"
	case DropIndexPlain:
		return "DROP INDEX"
	case DropIndexConcurrently:
		return "DROP INDEX CONCURRENTLY"
	case DropTable:
		return "DROP TABLE"
	case Truncate:
		return "TRUNCATE"
	case Cluster:
		return "CLUSTER"
	case Vacuum:
		return "VACUUM"
	case VacuumFull:
		return "VACUUM FULL"
	case Reindex:
		return "REINDEX"
	default:
		return "OTHER"
	}
}
