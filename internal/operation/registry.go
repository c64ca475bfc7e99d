package operation

// Meta is the static PostgreSQL 9.6 behavior of an operation kind.
type Meta struct {
	// Lock is the strongest table lock the operation takes.
	Lock LockMode
	// Rewrite is true when the operation materializes every row of the table
	// anew, holding Lock for a duration proportional to table size.
	Rewrite bool
	// MetadataOnly is true when the operation touches only the catalogs: the
	// lock may be strong but is held for a near-constant time.
	MetadataOnly bool
	// InTransaction is false for operations PostgreSQL refuses to run inside
	// an explicit transaction block.
	InTransaction bool
}

// metas encodes the 9.6 lock/rewrite table. Sources: the ALTER TABLE, CREATE
// INDEX, VACUUM and CLUSTER pages of the 9.6 manual and its "Explicit
// Locking" chapter.
var metas = map[Kind]Meta{
	Other:       {Lock: LockNone, InTransaction: true},
	CreateTable: {Lock: LockNone, MetadataOnly: true, InTransaction: true},

	// ADD COLUMN with any DEFAULT rewrites the whole table in 9.6 (the fast
	// path for non-volatile defaults arrives in 11). Nullable without a
	// default is a catalog-only change.
	AddColumnWithDefault:      {Lock: AccessExclusive, Rewrite: true, InTransaction: true},
	AddColumnNotNullNoDefault: {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},
	AddColumnNullable:         {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},

	DropColumn:      {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},
	AlterColumnType: {Lock: AccessExclusive, Rewrite: true, InTransaction: true},

	// SET NOT NULL scans every row under AccessExclusive; 9.6 has no NOT
	// VALID path for it.
	SetNotNull:  {Lock: AccessExclusive, InTransaction: true},
	DropNotNull: {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},
	SetDefault:  {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},
	DropDefault: {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},

	// FK validation scans the referencing table (and locks the referenced
	// one); NOT VALID defers that scan to a later VALIDATE CONSTRAINT.
	AddForeignKey:         {Lock: ShareRowExclusive, InTransaction: true},
	AddForeignKeyNotValid: {Lock: ShareRowExclusive, MetadataOnly: true, InTransaction: true},

	AddCheckConstraintValidated: {Lock: AccessExclusive, InTransaction: true},
	AddCheckConstraintNotValid:  {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},

	// UNIQUE / PRIMARY KEY build their backing index under the ALTER TABLE's
	// AccessExclusive lock; USING INDEX adopts an existing one.
	AddUniqueConstraint: {Lock: AccessExclusive, InTransaction: true},
	AddUniqueUsingIndex: {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},
	AddPrimaryKey:       {Lock: AccessExclusive, InTransaction: true},

	DropConstraint:     {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},
	ValidateConstraint: {Lock: ShareUpdateExclusive, InTransaction: true},
	RenameObject:       {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},

	CreateIndexPlain:        {Lock: Share, InTransaction: true},
	CreateIndexConcurrently: {Lock: ShareUpdateExclusive, InTransaction: false},
	DropIndexPlain:          {Lock: AccessExclusive, MetadataOnly: true, InTransaction: true},
	DropIndexConcurrently:   {Lock: ShareUpdateExclusive, MetadataOnly: true, InTransaction: false},

	DropTable: {Lock: AccessExclusive, InTransaction: true},
	Truncate:  {Lock: AccessExclusive, InTransaction: true},
	Cluster:   {Lock: AccessExclusive, Rewrite: true, InTransaction: true},

	Vacuum:     {Lock: ShareUpdateExclusive, InTransaction: false},
	VacuumFull: {Lock: AccessExclusive, Rewrite: true, InTransaction: false},

	Reindex: {Lock: AccessExclusive, InTransaction: true},
}

// MetaFor returns the 9.6 metadata for a kind. Unknown kinds get the Other
// entry (no lock, no rewrite).
func MetaFor(kind Kind) Meta {
	if m, ok := metas[kind]; ok {
		return m
	}
	return metas[Other]
}
