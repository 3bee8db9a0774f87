package schema

import "errors"

var (
	// ErrEmptyFieldName is returned when a field spec has no column name
	ErrEmptyFieldName = errors.New("field name is empty")

	// ErrEmptyTableName is returned when a schema or join has no table name
	ErrEmptyTableName = errors.New("table name is empty")

	// ErrNoPrimaryKey is returned when a schema declares no primary key
	ErrNoPrimaryKey = errors.New("no primary key defined")

	// ErrMultiplePrimaryKeys is returned when a second primary key is declared
	// that does not correspond to a foreign key
	ErrMultiplePrimaryKeys = errors.New("multiple primary keys defined")

	// ErrRelatedFieldExists is returned when a foreign key is already linked
	ErrRelatedFieldExists = errors.New("related field already defined")

	// ErrOrphanJoin is returned when a joined table is not reachable from the
	// base table through foreign keys
	ErrOrphanJoin = errors.New("joined table is not linked to the base table")

	// ErrUnknownTable is returned when a table is neither the base table nor a join
	ErrUnknownTable = errors.New("unknown table")

	// ErrNoForeignKey is returned when joining a schema whose primary key has
	// no matching field here
	ErrNoForeignKey = errors.New("no foreign key")

	// ErrDuplicateEntity is returned when an entity name is registered twice
	ErrDuplicateEntity = errors.New("entity is already registered")
)
