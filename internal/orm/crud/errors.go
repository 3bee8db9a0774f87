package crud

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
)

// Common record error types
var (
	// ErrNotFound is returned when a record cannot be loaded
	ErrNotFound = errors.New("record not found")

	// ErrNoRowsAffected is returned when a save or remove statement changed nothing
	ErrNoRowsAffected = errors.New("no rows affected")

	// ErrPrimaryKeyMismatch is returned when the store assigns an id that
	// differs from the primary key the record already had
	ErrPrimaryKeyMismatch = errors.New("primary key mismatch")

	// ErrRemoved is returned for any operation on a removed record
	ErrRemoved = errors.New("record has been removed")

	// ErrDifferentStore is returned when joining search examples from different stores
	ErrDifferentStore = errors.New("cannot join example from a different data source")

	// ErrUnknownEntity is returned when no entity has a given name
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")
)

// ConvertDBError converts database-specific errors to record errors. A
// classified error keeps its severity and operation.
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if fe, ok := err.(*fault.Error); ok {
		return &fault.Error{Severity: fe.Severity, Op: fe.Op, Err: ConvertDBError(fe.Err)}
	}

	// Check for sql.ErrNoRows
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	// Check for PostgreSQL errors (pgx)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.Detail)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, pgErr.Detail)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", ErrCheckViolation, pgErr.Detail)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: column %s", ErrNotNullViolation, pgErr.ColumnName)
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062: // ER_DUP_ENTRY
			return fmt.Errorf("%w: %s", ErrUniqueViolation, myErr.Message)
		case 1216, 1217, 1451, 1452: // ER_NO_REFERENCED_ROW and friends
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, myErr.Message)
		case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
			return fmt.Errorf("%w: %s", ErrCheckViolation, myErr.Message)
		case 1048, 1364: // ER_BAD_NULL_ERROR, ER_NO_DEFAULT_FOR_FIELD
			return fmt.Errorf("%w: %s", ErrNotNullViolation, myErr.Message)
		}
	}

	return err
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNoRowsAffected returns true if the error is ErrNoRowsAffected
func IsNoRowsAffected(err error) bool {
	return errors.Is(err, ErrNoRowsAffected)
}

// IsRemoved returns true if the error is ErrRemoved
func IsRemoved(err error) bool {
	return errors.Is(err, ErrRemoved)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}
