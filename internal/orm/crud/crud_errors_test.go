package crud

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
)

func TestConvertDBErrorWithPgErrors(t *testing.T) {
	// Test unique violation
	pgErr := &pgconn.PgError{Code: "23505", Detail: "Key (email)=(test@test.com) already exists."}
	err := ConvertDBError(pgErr)
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Contains(t, err.Error(), "Key (email)")

	// Test foreign key violation
	pgErr = &pgconn.PgError{Code: "23503", Detail: "Key (group_id)=(123) is not present in table groups."}
	err = ConvertDBError(pgErr)
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
	assert.Contains(t, err.Error(), "Key (group_id)")

	// Test check violation
	pgErr = &pgconn.PgError{Code: "23514", Detail: "Check constraint failed"}
	err = ConvertDBError(pgErr)
	assert.ErrorIs(t, err, ErrCheckViolation)

	// Test not null violation
	pgErr = &pgconn.PgError{Code: "23502", ColumnName: "name"}
	err = ConvertDBError(pgErr)
	assert.ErrorIs(t, err, ErrNotNullViolation)
	assert.Contains(t, err.Error(), "name")

	// Test unknown pg error
	pgErr = &pgconn.PgError{Code: "99999", Message: "Unknown error"}
	err = ConvertDBError(pgErr)
	assert.Error(t, err)

	// Test generic error
	genericErr := errors.New("generic error")
	err = ConvertDBError(genericErr)
	assert.Equal(t, genericErr, err)
}

func TestConvertDBErrorWithMySQLErrors(t *testing.T) {
	err := ConvertDBError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7' for key 'PRIMARY'"})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Contains(t, err.Error(), "Duplicate entry")

	err = ConvertDBError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)

	err = ConvertDBError(&mysql.MySQLError{Number: 1048, Message: "Column 'name' cannot be null"})
	assert.ErrorIs(t, err, ErrNotNullViolation)

	err = ConvertDBError(&mysql.MySQLError{Number: 3819, Message: "Check constraint 'age' is violated"})
	assert.ErrorIs(t, err, ErrCheckViolation)
}

func TestConvertDBErrorKeepsSeverity(t *testing.T) {
	err := ConvertDBError(fault.Fatal("query", &pgconn.PgError{Code: "23505"}))
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.True(t, fault.IsFatal(err))

	var fe *fault.Error
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "query", fe.Op)

	assert.ErrorIs(t, ConvertDBError(sql.ErrNoRows), ErrNotFound)
	assert.Nil(t, ConvertDBError(nil))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsNotFound(fault.Failed("load", ErrNotFound)))
	assert.True(t, IsNoRowsAffected(ErrNoRowsAffected))
	assert.True(t, IsRemoved(ErrRemoved))
	assert.True(t, IsUniqueViolation(ErrUniqueViolation))
	assert.True(t, IsForeignKeyViolation(ErrForeignKeyViolation))
	assert.False(t, IsNotFound(errors.New("other")))
}
