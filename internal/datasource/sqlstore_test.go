package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	return NewSQLStoreWithDB("main", db, nil), mock
}

func TestSQLStoreSelect(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	stmt := "SELECT DISTINCT id AS id, name AS name FROM user\nWHERE id = 7"
	mock.ExpectQuery(stmt).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), []byte("Ann")))

	cursor, err := store.Query(ctx, stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, cursor.Len())

	row, ok := cursor.Next()
	require.True(t, ok)
	assert.Equal(t, int64(7), row["id"])
	assert.Equal(t, "Ann", row["name"])

	_, ok = cursor.Next()
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreInsert(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	stmt := "INSERT INTO user (id, name) VALUES (NULL, 'Ann')"
	mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(12, 1))

	cursor, err := store.Query(ctx, stmt)
	require.NoError(t, err)

	row, ok := cursor.Next()
	require.True(t, ok)
	affected, ok := row.AffectedRows()
	require.True(t, ok)
	assert.Equal(t, int64(1), affected)
	id, ok := row.GeneratedID()
	require.True(t, ok)
	assert.Equal(t, int64(12), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	stmt := "UPDATE user SET name = 'Bob'\nWHERE id = 7"
	mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 2))

	cursor, err := store.Query(ctx, stmt)
	require.NoError(t, err)

	row, _ := cursor.Next()
	affected, _ := row.AffectedRows()
	assert.Equal(t, int64(2), affected)
	_, ok := row.GeneratedID()
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreExecError(t *testing.T) {
	store, mock := newMockStore(t)

	stmt := "DELETE FROM user\nWHERE id = 7"
	mock.ExpectExec(stmt).WillReturnError(errors.New("connection reset"))

	_, err := store.Query(context.Background(), stmt)
	require.Error(t, err)
	assert.True(t, fault.IsFatal(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreNotConnected(t *testing.T) {
	store := NewSQLStore("main", Config{Driver: DriverSQLite, DSN: ":memory:"}, nil)

	_, err := store.Query(context.Background(), "SELECT 1")
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestSQLStoreShutdownIsIdempotent(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectClose()

	require.NoError(t, store.Shutdown(context.Background()))
	require.NoError(t, store.Shutdown(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err := store.Query(context.Background(), "SELECT 1")
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestSQLStoreSQLite(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore("local", Config{Driver: DriverSQLite, DSN: ":memory:", MaxOpenConns: 1}, nil)
	require.NoError(t, store.Connect(ctx))
	require.NoError(t, store.Connect(ctx))
	defer store.Shutdown(ctx)

	_, err := store.Query(ctx, "CREATE TABLE user (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)")
	require.NoError(t, err)

	cursor, err := store.Query(ctx, "INSERT INTO user (id, name) VALUES (NULL, 'Ann')")
	require.NoError(t, err)
	row, _ := cursor.Next()
	id, ok := row.GeneratedID()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	cursor, err = store.Query(ctx, "SELECT DISTINCT id AS id, name AS name FROM user\nWHERE id = 1")
	require.NoError(t, err)
	row, ok = cursor.Next()
	require.True(t, ok)
	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "Ann", row["name"])
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Driver: DriverSQLite, DSN: ":memory:"}.Validate())
	assert.NoError(t, Config{Driver: DriverPgx, DSN: "postgres://localhost/app"}.Validate())
	assert.NoError(t, Config{Driver: DriverMySQL, DSN: "app:secret@tcp(localhost:3306)/app"}.Validate())
	assert.NoError(t, Config{Driver: DriverRequest}.Validate())

	assert.True(t, errors.Is(Config{Driver: "oracle", DSN: "x"}.Validate(), ErrUnsupportedDriver))
	assert.Error(t, Config{Driver: DriverMySQL, DSN: "not a dsn"}.Validate())
	assert.Error(t, Config{Driver: DriverPostgres}.Validate())
}

func TestCursor(t *testing.T) {
	c := NewCursor(Row{"a": 1}, Row{"a": 2})
	assert.Equal(t, 2, c.Len())

	first, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, 1, first["a"])
	second, _ := c.Next()
	assert.Equal(t, 2, second["a"])
	_, ok = c.Next()
	assert.False(t, ok)
	assert.Len(t, c.Rows(), 2)

	var empty *Cursor
	_, ok = empty.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, empty.Len())

	affected, ok := Row{AffectedRows: "3"}.AffectedRows()
	require.True(t, ok)
	assert.Equal(t, int64(3), affected)
}
