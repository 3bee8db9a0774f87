// Package datasource provides the backing stores records are persisted to.
// A Store runs the statements produced by the query package and returns a
// Cursor over the resulting rows. Mutations yield a single row carrying the
// affected-row count and, when the store assigns one, a generated id.
package datasource

import (
	"context"
	"errors"

	"github.com/spf13/cast"
)

// Pseudo-fields of the row returned for a mutation
const (
	AffectedRows = "affected-rows"
	GeneratedID  = "generated-id"
)

var (
	// ErrNotConnected is returned when querying a store that is not connected
	ErrNotConnected = errors.New("data source is not connected")

	// ErrReadOnly is returned when a read-only store is asked to mutate
	ErrReadOnly = errors.New("data source is read-only")

	// ErrUnknownDatasource is returned when no data source has a given name
	ErrUnknownDatasource = errors.New("unknown data source")

	// ErrUnsupportedDriver is returned for drivers recordkit does not register
	ErrUnsupportedDriver = errors.New("unsupported driver")

	// ErrUnsupportedStatement is returned when a store cannot run a statement
	ErrUnsupportedStatement = errors.New("unsupported statement")
)

// Store is a backing store for records
type Store interface {
	// Connect opens the store. Connecting an open store is a no-op.
	Connect(ctx context.Context) error

	// Query runs a statement and returns its rows
	Query(ctx context.Context, statement string) (*Cursor, error)

	// Shutdown closes the store. Shutting down a closed store is a no-op.
	Shutdown(ctx context.Context) error
}

// Row is one result row keyed by column alias
type Row map[string]interface{}

// AffectedRows returns the affected-row count of a mutation row
func (r Row) AffectedRows() (int64, bool) {
	return r.int(AffectedRows)
}

// GeneratedID returns the id a store assigned during an insert
func (r Row) GeneratedID() (int64, bool) {
	return r.int(GeneratedID)
}

func (r Row) int(key string) (int64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Cursor iterates over the rows of a result
type Cursor struct {
	rows []Row
	pos  int
}

// NewCursor creates a cursor over rows
func NewCursor(rows ...Row) *Cursor {
	return &Cursor{rows: rows}
}

// Next returns the next row, or false when the rows are exhausted
func (c *Cursor) Next() (Row, bool) {
	if c == nil || c.pos >= len(c.rows) {
		return nil, false
	}
	row := c.rows[c.pos]
	c.pos++
	return row, true
}

// Len returns the total number of rows
func (c *Cursor) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rows)
}

// Rows returns every row regardless of the cursor position
func (c *Cursor) Rows() []Row {
	if c == nil {
		return nil
	}
	return c.rows
}
