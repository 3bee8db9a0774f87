package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/xwb1989/sqlparser"
	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
)

// SQLStore is a Store over a database/sql connection pool
type SQLStore struct {
	name   string
	config Config
	logger *zap.Logger

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLStore creates a store that opens its pool on Connect
func NewSQLStore(name string, config Config, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		name:   name,
		config: config,
		logger: logger.With(zap.String("datasource", name)),
	}
}

// NewSQLStoreWithDB creates an already connected store over an existing pool
func NewSQLStoreWithDB(name string, db *sql.DB, logger *zap.Logger) *SQLStore {
	s := NewSQLStore(name, Config{}, logger)
	s.db = db
	return s
}

// Name returns the data source name
func (s *SQLStore) Name() string {
	return s.name
}

// Connect opens and pings the connection pool
func (s *SQLStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := openDB(s.config)
	if err != nil {
		return fault.Fatal("connect", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fault.Fatal("connect", fmt.Errorf("failed to ping %s: %w", s.name, err))
	}

	s.db = db
	s.logger.Debug("connected", zap.String("driver", s.config.Driver))
	return nil
}

// Query runs a statement. Selects return their rows; every other statement
// returns a single row with the affected-row count and, for inserts the
// driver can report on, the generated id.
func (s *SQLStore) Query(ctx context.Context, statement string) (*Cursor, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()

	if db == nil {
		return nil, fault.Fatalf("query", ErrNotConnected, "data source %s", s.name)
	}

	s.logger.Debug("query", zap.String("statement", statement))

	kind := sqlparser.Preview(statement)
	switch kind {
	case sqlparser.StmtSelect, sqlparser.StmtShow:
		return s.query(ctx, db, statement)
	default:
		return s.exec(ctx, db, statement, kind)
	}
}

func (s *SQLStore) query(ctx context.Context, db *sql.DB, statement string) (*Cursor, error) {
	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fault.Fatal("query", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fault.Fatal("query", err)
	}
	return NewCursor(result...), nil
}

func (s *SQLStore) exec(ctx context.Context, db *sql.DB, statement string, kind int) (*Cursor, error) {
	res, err := db.ExecContext(ctx, statement)
	if err != nil {
		return nil, fault.Fatal("query", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fault.Fatal("query", err)
	}

	row := Row{AffectedRows: affected}
	if affected > 0 && (kind == sqlparser.StmtInsert || kind == sqlparser.StmtReplace) {
		// Not every driver reports insert ids
		if id, err := res.LastInsertId(); err == nil && id > 0 {
			row[GeneratedID] = id
		}
	}
	return NewCursor(row), nil
}

// scanRows reads every row into a Row keyed by column name. Byte slices are
// returned as strings.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Shutdown closes the connection pool
func (s *SQLStore) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", s.name, err)
	}
	s.logger.Debug("shut down")
	return nil
}
