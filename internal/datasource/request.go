package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cast"
	"github.com/xwb1989/sqlparser"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
)

// RequestStore is a read-only store answering selects from submitted form
// values, so a form post can be imported into a record like any other row.
//
// Values are looked up by alias, first as "table.alias" and then as a bare
// "alias". A row is produced only when the form carries the identifying
// field and its value matches the statement's key.
type RequestStore struct {
	values url.Values
}

// NewRequestStore creates a store over form values
func NewRequestStore(values url.Values) *RequestStore {
	if values == nil {
		values = url.Values{}
	}
	return &RequestStore{values: values}
}

// Connect is a no-op
func (r *RequestStore) Connect(ctx context.Context) error {
	return nil
}

// Shutdown is a no-op
func (r *RequestStore) Shutdown(ctx context.Context) error {
	return nil
}

// requestQuery is the part of a select the request store understands
type requestQuery struct {
	table   string
	aliases []string
	idField string
	idMatch interface{}
}

// Query answers a select keyed by a single equality or IS NULL test
func (r *RequestStore) Query(ctx context.Context, statement string) (*Cursor, error) {
	q, err := parseRequestQuery(statement)
	if err != nil {
		return nil, err
	}

	row, ok := r.extract(q, q.table+".")
	if !ok {
		row, ok = r.extract(q, "")
	}
	if !ok {
		return NewCursor(), nil
	}
	return NewCursor(row), nil
}

func (r *RequestStore) lookup(key string) (string, bool) {
	vs, ok := r.values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (r *RequestStore) extract(q *requestQuery, prefix string) (Row, bool) {
	id, ok := r.lookup(prefix + q.idField)
	if !ok || !matchID(q.idMatch, id) {
		return nil, false
	}

	row := make(Row)
	for _, alias := range q.aliases {
		if v, ok := r.lookup(prefix + alias); ok {
			row[alias] = v
		}
	}
	if isUnassigned(q.idMatch) {
		row[q.idField] = nil
	}
	return row, len(row) > 0
}

func parseRequestQuery(statement string) (*requestQuery, error) {
	stmt, err := sqlparser.Parse(statement)
	if err != nil {
		return nil, fault.Fatalf("request", ErrUnsupportedStatement, "%v", err)
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, fault.Fatalf("request", ErrReadOnly, "%s", sqlparser.String(stmt))
	}

	q := &requestQuery{table: baseTable(sel.From)}
	if q.table == "" {
		return nil, fault.Fatalf("request", ErrUnsupportedStatement, "no table in %q", statement)
	}

	columns := make(map[string]string)
	for _, expr := range sel.SelectExprs {
		ae, ok := expr.(*sqlparser.AliasedExpr)
		if !ok {
			continue
		}
		col, ok := ae.Expr.(*sqlparser.ColName)
		if !ok {
			continue
		}
		alias := col.Name.String()
		if !ae.As.IsEmpty() {
			alias = ae.As.String()
		}
		q.aliases = append(q.aliases, alias)
		columns[col.Name.String()] = alias
	}

	if sel.Where == nil {
		return nil, fault.Fatalf("request", ErrUnsupportedStatement, "invalid where clause in %q", statement)
	}
	col, match, err := keyTest(sel.Where.Expr)
	if err != nil {
		return nil, fault.Fatalf("request", ErrUnsupportedStatement, "%v in %q", err, statement)
	}
	q.idField = col
	if alias, ok := columns[col]; ok {
		q.idField = alias
	}
	q.idMatch = match
	return q, nil
}

// baseTable returns the leftmost table of a FROM clause
func baseTable(from sqlparser.TableExprs) string {
	if len(from) == 0 {
		return ""
	}
	switch t := from[0].(type) {
	case *sqlparser.AliasedTableExpr:
		if name, ok := t.Expr.(sqlparser.TableName); ok {
			return name.Name.String()
		}
	case *sqlparser.JoinTableExpr:
		return baseTable(sqlparser.TableExprs{t.LeftExpr})
	}
	return ""
}

// keyTest extracts the column and value of the first conjunct
func keyTest(expr sqlparser.Expr) (string, interface{}, error) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		return keyTest(e.Left)
	case *sqlparser.ParenExpr:
		return keyTest(e.Expr)
	case *sqlparser.ComparisonExpr:
		col, ok := e.Left.(*sqlparser.ColName)
		if !ok || e.Operator != sqlparser.EqualStr {
			return "", nil, fmt.Errorf("unsupported comparison %s", sqlparser.String(e))
		}
		switch v := e.Right.(type) {
		case *sqlparser.SQLVal:
			return col.Name.String(), string(v.Val), nil
		case *sqlparser.NullVal:
			return col.Name.String(), nil, nil
		}
		return "", nil, fmt.Errorf("unsupported value %s", sqlparser.String(e.Right))
	case *sqlparser.IsExpr:
		col, ok := e.Expr.(*sqlparser.ColName)
		if !ok || e.Operator != sqlparser.IsNullStr {
			return "", nil, fmt.Errorf("unsupported test %s", sqlparser.String(e))
		}
		return col.Name.String(), nil, nil
	}
	return "", nil, fmt.Errorf("unsupported where clause %s", sqlparser.String(expr))
}

// isUnassigned reports whether an id means "no record yet"
func isUnassigned(id interface{}) bool {
	if id == nil {
		return true
	}
	s := strings.TrimSpace(cast.ToString(id))
	if s == "" || s == "new" {
		return true
	}
	f, err := cast.ToFloat64E(s)
	return err == nil && f == 0
}

// matchID compares ids loosely: every unassigned form matches every other
func matchID(a, b interface{}) bool {
	if isUnassigned(a) && isUnassigned(b) {
		return true
	}
	return cast.ToString(a) == cast.ToString(b)
}
