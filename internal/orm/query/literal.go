// Package query renders SQL statements from schema metadata and runtime
// values. Values are inlined as literals; the generator never produces
// placeholders.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

const (
	nullLiteral = "NULL"

	// emptyDate is passed through verbatim for stores that use it as a
	// zero date
	emptyDate = "0000-00-00"

	// NewKey marks a primary key that has not been assigned yet
	NewKey = "new"
)

// Literal renders value as a SQL literal of the given type. An auto type is
// inferred from the value. A primary key holding 0 or NewKey renders NULL so
// the store can assign one.
func Literal(value interface{}, lt schema.LiteralType, role schema.Role) (string, error) {
	if value == nil {
		return nullLiteral, nil
	}
	if role == schema.RolePrimaryKey && IsNewKey(value) {
		return nullLiteral, nil
	}

	if lt == schema.LiteralAuto {
		inferred, err := inferLiteralType(value)
		if err != nil {
			return "", err
		}
		lt = inferred
	}

	switch lt {
	case schema.LiteralString:
		s, err := cast.ToStringE(value)
		if err != nil {
			return "", unsupportedLiteral(value, lt, err)
		}
		return quote(s), nil

	case schema.LiteralBoolean:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return "", unsupportedLiteral(value, lt, err)
		}
		if b {
			return "1", nil
		}
		return "0", nil

	case schema.LiteralInt:
		i, err := cast.ToInt64E(value)
		if err != nil {
			return "", unsupportedLiteral(value, lt, err)
		}
		return strconv.FormatInt(i, 10), nil

	case schema.LiteralDecimal:
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return "", unsupportedLiteral(value, lt, err)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case schema.LiteralDate:
		if s, ok := value.(string); ok && s == emptyDate {
			return quote(s), nil
		}
		t, err := cast.ToTimeE(value)
		if err != nil {
			return "", unsupportedLiteral(value, lt, err)
		}
		return quote(t.Format("2006-01-02")), nil

	case schema.LiteralDateTime:
		t, err := cast.ToTimeE(value)
		if err != nil {
			return "", unsupportedLiteral(value, lt, err)
		}
		return quote(t.Format("2006-01-02 15:04:05")), nil
	}

	return "", unsupportedLiteral(value, lt, nil)
}

// IsNewKey reports whether a primary key value means "not yet assigned"
func IsNewKey(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == NewKey || v == "0"
	case []byte:
		return string(v) == NewKey || string(v) == "0"
	case bool:
		return false
	}
	if f, err := cast.ToFloat64E(value); err == nil {
		return f == 0
	}
	return false
}

func inferLiteralType(value interface{}) (schema.LiteralType, error) {
	switch value.(type) {
	case string, []byte:
		return schema.LiteralString, nil
	case bool:
		return schema.LiteralBoolean, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return schema.LiteralInt, nil
	case float32, float64:
		return schema.LiteralDecimal, nil
	case time.Time:
		return schema.LiteralDateTime, nil
	default:
		return schema.LiteralAuto, unsupportedLiteral(value, schema.LiteralAuto, nil)
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func unsupportedLiteral(value interface{}, lt schema.LiteralType, cause error) error {
	err := fmt.Errorf("%w: %T as %q", ErrUnsupportedLiteral, value, lt.String())
	if cause != nil {
		err = fmt.Errorf("%w: %v", err, cause)
	}
	return fault.Failed("literal", err)
}
