package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpIn
	OpIsNull
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpIn:
		return "IN"
	case OpIsNull:
		return "IS NULL"
	default:
		return "UNKNOWN"
	}
}

// Condition represents one conjunct of a WHERE clause
type Condition struct {
	Field    *schema.Field
	Operator Operator
	Value    interface{}
	Values   []interface{}
}

// NewCondition classifies a criterion for a field: nil tests for NULL, a
// list becomes an IN test and any other scalar an equality test. An empty
// list cannot match and yields ErrEmptyResult.
func NewCondition(field *schema.Field, criterion interface{}) (*Condition, error) {
	if criterion == nil {
		return &Condition{Field: field, Operator: OpIsNull}, nil
	}

	switch criterion.(type) {
	case string, []byte, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return &Condition{Field: field, Operator: OpEqual, Value: criterion}, nil
	}

	rv := reflect.ValueOf(criterion)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return nil, ErrEmptyResult
		}
		values := make([]interface{}, rv.Len())
		for i := range values {
			values[i] = rv.Index(i).Interface()
		}
		return &Condition{Field: field, Operator: OpIn, Values: values}, nil
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return &Condition{Field: field, Operator: OpEqual, Value: criterion}, nil
	}

	return nil, fault.Failed("criteria",
		fmt.Errorf("%w for %s: %T", ErrUnsupportedCriterion, field.Alias, criterion))
}

// SQL renders the condition
func (c *Condition) SQL(qualified bool) (string, error) {
	ref := c.Field.Reference(qualified)

	switch c.Operator {
	case OpIsNull:
		return ref + " IS NULL", nil

	case OpEqual:
		lit, err := Literal(c.Value, c.Field.LiteralType, c.Field.Role)
		if err != nil {
			return "", err
		}
		return ref + " = " + lit, nil

	case OpIn:
		lits := make([]string, len(c.Values))
		for i, v := range c.Values {
			lit, err := Literal(v, c.Field.LiteralType, c.Field.Role)
			if err != nil {
				return "", err
			}
			lits[i] = lit
		}
		return fmt.Sprintf("%s IN (%s)", ref, strings.Join(lits, ", ")), nil
	}

	return "", fmt.Errorf("unknown operator: %v", c.Operator)
}

// FilterCriteria renders a single criterion for a field
func FilterCriteria(field *schema.Field, criterion interface{}, qualified bool) (string, error) {
	cond, err := NewCondition(field, criterion)
	if err != nil {
		return "", err
	}
	return cond.SQL(qualified)
}

// conjunction collects conditions keyed by alias. A later condition for the
// same alias replaces the earlier one in place.
type conjunction struct {
	order []string
	conds map[string]*Condition
}

func newConjunction() *conjunction {
	return &conjunction{conds: make(map[string]*Condition)}
}

func (c *conjunction) add(cond *Condition) {
	alias := cond.Field.Alias
	if _, exists := c.conds[alias]; !exists {
		c.order = append(c.order, alias)
	}
	c.conds[alias] = cond
}

// SQL renders the conjunction as a WHERE clause, or "" when empty
func (c *conjunction) SQL(qualified bool) (string, error) {
	var b strings.Builder
	for i, alias := range c.order {
		part, err := c.conds[alias].SQL(qualified)
		if err != nil {
			return "", err
		}
		if i == 0 {
			b.WriteString("\nWHERE ")
		} else {
			b.WriteString("\n  AND ")
		}
		b.WriteString(part)
	}
	return b.String(), nil
}
