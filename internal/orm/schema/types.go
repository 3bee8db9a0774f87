// Package schema provides the metadata model for recordkit's persistence layer.
// It describes the fields, tables and joins of a logical entity and derives the
// primary key, foreign key links and per-table field groupings that the
// statement generator consumes.
package schema

import (
	"fmt"
)

// Role represents how a field participates in generated statements
type Role int

const (
	// RoleReadWrite fields appear in select, set and into clauses
	RoleReadWrite Role = iota
	// RoleReadOnly fields appear in select and into clauses only
	RoleReadOnly
	// RoleCriteria fields only appear in where clauses
	RoleCriteria
	// RolePrimaryKey identifies a record in the base table
	RolePrimaryKey
	// RoleForeignKey links the base table to the primary key of a joined table
	RoleForeignKey
)

// String returns the string representation of the role
func (r Role) String() string {
	switch r {
	case RoleReadWrite:
		return "read-write"
	case RoleReadOnly:
		return "read-only"
	case RoleCriteria:
		return "criteria"
	case RolePrimaryKey:
		return "primary-key"
	case RoleForeignKey:
		return "foreign-key"
	default:
		return "unknown"
	}
}

// ParseRole converts a string to a Role. An empty string is read-write.
func ParseRole(s string) (Role, error) {
	switch s {
	case "", "read-write":
		return RoleReadWrite, nil
	case "read-only":
		return RoleReadOnly, nil
	case "criteria":
		return RoleCriteria, nil
	case "primary-key":
		return RolePrimaryKey, nil
	case "foreign-key":
		return RoleForeignKey, nil
	default:
		return 0, fmt.Errorf("unknown field role: %s", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// LiteralType controls how values for a field are rendered as SQL literals
type LiteralType int

const (
	// LiteralAuto infers the literal form from the runtime value
	LiteralAuto LiteralType = iota
	LiteralString
	LiteralInt
	LiteralDecimal
	LiteralDate
	LiteralDateTime
	LiteralBoolean
)

// String returns the string representation of the literal type
func (t LiteralType) String() string {
	switch t {
	case LiteralAuto:
		return ""
	case LiteralString:
		return "string"
	case LiteralInt:
		return "int"
	case LiteralDecimal:
		return "decimal"
	case LiteralDate:
		return "date"
	case LiteralDateTime:
		return "datetime"
	case LiteralBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// ParseLiteralType converts a string to a LiteralType
func ParseLiteralType(s string) (LiteralType, error) {
	switch s {
	case "", "auto":
		return LiteralAuto, nil
	case "string":
		return LiteralString, nil
	case "int":
		return LiteralInt, nil
	case "decimal":
		return LiteralDecimal, nil
	case "date":
		return LiteralDate, nil
	case "datetime":
		return LiteralDateTime, nil
	case "boolean":
		return LiteralBoolean, nil
	default:
		return 0, fmt.Errorf("unknown literal type: %s", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *LiteralType) UnmarshalText(text []byte) error {
	lt, err := ParseLiteralType(string(text))
	if err != nil {
		return err
	}
	*t = lt
	return nil
}

// JoinDirection is the side of a join that keeps unmatched rows
type JoinDirection int

const (
	JoinLeft JoinDirection = iota
	JoinRight
)

// String returns the string representation of the join direction
func (d JoinDirection) String() string {
	switch d {
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	default:
		return "unknown"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *JoinDirection) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "left":
		*d = JoinLeft
	case "right":
		*d = JoinRight
	default:
		return fmt.Errorf("unknown join direction: %s", text)
	}
	return nil
}

// JoinType represents the kind of SQL join
type JoinType int

const (
	JoinInner JoinType = iota
	JoinOuter
	JoinTheta
)

// String returns the string representation of the join type
func (j JoinType) String() string {
	switch j {
	case JoinInner:
		return "inner"
	case JoinOuter:
		return "outer"
	case JoinTheta:
		return "theta"
	default:
		return "unknown"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (j *JoinType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "inner":
		*j = JoinInner
	case "outer":
		*j = JoinOuter
	case "theta":
		*j = JoinTheta
	default:
		return fmt.Errorf("unknown join type: %s", text)
	}
	return nil
}

// JoinStyle selects how a join is carried out
type JoinStyle int

const (
	// JoinAuto is inline for tables in the same data source
	JoinAuto JoinStyle = iota
	// JoinInline renders the join inside a single statement
	JoinInline
	// JoinManual runs one statement per side and merges the results
	JoinManual
)

// String returns the string representation of the join style
func (s JoinStyle) String() string {
	switch s {
	case JoinAuto:
		return "auto"
	case JoinInline:
		return "inline"
	case JoinManual:
		return "manual"
	default:
		return "unknown"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *JoinStyle) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "auto":
		*s = JoinAuto
	case "inline":
		*s = JoinInline
	case "manual":
		*s = JoinManual
	default:
		return fmt.Errorf("unknown join style: %s", text)
	}
	return nil
}
