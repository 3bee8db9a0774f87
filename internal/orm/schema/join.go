package schema

import "strings"

// TableSpec is the declarative form of a joined table
type TableSpec struct {
	Name          string        `yaml:"name"`
	JoinDirection JoinDirection `yaml:"join_direction,omitempty"`
	JoinType      JoinType      `yaml:"join_type,omitempty"`
	JoinStyle     JoinStyle     `yaml:"join_style,omitempty"`
}

// Join describes a table joined to a schema's base table
type Join struct {
	Name      string
	Direction JoinDirection
	Type      JoinType
	Style     JoinStyle
}

// NewJoin creates a Join from its spec
func NewJoin(spec TableSpec) (*Join, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, ErrEmptyTableName
	}
	return &Join{
		Name:      name,
		Direction: spec.JoinDirection,
		Type:      spec.JoinType,
		Style:     spec.JoinStyle,
	}, nil
}

// Inline returns true if the join can be rendered inside a single statement
func (j *Join) Inline() bool {
	return j.Type == JoinInner && j.Style != JoinManual
}
