package schema

import "strings"

// FieldSpec is the declarative form of a field as written in entity definitions
type FieldSpec struct {
	Name        string      `yaml:"name"`
	Alias       string      `yaml:"alias,omitempty"`
	Table       string      `yaml:"table,omitempty"`
	Role        Role        `yaml:"role,omitempty"`
	LiteralType LiteralType `yaml:"literal_type,omitempty"`
}

// Field describes one column of an entity
type Field struct {
	Name        string
	Alias       string
	Table       string
	Role        Role
	LiteralType LiteralType

	// Related is the field on the far side of a foreign key. It is only set
	// on foreign keys, and only by the schema that owns them.
	Related *Field
}

// NewField creates a Field from its spec, defaulting the alias to the name
func NewField(spec FieldSpec) (*Field, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, ErrEmptyFieldName
	}
	alias := strings.TrimSpace(spec.Alias)
	if alias == "" {
		alias = name
	}
	return &Field{
		Name:        name,
		Alias:       alias,
		Table:       strings.TrimSpace(spec.Table),
		Role:        spec.Role,
		LiteralType: spec.LiteralType,
	}, nil
}

// Reference returns the SQL reference to the column, optionally qualified
// with its table
func (f *Field) Reference(qualified bool) string {
	if qualified && f.Table != "" {
		return f.Table + "." + f.Name
	}
	return f.Name
}

// IsPrimaryKey returns true if the field is the schema's primary key
func (f *Field) IsPrimaryKey() bool {
	return f.Role == RolePrimaryKey
}

// fieldIndex is an alias-keyed index that remembers first insertion order.
// Replacing an alias keeps its original position.
type fieldIndex struct {
	order   []string
	byAlias map[string]*Field
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{byAlias: make(map[string]*Field)}
}

func (ix *fieldIndex) get(alias string) (*Field, bool) {
	f, ok := ix.byAlias[alias]
	return f, ok
}

func (ix *fieldIndex) put(f *Field) {
	if _, exists := ix.byAlias[f.Alias]; !exists {
		ix.order = append(ix.order, f.Alias)
	}
	ix.byAlias[f.Alias] = f
}

func (ix *fieldIndex) list() []*Field {
	result := make([]*Field, 0, len(ix.order))
	for _, alias := range ix.order {
		result = append(result, ix.byAlias[alias])
	}
	return result
}
