package query

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Values supplies runtime values by field alias
type Values interface {
	Lookup(alias string) (interface{}, bool)
}

// Map is a Values backed by a map
type Map map[string]interface{}

// Lookup implements Values
func (m Map) Lookup(alias string) (interface{}, bool) {
	v, ok := m[alias]
	return v, ok
}

// Identity is a bare identity value. It resolves every key field of a
// statement and nothing else.
type Identity struct {
	Value interface{}
}

// Lookup implements Values; an identity never answers for ordinary fields
func (Identity) Lookup(string) (interface{}, bool) {
	return nil, false
}

// Criteria are caller-supplied filters keyed by alias. A nil Criteria means
// no criteria were supplied at all, which is not the same as an empty one.
type Criteria map[string]interface{}

// Generator renders statements for a schema from a set of values
type Generator struct {
	values Values
}

// NewGenerator creates a generator over values. A nil values set is empty.
func NewGenerator(values Values) *Generator {
	if values == nil {
		values = Map{}
	}
	return &Generator{values: values}
}

func (g *Generator) keyValue(alias string) (interface{}, bool) {
	if id, ok := g.values.(Identity); ok {
		return id.Value, true
	}
	return g.values.Lookup(alias)
}

// WhereClause builds the WHERE clause identifying rows of table ("" for the
// whole schema). Key fields are taken from the values; a key without a value
// is fatal unless criteria were supplied. Criteria naming fields of table are
// conjoined after the keys. References are table-qualified only for the
// whole schema when it has joins. Without criteria a table with no key
// fields is fatal, so a statement never loses its WHERE clause.
func (g *Generator) WhereClause(s *schema.Schema, criteria Criteria, table string) (string, error) {
	keys, err := s.KeyFields(table)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 && criteria == nil {
		return "", fault.Fatalf("where", ErrMissingKey, "table %s has no key fields", table)
	}

	conj := newConjunction()
	for _, kf := range keys {
		v, ok := g.keyValue(kf.Alias)
		if !ok {
			if criteria == nil {
				return "", fault.Fatalf("where", ErrMissingKey, "key field %s", kf.Alias)
			}
			continue
		}
		cond, err := NewCondition(kf, v)
		if err != nil {
			return "", err
		}
		conj.add(cond)
	}

	if criteria != nil {
		fields, err := s.FieldsByTable(table)
		if err != nil {
			return "", err
		}
		for _, f := range fields {
			crit, ok := criteria[f.Alias]
			if !ok {
				continue
			}
			cond, err := NewCondition(f, crit)
			if err != nil {
				return "", err
			}
			conj.add(cond)
		}
	}

	return conj.SQL(table == "" && s.HasJoins())
}

// Select renders a select over every read field of the schema, joining
// each joined table on its foreign keys
func (g *Generator) Select(s *schema.Schema, criteria Criteria) (string, error) {
	qualified := s.HasJoins()

	cols := make([]string, 0)
	for _, f := range s.ReadFields() {
		if f.Role == schema.RoleCriteria {
			continue
		}
		cols = append(cols, f.Reference(qualified)+" AS "+f.Alias)
	}

	var b strings.Builder
	b.WriteString("SELECT DISTINCT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(s.Table())

	for _, j := range s.Joins() {
		if !j.Inline() {
			return "", fault.Fatalf("select", ErrUnsupportedJoin, "%s join %s with %s style", j.Type, j.Name, j.Style)
		}
		on := make([]string, 0)
		for _, fk := range s.ForeignKeys() {
			if fk.Related != nil && fk.Related.Table == j.Name {
				on = append(on, fk.Reference(true)+" = "+fk.Related.Reference(true))
			}
		}
		b.WriteString("\nJOIN ")
		b.WriteString(j.Name)
		if len(on) > 0 {
			b.WriteString(" ON ")
			b.WriteString(strings.Join(on, " AND "))
		}
	}

	where, err := g.WhereClause(s, criteria, "")
	if err != nil {
		return "", err
	}
	b.WriteString(where)
	return b.String(), nil
}

// tableFields groups fields by table, keeping first-seen table order
type tableFields struct {
	order  []string
	fields map[string][]*schema.Field
}

func (tf *tableFields) add(f *schema.Field) {
	if _, ok := tf.fields[f.Table]; !ok {
		tf.order = append(tf.order, f.Table)
	}
	tf.fields[f.Table] = append(tf.fields[f.Table], f)
}

// setFields groups the write fields that have a value by table
func (g *Generator) setFields(s *schema.Schema) *tableFields {
	tf := &tableFields{fields: make(map[string][]*schema.Field)}
	for _, f := range s.WriteFields() {
		if _, ok := g.values.Lookup(f.Alias); ok {
			tf.add(f)
		}
	}
	return tf
}

// Insert renders one INSERT per table touched by the populated write fields
func (g *Generator) Insert(s *schema.Schema) ([]string, error) {
	return g.into(s, "INSERT")
}

// Replace renders one REPLACE per table touched by the populated write fields
func (g *Generator) Replace(s *schema.Schema) ([]string, error) {
	return g.into(s, "REPLACE")
}

func (g *Generator) into(s *schema.Schema, verb string) ([]string, error) {
	tf := g.setFields(s)
	if len(tf.order) == 0 {
		return nil, fault.Fatal(strings.ToLower(verb), ErrNoWriteFields)
	}

	statements := make([]string, 0, len(tf.order))
	for _, table := range tf.order {
		keys, err := s.KeyFields(table)
		if err != nil {
			return nil, err
		}

		cols := make([]string, 0)
		lits := make([]string, 0)
		seen := make(map[string]bool)

		for _, kf := range keys {
			if kf.Role == schema.RoleCriteria || seen[kf.Alias] {
				continue
			}
			seen[kf.Alias] = true
			v, _ := g.keyValue(kf.Alias)
			lit, err := Literal(v, kf.LiteralType, kf.Role)
			if err != nil {
				return nil, err
			}
			cols = append(cols, kf.Name)
			lits = append(lits, lit)
		}

		for _, f := range tf.fields[table] {
			if seen[f.Alias] {
				continue
			}
			seen[f.Alias] = true
			v, _ := g.values.Lookup(f.Alias)
			lit, err := Literal(v, f.LiteralType, f.Role)
			if err != nil {
				return nil, err
			}
			cols = append(cols, f.Name)
			lits = append(lits, lit)
		}

		if len(cols) == 0 {
			return nil, fault.Fatalf(strings.ToLower(verb), ErrNoWriteFields, "table %s", table)
		}

		statements = append(statements, fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
			verb, table, strings.Join(cols, ", "), strings.Join(lits, ", ")))
	}
	return statements, nil
}

// Update renders one UPDATE per table touched by the populated write fields.
// Key fields identify the row and are never set.
func (g *Generator) Update(s *schema.Schema) ([]string, error) {
	tf := g.setFields(s)

	statements := make([]string, 0, len(tf.order))
	for _, table := range tf.order {
		keys, err := s.KeyFields(table)
		if err != nil {
			return nil, err
		}
		isKey := make(map[string]bool, len(keys))
		for _, kf := range keys {
			isKey[kf.Alias] = true
		}

		sets := make([]string, 0)
		for _, f := range tf.fields[table] {
			if isKey[f.Alias] {
				continue
			}
			v, _ := g.values.Lookup(f.Alias)
			lit, err := Literal(v, f.LiteralType, f.Role)
			if err != nil {
				return nil, err
			}
			sets = append(sets, f.Name+" = "+lit)
		}
		if len(sets) == 0 {
			continue
		}

		where, err := g.WhereClause(s, nil, table)
		if err != nil {
			return nil, err
		}
		statements = append(statements, fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), where))
	}

	if len(statements) == 0 {
		return nil, fault.Fatal("update", ErrNoWriteFields)
	}
	return statements, nil
}

// Delete renders one DELETE per table touched by the populated write fields,
// or for the base table alone when none is touched
func (g *Generator) Delete(s *schema.Schema) ([]string, error) {
	tables := g.setFields(s).order
	if len(tables) == 0 {
		tables = []string{s.Table()}
	}

	statements := make([]string, 0, len(tables))
	for _, table := range tables {
		where, err := g.WhereClause(s, nil, table)
		if err != nil {
			return nil, err
		}
		statements = append(statements, "DELETE FROM "+table+where)
	}
	return statements, nil
}
