package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
)

// Schema is the metadata for one logical entity: a base table, the tables
// joined to it, and the fields spread across them.
//
// A Schema is built once by New and treated as read-only afterwards, except
// through JoinTo, which callers apply to a Clone.
type Schema struct {
	table string

	specs  []FieldSpec
	fields []*Field

	joins     map[string]*Join
	joinOrder []string

	primaryKey  *Field
	readFields  *fieldIndex
	writeFields *fieldIndex
	foreignKeys *fieldIndex

	mu        sync.Mutex
	byTable   map[string][]*Field
	keyFields map[string][]*Field
}

func newSchema(table string) *Schema {
	return &Schema{
		table:       table,
		joins:       make(map[string]*Join),
		readFields:  newFieldIndex(),
		writeFields: newFieldIndex(),
		foreignKeys: newFieldIndex(),
		byTable:     make(map[string][]*Field),
		keyFields:   make(map[string][]*Field),
	}
}

// New builds a schema for the base table from its field and join specs.
// Joins are registered before fields so that their settings apply; tables
// referenced only by fields are joined with default settings.
func New(table string, fields []FieldSpec, tables []TableSpec) (*Schema, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, fault.Fatal("schema", ErrEmptyTableName)
	}

	s := newSchema(table)
	for _, spec := range tables {
		j, err := NewJoin(spec)
		if err != nil {
			return nil, fault.Fatal("schema", err)
		}
		if j.Name != table {
			s.addJoin(j)
		}
	}

	for _, spec := range fields {
		if err := s.AddField(spec); err != nil {
			return nil, err
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// AddField registers a field. Tables other than the base table become joins.
// A foreign key is linked to the field sharing its alias, whichever of the
// two is declared first. A second primary key is accepted only when it stands
// on the far side of a foreign key, in which case it is demoted to criteria.
func (s *Schema) AddField(spec FieldSpec) error {
	f, err := NewField(spec)
	if err != nil {
		return fault.Fatal("schema", err)
	}
	if f.Table == "" {
		f.Table = s.table
	}

	var linkTo *Field
	if f.Role != RoleForeignKey {
		if fk, ok := s.foreignKeys.get(f.Alias); ok {
			if fk.Related != nil {
				return fault.Fatalf("schema", ErrRelatedFieldExists, "alias %s", f.Alias)
			}
			linkTo = fk
		}
	}

	if f.Role == RolePrimaryKey && s.primaryKey != nil {
		rf, ok := s.readFields.get(f.Alias)
		if !ok || rf.Role != RoleForeignKey {
			return fault.Fatalf("schema", ErrMultiplePrimaryKeys, "alias %s", f.Alias)
		}
		f.Role = RoleCriteria
	}

	if f.Table != s.table && !s.HasTable(f.Table) {
		s.addJoin(&Join{Name: f.Table})
	}

	s.specs = append(s.specs, spec)
	s.fields = append(s.fields, f)
	s.invalidate()

	if f.Role == RoleForeignKey {
		s.foreignKeys.put(f)
		if rf, ok := s.readFields.get(f.Alias); ok {
			f.Related = rf
		}
	} else if linkTo != nil {
		linkTo.Related = f
	}

	if f.Role == RolePrimaryKey {
		s.primaryKey = f
	}

	if f.Role == RoleCriteria {
		return nil
	}
	if f.Role != RoleForeignKey || f.Related == nil {
		s.readFields.put(f)
	}
	if f.Role != RoleReadOnly && f.Role != RolePrimaryKey {
		if wf, ok := s.writeFields.get(f.Alias); !ok || wf.Related != f {
			s.writeFields.put(f)
		}
	}
	return nil
}

// Validate checks that a primary key exists and that every joined table can
// be reached from the base table by following foreign keys.
func (s *Schema) Validate() error {
	if s.primaryKey == nil {
		return fault.Fatalf("schema", ErrNoPrimaryKey, "table %s", s.table)
	}

	reachable := map[string]bool{s.table: true}
	for changed := true; changed; {
		changed = false
		for _, fk := range s.foreignKeys.list() {
			if fk.Related == nil || !reachable[fk.Table] || reachable[fk.Related.Table] {
				continue
			}
			reachable[fk.Related.Table] = true
			changed = true
		}
	}

	for _, name := range s.joinOrder {
		if !reachable[name] {
			return fault.Fatalf("schema", ErrOrphanJoin, "table %s", name)
		}
	}
	return nil
}

// JoinTo merges other into the schema: other's base table becomes a join and
// all of its fields are added against that table. The primary key of other
// must match an existing field here, which must be a foreign key. With
// criteriaOnly set, every joined field except the primary key is added as
// criteria so it can filter but not be projected or written.
func (s *Schema) JoinTo(other *Schema, criteriaOnly bool) error {
	pk := other.primaryKey
	if pk == nil {
		return fault.Fatalf("join", ErrNoPrimaryKey, "table %s", other.table)
	}
	if _, ok := s.readFields.get(pk.Alias); !ok {
		return fault.Fatal("join", fmt.Errorf("%w for %s", ErrNoForeignKey, pk.Alias))
	}

	if _, exists := s.joins[other.table]; !exists {
		s.addJoin(&Join{Name: other.table})
	}

	for _, spec := range other.specs {
		spec.Table = other.table
		if criteriaOnly && spec.Role != RolePrimaryKey {
			spec.Role = RoleCriteria
		}
		if err := s.AddField(spec); err != nil {
			return err
		}
	}

	return s.Validate()
}

// Clone returns an independent copy of the schema
func (s *Schema) Clone() *Schema {
	c := newSchema(s.table)
	for _, name := range s.joinOrder {
		j := *s.joins[name]
		c.addJoin(&j)
	}
	for _, spec := range s.specs {
		// Replaying specs that already built s cannot fail
		_ = c.AddField(spec)
	}
	return c
}

func (s *Schema) addJoin(j *Join) {
	if _, exists := s.joins[j.Name]; !exists {
		s.joinOrder = append(s.joinOrder, j.Name)
	}
	s.joins[j.Name] = j
	s.invalidate()
}

func (s *Schema) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTable = make(map[string][]*Field)
	s.keyFields = make(map[string][]*Field)
}

// Table returns the base table name
func (s *Schema) Table() string {
	return s.table
}

// PrimaryKey returns the primary key field
func (s *Schema) PrimaryKey() *Field {
	return s.primaryKey
}

// HasTable returns true if table is the base table or a joined table
func (s *Schema) HasTable(table string) bool {
	if table == s.table {
		return true
	}
	_, ok := s.joins[table]
	return ok
}

// HasJoins returns true if any table is joined to the base table
func (s *Schema) HasJoins() bool {
	return len(s.joinOrder) > 0
}

// Join returns the join for a table
func (s *Schema) Join(table string) (*Join, bool) {
	j, ok := s.joins[table]
	return j, ok
}

// Joins returns the joined tables in declaration order
func (s *Schema) Joins() []*Join {
	result := make([]*Join, 0, len(s.joinOrder))
	for _, name := range s.joinOrder {
		result = append(result, s.joins[name])
	}
	return result
}

// Tables returns the base table followed by the joined tables
func (s *Schema) Tables() []string {
	return append([]string{s.table}, s.joinOrder...)
}

// Fields returns every declared field in declaration order
func (s *Schema) Fields() []*Field {
	return append([]*Field(nil), s.fields...)
}

// ReadFields returns the fields projected by a select
func (s *Schema) ReadFields() []*Field {
	return s.readFields.list()
}

// ReadField returns the read field for an alias
func (s *Schema) ReadField(alias string) (*Field, bool) {
	return s.readFields.get(alias)
}

// WriteFields returns the fields written by insert and update statements
func (s *Schema) WriteFields() []*Field {
	return s.writeFields.list()
}

// ForeignKeys returns the foreign keys in declaration order
func (s *Schema) ForeignKeys() []*Field {
	return s.foreignKeys.list()
}

// ForeignKey returns the foreign key for an alias
func (s *Schema) ForeignKey(alias string) (*Field, bool) {
	return s.foreignKeys.get(alias)
}

// FieldsByTable returns the fields belonging to table in declaration order.
// An empty table name returns every field.
func (s *Schema) FieldsByTable(table string) ([]*Field, error) {
	if table == "" {
		return s.Fields(), nil
	}
	if !s.HasTable(table) {
		return nil, fault.Fatalf("schema", ErrUnknownTable, "table %s", table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.byTable[table]; ok {
		return cached, nil
	}
	result := make([]*Field, 0)
	for _, f := range s.fields {
		if f.Table == table {
			result = append(result, f)
		}
	}
	s.byTable[table] = result
	return result, nil
}

// KeyFields returns the fields that identify a row of table. For the base
// table, and for the table owning the primary key, that is the primary key;
// for any other joined table it is the related side of each foreign key
// pointing into it.
func (s *Schema) KeyFields(table string) ([]*Field, error) {
	if s.primaryKey == nil {
		return nil, fault.Fatalf("schema", ErrNoPrimaryKey, "table %s", s.table)
	}
	if table == "" || table == s.table || table == s.primaryKey.Table {
		return []*Field{s.primaryKey}, nil
	}
	if !s.HasTable(table) {
		return nil, fault.Fatalf("schema", ErrUnknownTable, "table %s", table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.keyFields[table]; ok {
		return cached, nil
	}
	result := make([]*Field, 0)
	for _, fk := range s.foreignKeys.list() {
		if fk.Related != nil && fk.Related.Table == table {
			result = append(result, fk.Related)
		}
	}
	s.keyFields[table] = result
	return result, nil
}
