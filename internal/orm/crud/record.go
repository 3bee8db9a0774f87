package crud

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/datasource"
	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/query"
	"github.com/conduit-lang/recordkit/internal/orm/tracking"
)

// Record is a persistent record: a committed core plus pending changes.
// Values are read lazily; the first read of a field that has no pending
// change loads the core from the store. Records do no locking.
type Record struct {
	bridge  *Bridge
	core    Core
	changes *tracking.Changeset
	loaded  bool
	isNew   bool
	state   State
}

// Bridge returns the bridge the record persists through
func (r *Record) Bridge() *Bridge {
	return r.bridge
}

// State returns the lifecycle state. A record with pending changes is dirty
// whether or not it was loaded.
func (r *Record) State() State {
	if r.state != StateRemoved && r.HasChanges() {
		return StateDirty
	}
	return r.state
}

// IsNew reports whether the next save creates the record
func (r *Record) IsNew() bool {
	return r.isNew
}

// IsLoaded reports whether the core has been read from the store
func (r *Record) IsLoaded() bool {
	return r.loaded
}

// Get returns the value of alias. A pending change wins; otherwise the
// record is loaded if it has not been and the committed value is returned.
// A field without a value reads as nil.
func (r *Record) Get(ctx context.Context, alias string) (interface{}, error) {
	if r.state == StateRemoved {
		return nil, ErrRemoved
	}
	if r.changes != nil {
		if v, ok := r.changes.Get(alias); ok {
			return v, nil
		}
	}
	if !r.loaded {
		if err := r.Load(ctx); err != nil {
			return nil, err
		}
	}
	v, _ := lookup(r.core, r.bridge.schema.PrimaryKey(), alias)
	return v, nil
}

// Value returns a copy of the committed core, loading it first if needed
func (r *Record) Value(ctx context.Context) (Core, error) {
	if r.state == StateRemoved {
		return nil, ErrRemoved
	}
	if !r.loaded {
		if err := r.Load(ctx); err != nil {
			return nil, err
		}
	}
	return copyCore(r.core), nil
}

// Snapshot returns the committed core with pending changes applied, loading
// the core first if needed
func (r *Record) Snapshot(ctx context.Context) (map[string]interface{}, error) {
	core, err := r.Value(ctx)
	if err != nil {
		return nil, err
	}
	out := keyed(core, r.bridge.schema.PrimaryKey())
	if r.changes != nil {
		for k, v := range r.changes.Values() {
			out[k] = v
		}
	}
	return out, nil
}

// Set records value for alias. Setting a field back to its committed value
// cancels the pending change.
func (r *Record) Set(alias string, value interface{}) error {
	if r.state == StateRemoved {
		return ErrRemoved
	}

	pk := r.bridge.schema.PrimaryKey()
	committed, has := lookup(r.core, pk, alias)
	if has && tracking.Equal(committed, value) {
		if r.changes != nil {
			r.changes.Set(alias, committed, has, value)
			if !r.changes.HasChanges() {
				r.changes = nil
			}
		}
		return nil
	}

	if r.changes == nil {
		r.changes = tracking.NewChangeset()
		r.core = keyed(r.core, pk)
	}
	r.changes.Set(alias, committed, has, value)
	return nil
}

// BulkSet sets every value in sorted alias order
func (r *Record) BulkSet(values map[string]interface{}) error {
	aliases := make([]string, 0, len(values))
	for alias := range values {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	for _, alias := range aliases {
		if err := r.Set(alias, values[alias]); err != nil {
			return err
		}
	}
	return nil
}

// SetCore replaces the committed core. Pending changes are kept.
func (r *Record) SetCore(core Core) error {
	if r.state == StateRemoved {
		return ErrRemoved
	}
	if core == nil {
		core = Keyed{}
	}
	r.core = copyCore(core)
	return nil
}

// IsChanged reports whether alias has a pending change. An empty alias asks
// about the whole record.
func (r *Record) IsChanged(alias string) bool {
	if alias == "" {
		return r.HasChanges()
	}
	return r.changes != nil && r.changes.Changed(alias)
}

// HasChanges reports whether any change is pending
func (r *Record) HasChanges() bool {
	return r.changes != nil && r.changes.HasChanges()
}

// Changes returns the pending values by alias
func (r *Record) Changes() map[string]interface{} {
	if r.changes == nil {
		return map[string]interface{}{}
	}
	return r.changes.Values()
}

// Commit merges pending changes into the core
func (r *Record) Commit() {
	if r.changes == nil {
		return
	}
	core := keyed(r.core, r.bridge.schema.PrimaryKey())
	for alias, v := range r.changes.Values() {
		core[alias] = v
	}
	r.core = core
	r.changes = nil
}

// Rollback discards pending changes
func (r *Record) Rollback() {
	r.changes = nil
}

// committed returns the pending or committed value of alias without loading
func (r *Record) committed(alias string) (interface{}, bool) {
	if r.changes != nil {
		if v, ok := r.changes.Get(alias); ok {
			return v, true
		}
	}
	return lookup(r.core, r.bridge.schema.PrimaryKey(), alias)
}

// Load reads the record from its store by identity. The first row becomes
// the core. Finding nothing is an error unless records of this entity are
// created on save, in which case the record stays new.
func (r *Record) Load(ctx context.Context) error {
	if r.state == StateRemoved {
		return ErrRemoved
	}

	row, found, err := r.fetch(ctx, r.bridge.store, OperationLoad)
	if err != nil {
		return err
	}
	r.loaded = true
	if found {
		r.core = Keyed(row)
		r.isNew = false
		r.state = StateLoaded
	}
	return nil
}

// Import reads the record from another store into the changeset. The core
// and the loaded flag are untouched.
func (r *Record) Import(ctx context.Context, store datasource.Store) error {
	if r.state == StateRemoved {
		return ErrRemoved
	}

	row, found, err := r.fetch(ctx, store, OperationImport)
	if err != nil || !found {
		return err
	}
	return r.BulkSet(row)
}

// fetch selects the record from store by its identity
func (r *Record) fetch(ctx context.Context, store datasource.Store, op Operation) (datasource.Row, bool, error) {
	b := r.bridge
	pk := b.schema.PrimaryKey()

	key, ok := identity(r.core, pk)
	if ok {
		if err := store.Connect(ctx); err != nil {
			return nil, false, b.fail(op, err)
		}

		stmt, err := query.NewGenerator(values(r.core)).Select(b.schema, nil)
		switch {
		case query.IsEmptyResult(err):
		case err != nil:
			return nil, false, b.fail(op, err)
		default:
			b.logger().Debug("executing statement",
				zap.String("entity", b.entity),
				zap.Stringer("operation", op),
				zap.String("statement", stmt))

			cursor, err := store.Query(ctx, stmt)
			if err != nil {
				return nil, false, b.fail(op, err, zap.String("statement", stmt))
			}
			if row, ok := cursor.Next(); ok {
				return row, true, nil
			}
		}
	}

	if b.createOnSave {
		return nil, false, nil
	}
	err := fault.Failed(op.String(), fmt.Errorf("%w: %s %v", ErrNotFound, b.entity, key))
	return nil, false, b.fail(op, err)
}

// Save writes pending changes. A new record of an entity created on save is
// committed and written with REPLACE; any other record writes its changes
// with UPDATE, identified by its primary and foreign keys. A key generated
// by the store becomes the primary key. Nothing pending is a no-op.
func (r *Record) Save(ctx context.Context) error {
	if r.state == StateRemoved {
		return ErrRemoved
	}
	if !r.HasChanges() {
		return nil
	}

	b := r.bridge
	s := b.schema
	pk := s.PrimaryKey()

	op := OperationUpdate
	if b.createOnSave && r.isNew {
		op = OperationCreate
	}
	if err := b.store.Connect(ctx); err != nil {
		return b.fail(op, err)
	}

	changes := r.changes.Values()

	var statements []string
	var err error
	if op == OperationCreate {
		r.Commit()
		statements, err = query.NewGenerator(query.Map(keyed(r.core, pk))).Replace(s)
	} else {
		params := query.Map(changes)
		if v, ok := r.committed(pk.Alias); ok {
			params[pk.Alias] = v
		}
		for _, fk := range s.ForeignKeys() {
			if v, ok := r.committed(fk.Alias); ok {
				params[fk.Alias] = v
			}
		}
		statements, err = query.NewGenerator(params).Update(s)
	}
	if err != nil {
		return b.fail(op, err)
	}

	row, err := b.execute(ctx, op, statements)
	if row == nil {
		return err
	}
	r.isNew = false

	if id, ok := row.GeneratedID(); ok && id > 0 {
		r.loaded = true
		old, _ := r.committed(pk.Alias)
		if query.IsNewKey(old) {
			old = nil
		}
		if old != nil && !tracking.Equal(old, id) {
			return b.fail(op, fault.Fatalf(op.String(), ErrPrimaryKeyMismatch, "%d != %v", id, old))
		}
		if err := r.Set(pk.Alias, id); err != nil {
			return err
		}
		b.logger().Debug("primary key assigned",
			zap.String("entity", b.entity),
			zap.String("field", pk.Alias),
			zap.Int64("id", id))
	}
	r.Commit()
	r.state = StateSaved

	key, _ := r.committed(pk.Alias)
	b.publish(ctx, op, key, changes)
	return nil
}

// Remove deletes the record. On success the record accepts no further
// operations and is new again if the entity is created on save.
func (r *Record) Remove(ctx context.Context) error {
	if r.state == StateRemoved {
		return ErrRemoved
	}

	b := r.bridge
	if err := b.store.Connect(ctx); err != nil {
		return b.fail(OperationRemove, err)
	}

	statements, err := query.NewGenerator(values(r.core)).Delete(b.schema)
	if err != nil {
		return b.fail(OperationRemove, err)
	}

	row, err := b.execute(ctx, OperationRemove, statements)
	if row == nil {
		return err
	}

	r.isNew = b.createOnSave
	r.state = StateRemoved

	key, _ := identity(r.core, b.schema.PrimaryKey())
	b.publish(ctx, OperationRemove, key, nil)
	return nil
}
