// Package tracking records pending field writes on a record until they are
// committed. A write that restores the committed value cancels the pending
// change instead of storing a no-op.
package tracking

import (
	"reflect"
	"sync"

	"github.com/spf13/cast"
)

// FieldChange represents a pending change to a single field
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// Changeset tracks pending field changes in the order they were first made
type Changeset struct {
	mu      sync.RWMutex
	order   []string
	changes map[string]*FieldChange
}

// NewChangeset creates an empty changeset
func NewChangeset() *Changeset {
	return &Changeset{
		changes: make(map[string]*FieldChange),
	}
}

// Set records value for field. committed is the field's committed value and
// hasCommitted whether there is one. Setting a field back to its committed
// value removes it from the changeset. The stored value is a copy.
func (c *Changeset) Set(field string, committed interface{}, hasCommitted bool, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hasCommitted && Equal(committed, value) {
		c.remove(field)
		return
	}

	if _, exists := c.changes[field]; !exists {
		c.order = append(c.order, field)
	}
	c.changes[field] = &FieldChange{
		Field:    field,
		OldValue: committed,
		NewValue: Copy(value),
	}
}

func (c *Changeset) remove(field string) {
	if _, exists := c.changes[field]; !exists {
		return
	}
	delete(c.changes, field)
	for i, f := range c.order {
		if f == field {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Get returns the pending value of a field
func (c *Changeset) Get(field string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	change, ok := c.changes[field]
	if !ok {
		return nil, false
	}
	return change.NewValue, true
}

// Changed returns true if the specified field has a pending change
func (c *Changeset) Changed(field string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.changes[field]
	return ok
}

// ChangedFields returns the changed fields in the order they were first set
func (c *Changeset) ChangedFields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// GetChange returns the FieldChange for a specific field, or nil if unchanged
func (c *Changeset) GetChange(field string) *FieldChange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changes[field]
}

// Len returns the number of pending changes
func (c *Changeset) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.changes)
}

// HasChanges returns true if any fields have changed
func (c *Changeset) HasChanges() bool {
	return c.Len() > 0
}

// ChangedTo returns true if the field changed to the specified value
func (c *Changeset) ChangedTo(field string, value interface{}) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	change, ok := c.changes[field]
	if !ok {
		return false
	}
	return Equal(change.NewValue, value)
}

// ChangedFrom returns true if the field changed from the specified value
func (c *Changeset) ChangedFrom(field string, value interface{}) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	change, ok := c.changes[field]
	if !ok {
		return false
	}
	return Equal(change.OldValue, value)
}

// Values returns a copy of the pending values keyed by field.
// This is what an UPDATE needs to write.
func (c *Changeset) Values() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]interface{}, len(c.changes))
	for field, change := range c.changes {
		result[field] = Copy(change.NewValue)
	}
	return result
}

// Copy returns a deep copy of slices and maps, keeping their types.
// Other values are returned as-is.
func Copy(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	return copyValue(reflect.ValueOf(v)).Interface()
}

func copyValue(val reflect.Value) reflect.Value {
	switch val.Kind() {
	case reflect.Slice:
		if val.IsNil() {
			return val
		}
		out := reflect.MakeSlice(val.Type(), val.Len(), val.Len())
		for i := 0; i < val.Len(); i++ {
			out.Index(i).Set(copyValue(val.Index(i)))
		}
		return out
	case reflect.Map:
		if val.IsNil() {
			return val
		}
		out := reflect.MakeMapWithSize(val.Type(), val.Len())
		for _, key := range val.MapKeys() {
			out.SetMapIndex(key, copyValue(val.MapIndex(key)))
		}
		return out
	case reflect.Interface:
		if val.IsNil() {
			return val
		}
		out := reflect.New(val.Type()).Elem()
		out.Set(copyValue(val.Elem()))
		return out
	default:
		return val
	}
}

// Equal compares two field values. Numbers compare by value regardless of
// their type, and a number equals a string that parses to it, because stores
// hand values back in whatever representation their driver uses.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}

	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
	}

	if !isNumber(a) && !isNumber(b) {
		return false
	}
	af, err := cast.ToFloat64E(a)
	if err != nil {
		return false
	}
	bf, err := cast.ToFloat64E(b)
	if err != nil {
		return false
	}
	return af == bf
}

func isNumber(v interface{}) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
