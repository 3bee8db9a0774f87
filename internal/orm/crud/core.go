package crud

import (
	"github.com/conduit-lang/recordkit/internal/orm/query"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
	"github.com/conduit-lang/recordkit/internal/orm/tracking"
)

// Core is the committed value of a record: either a bare identity (Scalar)
// or a mapping of alias to value (Keyed).
type Core interface {
	isCore()
}

// Scalar is a core holding only the primary key value
type Scalar struct {
	Value interface{}
}

// Keyed is a core holding values by alias
type Keyed map[string]interface{}

func (Scalar) isCore() {}
func (Keyed) isCore()  {}

// lookup returns the committed value of alias. A scalar core answers only
// for the primary key.
func lookup(core Core, pk *schema.Field, alias string) (interface{}, bool) {
	switch c := core.(type) {
	case Scalar:
		if alias == pk.Alias {
			return c.Value, true
		}
	case Keyed:
		v, ok := c[alias]
		return v, ok
	}
	return nil, false
}

// keyed converts a core to its mapping form
func keyed(core Core, pk *schema.Field) Keyed {
	switch c := core.(type) {
	case Scalar:
		return Keyed{pk.Alias: c.Value}
	case Keyed:
		if c == nil {
			return Keyed{}
		}
		return c
	}
	return Keyed{}
}

// values adapts a core to the statement generator
func values(core Core) query.Values {
	switch c := core.(type) {
	case Scalar:
		return query.Identity{Value: c.Value}
	case Keyed:
		return query.Map(c)
	}
	return query.Map{}
}

// identity returns the primary key value a core carries
func identity(core Core, pk *schema.Field) (interface{}, bool) {
	v, ok := lookup(core, pk, pk.Alias)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func copyCore(core Core) Core {
	switch c := core.(type) {
	case Scalar:
		return Scalar{Value: tracking.Copy(c.Value)}
	case Keyed:
		out := make(Keyed, len(c))
		for k, v := range c {
			out[k] = tracking.Copy(v)
		}
		return out
	}
	return core
}
