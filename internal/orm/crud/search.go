package crud

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/query"
)

// Search finds records matching an example record. Examples of other
// entities in the same store can be joined in; their fields then only
// narrow the search.
type Search struct {
	example *Record
	joined  []*Record
}

// NewSearch creates a search over example
func NewSearch(example *Record) *Search {
	return &Search{example: example}
}

// Join adds an example of another entity. An example from another store is
// fatal.
func (s *Search) Join(example *Record) error {
	if example.bridge.store != s.example.bridge.store {
		op := OperationSearch
		return s.example.bridge.fail(op, fault.Fatalf(op.String(), ErrDifferentStore, "join %s", example.bridge.entity))
	}
	s.joined = append(s.joined, example)
	return nil
}

// Query returns every record matching the example and criteria. Each result
// is a loaded record of the example's entity. A criterion that cannot match
// yields no records.
func (s *Search) Query(ctx context.Context, criteria query.Criteria) ([]*Record, error) {
	b := s.example.bridge
	if criteria == nil {
		criteria = query.Criteria{}
	}

	sch := b.schema.Clone()
	for _, je := range s.joined {
		if err := sch.JoinTo(je.bridge.schema, true); err != nil {
			return nil, b.fail(OperationSearch, err)
		}
	}

	stmt, err := query.NewGenerator(values(s.example.core)).Select(sch, criteria)
	if query.IsEmptyResult(err) {
		return []*Record{}, nil
	}
	if err != nil {
		return nil, b.fail(OperationSearch, err)
	}

	if err := b.store.Connect(ctx); err != nil {
		return nil, b.fail(OperationSearch, err)
	}

	b.logger().Debug("executing statement",
		zap.String("entity", b.entity),
		zap.Stringer("operation", OperationSearch),
		zap.String("statement", stmt))

	cursor, err := b.store.Query(ctx, stmt)
	if err != nil {
		return nil, b.fail(OperationSearch, err, zap.String("statement", stmt))
	}

	records := make([]*Record, 0, cursor.Len())
	for row, ok := cursor.Next(); ok; row, ok = cursor.Next() {
		rec := b.NewRecord(Keyed(row))
		rec.loaded = true
		rec.isNew = false
		rec.state = StateLoaded
		records = append(records, rec)
	}
	return records, nil
}
