package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/changefeed"
	"github.com/conduit-lang/recordkit/internal/datasource"
	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Bridge connects records of one entity to the store they are persisted in.
// Every record created by a bridge shares its store handle.
type Bridge struct {
	entity       string
	schema       *schema.Schema
	store        datasource.Store
	createOnSave bool
	reporter     *fault.Reporter
	publisher    changefeed.Publisher
}

// Option configures a Bridge
type Option func(*Bridge)

// WithCreateOnSave lets records that cannot be loaded be created by Save
func WithCreateOnSave(enabled bool) Option {
	return func(b *Bridge) {
		b.createOnSave = enabled
	}
}

// WithReporter routes failures through reporter
func WithReporter(reporter *fault.Reporter) Option {
	return func(b *Bridge) {
		if reporter != nil {
			b.reporter = reporter
		}
	}
}

// WithPublisher publishes a change event after every save and remove
func WithPublisher(publisher changefeed.Publisher) Option {
	return func(b *Bridge) {
		if publisher != nil {
			b.publisher = publisher
		}
	}
}

// NewBridge creates a bridge for entity
func NewBridge(entity string, s *schema.Schema, store datasource.Store, opts ...Option) *Bridge {
	b := &Bridge{
		entity:    entity,
		schema:    s,
		store:     store,
		reporter:  fault.NewReporter(nil, nil),
		publisher: changefeed.Nop{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Entity returns the entity name
func (b *Bridge) Entity() string {
	return b.entity
}

// Schema returns the entity schema
func (b *Bridge) Schema() *schema.Schema {
	return b.schema
}

// Store returns the backing store
func (b *Bridge) Store() datasource.Store {
	return b.store
}

// CreateOnSave reports whether records may be created by their first save
func (b *Bridge) CreateOnSave() bool {
	return b.createOnSave
}

// NewRecord creates a record over core. A nil core is an empty keyed record.
func (b *Bridge) NewRecord(core Core) *Record {
	if core == nil {
		core = Keyed{}
	}
	return &Record{
		bridge: b,
		core:   copyCore(core),
		isNew:  b.createOnSave,
	}
}

func (b *Bridge) logger() *zap.Logger {
	return b.reporter.Logger()
}

// fail reports err for op and returns what the caller should see
func (b *Bridge) fail(op Operation, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("entity", b.entity), zap.Stringer("operation", op))
	return b.reporter.Report(ConvertDBError(err), fields...)
}

// execute runs write statements in order. Every statement must affect at
// least one row and warns when it affects more. The last row is returned for generated-id handling.
func (b *Bridge) execute(ctx context.Context, op Operation, statements []string) (datasource.Row, error) {
	var last datasource.Row
	for _, stmt := range statements {
		b.logger().Debug("executing statement",
			zap.String("entity", b.entity),
			zap.Stringer("operation", op),
			zap.String("statement", stmt))

		cursor, err := b.store.Query(ctx, stmt)
		if err != nil {
			return nil, b.fail(op, err, zap.String("statement", stmt))
		}
		row, ok := cursor.Next()
		affected, _ := row.AffectedRows()
		if !ok || affected < 1 {
			err := fault.Failed(op.String(), fmt.Errorf("%w: %s", ErrNoRowsAffected, stmt))
			return nil, b.fail(op, err)
		}
		if affected > 1 {
			b.reporter.Warn(fmt.Sprintf("%d records written", affected),
				zap.String("entity", b.entity),
				zap.Stringer("operation", op),
				zap.String("statement", stmt))
		}
		last = row
	}
	return last, nil
}

// publish emits a change event; failures only warn
func (b *Bridge) publish(ctx context.Context, op Operation, key interface{}, changes map[string]interface{}) {
	event := changefeed.NewEvent(b.entity, op.feed(), key, changes)
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.reporter.Warn("failed to publish change event",
			zap.String("entity", b.entity),
			zap.Stringer("operation", op),
			zap.Error(err))
	}
}
