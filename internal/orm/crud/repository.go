package crud

import (
	"context"
	"fmt"

	"github.com/conduit-lang/recordkit/internal/changefeed"
	"github.com/conduit-lang/recordkit/internal/datasource"
	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Repository creates records of named entities, resolving each entity's
// schema and store by name
type Repository struct {
	schemas   *schema.Registry
	stores    *datasource.Registry
	reporter  *fault.Reporter
	publisher changefeed.Publisher
}

// NewRepository creates a repository. A nil reporter propagates failures
// and a nil publisher discards events.
func NewRepository(schemas *schema.Registry, stores *datasource.Registry, reporter *fault.Reporter, publisher changefeed.Publisher) *Repository {
	if reporter == nil {
		reporter = fault.NewReporter(nil, nil)
	}
	if publisher == nil {
		publisher = changefeed.Nop{}
	}
	return &Repository{
		schemas:   schemas,
		stores:    stores,
		reporter:  reporter,
		publisher: publisher,
	}
}

// Entities returns the registered entity names
func (r *Repository) Entities() []string {
	return r.schemas.List()
}

// Bridge returns a bridge for entity, opening its store if needed
func (r *Repository) Bridge(ctx context.Context, entity string) (*Bridge, error) {
	e, ok := r.schemas.Get(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	store, err := r.stores.Get(ctx, e.Definition.Datasource)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", entity, err)
	}

	return NewBridge(entity, e.Schema, store,
		WithCreateOnSave(e.Definition.CreateOnSave),
		WithReporter(r.reporter),
		WithPublisher(r.publisher),
	), nil
}

// New creates a record of entity over core
func (r *Repository) New(ctx context.Context, entity string, core Core) (*Record, error) {
	b, err := r.Bridge(ctx, entity)
	if err != nil {
		return nil, err
	}
	return b.NewRecord(core), nil
}

// Search creates a search with a record of entity over core as the example
func (r *Repository) Search(ctx context.Context, entity string, core Core) (*Search, error) {
	example, err := r.New(ctx, entity, core)
	if err != nil {
		return nil, err
	}
	return NewSearch(example), nil
}
