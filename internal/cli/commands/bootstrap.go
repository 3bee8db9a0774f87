package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/changefeed"
	"github.com/conduit-lang/recordkit/internal/cli/config"
	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/datasource"
	"github.com/conduit-lang/recordkit/internal/logging"
	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// environment is everything a command needs to work with records
type environment struct {
	config    *config.Config
	logger    *zap.Logger
	schemas   *schema.Registry
	stores    *datasource.Registry
	publisher changefeed.Publisher
	repo      *crud.Repository
}

// loadEnvironment reads the config and entity definitions and wires the
// registries, the fault reporter and the change feed into a repository.
// Stores are opened lazily by the repository.
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.LoadFile(configFlag)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), false))
		return nil, reportedError{err}
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	handler, err := fault.ParseHandler(cfg.FatalPolicy)
	if err != nil {
		return nil, err
	}

	defs, err := schema.LoadDefinitions(cfg.Schemas)
	if err != nil {
		return nil, err
	}
	schemas := schema.NewRegistry()
	if err := schemas.RegisterAll(defs); err != nil {
		return nil, err
	}

	var publisher changefeed.Publisher = changefeed.Nop{}
	if cfg.Changefeed.Enabled() {
		kafka, err := changefeed.NewKafkaPublisher(cfg.Changefeed, logger)
		if err != nil {
			return nil, err
		}
		publisher = kafka
	}

	stores := datasource.NewRegistry(cfg.Datasources, logger)
	reporter := fault.NewReporter(logger, handler)

	return &environment{
		config:    cfg,
		logger:    logger,
		schemas:   schemas,
		stores:    stores,
		publisher: publisher,
		repo:      crud.NewRepository(schemas, stores, reporter, publisher),
	}, nil
}

// Close shuts down the change feed and every opened store
func (e *environment) Close(ctx context.Context) error {
	err := errors.Join(e.publisher.Close(), e.stores.Close(ctx))
	_ = e.logger.Sync()
	return err
}

// record creates a record of entity identified by id, printing an unknown
// entity with suggestions
func (e *environment) record(ctx context.Context, cmd *cobra.Command, entity, id string) (*crud.Record, error) {
	var core crud.Core
	if id != "" {
		core = crud.Scalar{Value: id}
	}
	rec, err := e.repo.New(ctx, entity, core)
	if err != nil {
		return nil, e.fail(cmd, entity, id, err)
	}
	return rec, nil
}

// fail prints err for a record of entity and marks it reported
func (e *environment) fail(cmd *cobra.Command, entity, id string, err error) error {
	if errors.Is(err, crud.ErrUnknownEntity) {
		fmt.Fprint(cmd.ErrOrStderr(), ui.EntityNotFoundError(entity, e.repo.Entities(), false))
	} else {
		fmt.Fprint(cmd.ErrOrStderr(), ui.RecordError(entity, id, err, false))
	}
	return reportedError{err}
}

// parseAssignments turns alias=value arguments into values. The literal
// NULL sets nil; a repeated alias collects its values into a list.
func parseAssignments(args []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(args))
	for _, arg := range args {
		alias, raw, ok := strings.Cut(arg, "=")
		if !ok || alias == "" {
			return nil, fmt.Errorf("expected alias=value, got %q", arg)
		}

		var v interface{} = raw
		if raw == "NULL" {
			v = nil
		}

		switch prev := values[alias].(type) {
		case nil:
			if _, seen := values[alias]; seen {
				values[alias] = []interface{}{nil, v}
			} else {
				values[alias] = v
			}
		case []interface{}:
			values[alias] = append(prev, v)
		default:
			values[alias] = []interface{}{prev, v}
		}
	}
	return values, nil
}

// sortedKeys returns the keys of m in order
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
