package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/query"
)

var (
	renderOpFlag    string
	renderWhereFlag []string
)

// NewRenderCommand creates the render command
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <entity> [alias=value...]",
		Short: "Print the SQL a record operation would run",
		Long: `Print the statements generated for an entity without touching any store.

The alias=value arguments are the record values; NULL sets a value to nil.
Selects without --where identify the record by its primary key; with
--where they search by the given criteria instead.`,
		Example: `  # Load statement for person 3
  recordkit render person id=3

  # Statements saving a new person
  recordkit render person id=new name=Ada --op replace

  # Search with criteria
  recordkit render person --where name=Ada --where group_id=1 --where group_id=2`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRender,
	}

	cmd.Flags().StringVar(&renderOpFlag, "op", "select", "Statement kind: select, insert, replace, update or delete")
	cmd.Flags().StringArrayVar(&renderWhereFlag, "where", nil, "Search criterion alias=value (repeatable)")

	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.Close(context.Background())

	entity := args[0]
	e, ok := env.schemas.Get(entity)
	if !ok {
		return env.fail(cmd, entity, "", fmt.Errorf("%w: %s", crud.ErrUnknownEntity, entity))
	}

	values, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	gen := query.NewGenerator(query.Map(values))

	var statements []string
	switch renderOpFlag {
	case "select":
		var criteria query.Criteria
		if len(renderWhereFlag) > 0 {
			where, err := parseAssignments(renderWhereFlag)
			if err != nil {
				return err
			}
			criteria = query.Criteria(where)
		}
		var stmt string
		stmt, err = gen.Select(e.Schema, criteria)
		statements = []string{stmt}
	case "insert":
		statements, err = gen.Insert(e.Schema)
	case "replace":
		statements, err = gen.Replace(e.Schema)
	case "update":
		statements, err = gen.Update(e.Schema)
	case "delete":
		statements, err = gen.Delete(e.Schema)
	default:
		return fmt.Errorf("unknown operation %q", renderOpFlag)
	}

	if query.IsEmptyResult(err) {
		fmt.Fprint(cmd.ErrOrStderr(), ui.Warning("No record can match these criteria; nothing would run.", false))
		return nil
	}
	if err != nil {
		return env.fail(cmd, entity, "", err)
	}

	out := cmd.OutOrStdout()
	for _, stmt := range statements {
		fmt.Fprintf(out, "%s;\n", stmt)
	}
	return nil
}
