package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/orm/query"
)

// NewSearchCommand creates the search command
func NewSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <entity> [alias=value...]",
		Short: "List records matching criteria",
		Long: `List the records of an entity whose fields match every criterion.

A repeated alias matches any of its values. NULL matches a missing value.`,
		Example: `  recordkit search person
  recordkit search person group_id=1 group_id=2`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	entity := args[0]
	criteria, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	search, err := env.repo.Search(ctx, entity, nil)
	if err != nil {
		return env.fail(cmd, entity, "", err)
	}

	results, err := search.Query(ctx, query.Criteria(criteria))
	if err != nil {
		return env.fail(cmd, entity, "", err)
	}

	sch, _ := env.schemas.Schema(entity)
	var headers []string
	for _, f := range sch.ReadFields() {
		headers = append(headers, f.Alias)
	}

	rows := make([]map[string]interface{}, 0, len(results))
	for _, rec := range results {
		snap, err := rec.Snapshot(ctx)
		if err != nil {
			return env.fail(cmd, entity, "", err)
		}
		rows = append(rows, snap)
	}

	out := cmd.OutOrStdout()
	table := ui.NewTable(out, headers, nil)
	ui.RecordRows(table, rows)
	table.Render()
	fmt.Fprintf(out, "\n%d %s record(s)\n", len(rows), entity)
	return nil
}
