package commands

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/orm/crud"
)

var (
	setYesFlag    bool
	removeYesFlag bool
)

// confirm asks the user before writing
var confirm = askConfirm

// askConfirm asks a yes/no question, defaulting to no
func askConfirm(message string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity> <id> [alias...]",
		Short: "Load a record and print its values",
		Example: `  recordkit get person 3
  recordkit get person 3 name email`,
		Args: cobra.MinimumNArgs(2),
		RunE: runGet,
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	entity, id := args[0], args[1]
	rec, err := env.record(ctx, cmd, entity, id)
	if err != nil {
		return err
	}
	if err := rec.Load(ctx); err != nil {
		return env.fail(cmd, entity, id, err)
	}
	if rec.IsNew() {
		return env.fail(cmd, entity, id, fmt.Errorf("%w: %s %s", crud.ErrNotFound, entity, id))
	}

	aliases := args[2:]
	snap, err := rec.Snapshot(ctx)
	if err != nil {
		return env.fail(cmd, entity, id, err)
	}
	if len(aliases) == 0 {
		aliases = sortedKeys(snap)
	}

	kv := ui.NewKeyValueTable(cmd.OutOrStdout(), false)
	for _, alias := range aliases {
		v, err := rec.Get(ctx, alias)
		if err != nil {
			return env.fail(cmd, entity, id, err)
		}
		kv.AddRow(alias, ui.FormatValue(v))
	}
	kv.Render()
	return nil
}

// NewSetCommand creates the set command
func NewSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <entity> <id> alias=value...",
		Short: "Change a record and save it",
		Long: `Load a record, apply the given values and save the changes.

Values equal to the stored ones are no change. NULL sets a value to nil.
Entities created on save accept the id "new" for a record the store
numbers itself.`,
		Example: `  recordkit set person 3 name="Ada Lovelace"
  recordkit set person new name=Grace email=grace@example.com --yes`,
		Args: cobra.MinimumNArgs(3),
		RunE: runSet,
	}

	cmd.Flags().BoolVarP(&setYesFlag, "yes", "y", false, "Save without asking")

	return cmd
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	entity, id := args[0], args[1]
	values, err := parseAssignments(args[2:])
	if err != nil {
		return err
	}

	rec, err := env.record(ctx, cmd, entity, id)
	if err != nil {
		return err
	}
	if err := rec.Load(ctx); err != nil {
		return env.fail(cmd, entity, id, err)
	}

	before := make(map[string]interface{}, len(values))
	for alias := range values {
		before[alias], _ = rec.Get(ctx, alias)
	}
	if err := rec.BulkSet(values); err != nil {
		return env.fail(cmd, entity, id, err)
	}

	out := cmd.OutOrStdout()
	if !rec.HasChanges() {
		fmt.Fprintln(out, color.CyanString("ℹ Nothing to change"))
		return nil
	}

	table := ui.NewTable(out, []string{"field", "stored", "new"}, nil)
	changes := rec.Changes()
	for _, alias := range sortedKeys(changes) {
		table.AddRow(alias, ui.FormatValue(before[alias]), ui.FormatValue(changes[alias]))
	}
	table.Render()

	if !setYesFlag {
		ok, err := confirm(fmt.Sprintf("Save %s %s?", entity, id))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, color.CyanString("ℹ Save cancelled"))
			return nil
		}
	}

	created := rec.IsNew()
	if err := rec.Save(ctx); err != nil {
		return env.fail(cmd, entity, id, err)
	}

	key, _ := rec.Get(ctx, rec.Bridge().Schema().PrimaryKey().Alias)
	verb := "Saved"
	if created {
		verb = "Created"
	}
	ui.WriteSuccess(out, fmt.Sprintf("%s %s %v", verb, entity, key), false)
	return nil
}

// NewRemoveCommand creates the remove command
func NewRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <entity> <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a record",
		Example: `  recordkit remove person 3 --yes`,
		Args:    cobra.ExactArgs(2),
		RunE:    runRemove,
	}

	cmd.Flags().BoolVarP(&removeYesFlag, "yes", "y", false, "Delete without asking")

	return cmd
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	entity, id := args[0], args[1]
	rec, err := env.record(ctx, cmd, entity, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !removeYesFlag {
		e, _ := env.schemas.Get(entity)
		color.New(color.FgYellow, color.Bold).Fprintf(out, "⚠️  Removing %s %s from data source %s\n",
			entity, id, e.Definition.Datasource)
		ok, err := confirm(fmt.Sprintf("Remove %s %s?", entity, id))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, color.CyanString("ℹ Remove cancelled"))
			return nil
		}
	}

	if err := rec.Remove(ctx); err != nil {
		return env.fail(cmd, entity, id, err)
	}
	ui.WriteSuccess(out, fmt.Sprintf("Removed %s %s", entity, id), false)
	return nil
}
