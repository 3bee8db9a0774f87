package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/recordkit/internal/cli/ui"
)

// NewEntitiesCommand creates the entities command
func NewEntitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the defined entities",
		Long:  "List every entity in the definitions file with its data source and tables.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.Close(context.Background())

			table := ui.NewTable(cmd.OutOrStdout(), []string{"entity", "datasource", "tables", "create on save"}, nil)
			for _, name := range env.schemas.List() {
				e, _ := env.schemas.Get(name)
				createOnSave := "no"
				if e.Definition.CreateOnSave {
					createOnSave = "yes"
				}
				table.AddRow(name, e.Definition.Datasource, strings.Join(e.Schema.Tables(), ", "), createOnSave)
			}
			table.Render()
			return nil
		},
	}
}
