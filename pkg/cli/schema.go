package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkhani/shipping-agent/pkg/schema"
)

type schemaJSON struct {
	Tables      []schema.Table      `json:"tables"`
	ForeignKeys []schema.ForeignKey `json:"foreign_keys"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(build BuildFunc) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema text the SQL model is prompted with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, build, func(app *App) error {
				snapshot, err := app.Schema.FetchSchema(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(schemaJSON{Tables: snapshot.Tables, ForeignKeys: snapshot.ForeignKeys})
				}
				_, err = fmt.Fprintln(out, snapshot.Text)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print tables and foreign keys as JSON")
	return cmd
}
