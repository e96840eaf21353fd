package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewAskCommand creates the ask command.
func NewAskCommand(build BuildFunc) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the formatted response",
		Example: `  shipping-agent ask "How many shipments are pending?"
  shipping-agent ask --json "List the first 5 accounts"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return withApp(cmd, build, func(app *App) error {
				answer, err := app.Agent.Ask(cmd.Context(), question)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(answer)
				}
				_, err = fmt.Fprintln(out, answer.Response)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full answer as JSON")
	return cmd
}
