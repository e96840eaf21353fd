package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkhani/shipping-agent/pkg/services"
)

// NewSQLCommand creates the sql command. It stops after validation and
// never executes the statement.
func NewSQLCommand(build BuildFunc) *cobra.Command {
	var trace bool

	cmd := &cobra.Command{
		Use:     "sql <question>",
		Short:   "Generate validated SQL for a question without running it",
		Example: `  shipping-agent sql --trace "Which cities have the most deliveries?"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return withApp(cmd, build, func(app *App) error {
				out := cmd.OutOrStdout()

				gen, err := app.Generator.Generate(cmd.Context(), question)
				if err != nil {
					var exhausted *services.ExhaustedError
					if errors.As(err, &exhausted) {
						_, _ = fmt.Fprintln(out, services.ExhaustedSQL(exhausted.Attempts, exhausted.LastMessage))
						if exhausted.LastSQL != "" {
							_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "last attempted SQL:\n%s\n", exhausted.LastSQL)
						}
					}
					return err
				}

				if trace {
					for _, c := range gen.Trace {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d [%s]: %s\n", c.Attempt, c.Origin, oneLine(c.SQL))
					}
				}
				_, err = fmt.Fprintln(out, gen.SQL)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&trace, "trace", false, "print every candidate to stderr")
	return cmd
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
