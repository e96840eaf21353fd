// Package cli provides the shipping-agent command line: the HTTP and MCP
// server plus one-shot commands for asking questions from a terminal.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/config"
	"github.com/xkhani/shipping-agent/pkg/logging"
)

type configKey struct{}

type loggerKey struct{}

// NewRootCmd creates the root command with NewApp as the component builder.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, NewApp)
}

func newRootCmd(version string, build BuildFunc) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "shipping-agent",
		Short: "Answer questions about shipping data in natural language",
		Long: `shipping-agent turns natural-language questions into read-only SQL against
the shipping database, runs it, and formats the answer.

Configuration is read from config.yaml (or --config) and environment variables.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadFile(cfgFile, version)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			_ = getLogger(cmd.Context()).Sync()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")

	rootCmd.AddCommand(NewVersionCommand(version))
	rootCmd.AddCommand(NewServeCommand(build))
	rootCmd.AddCommand(NewAskCommand(build))
	rootCmd.AddCommand(NewSQLCommand(build))
	rootCmd.AddCommand(NewSchemaCommand(build))
	rootCmd.AddCommand(NewEvalCommand(build))

	return rootCmd
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd := NewRootCmd(version)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return nil
}

func getLogger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// withApp builds the App for a command and closes it when fn returns.
func withApp(cmd *cobra.Command, build BuildFunc, fn func(app *App) error) error {
	ctx := cmd.Context()
	cfg := getConfig(ctx)
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	app, err := build(ctx, cfg, getLogger(ctx))
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
