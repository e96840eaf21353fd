package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/handlers"
	"github.com/xkhani/shipping-agent/pkg/mcp"
	"github.com/xkhani/shipping-agent/pkg/mcp/tools"
	"github.com/xkhani/shipping-agent/pkg/middleware"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(build BuildFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP endpoint",
		Long: `Serve POST /ask, GET /analytics/shipments, GET /health, GET /ping and the
MCP streamable HTTP endpoint at /mcp.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, build, func(app *App) error {
				return serve(ctx, app)
			})
		},
	}
}

func serve(ctx context.Context, app *App) error {
	cfg := app.Config
	logger := app.Logger

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           newHandler(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting shipping-agent",
			zap.String("addr", srv.Addr),
			zap.String("base_url", cfg.BaseURL),
			zap.String("version", cfg.Version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHandler mounts every route and wraps the mux in the middleware chain.
func newHandler(app *App) http.Handler {
	cfg := app.Config
	logger := app.Logger
	mux := http.NewServeMux()

	handlers.NewAskHandler(app.Agent, logger).RegisterRoutes(mux)
	handlers.NewAnalyticsHandler(app.Analytics, logger).RegisterRoutes(mux)

	var tester handlers.ConnectionTester
	if app.Datasource != nil {
		tester = app.Datasource
	}
	handlers.NewHealthHandler(cfg, tester, logger).RegisterRoutes(mux)

	mcpServer := mcp.NewServer(cfg.Version, mcp.NewAuditLogger(logger), logger)
	tools.RegisterAgentTools(mcpServer.MCP(), &tools.AgentToolDeps{
		Agent:     app.Agent,
		Generator: app.Generator,
		Schema:    app.Schema,
		Executor:  app.Executor,
		Logger:    logger,
	})
	tools.RegisterHealthTool(mcpServer.MCP(), tools.HealthToolDeps{
		Version:      cfg.Version,
		SQLModel:     modelName(app.SQLModel),
		GeneralModel: modelName(app.GeneralModel),
	})
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)

	var h http.Handler = mux
	h = middleware.CORS(cfg.Origins())(h)
	h = middleware.RequestLogger(logger)(h)
	h = middleware.RequestID(h)
	h = middleware.Recover(logger)(h)
	return h
}
