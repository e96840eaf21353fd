package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	_ "github.com/xkhani/shipping-agent/pkg/adapters/datasource/mssql"
	_ "github.com/xkhani/shipping-agent/pkg/adapters/datasource/postgres"
	"github.com/xkhani/shipping-agent/pkg/audit"
	"github.com/xkhani/shipping-agent/pkg/config"
	"github.com/xkhani/shipping-agent/pkg/database"
	"github.com/xkhani/shipping-agent/pkg/grounding"
	"github.com/xkhani/shipping-agent/pkg/history"
	"github.com/xkhani/shipping-agent/pkg/llm"
	"github.com/xkhani/shipping-agent/pkg/prompts"
	"github.com/xkhani/shipping-agent/pkg/schema"
	"github.com/xkhani/shipping-agent/pkg/services"
)

// App holds the wired components every command draws from.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	// Datasource is nil when the App was assembled by hand in tests.
	Datasource   datasource.Adapter
	Schema       services.SchemaSource
	Generator    services.SQLGenerator
	Executor     *services.Executor
	Agent        *services.Agent
	Analytics    *services.Analytics
	SQLModel     llm.Client
	GeneralModel llm.Client

	closers []func()
}

// BuildFunc assembles an App from configuration.
type BuildFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error)

// NewApp opens the datasource and history store and wires the pipeline.
// The caller must Close the returned App.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	adapter, err := datasource.Open(ctx, cfg.Datasource.Type, cfg.Datasource.ToMap(), logger)
	if err != nil {
		return nil, fmt.Errorf("open datasource: %w", err)
	}
	app.Datasource = adapter
	app.closers = append(app.closers, func() {
		if cerr := adapter.Close(); cerr != nil {
			logger.Warn("Failed to close datasource", zap.Error(cerr))
		}
	})

	app.SQLModel, err = llm.New(modelConfig(cfg, cfg.LLM.SQLModel, cfg.LLM.SQLMaxTokens), logger)
	if err != nil {
		return nil, fmt.Errorf("sql model: %w", err)
	}
	app.GeneralModel, err = llm.New(modelConfig(cfg, cfg.LLM.GeneralModel, cfg.LLM.GeneralMaxTokens), logger)
	if err != nil {
		return nil, fmt.Errorf("general model: %w", err)
	}

	store, err := app.openHistory(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := prompts.LoadRules(cfg.Agent.RulesPath)
	if err != nil {
		return nil, err
	}

	auditor := audit.NewSecurityAuditor(logger)
	validator := services.NewValidator(adapter, logger)
	validator.SetAuditor(auditor)
	app.Executor = services.NewExecutor(adapter, logger)
	app.Executor.SetAuditor(auditor)

	introspector := schema.NewIntrospector(adapter, logger)
	app.Schema = introspector
	app.Generator = services.NewOrchestrator(
		introspector,
		app.SQLModel,
		grounding.NewCorrector(grounding.Options{MaxDistance: cfg.Agent.FuzzyDistance}, logger),
		validator,
		store,
		rules,
		services.OrchestratorConfig{
			MaxAttempts:      cfg.Agent.MaxAttempts,
			FewShotExamples:  cfg.Agent.FewShotExamples,
			NegativeExamples: cfg.Agent.NegativeExamples,
			Timeout:          cfg.LLM.SQLTimeout,
			MaxTokens:        cfg.LLM.SQLMaxTokens,
		},
		logger,
	)

	general := services.NewGeneralAnswerer(app.GeneralModel, services.GeneralConfig{
		Provider:  cfg.LLM.Provider,
		Timeout:   cfg.LLM.GeneralTimeout,
		MaxTokens: cfg.LLM.GeneralMaxTokens,
	}, logger)
	app.Agent = services.NewAgent(services.NewRouter(), app.Generator, app.Executor, general, logger)
	app.Analytics = services.NewAnalytics(app.Executor)

	logger.Info("Agent ready",
		zap.String("datasource", cfg.Datasource.Type),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("sql_model", cfg.LLM.SQLModel),
		zap.String("general_model", cfg.LLM.GeneralModel),
		zap.String("history", cfg.History.Backend))
	return app, nil
}

func modelConfig(cfg *config.Config, model string, maxTokens int) *llm.Config {
	return &llm.Config{
		Provider:         cfg.LLM.Provider,
		Endpoint:         cfg.LLM.BaseURL,
		Model:            model,
		APIKey:           cfg.LLM.APIKey,
		MaxTokens:        maxTokens,
		BreakerThreshold: cfg.LLM.BreakerThreshold,
		BreakerReset:     cfg.LLM.BreakerReset,
	}
}

func (a *App) openHistory(ctx context.Context) (history.Store, error) {
	cfg := a.Config.History
	if cfg.Backend != "postgres" {
		return history.NewFileStore(cfg.AcceptedPath, cfg.RejectedPath, cfg.Limit, a.Logger), nil
	}

	url := cfg.DatabaseURL
	if url == "" {
		if a.Config.Datasource.Type != "postgres" {
			return nil, fmt.Errorf("history backend postgres needs HISTORY_DATABASE_URL when the datasource is %s", a.Config.Datasource.Type)
		}
		url = a.Config.Datasource.ConnectionString()
	}

	db, err := database.NewConnection(ctx, &database.Config{URL: url}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("history database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	if err := database.RunMigrations(ctx, db.SQLDB(), cfg.MigrationsPath, a.Logger); err != nil {
		return nil, fmt.Errorf("history migrations: %w", err)
	}
	return history.NewPostgresStore(db.Pool, cfg.Limit, a.Logger), nil
}

// Close releases the datasource and history connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func modelName(c llm.Client) string {
	if c == nil {
		return ""
	}
	return c.GetModel()
}
