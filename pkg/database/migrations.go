package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// AgentSchema holds the agent's own tables, apart from the schema that is
// introspected for questions.
const AgentSchema = "agent"

// RunMigrations executes pending migrations from migrationsPath. The
// migration bookkeeping table lives in AgentSchema so it never shows up in
// the introspected schema. Safe to call on every start.
func RunMigrations(ctx context.Context, db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+AgentSchema); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", AgentSchema, err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{SchemaName: AgentSchema})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if err == migrate.ErrNoChange {
		logger.Info("No migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	logger.Info("Applied migrations successfully", zap.Uint("version", newVersion))
	return nil
}
