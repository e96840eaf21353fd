package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/logging"
	"github.com/xkhani/shipping-agent/pkg/retry"
)

// Adapter provides SQL Server connectivity, schema discovery and query
// execution over a database/sql pool.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// buildConnectionString builds a sqlserver:// URL. Credentials go through
// url.UserPassword so special characters survive.
func buildConnectionString(cfg *Config) string {
	query := url.Values{}
	query.Set("database", cfg.Database)
	query.Set("encrypt", strconv.FormatBool(cfg.Encrypt))
	if cfg.TrustServerCertificate {
		query.Set("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Set("connection timeout", strconv.Itoa(cfg.ConnectionTimeout))
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// NewAdapter opens a pool against the configured server. Transient failures
// are retried with backoff.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mssql")

	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %s", logging.SanitizeError(err))
	}
	db.SetMaxOpenConns(cfg.PoolMaxConns)

	_, err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() (struct{}, error) {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("SQL Server not reachable yet",
				zap.String("host", cfg.Host),
				zap.String("error", logging.SanitizeError(err)))
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sql server: %s", logging.SanitizeError(err))
	}

	logger.Info("Connected to datasource",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema))

	return newAdapterFromDB(cfg, db, logger), nil
}

func newAdapterFromDB(cfg *Config, db *sql.DB, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{config: cfg, db: db, logger: logger}
}

// TestConnection verifies the server is reachable and that we landed in the
// configured database rather than the login's default one.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}

	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}

	return nil
}

// Close releases the pool.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

var _ datasource.Adapter = (*Adapter)(nil)
