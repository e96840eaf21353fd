package datasource

import "context"

// ConnectionTester tests database connectivity.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials
	// and that the configured database is the one we are connected to.
	TestConnection(ctx context.Context) error

	// Close releases the underlying pool.
	Close() error
}

// SchemaDiscoverer reads the user-visible schema from the system catalogs.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas).
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a table in ordinal order, with comments.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all single-column foreign key relationships.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	Close() error
}

// QueryExecutor runs statements against the datasource.
//
// Every call acquires its own connection from the pool and releases it before
// returning, on success and on error.
type QueryExecutor interface {
	// Execute runs the statement unmodified. Rows are returned positionally so
	// column order and duplicate column names survive. Driver-specific values
	// are normalized: fixed-point numerics become float64, UUIDs become strings.
	Execute(ctx context.Context, sqlStatement string) (*ExecuteResult, error)

	// ValidateQuery asks the engine for an execution plan without running the
	// statement. Returns nil if the engine accepts it, a *QueryError otherwise.
	ValidateQuery(ctx context.Context, sqlQuery string) error

	// QuoteIdentifier quotes a SQL identifier in the adapter's dialect.
	QuoteIdentifier(name string) string

	Close() error
}

// Adapter is a datasource that supports every capability the agent needs.
type Adapter interface {
	ConnectionTester
	SchemaDiscoverer
	QueryExecutor
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// ExecuteResult holds the outcome of Execute.
type ExecuteResult struct {
	// HasRows is true when the statement produced a row description,
	// even if zero rows came back.
	HasRows      bool         `json:"has_rows"`
	Columns      []ColumnInfo `json:"columns,omitempty"`
	Rows         [][]any      `json:"rows,omitempty"`
	RowsAffected int64        `json:"rows_affected"`
}

// ColumnNames returns the result column names in order.
func (r *ExecuteResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}
