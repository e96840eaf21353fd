package schema

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/apperrors"
	"github.com/xkhani/shipping-agent/pkg/logging"
)

// ErrorTextPrefix starts the schema text of a failed introspection.
const ErrorTextPrefix = "[ERROR] Failed to load schema: "

// Introspector builds a fresh Snapshot from the system catalogs on every
// call. It holds no state of its own and is safe for concurrent use.
type Introspector struct {
	discoverer datasource.SchemaDiscoverer
	logger     *zap.Logger
}

// NewIntrospector creates an Introspector over a datasource's catalog reader.
func NewIntrospector(discoverer datasource.SchemaDiscoverer, logger *zap.Logger) *Introspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Introspector{discoverer: discoverer, logger: logger.Named("schema")}
}

// FetchSchema reads tables, columns, comments and foreign keys. On failure
// the returned snapshot still carries the "[ERROR] Failed to load schema"
// text, and the error wraps apperrors.ErrSchemaUnavailable.
func (i *Introspector) FetchSchema(ctx context.Context) (*Snapshot, error) {
	snap, err := i.fetch(ctx)
	if err != nil {
		i.logger.Error("Schema introspection failed", zap.String("error", logging.SanitizeError(err)))
		return &Snapshot{Text: ErrorTextPrefix + logging.SanitizeError(err)}, fmt.Errorf("%w: %v", apperrors.ErrSchemaUnavailable, err)
	}
	return snap, nil
}

func (i *Introspector) fetch(ctx context.Context) (*Snapshot, error) {
	tableMeta, err := i.discoverer.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}
	if len(tableMeta) == 0 {
		return nil, fmt.Errorf("no user tables visible")
	}

	tables := make([]Table, 0, len(tableMeta))
	known := make(map[string]bool, len(tableMeta))
	for _, tm := range tableMeta {
		cols, err := i.discoverer.DiscoverColumns(ctx, tm.SchemaName, tm.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns of %s: %w", tm.TableName, err)
		}
		t := Table{Name: tm.TableName, Comment: tm.Comment, Columns: make([]Column, 0, len(cols))}
		for _, c := range cols {
			t.Columns = append(t.Columns, Column{
				Name:       c.ColumnName,
				Type:       c.DataType,
				Nullable:   c.IsNullable,
				Default:    c.DefaultValue,
				Comment:    c.Comment,
				PrimaryKey: c.IsPrimaryKey,
			})
		}
		tables = append(tables, t)
		known[strings.ToLower(tm.TableName)] = true
	}

	fkMeta, err := i.discoverer.DiscoverForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover foreign keys: %w", err)
	}
	var fks []ForeignKey
	for _, fk := range fkMeta {
		if !known[strings.ToLower(fk.SourceTable)] || !known[strings.ToLower(fk.TargetTable)] {
			continue
		}
		fks = append(fks, ForeignKey{
			FromTable:  fk.SourceTable,
			FromColumn: fk.SourceColumn,
			ToTable:    fk.TargetTable,
			ToColumn:   fk.TargetColumn,
		})
	}

	lookup := NewColumnLookup(tables)
	i.logger.Debug("Schema loaded",
		zap.Int("tables", len(tables)),
		zap.Int("columns", lookup.Len()),
		zap.Int("foreign_keys", len(fks)))

	return &Snapshot{
		Text:        Render(tables, fks),
		Tables:      tables,
		ForeignKeys: fks,
		Lookup:      lookup,
	}, nil
}
