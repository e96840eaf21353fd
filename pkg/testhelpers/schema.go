package testhelpers

import (
	"context"
	"sync"

	"github.com/xkhani/shipping-agent/pkg/adapters/datasource"
	"github.com/xkhani/shipping-agent/pkg/schema"
)

// ShippingTables mirrors ShippingSchemaSQL as discovered schema.
func ShippingTables() []schema.Table {
	col := func(name, typ string) schema.Column {
		return schema.Column{Name: name, Type: typ, Nullable: true}
	}
	pk := func(name, typ string) schema.Column {
		return schema.Column{Name: name, Type: typ, PrimaryKey: true}
	}
	return []schema.Table{
		{Name: "account", Columns: []schema.Column{
			pk("id", "uuid"), col("title", "text"),
			{Name: "type", Type: "text", Comment: "Account category, e.g. business or personal"},
			col("createdAt", "timestamp with time zone"),
		}},
		{Name: "courier", Columns: []schema.Column{pk("id", "integer"), col("name", "text")}},
		{Name: "pii", Columns: []schema.Column{
			pk("id", "integer"), col("firstName", "text"), col("lastName", "text"),
			col("companyName", "text"), col("address1", "text"),
			{Name: "city", Type: "text", Nullable: true, Comment: "Destination city of the shipping address"},
			col("country", "text"), col("postalCode", "text"), col("email", "text"),
		}},
		{Name: "order", Columns: []schema.Column{
			pk("id", "integer"), col("orderNumber", "text"), col("accountId", "uuid"),
			col("shipToId", "integer"), col("trackingNumber", "text"),
			col("shippingCourier", "text"), col("createdAt", "timestamp with time zone"),
		}},
		{Name: "shipment", Columns: []schema.Column{
			pk("id", "integer"), col("orderId", "integer"), col("courierServiceTypeId", "integer"),
			col("shipToId", "integer"), col("deliveryDate", "date"), col("shipped", "boolean"),
			{Name: "internalStatus", Type: "text", Comment: "Lifecycle status: pending, in_transit, delivered, delayed"},
			col("cost", "numeric"), col("createdAt", "timestamp with time zone"),
		}},
	}
}

// ShippingForeignKeys mirrors the REFERENCES clauses of ShippingSchemaSQL.
func ShippingForeignKeys() []schema.ForeignKey {
	return []schema.ForeignKey{
		{FromTable: "order", FromColumn: "accountId", ToTable: "account", ToColumn: "id"},
		{FromTable: "order", FromColumn: "shipToId", ToTable: "pii", ToColumn: "id"},
		{FromTable: "shipment", FromColumn: "courierServiceTypeId", ToTable: "courier", ToColumn: "id"},
		{FromTable: "shipment", FromColumn: "orderId", ToTable: "order", ToColumn: "id"},
		{FromTable: "shipment", FromColumn: "shipToId", ToTable: "pii", ToColumn: "id"},
	}
}

// FakeDiscoverer serves fixed catalog metadata and counts calls.
type FakeDiscoverer struct {
	Tables      []schema.Table
	ForeignKeys []schema.ForeignKey

	TablesErr      error
	ColumnsErr     error
	ForeignKeysErr error

	mu    sync.Mutex
	calls int
}

// NewShippingDiscoverer returns a FakeDiscoverer over the shipping schema.
func NewShippingDiscoverer() *FakeDiscoverer {
	return &FakeDiscoverer{Tables: ShippingTables(), ForeignKeys: ShippingForeignKeys()}
}

// Calls is the number of catalog reads made so far.
func (f *FakeDiscoverer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeDiscoverer) hit() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *FakeDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	f.hit()
	if f.TablesErr != nil {
		return nil, f.TablesErr
	}
	out := make([]datasource.TableMetadata, 0, len(f.Tables))
	for _, t := range f.Tables {
		out = append(out, datasource.TableMetadata{SchemaName: "public", TableName: t.Name, Comment: t.Comment})
	}
	return out, nil
}

func (f *FakeDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	f.hit()
	if f.ColumnsErr != nil {
		return nil, f.ColumnsErr
	}
	for _, t := range f.Tables {
		if t.Name != tableName {
			continue
		}
		out := make([]datasource.ColumnMetadata, 0, len(t.Columns))
		for i, c := range t.Columns {
			out = append(out, datasource.ColumnMetadata{
				ColumnName:      c.Name,
				DataType:        c.Type,
				IsNullable:      c.Nullable,
				IsPrimaryKey:    c.PrimaryKey,
				OrdinalPosition: i + 1,
				DefaultValue:    c.Default,
				Comment:         c.Comment,
			})
		}
		return out, nil
	}
	return nil, nil
}

func (f *FakeDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	f.hit()
	if f.ForeignKeysErr != nil {
		return nil, f.ForeignKeysErr
	}
	out := make([]datasource.ForeignKeyMetadata, 0, len(f.ForeignKeys))
	for _, fk := range f.ForeignKeys {
		out = append(out, datasource.ForeignKeyMetadata{
			ConstraintName: fk.FromTable + "_" + fk.FromColumn + "_fkey",
			SourceSchema:   "public",
			SourceTable:    fk.FromTable,
			SourceColumn:   fk.FromColumn,
			TargetSchema:   "public",
			TargetTable:    fk.ToTable,
			TargetColumn:   fk.ToColumn,
		})
	}
	return out, nil
}

func (f *FakeDiscoverer) Close() error { return nil }

var _ datasource.SchemaDiscoverer = (*FakeDiscoverer)(nil)
