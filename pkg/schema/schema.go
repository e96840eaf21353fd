// Package schema reads the live database catalog and renders it for prompts.
package schema

import (
	"strings"
)

// Column is one column of a discovered table.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	Default    *string
	Comment    string
	PrimaryKey bool
}

// Table is a discovered table with its columns in ordinal order.
type Table struct {
	Name    string
	Comment string
	Columns []Column
}

// ForeignKey is a single-column relationship between two tables.
type ForeignKey struct {
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// Snapshot is the schema as seen by one generation request.
type Snapshot struct {
	Text        string
	Tables      []Table
	ForeignKeys []ForeignKey
	Lookup      *ColumnLookup
}

type columnKey struct {
	table  string
	column string
}

// ColumnLookup maps lowercased (table, column) pairs to the column's real
// name. It is built once from a snapshot and never modified.
type ColumnLookup struct {
	canonical map[columnKey]string
	tables    map[string]string   // lowercased -> real table name
	columns   map[string][]string // lowercased table -> real column names in order
	order     []string            // real table names in discovery order
}

// NewColumnLookup indexes every column of every table.
func NewColumnLookup(tables []Table) *ColumnLookup {
	l := &ColumnLookup{
		canonical: make(map[columnKey]string),
		tables:    make(map[string]string, len(tables)),
		columns:   make(map[string][]string, len(tables)),
	}
	for _, t := range tables {
		tl := strings.ToLower(t.Name)
		if _, dup := l.tables[tl]; !dup {
			l.order = append(l.order, t.Name)
		}
		l.tables[tl] = t.Name
		for _, c := range t.Columns {
			key := columnKey{table: tl, column: strings.ToLower(c.Name)}
			if _, dup := l.canonical[key]; dup {
				continue
			}
			l.canonical[key] = c.Name
			l.columns[tl] = append(l.columns[tl], c.Name)
		}
	}
	return l
}

// Column returns the real name of column in table, matched case-insensitively.
func (l *ColumnLookup) Column(table, column string) (string, bool) {
	if l == nil {
		return "", false
	}
	name, ok := l.canonical[columnKey{table: strings.ToLower(table), column: strings.ToLower(column)}]
	return name, ok
}

// Columns returns the real column names of table in ordinal order.
func (l *ColumnLookup) Columns(table string) []string {
	if l == nil {
		return nil
	}
	return l.columns[strings.ToLower(table)]
}

// Table returns the real name of a table, matched case-insensitively.
func (l *ColumnLookup) Table(name string) (string, bool) {
	if l == nil {
		return "", false
	}
	real, ok := l.tables[strings.ToLower(name)]
	return real, ok
}

// Tables returns every real table name in discovery order.
func (l *ColumnLookup) Tables() []string {
	if l == nil {
		return nil
	}
	return l.order
}

// Len is the number of indexed columns.
func (l *ColumnLookup) Len() int {
	if l == nil {
		return 0
	}
	return len(l.canonical)
}
