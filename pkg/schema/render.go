package schema

import (
	"fmt"
	"strings"

	"github.com/xkhani/shipping-agent/pkg/sql"
)

// Render formats tables as CREATE TABLE blocks followed by one
// "-- from.col -> to.col" line per foreign key. Column names are quoted so
// the model copies their exact case.
func Render(tables []Table, fks []ForeignKey) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		if t.Comment != "" {
			fmt.Fprintf(&b, "-- %s\n", oneLine(t.Comment))
		}
		fmt.Fprintf(&b, "CREATE TABLE %s (\n", tableName(t.Name))
		for j, c := range t.Columns {
			b.WriteString("  ")
			b.WriteString(sql.QuoteIdent(c.Name))
			b.WriteString(" ")
			b.WriteString(c.Type)
			if c.PrimaryKey {
				b.WriteString(" PRIMARY KEY")
			} else if !c.Nullable {
				b.WriteString(" NOT NULL")
			}
			if c.Default != nil && *c.Default != "" {
				b.WriteString(" DEFAULT ")
				b.WriteString(*c.Default)
			}
			if j < len(t.Columns)-1 {
				b.WriteString(",")
			}
			if c.Comment != "" {
				b.WriteString(" -- ")
				b.WriteString(oneLine(c.Comment))
			}
			b.WriteString("\n")
		}
		b.WriteString(");\n")
	}

	if len(fks) > 0 {
		b.WriteString("\n")
		for _, fk := range fks {
			fmt.Fprintf(&b, "-- %s.%s -> %s.%s\n", fk.FromTable, fk.FromColumn, fk.ToTable, fk.ToColumn)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func tableName(name string) string {
	if sql.IsReservedTableName(name) || name != strings.ToLower(name) {
		return sql.QuoteIdent(name)
	}
	return name
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
