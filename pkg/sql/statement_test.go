package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableSummary(s *Statement) [][2]string {
	var out [][2]string
	for _, ref := range s.Tables {
		out = append(out, [2]string{ref.Name, ref.Alias})
	}
	return out
}

func TestParse_TableRefs(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		want  [][2]string
		first string
	}{
		{
			name:  "single table",
			sql:   "SELECT * FROM shipment",
			want:  [][2]string{{"shipment", ""}},
			first: "shipment",
		},
		{
			name:  "implicit alias and join",
			sql:   `SELECT p.city FROM shipment s JOIN pii p ON p.id = s."shipToId" WHERE s.shipped`,
			want:  [][2]string{{"shipment", "s"}, {"pii", "p"}},
			first: "shipment",
		},
		{
			name:  "explicit alias on reserved table",
			sql:   `SELECT o.id FROM "order" AS o LEFT OUTER JOIN account a ON a.id = o."accountId"`,
			want:  [][2]string{{"order", "o"}, {"account", "a"}},
			first: "order",
		},
		{
			name:  "schema qualified",
			sql:   "SELECT * FROM public.shipment sh",
			want:  [][2]string{{"shipment", "sh"}},
			first: "shipment",
		},
		{
			name:  "comma list",
			sql:   "SELECT * FROM shipment s, courier c WHERE s.id = c.id",
			want:  [][2]string{{"shipment", "s"}, {"courier", "c"}},
			first: "shipment",
		},
		{
			name:  "derived table then real table",
			sql:   "SELECT * FROM (SELECT id FROM account) sub JOIN shipment s ON s.id = sub.id",
			want:  [][2]string{{"", "sub"}, {"account", ""}, {"shipment", "s"}},
			first: "account",
		},
		{
			name:  "keyword after table is not an alias",
			sql:   "SELECT * FROM shipment ORDER BY cost LIMIT 5",
			want:  [][2]string{{"shipment", ""}},
			first: "shipment",
		},
		{
			name:  "extract from is not a table",
			sql:   `SELECT EXTRACT(YEAR FROM "createdAt") FROM shipment`,
			want:  [][2]string{{"shipment", ""}},
			first: "shipment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := Parse(tt.sql)
			assert.Equal(t, tt.want, tableSummary(stmt))
			first := stmt.FirstTable()
			require.NotNil(t, first)
			assert.Equal(t, tt.first, first.Name)
			assert.Equal(t, tt.sql, stmt.String())
		})
	}
}

func TestParse_Roles(t *testing.T) {
	stmt := Parse(`WITH recent AS (SELECT id FROM shipment) SELECT COUNT(*) AS total, CAST(cost AS numeric), "createdAt"::date FROM recent r`)

	roles := map[string]TokenRole{}
	for _, i := range stmt.SigTokens() {
		text := stmt.Tokens[i].Text
		if _, seen := roles[text]; seen {
			continue
		}
		if r := stmt.Role(i); r != RoleNone {
			roles[text] = r
		}
	}

	assert.Equal(t, RoleCTE, roles["recent"])
	assert.Equal(t, RoleOutputAlias, roles["total"])
	assert.Equal(t, RoleType, roles["numeric"])
	assert.Equal(t, RoleType, roles["date"])
	assert.Equal(t, RoleTableAlias, roles["r"])
	assert.Equal(t, RoleFunction, roles["CAST"])
	assert.True(t, stmt.CTENames["recent"])
	assert.True(t, stmt.OutputAliases["total"])
}

func TestParse_JoinSpan(t *testing.T) {
	sql := `SELECT s.id FROM shipment s LEFT JOIN region r ON r.id = s."regionId" AND r.active JOIN pii p ON p.id = s."shipToId" WHERE s.shipped`
	stmt := Parse(sql)
	require.Len(t, stmt.Tables, 3)

	region := stmt.Tables[1]
	require.True(t, region.Join)
	span := Render(stmt.Tokens[region.JoinStart:region.JoinEnd])
	assert.Equal(t, `LEFT JOIN region r ON r.id = s."regionId" AND r.active `, span)

	pii := stmt.Tables[2]
	assert.Equal(t, `JOIN pii p ON p.id = s."shipToId" `, Render(stmt.Tokens[pii.JoinStart:pii.JoinEnd]))
}

func TestParse_JoinSpanInsideSubquery(t *testing.T) {
	sql := "SELECT * FROM (SELECT s.id FROM shipment s JOIN ghost g ON g.id = s.id) x"
	stmt := Parse(sql)

	var ghost *TableRef
	for i := range stmt.Tables {
		if stmt.Tables[i].Name == "ghost" {
			ghost = &stmt.Tables[i]
		}
	}
	require.NotNil(t, ghost)
	assert.Equal(t, "JOIN ghost g ON g.id = s.id", Render(stmt.Tokens[ghost.JoinStart:ghost.JoinEnd]))
}

func TestWhereClauses(t *testing.T) {
	stmt := Parse(`SELECT * FROM shipment s WHERE s.cost BETWEEN 10 AND 20 AND x.region = 'north' OR s.shipped GROUP BY s.id`)
	clauses := stmt.WhereClauses()
	require.Len(t, clauses, 1)

	c := clauses[0]
	require.Len(t, c.Predicates, 3)
	require.Len(t, c.Connectors, 2)

	assert.Equal(t, "s.cost BETWEEN 10 AND 20 ", Render(stmt.Tokens[c.Predicates[0].Start:c.Predicates[0].End]))
	assert.Equal(t, "x.region = 'north' ", Render(stmt.Tokens[c.Predicates[1].Start:c.Predicates[1].End]))
	assert.Equal(t, "s.shipped ", Render(stmt.Tokens[c.Predicates[2].Start:c.Predicates[2].End]))
	assert.True(t, stmt.Tokens[c.End].Is("group"))

	assert.True(t, stmt.References(c.Predicates[1], "X"))
	assert.False(t, stmt.References(c.Predicates[0], "x"))
}

func TestLeadingKeywordAndTopLevel(t *testing.T) {
	stmt := Parse("  select count(*) from shipment where id in (select id from shipment order by id) order by 1")
	assert.Equal(t, "SELECT", stmt.LeadingKeyword())

	idx := stmt.TopLevel("order")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 0, stmt.Depth(idx))
	assert.Equal(t, "order by 1", Render(stmt.Tokens[idx:]))
}
