// Package grounding repairs model-written SQL against the live schema: it
// fixes table and column spelling and case, quotes identifiers that need it,
// and drops joins to tables that do not exist.
package grounding

import (
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/logging"
	"github.com/xkhani/shipping-agent/pkg/schema"
	"github.com/xkhani/shipping-agent/pkg/sql"
)

// DefaultMaxDistance is the edit distance a column name must stay below to
// be accepted as a fuzzy match.
const DefaultMaxDistance = 2

// Options configures a Corrector.
type Options struct {
	MaxDistance int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{MaxDistance: DefaultMaxDistance}
}

// AliasMap maps a lowercased alias or table token to the lowercased table it
// stands for. CTE names and derived-table aliases map to themselves.
type AliasMap map[string]string

// Corrector rewrites queries so their identifiers match the schema.
// Ground is deterministic and idempotent.
type Corrector struct {
	opts   Options
	logger *zap.Logger
}

// NewCorrector creates a Corrector. A non-positive MaxDistance falls back to
// DefaultMaxDistance.
func NewCorrector(opts Options, logger *zap.Logger) *Corrector {
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = DefaultMaxDistance
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Corrector{opts: opts, logger: logger.Named("grounding")}
}

// Ground returns query with its identifiers grounded in tables. When lookup
// is nil it is built from tables.
func (c *Corrector) Ground(query string, tables []schema.Table, lookup *schema.ColumnLookup) string {
	if strings.TrimSpace(query) == "" {
		return query
	}
	if lookup == nil {
		lookup = schema.NewColumnLookup(tables)
	}

	stmt := sql.Parse(query)
	c.groundTables(stmt, lookup)

	stmt = sql.Parse(stmt.String())
	aliases := buildAliasMap(stmt, lookup)
	c.groundQualifiedColumns(stmt, aliases, lookup)

	stmt = sql.Parse(stmt.String())
	c.groundBareColumns(stmt, aliases, lookup)

	out := c.removeHallucinatedJoins(stmt.String(), lookup)
	out = c.dropCountOrderBy(out)

	out = strings.TrimSpace(out)
	if out != strings.TrimSpace(query) {
		c.logger.Debug("Grounded query",
			zap.String("before", logging.SanitizeQuery(query)),
			zap.String("after", logging.SanitizeQuery(out)))
	}
	return out
}

// groundTables rewrites FROM/JOIN table names to their real names, resolving
// case and singular/plural mismatches, and quotes names that need it.
func (c *Corrector) groundTables(stmt *sql.Statement, lookup *schema.ColumnLookup) {
	for _, ref := range stmt.Tables {
		if ref.Derived || ref.NameTok < 0 || stmt.CTENames[strings.ToLower(ref.Name)] {
			continue
		}
		tok := stmt.Tokens[ref.NameTok]
		real, ok := resolveTable(ref.Name, lookup)
		if !ok {
			if tok.Kind == sql.TokenWord && sql.IsReservedTableName(tok.Text) {
				stmt.Tokens[ref.NameTok] = sql.Token{Kind: sql.TokenQuotedIdent, Text: sql.QuoteIdent(tok.Text), Pos: tok.Pos}
			}
			continue
		}
		text := real
		kind := sql.TokenWord
		if tok.Kind == sql.TokenQuotedIdent || sql.IsReservedTableName(real) || real != strings.ToLower(real) {
			text = sql.QuoteIdent(real)
			kind = sql.TokenQuotedIdent
		}
		if text != tok.Text {
			c.logger.Debug("Corrected table name", zap.String("from", tok.Text), zap.String("to", text))
			stmt.Tokens[ref.NameTok] = sql.Token{Kind: kind, Text: text, Pos: tok.Pos}
		}
	}
}

// resolveTable finds the real table for name, trying its singular and plural
// forms when the name itself is unknown.
func resolveTable(name string, lookup *schema.ColumnLookup) (string, bool) {
	if real, ok := lookup.Table(name); ok {
		return real, true
	}
	lower := strings.ToLower(name)
	for _, form := range []string{inflection.Singular(lower), inflection.Plural(lower)} {
		if form == lower {
			continue
		}
		if real, ok := lookup.Table(form); ok {
			return real, true
		}
	}
	return "", false
}

func buildAliasMap(stmt *sql.Statement, lookup *schema.ColumnLookup) AliasMap {
	aliases := make(AliasMap)
	for cte := range stmt.CTENames {
		aliases[cte] = cte
	}
	for _, ref := range stmt.Tables {
		target := ""
		if !ref.Derived && ref.Name != "" {
			target = strings.ToLower(ref.Name)
			if real, ok := lookup.Table(ref.Name); ok {
				target = strings.ToLower(real)
			}
			aliases[strings.ToLower(ref.Name)] = target
		}
		if ref.Alias != "" {
			alias := strings.ToLower(ref.Alias)
			if target == "" {
				target = alias
			}
			aliases[alias] = target
		}
	}
	return aliases
}

// groundQualifiedColumns fixes every ref.column pair whose ref resolves to a
// table through the alias map.
func (c *Corrector) groundQualifiedColumns(stmt *sql.Statement, aliases AliasMap, lookup *schema.ColumnLookup) {
	for _, i := range stmt.SigTokens() {
		tok := stmt.Tokens[i]
		if !tok.IsIdent() {
			continue
		}
		if r := stmt.Role(i); r == sql.RoleSchema || r == sql.RoleTable {
			continue
		}
		dot := stmt.NextSig(i)
		if dot < 0 || !stmt.Tokens[dot].IsPunct(".") {
			continue
		}
		if p := stmt.PrevSig(i); p >= 0 && stmt.Tokens[p].IsPunct(".") {
			continue
		}
		col := stmt.NextSig(dot)
		if col < 0 || !stmt.Tokens[col].IsIdent() {
			continue
		}
		if after := stmt.NextSig(col); after >= 0 && (stmt.Tokens[after].IsPunct("(") || stmt.Tokens[after].IsPunct(".")) {
			continue
		}

		table, ok := aliases[tok.Lower()]
		if !ok {
			real, known := lookup.Table(tok.Ident())
			if !known {
				continue
			}
			table = strings.ToLower(real)
		}
		c.replaceColumn(stmt, col, []string{table}, lookup)
	}
}

// groundBareColumns fixes unqualified identifiers that name a column of the
// main FROM table or, failing that, of any referenced table.
func (c *Corrector) groundBareColumns(stmt *sql.Statement, aliases AliasMap, lookup *schema.ColumnLookup) {
	candidates := candidateTables(stmt, lookup)
	if len(candidates) == 0 {
		return
	}
	for _, i := range stmt.SigTokens() {
		tok := stmt.Tokens[i]
		if tok.Kind != sql.TokenWord && tok.Kind != sql.TokenQuotedIdent {
			continue
		}
		if stmt.Role(i) != sql.RoleNone {
			continue
		}
		if tok.Kind == sql.TokenWord && sql.IsKeyword(tok.Text) {
			continue
		}
		if p := stmt.PrevSig(i); p >= 0 && (stmt.Tokens[p].IsPunct(".") || stmt.Tokens[p].IsPunct("::")) {
			continue
		}
		if n := stmt.NextSig(i); n >= 0 && (stmt.Tokens[n].IsPunct(".") || stmt.Tokens[n].IsPunct("(")) {
			continue
		}
		name := tok.Lower()
		if _, ok := aliases[name]; ok {
			continue
		}
		if stmt.OutputAliases[name] || stmt.CTENames[name] {
			continue
		}
		if _, ok := lookup.Table(name); ok {
			continue
		}
		c.replaceColumn(stmt, i, candidates, lookup)
	}
}

// candidateTables lists the lowercased real tables a bare column may belong
// to: the main FROM table first, then every other referenced table.
func candidateTables(stmt *sql.Statement, lookup *schema.ColumnLookup) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(ref *sql.TableRef) {
		if ref == nil || ref.Derived {
			return
		}
		real, ok := lookup.Table(ref.Name)
		if !ok {
			return
		}
		lower := strings.ToLower(real)
		if !seen[lower] {
			seen[lower] = true
			out = append(out, lower)
		}
	}
	add(stmt.FirstTable())
	for i := range stmt.Tables {
		add(&stmt.Tables[i])
	}
	return out
}

// replaceColumn rewrites token i to the quoted real column it matches in the
// first of tables that has an exact or fuzzy match. It leaves the token
// alone when nothing matches.
func (c *Corrector) replaceColumn(stmt *sql.Statement, i int, tables []string, lookup *schema.ColumnLookup) {
	tok := stmt.Tokens[i]
	name := tok.Ident()
	for _, table := range tables {
		real, ok := lookup.Column(table, name)
		if !ok {
			var dist int
			real, dist, ok = closest(name, lookup.Columns(table), c.opts.MaxDistance)
			if ok {
				c.logger.Debug("Fuzzy column match",
					zap.String("table", table),
					zap.String("from", name),
					zap.String("to", real),
					zap.Int("distance", dist))
			}
		}
		if !ok {
			continue
		}
		if quoted := sql.QuoteIdent(real); quoted != tok.Text {
			stmt.Tokens[i] = sql.Token{Kind: sql.TokenQuotedIdent, Text: quoted, Pos: tok.Pos}
		}
		return
	}
}
