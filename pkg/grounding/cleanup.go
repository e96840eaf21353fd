package grounding

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/schema"
	"github.com/xkhani/shipping-agent/pkg/sql"
)

// removeHallucinatedJoins deletes JOIN clauses whose table is neither in the
// schema nor a CTE, then drops WHERE predicates that reference the removed
// table together with the AND/OR that joined them.
func (c *Corrector) removeHallucinatedJoins(query string, lookup *schema.ColumnLookup) string {
	var removed []string
	for {
		stmt := sql.Parse(query)
		ref := hallucinatedJoin(stmt, lookup)
		if ref == nil {
			break
		}
		c.logger.Info("Removing join on unknown table", zap.String("table", ref.Name))
		qualifier := ref.Name
		if ref.Alias != "" {
			qualifier = ref.Alias
		}
		removed = append(removed, qualifier)
		query = sql.Render(mergeWhitespace(splice(stmt.Tokens, ref.JoinStart, ref.JoinEnd, nil)))
	}
	if len(removed) == 0 {
		return query
	}

	for {
		stmt := sql.Parse(query)
		rewritten, ok := dropPredicates(stmt, removed)
		if !ok {
			return query
		}
		query = sql.Render(mergeWhitespace(rewritten))
	}
}

func hallucinatedJoin(stmt *sql.Statement, lookup *schema.ColumnLookup) *sql.TableRef {
	for i := range stmt.Tables {
		ref := &stmt.Tables[i]
		if !ref.Join || ref.Derived || ref.NameTok < 0 || ref.JoinEnd <= ref.JoinStart {
			continue
		}
		if stmt.CTENames[strings.ToLower(ref.Name)] {
			continue
		}
		if _, ok := lookup.Table(ref.Name); ok {
			continue
		}
		return ref
	}
	return nil
}

// dropPredicates rewrites the first WHERE clause that references any of
// qualifiers. It reports false when no clause needed rewriting.
func dropPredicates(stmt *sql.Statement, qualifiers []string) ([]sql.Token, bool) {
	for _, clause := range stmt.WhereClauses() {
		if len(clause.Predicates) == 0 {
			continue
		}
		keep := make([]bool, len(clause.Predicates))
		changed := false
		for j, pred := range clause.Predicates {
			keep[j] = true
			for _, q := range qualifiers {
				if stmt.References(pred, q) {
					keep[j] = false
					changed = true
					break
				}
			}
		}
		if !changed {
			continue
		}
		return rewriteWhere(stmt.Tokens, clause, keep), true
	}
	return nil, false
}

// rewriteWhere rebuilds a WHERE clause from its kept predicates. AND binds
// tighter than OR, so predicates form OR-separated groups: a kept predicate is
// joined to its group by AND and the first kept one of a group is joined to
// the clause by the OR that opened the group. With no predicates left the
// WHERE keyword goes too.
func rewriteWhere(tokens []sql.Token, clause sql.WhereClause, keep []bool) []sql.Token {
	anyKept := false
	for _, k := range keep {
		anyKept = anyKept || k
	}
	if !anyKept {
		return splice(tokens, clause.Keyword, clause.End, nil)
	}

	connector := func(j int) []sql.Token {
		return tokens[clause.Connectors[j]:clause.Predicates[j+1].Start]
	}

	var body []sql.Token
	body = append(body, tokens[clause.Keyword:clause.Predicates[0].Start]...)
	emitted, groupEmitted := false, false
	groupOr := -1
	for j, pred := range clause.Predicates {
		if j > 0 && tokens[clause.Connectors[j-1]].Is("or") {
			groupOr = j - 1
			groupEmitted = false
		}
		if !keep[j] {
			continue
		}
		switch {
		case groupEmitted:
			body = append(body, connector(j-1)...)
		case emitted:
			body = append(body, connector(groupOr)...)
		}
		body = append(body, tokens[pred.Start:pred.End]...)
		emitted, groupEmitted = true, true
	}
	// Keep the whitespace that separated the clause from what follows.
	last := clause.Predicates[len(clause.Predicates)-1]
	if !keep[len(keep)-1] && last.End > 0 && tokens[last.End-1].Kind == sql.TokenWhitespace {
		body = append(body, tokens[last.End-1])
	}
	return splice(tokens, clause.Keyword, clause.End, body)
}

// dropCountOrderBy removes a top-level ORDER BY from an ungrouped
// SELECT COUNT(*) query, where ordering a single row is meaningless.
func (c *Corrector) dropCountOrderBy(query string) string {
	stmt := sql.Parse(query)
	if !isCountStar(stmt) || stmt.TopLevel("group") >= 0 {
		return query
	}
	start := stmt.TopLevel("order")
	if start < 0 {
		return query
	}
	if by := stmt.NextSig(start); by < 0 || !stmt.Tokens[by].Is("by") {
		return query
	}
	end := len(stmt.Tokens)
	for _, i := range stmt.SigTokens() {
		if i <= start || stmt.Depth(i) != 0 {
			continue
		}
		t := stmt.Tokens[i]
		if t.Is("limit") || t.Is("offset") || t.Is("fetch") || t.IsPunct(";") {
			end = i
			break
		}
	}
	c.logger.Debug("Dropped ORDER BY from COUNT(*) query")
	return sql.Render(mergeWhitespace(splice(stmt.Tokens, start, end, nil)))
}

// isCountStar matches SELECT COUNT(*) [[AS] alias] FROM.
func isCountStar(stmt *sql.Statement) bool {
	sig := stmt.SigTokens()
	want := []func(sql.Token) bool{
		func(t sql.Token) bool { return t.Is("select") },
		func(t sql.Token) bool { return t.Is("count") },
		func(t sql.Token) bool { return t.IsPunct("(") },
		func(t sql.Token) bool { return t.IsPunct("*") },
		func(t sql.Token) bool { return t.IsPunct(")") },
	}
	if len(sig) < len(want)+1 {
		return false
	}
	for k, match := range want {
		if !match(stmt.Tokens[sig[k]]) {
			return false
		}
	}
	k := len(want)
	if stmt.Tokens[sig[k]].Is("as") {
		k++
	}
	if k < len(sig) && stmt.Role(sig[k]) == sql.RoleOutputAlias {
		k++
	} else if k < len(sig) && stmt.Tokens[sig[k]].Kind == sql.TokenWord && !stmt.Tokens[sig[k]].Is("from") {
		k++
	}
	return k < len(sig) && stmt.Tokens[sig[k]].Is("from")
}

// splice returns tokens with [start, end) replaced by repl.
func splice(tokens []sql.Token, start, end int, repl []sql.Token) []sql.Token {
	out := make([]sql.Token, 0, len(tokens)-(end-start)+len(repl))
	out = append(out, tokens[:start]...)
	out = append(out, repl...)
	return append(out, tokens[end:]...)
}

// mergeWhitespace collapses runs of whitespace tokens left behind by
// deletions into the first of the run.
func mergeWhitespace(tokens []sql.Token) []sql.Token {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t.Kind == sql.TokenWhitespace && len(out) > 0 && out[len(out)-1].Kind == sql.TokenWhitespace {
			continue
		}
		out = append(out, t)
	}
	return out
}
