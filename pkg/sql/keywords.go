package sql

import "strings"

// reservedTableNames are words PostgreSQL refuses as bare table names.
var reservedTableNames = toSet(
	"order", "user", "group", "select", "where", "limit", "offset",
	"index", "column", "table", "from", "join", "by", "for",
)

// keywords are never treated as column references.
var keywords = toSet(
	"select", "from", "join", "where", "and", "or", "not", "as", "on", "in", "is", "null", "true", "false",
	"like", "ilike", "between", "case", "when", "then", "else", "end", "count", "sum", "avg", "min", "max",
	"distinct", "union", "except", "intersect", "having", "with", "values", "insert", "update", "delete",
	"set", "alter", "drop", "create", "table", "column", "view", "index", "function", "cast", "to",
	"now", "current_date", "current_timestamp", "date_trunc", "extract", "to_char", "nulls", "last", "first",
	"asc", "desc", "limit", "offset",
	// join and window vocabulary
	"inner", "left", "right", "full", "outer", "cross", "natural", "using", "lateral",
	"over", "partition", "filter", "all", "any", "some", "exists", "interval",
	"rows", "range", "unbounded", "preceding", "following", "current", "row",
	"year", "month", "day", "hour", "minute", "second", "week", "quarter", "epoch",
	// type names in literals and casts
	"date", "time", "timestamp", "timestamptz", "array", "boolean", "integer", "int",
	"bigint", "numeric", "decimal", "text", "varchar", "zone", "at",
)

func init() {
	for name := range reservedTableNames {
		keywords[name] = struct{}{}
	}
}

// sqlVerbs are the statement-leading keywords accepted by Extract.
var sqlVerbs = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "ALTER", "DROP",
	"WITH", "TRUNCATE", "CALL", "EXEC",
}

// clauseKeywords end a table reference: a word from this set after a table
// name is never its implicit alias.
var clauseKeywords = toSet(
	"where", "join", "inner", "left", "right", "full", "outer", "cross", "natural",
	"on", "using", "group", "order", "limit", "offset", "having", "union", "except",
	"intersect", "window", "fetch", "for", "as", "returning", "lateral", "tablesample",
)

// joinTerminators end the span of a JOIN clause.
var joinTerminators = toSet(
	"join", "inner", "left", "right", "full", "cross", "natural",
	"where", "group", "order", "limit", "offset", "having",
	"union", "except", "intersect", "window", "fetch", "for",
)

// whereTerminators end a WHERE clause.
var whereTerminators = toSet(
	"group", "order", "limit", "offset", "having",
	"union", "except", "intersect", "window", "fetch", "for", "returning",
)

var joinModifiers = toSet("inner", "left", "right", "full", "outer", "cross", "natural")

// IsReservedTableName reports whether name must be quoted when used as a table.
func IsReservedTableName(name string) bool {
	_, ok := reservedTableNames[strings.ToLower(name)]
	return ok
}

// IsKeyword reports whether word is a SQL keyword that never names a column.
func IsKeyword(word string) bool {
	_, ok := keywords[strings.ToLower(word)]
	return ok
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, t Token) bool {
	if t.Kind != TokenWord {
		return false
	}
	_, ok := set[strings.ToLower(t.Text)]
	return ok
}
