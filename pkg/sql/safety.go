package sql

import (
	"fmt"
	"strings"

	"github.com/xkhani/shipping-agent/pkg/apperrors"
)

// UnsafeQueryMessage is the fixed message returned when the read-only gate rejects a statement.
const UnsafeQueryMessage = "Unsafe query detected: Only SELECT or WITH statements are allowed."

// writeWords mark a statement that writes, changes schema or runs procedures.
// SELECT ... INTO creates a table, so INTO is here too. Grounded columns are
// quoted identifiers, so a real column with one of these names is not a word.
var writeWords = toSet(
	"insert", "update", "delete", "merge", "truncate", "drop", "alter", "create",
	"grant", "revoke", "call", "exec", "execute", "into",
)

// CheckReadOnly is the safety gate in front of every database call. The
// statement must be a single SELECT, or a WITH whose main statement is a
// SELECT, with no data-modifying CTEs and no literal that looks like an
// injection payload. Failures wrap apperrors.ErrUnsafeQuery.
func CheckReadOnly(sqlQuery string) error {
	norm := ValidateAndNormalize(sqlQuery)
	if norm.Error != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnsafeQuery, norm.Error)
	}
	if norm.NormalizedSQL == "" {
		return fmt.Errorf("%w: empty statement", apperrors.ErrUnsafeQuery)
	}

	stmt := Parse(norm.NormalizedSQL)
	switch stmt.LeadingKeyword() {
	case "SELECT":
	case "WITH":
		if main := mainStatementKeyword(stmt); main != "SELECT" {
			return fmt.Errorf("%w: WITH must lead into SELECT, found %q", apperrors.ErrUnsafeQuery, main)
		}
	default:
		return fmt.Errorf("%w: statement starts with %q", apperrors.ErrUnsafeQuery, stmt.LeadingKeyword())
	}

	for _, i := range stmt.SigTokens() {
		t := stmt.Tokens[i]
		if inSet(writeWords, t) {
			return fmt.Errorf("%w: %s is not allowed", apperrors.ErrUnsafeQuery, strings.ToUpper(t.Text))
		}
		// FOR SHARE and FOR KEY SHARE take row locks; FOR UPDATE is caught above.
		if t.Is("for") {
			if n := stmt.NextSig(i); n >= 0 && (stmt.Tokens[n].Is("share") || stmt.Tokens[n].Is("key")) {
				return fmt.Errorf("%w: row locking clause is not allowed", apperrors.ErrUnsafeQuery)
			}
		}
	}

	if flagged := CheckLiterals(norm.NormalizedSQL); len(flagged) > 0 {
		return fmt.Errorf("%w: literal %q matches injection fingerprint %s",
			apperrors.ErrUnsafeQuery, flagged[0].Literal, flagged[0].Fingerprint)
	}

	return nil
}

// IsReadOnly is CheckReadOnly as a predicate.
func IsReadOnly(sqlQuery string) bool {
	return CheckReadOnly(sqlQuery) == nil
}

// mainStatementKeyword skips the CTE list of a WITH statement and returns
// the keyword of the statement it leads into.
func mainStatementKeyword(stmt *Statement) string {
	for _, i := range stmt.SigTokens()[1:] {
		if stmt.Depth(i) != 0 {
			continue
		}
		t := stmt.Tokens[i]
		if t.Kind != TokenWord {
			continue
		}
		switch strings.ToLower(t.Text) {
		case "select", "insert", "update", "delete", "merge", "values", "table":
			return strings.ToUpper(t.Text)
		}
	}
	return ""
}
