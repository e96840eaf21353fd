package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a string literal libinjection flagged.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Literal     string // The unquoted literal that was checked
	Pos         int    // Byte offset of the literal in the statement
}

// CheckLiteralForInjection runs libinjection over one literal value.
// Returns nil if no injection is detected.
//
// Example:
//
//	CheckLiteralForInjection("pending", 0)               // nil
//	CheckLiteralForInjection("'; DROP TABLE users--", 0) // IsSQLi == true
func CheckLiteralForInjection(value string, pos int) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Literal:     value,
		Pos:         pos,
	}
}

// CheckLiterals checks every string literal in the statement. A generated
// statement should only ever compare against plain values; a literal that
// itself looks like SQL means the text was smuggled in through the question.
func CheckLiterals(sqlQuery string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, t := range Tokenize(sqlQuery) {
		if t.Kind != TokenString {
			continue
		}
		if result := CheckLiteralForInjection(unquoteLiteral(t.Text), t.Pos); result != nil {
			results = append(results, result)
		}
	}
	return results
}

func unquoteLiteral(text string) string {
	if len(text) >= 2 && text[len(text)-1] == '\'' {
		text = text[1 : len(text)-1]
	} else if len(text) > 0 {
		text = text[1:]
	}
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		out = append(out, text[i])
		if text[i] == '\'' && i+1 < len(text) && text[i+1] == '\'' {
			i++
		}
	}
	return string(out)
}
