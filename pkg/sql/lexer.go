package sql

import (
	"strings"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenWhitespace TokenKind = iota
	TokenComment
	TokenWord        // unquoted identifier or keyword
	TokenQuotedIdent // "double quoted" identifier
	TokenString      // 'single quoted' literal
	TokenNumber
	TokenPunct
)

func (k TokenKind) String() string {
	switch k {
	case TokenWhitespace:
		return "whitespace"
	case TokenComment:
		return "comment"
	case TokenWord:
		return "word"
	case TokenQuotedIdent:
		return "quoted_ident"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenPunct:
		return "punct"
	default:
		return "unknown"
	}
}

// Token is one lexeme. Text is the exact source slice, so concatenating the
// Text of every token reproduces the input byte for byte.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int // byte offset in the source
}

// Significant reports whether the token carries meaning (not whitespace or a comment).
func (t Token) Significant() bool {
	return t.Kind != TokenWhitespace && t.Kind != TokenComment
}

// IsIdent reports whether the token names something: a word or a quoted identifier.
func (t Token) IsIdent() bool {
	return t.Kind == TokenWord || t.Kind == TokenQuotedIdent
}

// Is reports whether the token is the unquoted keyword kw, case-insensitively.
func (t Token) Is(kw string) bool {
	return t.Kind == TokenWord && strings.EqualFold(t.Text, kw)
}

// IsPunct reports whether the token is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Kind == TokenPunct && t.Text == p
}

// Ident returns the identifier the token names: quoted identifiers are
// unquoted and unescaped, words are returned as written.
func (t Token) Ident() string {
	if t.Kind != TokenQuotedIdent {
		return t.Text
	}
	s := t.Text
	if len(s) >= 2 && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	} else {
		s = strings.TrimPrefix(s, `"`)
	}
	return strings.ReplaceAll(s, `""`, `"`)
}

// Lower returns the lowercased identifier.
func (t Token) Lower() string {
	return strings.ToLower(t.Ident())
}

// QuoteIdent double-quotes an identifier, escaping embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Render concatenates tokens back into SQL text.
func Render(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

var multiCharPuncts = []string{"::", "<=", ">=", "<>", "!=", "||", "->>", "->"}

// Tokenize splits SQL into a lossless token stream. Unterminated strings,
// identifiers and block comments run to the end of the input.
func Tokenize(input string) []Token {
	var tokens []Token
	pos := 0
	for pos < len(input) {
		start := pos
		ch := input[pos]
		var kind TokenKind

		switch {
		case isSpace(ch):
			for pos < len(input) && isSpace(input[pos]) {
				pos++
			}
			kind = TokenWhitespace

		case ch == '-' && pos+1 < len(input) && input[pos+1] == '-':
			for pos < len(input) && input[pos] != '\n' {
				pos++
			}
			kind = TokenComment

		case ch == '/' && pos+1 < len(input) && input[pos+1] == '*':
			end := strings.Index(input[pos+2:], "*/")
			if end < 0 {
				pos = len(input)
			} else {
				pos += 2 + end + 2
			}
			kind = TokenComment

		case ch == '\'':
			pos = scanQuoted(input, pos, '\'')
			kind = TokenString

		case ch == '"':
			pos = scanQuoted(input, pos, '"')
			kind = TokenQuotedIdent

		case isIdentStart(ch):
			for pos < len(input) && isIdentPart(input[pos]) {
				pos++
			}
			kind = TokenWord

		case isDigit(ch) || (ch == '.' && pos+1 < len(input) && isDigit(input[pos+1])):
			pos = scanNumber(input, pos)
			kind = TokenNumber

		default:
			pos++
			for _, p := range multiCharPuncts {
				if strings.HasPrefix(input[start:], p) {
					pos = start + len(p)
					break
				}
			}
			kind = TokenPunct
		}

		tokens = append(tokens, Token{Kind: kind, Text: input[start:pos], Pos: start})
	}
	return tokens
}

// scanQuoted returns the offset just past a quoted run starting at pos.
// A doubled quote character is an escape, not a terminator.
func scanQuoted(input string, pos int, quote byte) int {
	pos++
	for pos < len(input) {
		if input[pos] == quote {
			if pos+1 < len(input) && input[pos+1] == quote {
				pos += 2
				continue
			}
			return pos + 1
		}
		pos++
	}
	return pos
}

func scanNumber(input string, pos int) int {
	for pos < len(input) && isDigit(input[pos]) {
		pos++
	}
	if pos < len(input) && input[pos] == '.' {
		pos++
		for pos < len(input) && isDigit(input[pos]) {
			pos++
		}
	}
	if pos < len(input) && (input[pos] == 'e' || input[pos] == 'E') {
		next := pos + 1
		if next < len(input) && (input[next] == '+' || input[next] == '-') {
			next++
		}
		if next < len(input) && isDigit(input[next]) {
			pos = next
			for pos < len(input) && isDigit(input[pos]) {
				pos++
			}
		}
	}
	return pos
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Bytes >= 0x80 are treated as letters so UTF-8 identifiers stay whole.
func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}
