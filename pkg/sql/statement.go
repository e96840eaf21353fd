package sql

import "strings"

// TokenRole records what a significant token names in its statement.
type TokenRole int

const (
	RoleNone        TokenRole = iota
	RoleTable                 // table name in FROM or JOIN
	RoleSchema                // schema qualifier of a table name
	RoleTableAlias            // alias of a FROM or JOIN item
	RoleCTE                   // name of a WITH query
	RoleOutputAlias           // select-list alias after AS
	RoleType                  // type name after :: or inside CAST(... AS type)
	RoleFunction              // identifier immediately followed by "("
)

// TableRef is one FROM or JOIN item.
type TableRef struct {
	// Name is the table name as written, unquoted. For derived tables and
	// table functions it is empty or the function name.
	Name      string
	NameTok   int // token index of the name, -1 for subqueries
	SchemaTok int // token index of the schema qualifier, -1 if unqualified
	Alias     string
	AliasTok  int // -1 when there is no alias
	Derived   bool

	Join bool
	// JoinStart and JoinEnd delimit the whole JOIN clause, join modifiers and
	// ON condition included, as a half-open token range.
	JoinStart int
	JoinEnd   int
}

// Span is a half-open token range.
type Span struct {
	Start int
	End   int
}

// WhereClause is a WHERE keyword and its predicates split at top-level AND/OR.
type WhereClause struct {
	Keyword    int
	End        int
	Predicates []Span
	// Connectors[i] is the AND/OR between Predicates[i] and Predicates[i+1].
	Connectors []int
}

// Statement is a token stream plus the minimal tree needed to reason about
// table references: FROM/JOIN items, aliases, CTE names and WHERE predicates.
// Subqueries contribute their items too; the tree is flat.
type Statement struct {
	Tokens        []Token
	Tables        []TableRef
	CTENames      map[string]bool // lowercased
	OutputAliases map[string]bool // lowercased

	sig   []int // indices of significant tokens
	pos   map[int]int
	depth []int
	roles map[int]TokenRole
}

type parenKind int

const (
	parenExpr parenKind = iota
	parenSubquery
	parenCast
)

type parenFrame struct {
	kind    parenKind
	derived int // index into Tables of the derived item this paren opens, or -1
	inFrom  bool
}

// Parse tokenizes and analyzes a statement. It never fails: anything it does
// not understand is left as plain tokens.
func Parse(text string) *Statement {
	s := &Statement{
		Tokens:        Tokenize(text),
		CTENames:      make(map[string]bool),
		OutputAliases: make(map[string]bool),
		roles:         make(map[int]TokenRole),
	}
	s.index()
	s.parse()
	return s
}

// String renders the current tokens.
func (s *Statement) String() string {
	return Render(s.Tokens)
}

// Role returns what token i names, if anything.
func (s *Statement) Role(i int) TokenRole {
	return s.roles[i]
}

// Depth returns the parenthesis nesting of token i. Parentheses carry the
// depth of the expression that contains them.
func (s *Statement) Depth(i int) int {
	return s.depth[i]
}

// NextSig returns the index of the next significant token after i, or -1.
func (s *Statement) NextSig(i int) int {
	k, ok := s.pos[i]
	if !ok {
		for j := i + 1; j < len(s.Tokens); j++ {
			if s.Tokens[j].Significant() {
				return j
			}
		}
		return -1
	}
	if k+1 < len(s.sig) {
		return s.sig[k+1]
	}
	return -1
}

// PrevSig returns the index of the previous significant token before i, or -1.
func (s *Statement) PrevSig(i int) int {
	for j := i - 1; j >= 0; j-- {
		if s.Tokens[j].Significant() {
			return j
		}
	}
	return -1
}

// FirstSig returns the index of the first significant token, or -1.
func (s *Statement) FirstSig() int {
	if len(s.sig) == 0 {
		return -1
	}
	return s.sig[0]
}

// SigTokens returns the indices of all significant tokens in order.
func (s *Statement) SigTokens() []int {
	return s.sig
}

// LeadingKeyword returns the first significant word, uppercased.
func (s *Statement) LeadingKeyword() string {
	if i := s.FirstSig(); i >= 0 && s.Tokens[i].Kind == TokenWord {
		return strings.ToUpper(s.Tokens[i].Text)
	}
	return ""
}

// FirstTable returns the first FROM item that names a real table, or nil.
func (s *Statement) FirstTable() *TableRef {
	for i := range s.Tables {
		if !s.Tables[i].Derived && !s.Tables[i].Join {
			return &s.Tables[i]
		}
	}
	return nil
}

// TopLevel returns the index of the first depth-zero occurrence of keyword kw, or -1.
func (s *Statement) TopLevel(kw string) int {
	for _, i := range s.sig {
		if s.depth[i] == 0 && s.Tokens[i].Is(kw) {
			return i
		}
	}
	return -1
}

// ClauseEnd scans forward from token start and returns the index of the
// first token that ends the clause: a word from terminators at the same
// depth, a closing parenthesis of the enclosing expression, or ";".
// Returns len(Tokens) when the clause runs to the end.
func (s *Statement) ClauseEnd(start int, terminators map[string]struct{}) int {
	d := s.depth[start]
	for i := start + 1; i < len(s.Tokens); i++ {
		t := s.Tokens[i]
		if !t.Significant() {
			continue
		}
		if s.depth[i] < d || (s.depth[i] == d && t.IsPunct(";")) {
			return i
		}
		if s.depth[i] == d && inSet(terminators, t) {
			return i
		}
	}
	return len(s.Tokens)
}

// WhereClauses returns every WHERE clause, outermost first by position.
func (s *Statement) WhereClauses() []WhereClause {
	var clauses []WhereClause
	for _, i := range s.sig {
		if !s.Tokens[i].Is("where") {
			continue
		}
		c := WhereClause{Keyword: i, End: s.ClauseEnd(i, whereTerminators)}
		d := s.depth[i]

		start := -1
		inBetween := false
		for j := i + 1; j < c.End; j++ {
			t := s.Tokens[j]
			if !t.Significant() {
				continue
			}
			if start < 0 {
				start = j
			}
			if s.depth[j] != d {
				continue
			}
			switch {
			case t.Is("between"):
				inBetween = true
			case t.Is("and") && inBetween:
				inBetween = false
			case t.Is("and") || t.Is("or"):
				c.Predicates = append(c.Predicates, Span{Start: start, End: j})
				c.Connectors = append(c.Connectors, j)
				start = -1
			}
		}
		if start >= 0 {
			c.Predicates = append(c.Predicates, Span{Start: start, End: c.End})
		}
		clauses = append(clauses, c)
	}
	return clauses
}

// References reports whether span contains a column reference qualified by
// qualifier (compared case-insensitively), such as x.region for "x".
func (s *Statement) References(span Span, qualifier string) bool {
	qualifier = strings.ToLower(qualifier)
	for i := span.Start; i < span.End && i < len(s.Tokens); i++ {
		t := s.Tokens[i]
		if !t.IsIdent() || t.Lower() != qualifier {
			continue
		}
		if n := s.NextSig(i); n >= 0 && s.Tokens[n].IsPunct(".") {
			return true
		}
	}
	return false
}

func (s *Statement) index() {
	s.pos = make(map[int]int, len(s.Tokens))
	s.depth = make([]int, len(s.Tokens))
	d := 0
	for i, t := range s.Tokens {
		if t.IsPunct(")") && d > 0 {
			d--
		}
		s.depth[i] = d
		if t.IsPunct("(") {
			d++
		}
		if t.Significant() {
			s.pos[i] = len(s.sig)
			s.sig = append(s.sig, i)
		}
	}
}

func (s *Statement) tok(k int) Token {
	if k < 0 || k >= len(s.sig) {
		return Token{Kind: TokenWhitespace}
	}
	return s.Tokens[s.sig[k]]
}

func (s *Statement) parse() {
	var stack []parenFrame
	pending := -1 // derived item waiting for its opening paren
	pendingInFrom := false

	for k := 0; k < len(s.sig); k++ {
		i := s.sig[k]
		t := s.Tokens[i]

		switch {
		case t.IsPunct("("):
			frame := parenFrame{kind: parenExpr, derived: -1}
			next := s.tok(k + 1)
			prev := s.tok(k - 1)
			switch {
			case next.Is("select") || next.Is("with"):
				frame.kind = parenSubquery
			case prev.Is("cast"):
				frame.kind = parenCast
			}
			if pending >= 0 {
				frame.derived = pending
				frame.inFrom = pendingInFrom
				pending = -1
			}
			stack = append(stack, frame)

		case t.IsPunct(")"):
			if len(stack) == 0 {
				continue
			}
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if frame.derived >= 0 {
				k, pending, pendingInFrom = s.finishRef(k, frame.derived, frame.inFrom)
			}

		case t.IsPunct("::"):
			if n := k + 1; s.tok(n).IsIdent() {
				s.roles[s.sig[n]] = RoleType
			}

		case t.Is("as"):
			next := s.tok(k + 1)
			if len(stack) > 0 && stack[len(stack)-1].kind == parenCast {
				if next.IsIdent() {
					s.roles[s.sig[k+1]] = RoleType
				}
				continue
			}
			if next.IsPunct("(") {
				if prev := s.tok(k - 1); prev.IsIdent() {
					s.CTENames[prev.Lower()] = true
					s.roles[s.sig[k-1]] = RoleCTE
				}
				continue
			}
			if next.IsIdent() {
				s.OutputAliases[next.Lower()] = true
				s.roles[s.sig[k+1]] = RoleOutputAlias
				k++
			}

		case t.Is("from"):
			if len(stack) > 0 && stack[len(stack)-1].kind != parenSubquery {
				continue // EXTRACT(x FROM y), SUBSTRING(x FROM n)
			}
			if s.tok(k-1).Is("distinct") {
				continue // IS DISTINCT FROM
			}
			k, pending, pendingInFrom = s.parseRef(k+1, false, -1)

		case t.Is("join"):
			start := i
			for p := k - 1; p >= 0 && inSet(joinModifiers, s.tok(p)); p-- {
				start = s.sig[p]
			}
			k, pending, pendingInFrom = s.parseRef(k+1, true, start)

		case t.IsIdent() && s.tok(k+1).IsPunct("(") && s.roles[i] == RoleNone:
			s.roles[i] = RoleFunction
		}
	}
}

// parseRef parses one FROM/JOIN item starting at significant position k.
// It returns the last consumed position and, for subqueries and table
// functions, the index of the item whose paren the main loop must open.
func (s *Statement) parseRef(k int, join bool, joinStart int) (last int, pending int, inFrom bool) {
	if s.tok(k).Is("lateral") || s.tok(k).Is("only") {
		k++
	}
	if k >= len(s.sig) {
		return k - 1, -1, false
	}

	ref := TableRef{NameTok: -1, SchemaTok: -1, AliasTok: -1, Join: join, JoinStart: joinStart}
	t := s.tok(k)

	switch {
	case t.IsPunct("("):
		ref.Derived = true
		s.Tables = append(s.Tables, ref)
		return k - 1, len(s.Tables) - 1, !join

	case t.IsIdent():
		if s.tok(k+1).IsPunct(".") && s.tok(k+2).IsIdent() {
			ref.SchemaTok = s.sig[k]
			s.roles[s.sig[k]] = RoleSchema
			k += 2
		}
		ref.NameTok = s.sig[k]
		ref.Name = s.tok(k).Ident()

		if s.tok(k + 1).IsPunct("(") {
			ref.Derived = true
			s.roles[ref.NameTok] = RoleFunction
			s.Tables = append(s.Tables, ref)
			return k, len(s.Tables) - 1, !join
		}
		s.roles[ref.NameTok] = RoleTable
		s.Tables = append(s.Tables, ref)
		return s.finishRef(k, len(s.Tables)-1, !join)

	default:
		return k - 1, -1, false
	}
}

// finishRef reads the alias after position k for item idx, closes the JOIN
// span, and continues a comma-separated FROM list.
func (s *Statement) finishRef(k int, idx int, inFrom bool) (last int, pending int, pendingInFrom bool) {
	ref := &s.Tables[idx]

	next := s.tok(k + 1)
	switch {
	case next.Is("as") && s.tok(k+2).IsIdent():
		k += 2
		ref.AliasTok = s.sig[k]
	case next.Kind == TokenQuotedIdent || (next.Kind == TokenWord && !inSet(clauseKeywords, next)):
		k++
		ref.AliasTok = s.sig[k]
	}
	if ref.AliasTok >= 0 {
		ref.Alias = s.Tokens[ref.AliasTok].Ident()
		s.roles[ref.AliasTok] = RoleTableAlias
	}

	if ref.Join {
		ref.JoinEnd = s.joinEnd(ref.JoinStart)
	}

	if inFrom && s.tok(k+1).IsPunct(",") {
		return s.parseRef(k+2, false, -1)
	}
	return k, -1, false
}

// joinEnd returns the end of the JOIN clause that starts at token start.
func (s *Statement) joinEnd(start int) int {
	d := s.depth[start]
	// Skip past the JOIN keyword itself so it is not taken as a terminator.
	i := start
	for ; i < len(s.Tokens); i++ {
		if s.Tokens[i].Is("join") {
			break
		}
	}
	for i++; i < len(s.Tokens); i++ {
		t := s.Tokens[i]
		if !t.Significant() {
			continue
		}
		if s.depth[i] < d {
			return i
		}
		if s.depth[i] != d {
			continue
		}
		if t.IsPunct(";") || t.IsPunct(",") || inSet(joinTerminators, t) {
			return i
		}
	}
	return len(s.Tokens)
}
