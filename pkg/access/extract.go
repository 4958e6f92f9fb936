package access

import (
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/sqlscan"
)

// ColumnRef is a column referenced by a statement. Qualifier is the lowercased table name
// or alias the column was qualified with, or "" when unqualified.
type ColumnRef struct {
	Qualifier string `json:"qualifier,omitempty"`
	Column    string `json:"column"`
}

func (c ColumnRef) String() string {
	if c.Qualifier == "" {
		return c.Column
	}
	return c.Qualifier + "." + c.Column
}

// reserved words never count as aliases or column references.
var reserved = toSet(
	"SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "NULL", "IS", "IN", "LIKE", "ILIKE",
	"BETWEEN", "EXISTS", "CASE", "WHEN", "THEN", "ELSE", "END", "AS", "ON", "JOIN", "INNER",
	"LEFT", "RIGHT", "FULL", "OUTER", "CROSS", "NATURAL", "USING", "GROUP", "BY", "ORDER",
	"HAVING", "LIMIT", "OFFSET", "UNION", "ALL", "DISTINCT", "EXCEPT", "INTERSECT", "INSERT",
	"INTO", "VALUES", "UPDATE", "SET", "DELETE", "CREATE", "DROP", "ALTER", "TABLE",
	"TRUNCATE", "REPLACE", "WITH", "RECURSIVE", "ASC", "DESC", "TRUE", "FALSE", "RETURNING",
	"FETCH", "FOR", "WINDOW", "OVER", "PARTITION", "LATERAL", "ONLY", "IF", "DEFAULT",
	"INTERVAL", "CAST", "ANY", "SOME", "DUPLICATE", "CONFLICT", "DO", "NOTHING", "NULLS",
	"MATERIALIZED", "ESCAPE", "COLLATE", "MERGE", "MATCHED",
)

// writeKeywords are leading keywords of statements that change data or schema.
var writeKeywords = toSet(
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE", "REPLACE",
	"MERGE", "GRANT", "REVOKE", "RENAME",
)

// fromFunctions take a FROM inside their argument list that is not a table list.
var fromFunctions = toSet("EXTRACT", "SUBSTRING", "TRIM", "OVERLAY", "POSITION")

// tableVerbs precede TABLE when it introduces a table name.
var tableVerbs = toSet("DROP", "ALTER", "CREATE", "TRUNCATE", "LOCK", "TEMP", "TEMPORARY", "UNLOGGED")

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func isWord(tok sqlscan.Token, set map[string]struct{}) bool {
	if tok.Type != sqlscan.Ident {
		return false
	}
	_, ok := set[strings.ToUpper(tok.Literal)]
	return ok
}

// writeKeyword returns the keyword that makes a statement a write, if any.
// Data-modifying CTEs and SELECT ... INTO count as writes.
func writeKeyword(toks []sqlscan.Token) (string, bool) {
	i := 0
	for i < len(toks) && toks[i].Type == sqlscan.LParen {
		i++
	}
	if i >= len(toks) {
		return "", false
	}
	lead := toks[i]
	if isWord(lead, writeKeywords) {
		return strings.ToUpper(lead.Literal), true
	}

	switch {
	case lead.Is("WITH"):
		for j := i + 1; j < len(toks); j++ {
			t := toks[j]
			if t.IsAny("INSERT", "DELETE", "MERGE") {
				return strings.ToUpper(t.Literal), true
			}
			if t.Is("UPDATE") && !prev(toks, j).IsAny("FOR", "KEY", "DO") {
				return "UPDATE", true
			}
		}
	case lead.Is("SELECT"):
		depth := 0
		for j := i + 1; j < len(toks); j++ {
			switch t := toks[j]; {
			case t.Type == sqlscan.LParen:
				depth++
			case t.Type == sqlscan.RParen:
				depth--
			case depth == 0 && t.Is("INTO"):
				return "SELECT INTO", true
			}
		}
	}
	return "", false
}

// extraction holds the names a statement references.
type extraction struct {
	tables  []string            // lowercased qualified names, in order of appearance
	refs    map[string][]string // alias, qualified and bare name -> tables; empty for derived tables
	ctes    map[string]struct{}
	cteDefs map[int]struct{} // token positions of CTE names in their definitions
	columns []ColumnRef
	stars   []string // qualifiers of * references; "" for unqualified
}

func extract(toks []sqlscan.Token) *extraction {
	e := &extraction{
		refs:    make(map[string][]string),
		ctes:    make(map[string]struct{}),
		cteDefs: make(map[int]struct{}),
	}
	e.walk(toks)
	return e
}

// resolve maps a qualifier to its tables. ok is false when the qualifier is unknown.
func (e *extraction) resolve(qualifier string) (tables []string, ok bool) {
	tables, ok = e.refs[qualifier]
	return tables, ok
}

func (e *extraction) walk(toks []sqlscan.Token) {
	e.collectCTEs(toks)

	// one entry per open parenthesis: true when a FROM inside it is a function argument
	var parens []bool
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if _, ok := e.cteDefs[tok.Pos]; ok {
			continue
		}
		p := prev(toks, i)
		inFunction := len(parens) > 0 && parens[len(parens)-1]

		switch {
		case tok.Type == sqlscan.LParen:
			parens = append(parens, isWord(p, fromFunctions))
		case tok.Type == sqlscan.RParen:
			if len(parens) > 0 {
				parens = parens[:len(parens)-1]
			}
		case tok.Type == sqlscan.Star:
			if p.Type == sqlscan.Comma || p.IsAny("SELECT", "DISTINCT", "ALL", "RETURNING") {
				e.stars = append(e.stars, "")
			}
		case tok.IsAny("FROM", "USING") && !inFunction:
			i = e.tableList(toks, i+1, true) - 1
		case tok.Is("JOIN"):
			i = e.tableList(toks, i+1, false) - 1
		case tok.Is("INTO"),
			tok.Is("UPDATE") && !p.IsAny("FOR", "KEY", "DO"),
			tok.Is("TABLE") && (i == 0 || isWord(p, tableVerbs)),
			tok.Is("TRUNCATE") && !next(toks, i).Is("TABLE"):
			i = e.tableRef(toks, i+1, false) - 1
		case tok.IsName():
			i = e.column(toks, i)
		}
	}
}

// collectCTEs records the names defined by a leading WITH clause.
func (e *extraction) collectCTEs(toks []sqlscan.Token) {
	if len(toks) == 0 || !toks[0].Is("WITH") {
		return
	}
	i := 1
	if i < len(toks) && toks[i].Is("RECURSIVE") {
		i++
	}
	for i < len(toks) && toks[i].IsName() {
		name := strings.ToLower(toks[i].Name())
		e.ctes[name] = struct{}{}
		e.refs[name] = []string{}
		e.cteDefs[toks[i].Pos] = struct{}{}
		i++
		if i < len(toks) && toks[i].Type == sqlscan.LParen {
			i, _ = skipGroup(toks, i)
		}
		if i >= len(toks) || !toks[i].Is("AS") {
			return
		}
		i++
		if i < len(toks) && toks[i].Is("NOT") {
			i++
		}
		if i < len(toks) && toks[i].Is("MATERIALIZED") {
			i++
		}
		if i >= len(toks) || toks[i].Type != sqlscan.LParen {
			return
		}
		i, _ = skipGroup(toks, i)
		if i >= len(toks) || toks[i].Type != sqlscan.Comma {
			return
		}
		i++
	}
}

// tableList reads one table reference, or a comma-separated list of them when list is
// set, and returns the index of the first token after it.
func (e *extraction) tableList(toks []sqlscan.Token, i int, list bool) int {
	for {
		i = e.tableRef(toks, i, true)
		if !list || i >= len(toks) || toks[i].Type != sqlscan.Comma {
			return i
		}
		i++
	}
}

// tableRef reads a table name, subquery or table function with its optional alias.
// In a FROM context a name followed by "(" is a table function, otherwise it is a table
// followed by a column list.
func (e *extraction) tableRef(toks []sqlscan.Token, i int, fromContext bool) int {
	for i < len(toks) && toks[i].IsAny("ONLY", "LATERAL", "IF", "NOT", "EXISTS") {
		i++
	}
	if i >= len(toks) {
		return i
	}

	if toks[i].Type == sqlscan.LParen {
		i = e.walkGroup(toks, i)
		return e.alias(toks, i, []string{})
	}
	if !toks[i].IsName() || isWord(toks[i], reserved) {
		return i
	}

	parts := []string{strings.ToLower(toks[i].Name())}
	j := i + 1
	for j+1 < len(toks) && toks[j].Type == sqlscan.Dot && toks[j+1].IsName() {
		parts = append(parts, strings.ToLower(toks[j+1].Name()))
		j += 2
	}

	if fromContext && j < len(toks) && toks[j].Type == sqlscan.LParen {
		j = e.walkGroup(toks, j)
		return e.alias(toks, j, []string{})
	}

	return e.alias(toks, j, e.addTable(parts))
}

// walkGroup scans the body of the parenthesis group at toks[i] and returns the index
// after it.
func (e *extraction) walkGroup(toks []sqlscan.Token, i int) int {
	end, closed := skipGroup(toks, i)
	body := toks[i+1 : end]
	if closed {
		body = toks[i+1 : end-1]
	}
	e.walk(body)
	return end
}

// alias reads an optional alias for tables and returns the index after it.
func (e *extraction) alias(toks []sqlscan.Token, i int, tables []string) int {
	if i < len(toks) && toks[i].Is("AS") {
		i++
	} else if i >= len(toks) || !toks[i].IsName() || isWord(toks[i], reserved) {
		return i
	}
	if i < len(toks) && toks[i].IsName() {
		e.bind(strings.ToLower(toks[i].Name()), tables...)
		i++
	}
	return i
}

// addTable records a referenced table and returns it, or nothing when the name is a CTE.
func (e *extraction) addTable(parts []string) []string {
	full := strings.Join(parts, ".")
	if len(parts) == 1 {
		if _, ok := e.ctes[full]; ok {
			return []string{}
		}
	}

	seen := false
	for _, t := range e.tables {
		if t == full {
			seen = true
			break
		}
	}
	if !seen {
		e.tables = append(e.tables, full)
	}

	e.bind(full, full)
	e.bind(parts[len(parts)-1], full)
	return []string{full}
}

// bind maps a qualifier to tables. A qualifier bound twice resolves to all of its tables.
func (e *extraction) bind(qualifier string, tables ...string) {
	cur, ok := e.refs[qualifier]
	if !ok {
		cur = []string{}
	}
	for _, t := range tables {
		dup := false
		for _, c := range cur {
			if c == t {
				dup = true
				break
			}
		}
		if !dup {
			cur = append(cur, t)
		}
	}
	e.refs[qualifier] = cur
}

// column records the (possibly qualified) column or qualified star starting at toks[i]
// and returns the index of its last token.
func (e *extraction) column(toks []sqlscan.Token, i int) int {
	tok := toks[i]
	if isWord(tok, reserved) {
		return i
	}

	parts := []sqlscan.Token{tok}
	j := i + 1
	for j+1 < len(toks) && toks[j].Type == sqlscan.Dot {
		n := toks[j+1]
		if !n.IsName() && n.Type != sqlscan.Star {
			break
		}
		parts = append(parts, n)
		j += 2
		if n.Type == sqlscan.Star {
			break
		}
	}
	last := j - 1

	// function calls, aliases and type names
	if j < len(toks) && toks[j].Type == sqlscan.LParen {
		return last
	}
	if p := prev(toks, i); p.Is("AS") || (p.Type == sqlscan.Operator && p.Literal == "::") {
		return last
	}

	names := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		names = append(names, strings.ToLower(p.Name()))
	}
	qualifier := strings.Join(names, ".")

	end := parts[len(parts)-1]
	if end.Type == sqlscan.Star {
		e.stars = append(e.stars, qualifier)
		return last
	}
	e.columns = append(e.columns, ColumnRef{Qualifier: qualifier, Column: strings.ToLower(end.Name())})
	return last
}

// skipGroup returns the index after the parenthesis group opening at toks[i] and whether
// the group was closed.
func skipGroup(toks []sqlscan.Token, i int) (int, bool) {
	depth := 0
	for ; i < len(toks); i++ {
		switch toks[i].Type {
		case sqlscan.LParen:
			depth++
		case sqlscan.RParen:
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return i, false
}

func prev(toks []sqlscan.Token, i int) sqlscan.Token {
	if i > 0 {
		return toks[i-1]
	}
	return sqlscan.Token{Type: sqlscan.EOF}
}

func next(toks []sqlscan.Token, i int) sqlscan.Token {
	if i+1 < len(toks) {
		return toks[i+1]
	}
	return sqlscan.Token{Type: sqlscan.EOF}
}
