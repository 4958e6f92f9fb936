package sqlscan

import "strings"

// Statements splits input on top-level semicolons and returns the non-empty statements,
// trimmed, without their terminators. Segments that hold only comments are dropped.
func Statements(input string) []string {
	return StatementsMode(input, Standard)
}

// StatementsMode is Statements with an explicit reading of quoted text.
func StatementsMode(input string, mode Mode) []string {
	var out []string
	start := 0
	seen := false

	for _, tok := range TokenizeMode(input, mode) {
		if tok.Type == Semicolon {
			if seen {
				out = append(out, strings.TrimSpace(input[start:tok.Pos]))
			}
			start = tok.Pos + 1
			seen = false
			continue
		}
		if !seen {
			start = tok.Pos
			seen = true
		}
	}
	if seen {
		out = append(out, strings.TrimSpace(input[start:]))
	}
	return out
}

// FirstStatement returns the first statement of input, or "" when there is none.
func FirstStatement(input string) string {
	stmts := Statements(input)
	if len(stmts) == 0 {
		return ""
	}
	return stmts[0]
}

// HasMultipleStatements reports whether input holds more than one statement under any
// reading of its quoted text.
func HasMultipleStatements(input string) bool {
	for _, mode := range Modes {
		if len(StatementsMode(input, mode)) > 1 {
			return true
		}
	}
	return false
}

// LeadingKeyword returns the upper-cased first keyword of input, skipping comments and
// opening parentheses. It returns "" when the statement does not start with a word.
func LeadingKeyword(input string) string {
	l := NewLexer(input)
	for {
		tok := l.NextToken()
		switch tok.Type {
		case LParen:
			continue
		case Ident:
			return strings.ToUpper(tok.Literal)
		default:
			return ""
		}
	}
}

// ContainsKeyword reports whether any unquoted identifier token in input equals kw.
// Text inside strings, quoted identifiers and comments never matches.
func ContainsKeyword(input, kw string) bool {
	l := NewLexer(input)
	for {
		tok := l.NextToken()
		if tok.Type == EOF {
			return false
		}
		if tok.Is(kw) {
			return true
		}
	}
}

// Normalize renders input as a single line with comments removed and runs of whitespace
// collapsed to one space. String literals and quoted identifiers keep their quotes.
func Normalize(input string) string {
	var b strings.Builder
	var prev TokenType = EOF
	for i, tok := range Tokenize(input) {
		if i > 0 && tok.Type != Dot && prev != Dot {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Raw)
		prev = tok.Type
	}
	return b.String()
}

// ContainsTopLevelKeyword is like ContainsKeyword but ignores keywords nested inside
// parentheses, so a WHERE inside a subquery does not count as the statement's WHERE.
func ContainsTopLevelKeyword(input, kw string) bool {
	depth := 0
	l := NewLexer(input)
	for {
		tok := l.NextToken()
		switch tok.Type {
		case EOF:
			return false
		case LParen:
			depth++
		case RParen:
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && tok.Is(kw) {
				return true
			}
		}
	}
}

// QualifiedName joins the identifier tokens of a possibly quoted, possibly qualified
// name ("public"."Users" -> public.Users). Non-name tokens are ignored.
func QualifiedName(text string) string {
	var parts []string
	for _, tok := range Tokenize(text) {
		if tok.IsName() {
			parts = append(parts, tok.Name())
		}
	}
	return strings.Join(parts, ".")
}
