package sqlscan

import "strings"

// TokenType represents the type of a lexical token.
type TokenType int

// Token types.
const (
	EOF TokenType = iota
	Illegal

	Ident       // users, SELECT (keywords are identifiers; see Token.Is)
	QuotedIdent // "users", `users`, [users]
	Number      // 123, 45.67, 1e10
	String      // 'hello', $$body$$
	Param       // ?, $1, :name, @p1

	Star      // *
	Comma     // ,
	Dot       // .
	LParen    // (
	RParen    // )
	Semicolon // ;
	Operator  // = <> != < > <= >= + - / % || ::
)

var typeNames = map[TokenType]string{
	EOF:         "EOF",
	Illegal:     "ILLEGAL",
	Ident:       "IDENT",
	QuotedIdent: "QUOTED_IDENT",
	Number:      "NUMBER",
	String:      "STRING",
	Param:       "PARAM",
	Star:        "*",
	Comma:       ",",
	Dot:         ".",
	LParen:      "(",
	RParen:      ")",
	Semicolon:   ";",
	Operator:    "OPERATOR",
}

// String returns a readable name for the token type.
func (t TokenType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Token is a lexical token.
// For String and QuotedIdent tokens, Literal holds the unquoted content and Raw holds
// the source text including quotes.
type Token struct {
	Type    TokenType
	Literal string
	Raw     string
	Pos     int // byte offset of the token in the input
}

// Is reports whether the token is the unquoted keyword kw (case-insensitive).
func (t Token) Is(kw string) bool {
	return t.Type == Ident && strings.EqualFold(t.Literal, kw)
}

// IsAny reports whether the token is any of the given keywords.
func (t Token) IsAny(kws ...string) bool {
	for _, kw := range kws {
		if t.Is(kw) {
			return true
		}
	}
	return false
}

// IsName reports whether the token can name an object (plain or quoted identifier).
func (t Token) IsName() bool {
	return t.Type == Ident || t.Type == QuotedIdent
}

// Name returns the identifier text without quotes.
func (t Token) Name() string {
	return t.Literal
}
