package sqlscan

import (
	"strings"
	"unicode/utf8"
)

// Mode selects how backslashes inside quoted text are read.
type Mode int

const (
	// Standard reads strings the ANSI way: a doubled quote escapes a quote. Only E'...'
	// strings treat a backslash as an escape.
	Standard Mode = iota
	// BackslashEscapes also treats a backslash as an escape inside '...' and "..." runs,
	// as MySQL and MariaDB do by default.
	BackslashEscapes
)

// Modes lists every reading. Consumers that cannot tell the engine apart check all of them.
var Modes = []Mode{Standard, BackslashEscapes}

// Lexer tokenizes SQL input.
//
// '#' is an operator, not a comment: when engines disagree, the lexer prefers to expose
// more text as SQL rather than less.
type Lexer struct {
	input   string
	mode    Mode
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

// NewLexer creates a new Lexer for the given input using the Standard reading.
func NewLexer(input string) *Lexer {
	return NewLexerMode(input, Standard)
}

// NewLexerMode creates a new Lexer that reads quoted text according to mode.
func NewLexerMode(input string, mode Mode) *Lexer {
	l := &Lexer{input: input, mode: mode}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	if l.atEOF() {
		return Token{Type: EOF, Pos: len(l.input)}
	}

	switch ch := l.ch; {
	case ch == '\'':
		lit := l.readDelimited('\'', l.mode == BackslashEscapes)
		return Token{Type: String, Literal: lit, Raw: l.input[start:l.pos], Pos: start}
	case (ch == 'E' || ch == 'e') && l.peekChar() == '\'':
		l.readChar()
		lit := l.readDelimited('\'', true)
		return Token{Type: String, Literal: lit, Raw: l.input[start:l.pos], Pos: start}
	case ch == '"':
		lit := l.readDelimited('"', l.mode == BackslashEscapes)
		return Token{Type: QuotedIdent, Literal: lit, Raw: l.input[start:l.pos], Pos: start}
	case ch == '`':
		lit := l.readDelimited('`', false)
		return Token{Type: QuotedIdent, Literal: lit, Raw: l.input[start:l.pos], Pos: start}
	case ch == '[':
		lit := l.readDelimited(']', false)
		return Token{Type: QuotedIdent, Literal: lit, Raw: l.input[start:l.pos], Pos: start}
	case ch == '$':
		return l.readDollar(start)
	case ch == '?':
		l.readChar()
		return l.token(Param, start)
	case ch == ':' && l.peekChar() == ':':
		l.readChar()
		l.readChar()
		return l.token(Operator, start)
	case (ch == ':' || ch == '@') && isIdentStart(l.peekChar()):
		l.readChar()
		l.readIdentifier()
		return l.token(Param, start)
	case ch == '*':
		l.readChar()
		return l.token(Star, start)
	case ch == ',':
		l.readChar()
		return l.token(Comma, start)
	case ch == '.' && !isDigit(l.peekChar()):
		l.readChar()
		return l.token(Dot, start)
	case ch == '(':
		l.readChar()
		return l.token(LParen, start)
	case ch == ')':
		l.readChar()
		return l.token(RParen, start)
	case ch == ';':
		l.readChar()
		return l.token(Semicolon, start)
	case isIdentStart(ch):
		l.readIdentifier()
		return l.token(Ident, start)
	case isDigit(ch) || ch == '.':
		l.readNumber()
		return l.token(Number, start)
	case strings.IndexByte("=<>!+-/%|&^~#", ch) >= 0:
		l.readOperator()
		return l.token(Operator, start)
	default:
		_, size := utf8.DecodeRuneInString(l.input[l.pos:])
		for i := 0; i < size; i++ {
			l.readChar()
		}
		return l.token(Illegal, start)
	}
}

func (l *Lexer) token(t TokenType, start int) Token {
	text := l.input[start:l.pos]
	return Token{Type: t, Literal: text, Raw: text, Pos: start}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			for !l.atEOF() && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if !l.atEOF() {
				l.readChar()
				l.readChar()
			}
			continue
		}

		return
	}
}

// readDelimited reads a quoted run ending with closer. A doubled closer is an escape, and
// so is a backslash when backslash is set. Unterminated input consumes the rest of the text.
func (l *Lexer) readDelimited(closer byte, backslash bool) string {
	l.readChar() // opening quote

	var b strings.Builder
	for !l.atEOF() {
		if backslash && l.ch == '\\' && l.readPos < len(l.input) {
			l.readChar()
			b.WriteByte(l.ch)
			l.readChar()
			continue
		}
		if l.ch == closer {
			if l.peekChar() == closer {
				b.WriteByte(closer)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			break
		}
		b.WriteByte(l.ch)
		l.readChar()
	}
	return b.String()
}

// readDollar reads $1-style parameters and $tag$...$tag$ strings.
func (l *Lexer) readDollar(start int) Token {
	if isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
		return l.token(Param, start)
	}

	// Opening tag: $$ or $ident$
	end := start + 1
	for end < len(l.input) && isTagPart(l.input[end]) {
		end++
	}
	if end >= len(l.input) || l.input[end] != '$' {
		l.readChar()
		return l.token(Illegal, start)
	}
	tag := l.input[start : end+1]
	bodyStart := end + 1

	closeIdx := strings.Index(l.input[bodyStart:], tag)
	stop := len(l.input)
	body := l.input[bodyStart:]
	if closeIdx >= 0 {
		body = l.input[bodyStart : bodyStart+closeIdx]
		stop = bodyStart + closeIdx + len(tag)
	}
	for l.pos < stop && !l.atEOF() {
		l.readChar()
	}
	return Token{Type: String, Literal: body, Raw: l.input[start:l.pos], Pos: start}
}

func (l *Lexer) readIdentifier() {
	for !l.atEOF() && isIdentPart(l.ch) {
		if l.ch >= utf8.RuneSelf {
			_, size := utf8.DecodeRuneInString(l.input[l.pos:])
			for i := 0; i < size; i++ {
				l.readChar()
			}
			continue
		}
		l.readChar()
	}
}

func (l *Lexer) readNumber() {
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	} else if l.ch == '.' {
		l.readChar()
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
}

func (l *Lexer) readOperator() {
	first := l.ch
	l.readChar()
	switch {
	case first == '<' && (l.ch == '=' || l.ch == '>'):
		l.readChar()
	case (first == '>' || first == '!') && l.ch == '=':
		l.readChar()
	case first == '|' && l.ch == '|':
		l.readChar()
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= utf8.RuneSelf
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isTagPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, excluding the trailing EOF.
func Tokenize(input string) []Token {
	return TokenizeMode(input, Standard)
}

// TokenizeMode is Tokenize with an explicit reading of quoted text.
func TokenizeMode(input string, mode Mode) []Token {
	l := NewLexerMode(input, mode)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == EOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}
