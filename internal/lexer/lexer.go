// Package lexer turns raw migration script text into a token stream. It is
// deliberately partial: it understands just enough PostgreSQL lexical
// structure (string forms, comments, identifiers) to let the statement parser
// split on top-level semicolons without being fooled by literals.
package lexer

import (
	"fmt"
	"strings"
)

// Error is a lexical error anchored at the position where the offending
// construct opened, e.g. the quote of an unterminated string literal.
type Error struct {
	Msg string
	Pos Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	err *Error // first unrecoverable lexical error
}

// New creates a Lexer for the given input.
func New(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Tokenize scans the whole input. The returned error, if any, is an
// unterminated string or comment reaching end of input; the tokens produced
// before it are still returned so earlier statements can be analyzed.
func Tokenize(input string) ([]Token, *Error) {
	l := New(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if l.err != nil {
			return tokens, l.err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// Err returns the unrecoverable lexical error encountered, if any.
func (l *Lexer) Err() *Error {
	return l.err
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the position of the current character.
func (l *Lexer) currentPos() Position {
	return Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token. After an unrecoverable error Err is set
// and an ILLEGAL token is returned.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()
	if l.err != nil {
		return Token{Type: TokenIllegal, Pos: l.err.Pos}
	}

	pos := l.currentPos()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Pos: pos}
	case l.ch == ';':
		l.readChar()
		return Token{Type: TokenSemicolon, Text: ";", Pos: pos}
	case l.ch == '\'':
		return l.readString(pos, false)
	case (l.ch == 'e' || l.ch == 'E') && l.peekChar() == '\'':
		l.readChar() // skip the E prefix
		return l.readString(pos, true)
	case l.ch == '"':
		return l.readQuotedIdentifier(pos)
	case l.ch == '$' && isDollarTagStart(l.peekChar()):
		return l.readDollarQuoted(pos)
	case isLetter(l.ch) || l.ch == '_':
		word := l.readIdentifier()
		return Token{Type: lookupIdent(word), Text: word, Pos: pos}
	case isDigit(l.ch), l.ch == '.' && isDigit(l.peekChar()):
		return Token{Type: TokenNumber, Text: l.readNumber(), Pos: pos}
	default:
		return l.readPunct(pos)
	}
}

// skipWhitespaceAndComments skips whitespace, line comments and block
// comments. PostgreSQL block comments nest.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.skipBlockComment()
			if l.err != nil {
				return
			}
			continue
		}
		break
	}
}

func (l *Lexer) skipBlockComment() {
	start := l.currentPos()
	l.readChar() // skip '/'
	l.readChar() // skip '*'

	depth := 1
	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			depth--
			if depth == 0 {
				return
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			depth++
			continue
		}
		l.readChar()
	}
	l.err = &Error{Msg: "unterminated block comment", Pos: start}
}

// readString reads a single-quoted string literal. Doubled single quotes
// escape a quote; in escape-string form (E'...') a backslash escapes the
// following character.
func (l *Lexer) readString(pos Position, escapeString bool) Token {
	l.readChar() // skip opening quote

	var body strings.Builder
	for l.ch != 0 {
		if escapeString && l.ch == '\\' && l.peekChar() != 0 {
			body.WriteByte(l.ch)
			l.readChar()
			body.WriteByte(l.ch)
			l.readChar()
			continue
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				body.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return Token{Type: TokenString, Text: body.String(), Pos: pos}
		}
		body.WriteByte(l.ch)
		l.readChar()
	}
	l.err = &Error{Msg: "unterminated string literal", Pos: pos}
	return Token{Type: TokenIllegal, Pos: pos}
}

// readQuotedIdentifier reads a double-quoted identifier. Doubled double
// quotes escape a quote.
func (l *Lexer) readQuotedIdentifier(pos Position) Token {
	l.readChar() // skip opening quote

	var name strings.Builder
	for l.ch != 0 {
		if l.ch == '"' {
			if l.peekChar() == '"' {
				name.WriteByte('"')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return Token{Type: TokenIdent, Text: name.String(), Pos: pos}
		}
		name.WriteByte(l.ch)
		l.readChar()
	}
	l.err = &Error{Msg: "unterminated quoted identifier", Pos: pos}
	return Token{Type: TokenIllegal, Pos: pos}
}

// readDollarQuoted reads a dollar-quoted literal ($$...$$ or $tag$...$tag$).
// The body is kept verbatim; semicolons inside it never terminate a statement.
func (l *Lexer) readDollarQuoted(pos Position) Token {
	l.readChar() // skip opening '$'
	var tag strings.Builder
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		tag.WriteByte(l.ch)
		l.readChar()
	}
	if l.ch != '$' {
		// Not a dollar quote after all ($ followed by junk); lex the dollar
		// sign as punctuation and let the parser degrade to opaque.
		return Token{Type: TokenPunct, Text: "$" + tag.String(), Pos: pos}
	}
	l.readChar() // skip closing '$' of the opening delimiter

	delim := "$" + tag.String() + "$"
	rest := l.input[l.pos:]
	end := strings.Index(rest, delim)
	if end == -1 {
		l.err = &Error{Msg: "unterminated dollar-quoted string", Pos: pos}
		return Token{Type: TokenIllegal, Pos: pos}
	}
	body := rest[:end]
	for i := 0; i < len(body)+len(delim); i++ {
		l.readChar()
	}
	return Token{Type: TokenString, Text: body, Pos: pos}
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		if next := l.peekChar(); isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[start:l.pos]
}

// readPunct reads an operator or punctuation token. Multi-character operators
// are kept whole so the parser sees '::' and ':=' as single tokens.
func (l *Lexer) readPunct(pos Position) Token {
	two := string(l.ch) + string(l.peekChar())
	switch two {
	case "::", ":=", "<=", ">=", "<>", "!=", "||", "->":
		l.readChar()
		l.readChar()
		return Token{Type: TokenPunct, Text: two, Pos: pos}
	}
	ch := l.ch
	l.readChar()
	return Token{Type: TokenPunct, Text: string(ch), Pos: pos}
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// isDollarTagStart reports whether ch can follow the opening '$' of a
// dollar-quote delimiter. Digits are excluded so positional parameters like
// $1 do not start a quote.
func isDollarTagStart(ch byte) bool {
	return ch == '$' || isLetter(ch) || ch == '_'
}
