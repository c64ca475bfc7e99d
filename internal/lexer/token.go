package lexer

import "strings"

// TokenType classifies a lexed token.
type TokenType int

const (
	// TokenEOF marks the end of input.
	TokenEOF TokenType = iota
	// TokenIdent is an unquoted or double-quoted identifier.
	TokenIdent
	// TokenKeyword is an identifier that matches a recognized SQL keyword.
	TokenKeyword
	// TokenNumber is a numeric literal.
	TokenNumber
	// TokenString is a string literal (standard, escape-string, or dollar-quoted).
	TokenString
	// TokenSemicolon is a top-level statement terminator.
	TokenSemicolon
	// TokenPunct is any operator or punctuation character sequence.
	TokenPunct
	// TokenIllegal is a byte the lexer could not classify.
	TokenIllegal
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "IDENT"
	case TokenKeyword:
		return "KEYWORD"
	case TokenNumber:
		return "NUMBER"
	case TokenString:
		return "STRING"
	case TokenSemicolon:
		return "SEMICOLON"
	case TokenPunct:
		return "PUNCT"
	case TokenIllegal:
		return "ILLEGAL"
	default:
		return "UNKNOWN"
	}
}

// Position is a location in the source text.
// Line and Column are 1-based; Offset is a 0-based byte offset.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
	Offset int `json:"offset" yaml:"offset"`
}

// Span is a half-open byte range [Start.Offset, End.Offset) in the source.
type Span struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// Token is a single lexed unit of SQL text.
type Token struct {
	Type TokenType
	// Text is the raw source text of the token. For quoted identifiers the
	// quotes are stripped and doubled quotes unescaped; string literals keep
	// their decoded body.
	Text string
	Pos  Position
}

// Is reports whether the token is a keyword or identifier matching word,
// compared case-insensitively. SQL keywords are not reserved in the forms we
// parse, so identifiers are accepted too.
func (t Token) Is(word string) bool {
	if t.Type != TokenKeyword && t.Type != TokenIdent {
		return false
	}
	return strings.EqualFold(t.Text, word)
}

// IsPunct reports whether the token is the given punctuation text.
func (t Token) IsPunct(text string) bool {
	return t.Type == TokenPunct && t.Text == text
}

// keywords lists the words the statement parser dispatches on. Anything else
// lexes as a plain identifier; the parser treats the two interchangeably.
var keywords = map[string]struct{}{
	"abort": {}, "add": {}, "alter": {}, "begin": {}, "by": {},
	"cascade": {}, "check": {}, "cluster": {}, "column": {}, "commit": {},
	"concurrently": {}, "constraint": {}, "create": {}, "default": {},
	"delete": {}, "drop": {}, "end": {}, "exists": {}, "foreign": {},
	"from": {}, "full": {}, "if": {}, "index": {}, "insert": {},
	"into": {}, "key": {}, "local": {}, "not": {}, "null": {},
	"on": {}, "only": {}, "primary": {}, "references": {}, "reindex": {},
	"rename": {}, "restrict": {}, "rollback": {}, "select": {},
	"session": {}, "set": {}, "start": {}, "table": {}, "to": {},
	"transaction": {}, "truncate": {}, "type": {}, "unique": {},
	"update": {}, "using": {}, "vacuum": {}, "valid": {}, "validate": {},
	"where": {}, "work": {},
}

// lookupIdent returns TokenKeyword for recognized keywords, TokenIdent otherwise.
func lookupIdent(word string) TokenType {
	if _, ok := keywords[strings.ToLower(word)]; ok {
		return TokenKeyword
	}
	return TokenIdent
}
