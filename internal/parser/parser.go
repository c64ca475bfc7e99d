// Package parser consumes the lexer's token stream and produces an ordered
// sequence of structured statements. Parsing is partial by design: statement
// forms it does not model degrade to opaque statements instead of failing the
// file, so a script with unfamiliar syntax is still linted for everything
// else it contains.
package parser

import (
	"bytes"
	"strings"

	"github.com/peterebden/sql-perf-linter/internal/lexer"
)

// utf8BOM is stripped from the front of scripts before lexing.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse turns one migration script's text into statements. It always returns
// a Result: lexical and syntax problems are recorded as ParseErrors rather
// than failing the call. An unterminated literal is unrecoverable; statements
// before it are returned, nothing after it is.
func Parse(input string) *Result {
	input = string(stripBOM([]byte(input)))

	tokens, lexErr := lexer.Tokenize(input)
	result := &Result{}

	var group []lexer.Token
	flush := func(end lexer.Position) {
		if len(group) == 0 {
			return
		}
		result.Statements = append(result.Statements, parseStatement(input, group, end, result))
		group = nil
	}

	for _, tok := range tokens {
		switch tok.Type {
		case lexer.TokenSemicolon:
			flush(tok.Pos)
		case lexer.TokenEOF:
			flush(tok.Pos)
		default:
			group = append(group, tok)
		}
	}

	if lexErr != nil {
		// The tokens of the statement containing the unterminated construct
		// (the current group) cannot form a complete statement; drop them and
		// record a single file-level error at the opening quote.
		result.Errors = append(result.Errors, &ParseError{
			Msg:       lexErr.Msg,
			Pos:       lexErr.Pos,
			FileLevel: true,
		})
	}

	return result
}

// stripBOM removes the UTF-8 BOM if present.
func stripBOM(content []byte) []byte {
	if bytes.HasPrefix(content, utf8BOM) {
		return content[len(utf8BOM):]
	}
	return content
}

// parseStatement parses one semicolon-delimited token group. end is the
// position of the terminating semicolon (or EOF).
func parseStatement(input string, toks []lexer.Token, end lexer.Position, result *Result) *Statement {
	start := toks[0].Pos
	span := lexer.Span{Start: start, End: end}
	raw := strings.TrimSpace(input[start.Offset:end.Offset])

	c := &cursor{toks: toks}
	stmt := parseHead(c)
	if stmt == nil {
		return &Statement{Kind: KindOther, Raw: raw, Span: span}
	}
	stmt.Raw = raw
	stmt.Span = span
	if c.err != nil {
		// A recognized statement head with a malformed body: report one error
		// at the best-guess boundary and degrade the statement to opaque so
		// no rule reasons from half-parsed structure.
		result.Errors = append(result.Errors, c.err)
		return &Statement{Kind: KindOther, Raw: raw, Span: span}
	}
	return stmt
}

// cursor walks one statement's tokens.
type cursor struct {
	toks []lexer.Token
	i    int
	err  *ParseError
}

func (c *cursor) done() bool {
	return c.i >= len(c.toks)
}

func (c *cursor) peek() lexer.Token {
	if c.done() {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return c.toks[c.i]
}

func (c *cursor) next() lexer.Token {
	tok := c.peek()
	if !c.done() {
		c.i++
	}
	return tok
}

// pos returns the position of the current token, or of the last token when
// the cursor is exhausted. Used to anchor errors at a best-guess boundary.
func (c *cursor) pos() lexer.Position {
	if c.done() {
		if len(c.toks) == 0 {
			return lexer.Position{Line: 1, Column: 1}
		}
		return c.toks[len(c.toks)-1].Pos
	}
	return c.peek().Pos
}

// match consumes the current token if it is the given word.
func (c *cursor) match(word string) bool {
	if c.peek().Is(word) {
		c.i++
		return true
	}
	return false
}

// matchSeq consumes the given word sequence if it matches in full.
func (c *cursor) matchSeq(words ...string) bool {
	save := c.i
	for _, w := range words {
		if !c.match(w) {
			c.i = save
			return false
		}
	}
	return true
}

// fail records a syntax error at the current position. Only the first error
// per statement is kept.
func (c *cursor) fail(msg string) {
	if c.err == nil {
		c.err = &ParseError{Msg: msg, Pos: c.pos()}
	}
}

// name consumes a possibly schema-qualified, possibly quoted name.
func (c *cursor) name() (string, bool) {
	tok := c.peek()
	if tok.Type != lexer.TokenIdent && tok.Type != lexer.TokenKeyword {
		return "", false
	}
	c.i++
	parts := []string{tok.Text}
	for c.peek().IsPunct(".") {
		c.i++
		part := c.peek()
		if part.Type != lexer.TokenIdent && part.Type != lexer.TokenKeyword {
			return "", false
		}
		c.i++
		parts = append(parts, part.Text)
	}
	return strings.Join(parts, "."), true
}

// parseHead dispatches on the statement's leading keywords. A nil return
// means the form is not modeled and the statement is opaque.
func parseHead(c *cursor) *Statement {
	switch {
	case c.match("begin"):
		c.match("work")
		c.match("transaction")
		return &Statement{Kind: KindBegin}
	case c.matchSeq("start", "transaction"):
		return &Statement{Kind: KindBegin}
	case c.match("commit"), c.match("end"):
		c.match("work")
		c.match("transaction")
		return &Statement{Kind: KindCommit}
	case c.match("rollback"), c.match("abort"):
		if c.match("to") {
			// ROLLBACK TO SAVEPOINT does not end the transaction; not modeled.
			return nil
		}
		c.match("work")
		c.match("transaction")
		return &Statement{Kind: KindRollback}
	case c.match("set"):
		return parseSet(c)
	case c.match("create"):
		return parseCreate(c)
	case c.match("drop"):
		return parseDrop(c)
	case c.match("alter"):
		return parseAlter(c)
	case c.match("truncate"):
		c.match("table")
		c.match("only")
		name, ok := c.name()
		if !ok {
			c.fail("expected table name after TRUNCATE")
			return &Statement{Kind: KindTruncate}
		}
		return &Statement{Kind: KindTruncate, Target: name}
	case c.match("cluster"):
		c.match("verbose")
		name, _ := c.name() // bare CLUSTER re-clusters everything
		return &Statement{Kind: KindCluster, Target: name}
	case c.match("vacuum"):
		return parseVacuum(c)
	case c.match("reindex"):
		stmt := &Statement{Kind: KindReindex}
		for _, scope := range []string{"index", "table", "schema", "database", "system"} {
			if c.match(scope) {
				break
			}
		}
		stmt.Target, _ = c.name()
		return stmt
	default:
		return nil
	}
}

// parseSet parses SET [LOCAL|SESSION] name {TO|=} value. SET has several
// other forms (SET ROLE, SET TIME ZONE, SET TRANSACTION, SET CONSTRAINTS,
// SET SESSION AUTHORIZATION); none of them assign a tracked GUC, so anything
// that does not fit the assignment shape degrades to opaque.
func parseSet(c *cursor) *Statement {
	stmt := &Statement{Kind: KindSet}
	if c.match("local") {
		stmt.SetLocal = true
	} else {
		c.match("session")
	}
	name, ok := c.name()
	if !ok {
		return nil
	}
	stmt.SetName = strings.ToLower(name)
	if c.peek().IsPunct("=") {
		c.next()
	} else if !c.match("to") {
		return nil
	}
	var value []string
	for !c.done() {
		value = append(value, c.next().Text)
	}
	stmt.SetValue = strings.Join(value, " ")
	return stmt
}

// parseVacuum parses VACUUM [FULL] and the parenthesized option-list form
// VACUUM (FULL, ANALYZE) table.
func parseVacuum(c *cursor) *Statement {
	stmt := &Statement{Kind: KindVacuum}
	if c.peek().IsPunct("(") {
		c.next()
		for !c.done() && !c.peek().IsPunct(")") {
			if c.peek().Is("full") {
				stmt.Full = true
			}
			c.next()
		}
		c.next() // consume ')'
	} else {
		if c.match("full") {
			stmt.Full = true
		}
		c.match("freeze")
		c.match("verbose")
		c.match("analyze")
	}
	stmt.Target, _ = c.name()
	return stmt
}

// parseCreate parses CREATE TABLE and CREATE [UNIQUE] INDEX [CONCURRENTLY].
// Other CREATE forms are opaque.
func parseCreate(c *cursor) *Statement {
	unique := c.match("unique")
	switch {
	case c.match("index"):
		stmt := &Statement{Kind: KindCreateIndex, Unique: unique}
		stmt.Concurrently = c.match("concurrently")
		c.matchSeq("if", "not", "exists")
		// The index name is optional; ON introduces the table either way.
		if !c.peek().Is("on") {
			stmt.Target, _ = c.name()
		}
		if !c.match("on") {
			c.fail("expected ON in CREATE INDEX")
			return stmt
		}
		c.match("only")
		table, ok := c.name()
		if !ok {
			c.fail("expected table name in CREATE INDEX")
			return stmt
		}
		stmt.Table = table
		return stmt
	case unique:
		// CREATE UNIQUE <something other than INDEX> is not valid SQL; let it
		// degrade rather than guessing.
		return nil
	case c.match("table"):
		c.matchSeq("if", "not", "exists")
		name, ok := c.name()
		if !ok {
			c.fail("expected table name after CREATE TABLE")
			return &Statement{Kind: KindCreateTable}
		}
		return &Statement{Kind: KindCreateTable, Target: name}
	default:
		return nil
	}
}

// parseDrop parses DROP TABLE and DROP INDEX [CONCURRENTLY]. Other DROP forms
// are opaque.
func parseDrop(c *cursor) *Statement {
	switch {
	case c.match("table"):
		c.matchSeq("if", "exists")
		name, ok := c.name()
		if !ok {
			c.fail("expected table name after DROP TABLE")
			return &Statement{Kind: KindDropTable}
		}
		return &Statement{Kind: KindDropTable, Target: name}
	case c.match("index"):
		stmt := &Statement{Kind: KindDropIndex}
		stmt.Concurrently = c.match("concurrently")
		c.matchSeq("if", "exists")
		name, ok := c.name()
		if !ok {
			c.fail("expected index name after DROP INDEX")
			return stmt
		}
		stmt.Target = name
		return stmt
	default:
		return nil
	}
}

// parseAlter parses ALTER TABLE with its sub-clause list, and ALTER INDEX
// renames. Other ALTER forms are opaque.
func parseAlter(c *cursor) *Statement {
	switch {
	case c.match("table"):
		c.matchSeq("if", "exists")
		c.match("only")
		name, ok := c.name()
		if !ok {
			c.fail("expected table name after ALTER TABLE")
			return &Statement{Kind: KindAlterTable}
		}
		stmt := &Statement{Kind: KindAlterTable, Target: name}
		parseAlterActions(c, stmt)
		return stmt
	case c.match("index"):
		c.matchSeq("if", "exists")
		name, _ := c.name()
		if c.matchSeq("rename", "to") {
			return &Statement{Kind: KindAlterIndex, Target: name,
				Actions: []AlterAction{{Kind: ActionRename, Pos: c.pos()}}}
		}
		// ALTER INDEX ... SET and friends are not modeled.
		return nil
	default:
		return nil
	}
}

// parseAlterActions parses the comma-separated sub-clause list of an
// ALTER TABLE statement. Unrecognized sub-clauses become ActionOther but do
// not degrade the whole statement.
func parseAlterActions(c *cursor, stmt *Statement) {
	for {
		action := parseAlterAction(c)
		stmt.Actions = append(stmt.Actions, action)
		if c.err != nil {
			return
		}
		if !c.skipToComma() {
			return
		}
	}
}

// skipToComma advances to the next top-level comma, consuming it. Returns
// false at end of statement.
func (c *cursor) skipToComma() bool {
	depth := 0
	for !c.done() {
		tok := c.next()
		if tok.Type != lexer.TokenPunct {
			continue
		}
		switch tok.Text {
		case "(":
			depth++
		case ")":
			depth--
		case ",":
			if depth <= 0 {
				return true
			}
		}
	}
	return false
}

func parseAlterAction(c *cursor) AlterAction {
	pos := c.pos()
	switch {
	case c.match("add"):
		return parseAddAction(c, pos)
	case c.match("drop"):
		if c.match("constraint") {
			c.matchSeq("if", "exists")
			name, _ := c.name()
			return AlterAction{Kind: ActionDropConstraint, Pos: pos, ConstraintName: name}
		}
		c.match("column")
		c.matchSeq("if", "exists")
		name, ok := c.name()
		if !ok {
			c.fail("expected column name after DROP")
			return AlterAction{Kind: ActionOther, Pos: pos}
		}
		return AlterAction{Kind: ActionDropColumn, Pos: pos, Column: name}
	case c.match("alter"):
		return parseAlterColumnAction(c, pos)
	case c.match("validate"):
		if !c.match("constraint") {
			c.fail("expected CONSTRAINT after VALIDATE")
			return AlterAction{Kind: ActionOther, Pos: pos}
		}
		name, _ := c.name()
		return AlterAction{Kind: ActionValidateConstraint, Pos: pos, ConstraintName: name}
	case c.match("rename"):
		action := AlterAction{Kind: ActionRename, Pos: pos}
		if c.match("column") {
			action.Column, _ = c.name()
		}
		return action
	default:
		return AlterAction{Kind: ActionOther, Pos: pos}
	}
}

// parseAddAction parses ADD COLUMN and ADD [CONSTRAINT] forms.
func parseAddAction(c *cursor, pos lexer.Position) AlterAction {
	if c.match("constraint") {
		name, _ := c.name()
		action := parseConstraint(c, pos)
		action.ConstraintName = name
		return action
	}
	// Table constraints may omit the CONSTRAINT name entirely.
	if c.peek().Is("foreign") || c.peek().Is("check") || c.peek().Is("unique") ||
		c.peek().Is("primary") || c.peek().Is("exclude") {
		return parseConstraint(c, pos)
	}

	c.match("column")
	c.matchSeq("if", "not", "exists")
	action := AlterAction{Kind: ActionAddColumn, Pos: pos}
	name, ok := c.name()
	if !ok {
		c.fail("expected column name after ADD COLUMN")
		return action
	}
	action.Column = name
	action.TypeName = c.readTypeName()
	parseColumnConstraints(c, &action)
	return action
}

// parseConstraint parses the body of a table constraint after its optional
// CONSTRAINT name.
func parseConstraint(c *cursor, pos lexer.Position) AlterAction {
	action := AlterAction{Kind: ActionAddConstraint, Pos: pos}
	switch {
	case c.matchSeq("foreign", "key"):
		action.Constraint = ConstraintForeignKey
	case c.match("check"):
		action.Constraint = ConstraintCheck
	case c.match("unique"):
		action.Constraint = ConstraintUnique
	case c.matchSeq("primary", "key"):
		action.Constraint = ConstraintPrimaryKey
	default:
		action.Constraint = ConstraintOther
	}
	// Scan the remainder of the sub-clause for the modifiers that change
	// locking behavior, without modeling the full constraint grammar.
	depth := 0
	for !c.done() {
		tok := c.peek()
		if tok.Type == lexer.TokenPunct {
			switch tok.Text {
			case "(":
				depth++
			case ")":
				depth--
			case ",":
				if depth <= 0 {
					return action
				}
			}
			c.next()
			continue
		}
		if depth == 0 {
			if tok.Is("not") {
				c.next()
				if c.match("valid") {
					action.NotValid = true
				}
				continue
			}
			if tok.Is("using") {
				c.next()
				if c.match("index") {
					action.UsingIndex = true
				}
				continue
			}
		}
		c.next()
	}
	return action
}

// parseAlterColumnAction parses ALTER [COLUMN] name {TYPE|SET|DROP} forms.
func parseAlterColumnAction(c *cursor, pos lexer.Position) AlterAction {
	c.match("column")
	name, ok := c.name()
	if !ok {
		c.fail("expected column name after ALTER COLUMN")
		return AlterAction{Kind: ActionOther, Pos: pos}
	}
	action := AlterAction{Pos: pos, Column: name}
	switch {
	case c.match("type"), c.matchSeq("set", "data", "type"):
		action.Kind = ActionAlterColumnType
		action.TypeName = c.readTypeName()
		if c.match("using") {
			action.HasUsing = true
		}
		return action
	case c.matchSeq("set", "not", "null"):
		action.Kind = ActionSetNotNull
		return action
	case c.matchSeq("drop", "not", "null"):
		action.Kind = ActionDropNotNull
		return action
	case c.matchSeq("set", "default"):
		action.Kind = ActionSetDefault
		return action
	case c.matchSeq("drop", "default"):
		action.Kind = ActionDropDefault
		return action
	default:
		// SET STATISTICS, SET STORAGE and the rest are metadata-only and not
		// individually modeled.
		return AlterAction{Kind: ActionOther, Pos: pos, Column: name}
	}
}

// readTypeName consumes a type name including any parenthesized modifiers and
// array brackets, e.g. numeric(10,2), character varying(64), int[].
func (c *cursor) readTypeName() string {
	var parts []string
	for !c.done() {
		tok := c.peek()
		if tok.Type == lexer.TokenIdent || tok.Type == lexer.TokenKeyword {
			if isColumnConstraintWord(tok.Text) && len(parts) > 0 {
				break
			}
			// Multi-word types: character varying, double precision,
			// timestamp with time zone.
			parts = append(parts, tok.Text)
			c.next()
			continue
		}
		if tok.IsPunct("(") {
			depth := 0
			var mod []string
			for !c.done() {
				t := c.next()
				mod = append(mod, t.Text)
				if t.IsPunct("(") {
					depth++
				} else if t.IsPunct(")") {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			parts = append(parts, strings.Join(mod, ""))
			continue
		}
		if tok.IsPunct("[") {
			c.next()
			if c.peek().IsPunct("]") {
				c.next()
			}
			parts = append(parts, "[]")
			continue
		}
		break
	}
	return strings.Join(parts, " ")
}

// isColumnConstraintWord reports whether the word begins a column constraint
// rather than continuing a multi-word type name.
func isColumnConstraintWord(word string) bool {
	switch strings.ToLower(word) {
	case "not", "null", "default", "check", "references", "unique", "primary",
		"constraint", "collate", "generated", "using":
		return true
	}
	return false
}

// parseColumnConstraints scans the column constraints of an ADD COLUMN
// sub-clause for the properties that matter to locking: NOT NULL and DEFAULT.
func parseColumnConstraints(c *cursor, action *AlterAction) {
	depth := 0
	for !c.done() {
		tok := c.peek()
		if tok.Type == lexer.TokenPunct {
			switch tok.Text {
			case "(":
				depth++
			case ")":
				depth--
			case ",":
				if depth <= 0 {
					return
				}
			}
			c.next()
			continue
		}
		if depth == 0 {
			if tok.Is("not") {
				c.next()
				if c.match("null") {
					action.NotNull = true
				}
				continue
			}
			if tok.Is("default") {
				c.next()
				action.HasDefault = true
				continue
			}
		}
		c.next()
	}
}
