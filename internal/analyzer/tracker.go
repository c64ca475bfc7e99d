package analyzer

import (
	"strings"

	"github.com/peterebden/sql-perf-linter/internal/parser"
)

// recognizedGUCs are the settings the tracker records for settings-aware
// rules.
var recognizedGUCs = map[string]struct{}{
	"lock_timeout":      {},
	"statement_timeout": {},
}

// Scope is the transactional scope containing a statement. For an explicit
// BEGIN...COMMIT block it spans every statement in the block (including the
// transaction control statements); outside a block each statement is its own
// singleton scope.
type Scope struct {
	// Explicit is true inside a BEGIN...COMMIT/ROLLBACK block.
	Explicit bool
	// Statements lists every statement in the scope, in source order.
	Statements []*parser.Statement

	// entryGUCs are the session-level settings in effect when the scope
	// opened.
	entryGUCs map[string]string
}

// Setting returns the recognized GUC's value in effect just before the given
// statement: the latest SET in the scope preceding it, falling back to the
// session-level value at scope entry.
func (s *Scope) Setting(before *parser.Statement, name string) (string, bool) {
	value, ok := s.entryGUCs[name]
	for _, stmt := range s.Statements {
		if stmt == before {
			break
		}
		if stmt.Kind == parser.KindSet && stmt.SetName == name {
			value, ok = stmt.SetValue, true
		}
	}
	return value, ok
}

// SchemaChangesOtherThan counts statements in the scope, other than the given
// one, that change the schema. Used by sequencing rules.
func (s *Scope) SchemaChangesOtherThan(stmt *parser.Statement) int {
	n := 0
	for _, other := range s.Statements {
		if other == stmt {
			continue
		}
		switch other.Kind {
		case parser.KindBegin, parser.KindCommit, parser.KindRollback,
			parser.KindSet, parser.KindOther:
		default:
			n++
		}
	}
	return n
}

// BuildScopes assigns each statement its transactional scope. The returned
// slice is parallel to stmts; statements in the same explicit block share one
// *Scope. The tracker is a pure function of the statement sequence, so files
// can be processed concurrently with no shared state.
func BuildScopes(stmts []*parser.Statement) []*Scope {
	scopes := make([]*Scope, len(stmts))
	session := map[string]string{}
	var open *Scope

	for i, stmt := range stmts {
		switch stmt.Kind {
		case parser.KindBegin:
			// Nested BEGIN issues a warning in PostgreSQL but does not open a
			// nested transaction; keep the current scope.
			if open == nil {
				open = &Scope{Explicit: true, entryGUCs: cloneGUCs(session)}
			}
			open.Statements = append(open.Statements, stmt)
			scopes[i] = open

		case parser.KindCommit, parser.KindRollback:
			if open != nil {
				open.Statements = append(open.Statements, stmt)
				scopes[i] = open
				open = nil
			} else {
				scopes[i] = singletonScope(stmt, session)
			}

		default:
			if open != nil {
				open.Statements = append(open.Statements, stmt)
				scopes[i] = open
			} else {
				scopes[i] = singletonScope(stmt, session)
			}
			if stmt.Kind == parser.KindSet && !stmt.SetLocal {
				if _, ok := recognizedGUCs[strings.ToLower(stmt.SetName)]; ok {
					session[stmt.SetName] = stmt.SetValue
				}
			}
		}
	}
	return scopes
}

func singletonScope(stmt *parser.Statement, session map[string]string) *Scope {
	return &Scope{
		Explicit:   false,
		Statements: []*parser.Statement{stmt},
		entryGUCs:  cloneGUCs(session),
	}
}

func cloneGUCs(gucs map[string]string) map[string]string {
	out := make(map[string]string, len(gucs))
	for k, v := range gucs {
		out[k] = v
	}
	return out
}
