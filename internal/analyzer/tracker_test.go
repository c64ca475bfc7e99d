package analyzer

import (
	"testing"

	"github.com/peterebden/sql-perf-linter/internal/parser"
)

func TestBuildScopesExplicitBlock(t *testing.T) {
	result := parser.Parse("DROP TABLE a;\nBEGIN;\nDROP TABLE b;\nCOMMIT;\nDROP TABLE c;")
	scopes := BuildScopes(result.Statements)
	if len(scopes) != 5 {
		t.Fatalf("got %d scopes", len(scopes))
	}
	if scopes[0].Explicit || scopes[4].Explicit {
		t.Error("statements outside the block marked explicit")
	}
	if !scopes[1].Explicit || !scopes[2].Explicit || !scopes[3].Explicit {
		t.Error("block statements not marked explicit")
	}
	if scopes[1] != scopes[2] || scopes[2] != scopes[3] {
		t.Error("block statements do not share one scope")
	}
	if len(scopes[2].Statements) != 3 {
		t.Errorf("block scope has %d statements, want 3 (BEGIN, DROP, COMMIT)", len(scopes[2].Statements))
	}
}

func TestBuildScopesNestedBegin(t *testing.T) {
	result := parser.Parse("BEGIN;\nBEGIN;\nDROP TABLE a;\nCOMMIT;\nDROP TABLE b;")
	scopes := BuildScopes(result.Statements)
	// The inner BEGIN is a no-op: the first COMMIT closes the block.
	if scopes[0] != scopes[1] || scopes[1] != scopes[2] || scopes[2] != scopes[3] {
		t.Error("nested BEGIN opened a second scope")
	}
	if scopes[4].Explicit {
		t.Error("statement after COMMIT still in a block")
	}
}

func TestBuildScopesUnclosedBlock(t *testing.T) {
	result := parser.Parse("BEGIN;\nDROP TABLE a;")
	scopes := BuildScopes(result.Statements)
	if !scopes[1].Explicit {
		t.Error("statement in an unclosed block should still be explicit")
	}
}

func TestScopeSettingPrecedence(t *testing.T) {
	result := parser.Parse(`
SET lock_timeout = '10s';
BEGIN;
SET LOCAL lock_timeout = '1s';
DROP TABLE a;
COMMIT;
`)
	scopes := BuildScopes(result.Statements)
	drop := result.Statements[3]
	value, ok := scopes[3].Setting(drop, "lock_timeout")
	if !ok || value != "1s" {
		t.Errorf("got %q %v, want the SET LOCAL value", value, ok)
	}
}

func TestScopeSettingIgnoresUnrecognizedSessionGUCs(t *testing.T) {
	result := parser.Parse("SET search_path = public;\nDROP TABLE a;")
	scopes := BuildScopes(result.Statements)
	if _, ok := scopes[1].Setting(result.Statements[1], "search_path"); ok {
		t.Error("unrecognized GUC should not be tracked across statements")
	}
}
