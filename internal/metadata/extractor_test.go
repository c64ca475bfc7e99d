package metadata

import (
	"testing"

	"github.com/peterebden/sql-perf-linter/internal/operation"
)

func TestExtract(t *testing.T) {
	op := operation.Operation{
		Kind:       operation.AddColumnWithDefault,
		Meta:       operation.MetaFor(operation.AddColumnWithDefault),
		Table:      "public.users",
		Column:     "age",
		TypeName:   "int",
		Constraint: "",
	}
	data := Extract(op)

	if data["Operation"] != "ADD COLUMN with DEFAULT" {
		t.Errorf("got Operation %v", data["Operation"])
	}
	if data["LockMode"] != "AccessExclusive" {
		t.Errorf("got LockMode %v", data["LockMode"])
	}
	if data["TableName"] != "public.users" {
		t.Errorf("got TableName %v", data["TableName"])
	}
	if data["ColumnName"] != "age" {
		t.Errorf("got ColumnName %v", data["ColumnName"])
	}
	if _, ok := data["ConstraintName"]; ok {
		t.Error("empty constraint name should be absent")
	}
	if _, ok := data["IndexName"]; ok {
		t.Error("empty index name should be absent")
	}
}

func TestExtractQuotesIdentifiers(t *testing.T) {
	op := operation.Operation{
		Kind:   operation.DropColumn,
		Table:  "order",
		Column: "Mixed Case",
	}
	data := Extract(op)
	if data["TableName"] != `"order"` {
		t.Errorf("reserved word not quoted: %v", data["TableName"])
	}
	if data["ColumnName"] != `"Mixed Case"` {
		t.Errorf("mixed-case name not quoted: %v", data["ColumnName"])
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"users", "users"},
		{"user_accounts2", "user_accounts2"},
		{"select", `"select"`},
		{"CamelCase", `"CamelCase"`},
		{"with space", `"with space"`},
		{`has"quote`, `"has""quote"`},
		{"1starts_with_digit", `"1starts_with_digit"`},
	}
	for _, tt := range tests {
		if got := QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuoteQualified(t *testing.T) {
	if got := QuoteQualified("public.users"); got != "public.users" {
		t.Errorf("got %q", got)
	}
	if got := QuoteQualified("public.order"); got != `public."order"` {
		t.Errorf("got %q", got)
	}
}
