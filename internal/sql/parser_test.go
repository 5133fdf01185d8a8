package sql

import "testing"

func TestValidate_AcceptsPlainSelect(t *testing.T) {
	if err := Validate("SELECT id, name FROM customers WHERE id = 1"); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_RejectsEmpty(t *testing.T) {
	if err := Validate("   "); err == nil {
		t.Error("Validate() error = nil, want error for empty SQL")
	}
}

func TestValidate_RejectsComments(t *testing.T) {
	testCases := []string{
		"SELECT 1 -- drop everything",
		"SELECT /* sneaky */ 1",
	}
	for _, sql := range testCases {
		if err := Validate(sql); err == nil {
			t.Errorf("Validate(%q) error = nil, want rejection for comment tokens", sql)
		}
	}
}

func TestValidate_RejectsMultipleStatements(t *testing.T) {
	if err := Validate("SELECT 1; SELECT 2;"); err == nil {
		t.Error("Validate() error = nil, want rejection for multiple statements")
	}
}

func TestValidate_RejectsWriteOperations(t *testing.T) {
	testCases := []string{
		"INSERT INTO customers (id) VALUES (1)",
		"UPDATE customers SET name = 'x' WHERE id = 1",
		"DELETE FROM customers WHERE id = 1",
		"CREATE TABLE foo (id INT)",
		"DROP TABLE customers",
	}
	for _, stmt := range testCases {
		if err := Validate(stmt); err == nil {
			t.Errorf("Validate(%q) error = nil, want rejection of a write operation", stmt)
		}
	}
}

func TestValidate_RejectsInvalidSyntax(t *testing.T) {
	if err := Validate("SELEKT * FORM nowhere"); err == nil {
		t.Error("Validate() error = nil, want rejection for invalid syntax")
	}
}

func TestExtractWhere_NoWhereClause(t *testing.T) {
	where, err := ExtractWhere("SELECT id FROM customers")
	if err != nil {
		t.Fatalf("ExtractWhere() error = %v", err)
	}
	if where != "" {
		t.Errorf("where = %q, want empty", where)
	}
}

func TestExtractWhere_WithWhereClause(t *testing.T) {
	where, err := ExtractWhere("SELECT id FROM customers WHERE id = 1")
	if err != nil {
		t.Fatalf("ExtractWhere() error = %v", err)
	}
	if where == "" {
		t.Error("where = empty, want the rendered predicate")
	}
}

func TestExtractWhere_RejectsNonSelect(t *testing.T) {
	_, err := ExtractWhere("UPDATE customers SET name = 'x'")
	if err == nil {
		t.Error("ExtractWhere() error = nil, want rejection of non-SELECT statements")
	}
}
