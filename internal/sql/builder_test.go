package sql

import (
	"strings"
	"testing"

	"github.com/canonica-labs/semgate/internal/types"
)

func simplePlan() *types.CompiledPlan {
	return &types.CompiledPlan{
		Dataset:     "orders",
		Engine:      "postgres",
		SourceTable: types.TableRef{Table: "orders"},
		Projections: []types.Projection{
			{Alias: "city", Expression: "orders.city"},
			{Alias: "total_revenue", Expression: "SUM(orders.amount)", IsMeasure: true},
		},
		GroupBy: []string{"orders.city"},
		Limit:   50,
	}
}

func TestBuild_SimpleSelect(t *testing.T) {
	rendered, args, err := Build(simplePlan(), "postgres")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(rendered, "SELECT") || !strings.Contains(rendered, "FROM") {
		t.Errorf("rendered = %q, missing SELECT/FROM", rendered)
	}
	if !strings.Contains(rendered, "GROUP BY") {
		t.Errorf("rendered = %q, want GROUP BY clause", rendered)
	}
	if !strings.Contains(rendered, "LIMIT") {
		t.Errorf("rendered = %q, want LIMIT clause", rendered)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none for a filter-less plan", args)
	}
}

// S1 – basic aggregation. Dataset orders, field city, measure
// total_revenue := SUM(amount), RLS on tenant_id. Expected SQL shape:
// SELECT city, SUM(amount) AS total_revenue FROM orders WHERE tenant_id =
// ? GROUP BY city, params ["A"].
func TestBuild_S1_BasicAggregation(t *testing.T) {
	plan := &types.CompiledPlan{
		Dataset:     "orders",
		SourceTable: types.TableRef{Table: "orders"},
		Projections: []types.Projection{
			{Alias: "city", Expression: "orders.city"},
			{Alias: "total_revenue", Expression: "SUM(orders.amount)", IsMeasure: true},
		},
		WhereTree: &types.FilterNode{Field: "tenant_id", Op: types.OpEq, Value: "A"},
		GroupBy:   []string{"orders.city"},
	}

	rendered, args, err := Build(plan, "postgres")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(rendered, "SELECT") || !strings.Contains(rendered, "FROM") {
		t.Errorf("rendered = %q, want SELECT ... FROM", rendered)
	}
	if !strings.Contains(rendered, "SUM(orders.amount)") {
		t.Errorf("rendered = %q, want the SUM(amount) measure", rendered)
	}
	if !strings.Contains(rendered, "WHERE") || !strings.Contains(rendered, "tenant_id") {
		t.Errorf("rendered = %q, want a tenant_id WHERE predicate", rendered)
	}
	if !strings.Contains(rendered, "GROUP BY") {
		t.Errorf("rendered = %q, want GROUP BY", rendered)
	}
	if len(args) != 1 || args[0] != "A" {
		t.Errorf("args = %v, want [A]", args)
	}
}

// S3 – filter tree + limit. filters = AND[city IN (X,Y), order_date
// BETWEEN 2024-01-01 AND 2024-01-31], limit=10. Expected WHERE contains
// both client conditions and the statement carries LIMIT 10.
func TestBuild_S3_FilterTreePlusLimit(t *testing.T) {
	plan := simplePlan()
	plan.WhereTree = &types.FilterNode{And: []types.FilterNode{
		{Field: "city", Op: types.OpIn, Values: []interface{}{"X", "Y"}},
		{Field: "order_date", Op: types.OpBetween, From: "2024-01-01", To: "2024-01-31"},
	}}
	plan.Limit = 10

	rendered, args, err := Build(plan, "postgres")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(rendered, "city") || !strings.Contains(rendered, "order_date") {
		t.Errorf("rendered = %q, want both city and order_date predicates", rendered)
	}
	if !strings.Contains(rendered, "BETWEEN") {
		t.Errorf("rendered = %q, want a BETWEEN predicate", rendered)
	}
	if !strings.Contains(rendered, "LIMIT 10") {
		t.Errorf("rendered = %q, want LIMIT 10", rendered)
	}
	if len(args) != 4 {
		t.Errorf("args = %v, want 4 (2 for IN, 2 for BETWEEN)", args)
	}
}

// S6 – dialect transposition. An identical CompiledPlan rendered under
// postgres and bigquery must differ in identifier quoting and placeholder
// form while preserving the same projections and predicate.
func TestBuild_S6_DialectTransposition(t *testing.T) {
	plan := simplePlan()
	plan.WhereTree = &types.FilterNode{Field: "city", Op: types.OpEq, Value: "nyc"}

	postgresSQL, postgresArgs, err := Build(plan, "postgres")
	if err != nil {
		t.Fatalf("Build(postgres) error = %v", err)
	}
	bigquerySQL, bigqueryArgs, err := Build(plan, "bigquery")
	if err != nil {
		t.Fatalf("Build(bigquery) error = %v", err)
	}

	if !strings.Contains(postgresSQL, `"`) {
		t.Errorf("postgres rendering = %q, want double-quoted identifiers", postgresSQL)
	}
	if !strings.Contains(bigquerySQL, "`") {
		t.Errorf("bigquery rendering = %q, want backtick-quoted identifiers", bigquerySQL)
	}
	if !strings.Contains(postgresSQL, "$1") {
		t.Errorf("postgres rendering = %q, want a $1 placeholder", postgresSQL)
	}
	if !strings.Contains(bigquerySQL, "@p") {
		t.Errorf("bigquery rendering = %q, want an @p-named placeholder", bigquerySQL)
	}
	if len(postgresArgs) != len(bigqueryArgs) || postgresArgs[0] != bigqueryArgs[0] {
		t.Errorf("args differ across dialects: postgres=%v bigquery=%v, want identical", postgresArgs, bigqueryArgs)
	}
}

func TestBuild_NoProjectionsFails(t *testing.T) {
	plan := simplePlan()
	plan.Projections = nil
	_, _, err := Build(plan, "postgres")
	if err == nil {
		t.Error("Build() error = nil, want error for a plan with no projections")
	}
}

func TestBuild_PlaceholderFormatVariesByDialect(t *testing.T) {
	plan := simplePlan()
	plan.WhereTree = &types.FilterNode{Field: "city", Op: types.OpEq, Value: "nyc"}

	postgresSQL, _, err := Build(plan, "postgres")
	if err != nil {
		t.Fatalf("Build(postgres) error = %v", err)
	}
	if !strings.Contains(postgresSQL, "$1") {
		t.Errorf("postgres rendering = %q, want $1 placeholder", postgresSQL)
	}

	mysqlSQL, _, err := Build(plan, "mysql")
	if err != nil {
		t.Fatalf("Build(mysql) error = %v", err)
	}
	if !strings.Contains(mysqlSQL, "?") {
		t.Errorf("mysql rendering = %q, want ? placeholder", mysqlSQL)
	}
	if strings.Contains(mysqlSQL, "$1") {
		t.Errorf("mysql rendering = %q, should not use $N placeholders", mysqlSQL)
	}
}

func TestBuild_JoinSteps(t *testing.T) {
	plan := simplePlan()
	plan.JoinSteps = []types.JoinStep{
		{JoinType: types.JoinLeft, Table: types.TableRef{Table: "customers"}, Predicate: "orders.customer_id = customers.id"},
	}

	rendered, _, err := Build(plan, "postgres")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(rendered, "LEFT JOIN") {
		t.Errorf("rendered = %q, want LEFT JOIN", rendered)
	}
}

func TestBuild_OrderByDirection(t *testing.T) {
	plan := simplePlan()
	plan.OrderBy = []types.OrderBy{{Field: "total_revenue", Direction: types.Desc}}

	rendered, _, err := Build(plan, "postgres")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(rendered, "DESC") {
		t.Errorf("rendered = %q, want DESC", rendered)
	}
}

func TestApplyRLS_NoExistingWhere(t *testing.T) {
	rlsFilter := &types.FilterNode{Field: "tenant_id", Op: types.OpEq, Value: "acme"}
	rendered, args, err := ApplyRLS("SELECT id FROM orders", rlsFilter, "postgres", "postgres")
	if err != nil {
		t.Fatalf("ApplyRLS() error = %v", err)
	}
	if !strings.Contains(rendered, "WHERE") {
		t.Errorf("rendered = %q, want a WHERE clause injected", rendered)
	}
	if len(args) != 1 || args[0] != "acme" {
		t.Errorf("args = %v, want [acme]", args)
	}
}

func TestApplyRLS_CombinesWithExistingWhere(t *testing.T) {
	rlsFilter := &types.FilterNode{Field: "tenant_id", Op: types.OpEq, Value: "acme"}
	rendered, _, err := ApplyRLS("SELECT id FROM orders WHERE status = 'open'", rlsFilter, "postgres", "postgres")
	if err != nil {
		t.Fatalf("ApplyRLS() error = %v", err)
	}
	if !strings.Contains(rendered, "AND") {
		t.Errorf("rendered = %q, want existing WHERE ANDed with the RLS predicate", rendered)
	}
	if !strings.Contains(rendered, "status") || !strings.Contains(rendered, "open") {
		t.Errorf("rendered = %q, want the original predicate preserved", rendered)
	}
}

func TestApplyRLS_NilFilterPassesThrough(t *testing.T) {
	rendered, args, err := ApplyRLS("SELECT id FROM orders", nil, "postgres", "postgres")
	if err != nil {
		t.Fatalf("ApplyRLS() error = %v", err)
	}
	if rendered != "SELECT id FROM orders" {
		t.Errorf("rendered = %q, want unchanged SQL when rlsFilter is nil", rendered)
	}
	if args != nil {
		t.Errorf("args = %v, want nil", args)
	}
}

func TestRenderFilterNode_Operators(t *testing.T) {
	d := DialectByName("postgres")
	testCases := []struct {
		name string
		node types.FilterNode
	}{
		{name: "eq", node: types.FilterNode{Field: "f", Op: types.OpEq, Value: 1}},
		{name: "between", node: types.FilterNode{Field: "f", Op: types.OpBetween, From: 1, To: 10}},
		{name: "in", node: types.FilterNode{Field: "f", Op: types.OpIn, Values: []interface{}{1, 2, 3}}},
		{name: "is_null", node: types.FilterNode{Field: "f", Op: types.OpIsNull}},
		{name: "contains", node: types.FilterNode{Field: "f", Op: types.OpContains, Value: "abc"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sqlizer, err := renderFilterNode(&tc.node, d)
			if err != nil {
				t.Fatalf("renderFilterNode() error = %v", err)
			}
			if _, _, err := sqlizer.ToSql(); err != nil {
				t.Errorf("ToSql() error = %v", err)
			}
		})
	}
}

func TestRenderFilterNode_UnsupportedOperator(t *testing.T) {
	d := DialectByName("postgres")
	_, err := renderFilterNode(&types.FilterNode{Field: "f", Op: "bogus_op"}, d)
	if err == nil {
		t.Error("renderFilterNode() error = nil, want error for unsupported operator")
	}
}

func TestRenderFilterNode_AndOr(t *testing.T) {
	d := DialectByName("postgres")
	node := types.FilterNode{
		And: []types.FilterNode{
			{Field: "a", Op: types.OpEq, Value: 1},
			{Or: []types.FilterNode{
				{Field: "b", Op: types.OpEq, Value: 2},
				{Field: "c", Op: types.OpEq, Value: 3},
			}},
		},
	}
	sqlizer, err := renderFilterNode(&node, d)
	if err != nil {
		t.Fatalf("renderFilterNode() error = %v", err)
	}
	rendered, _, err := sqlizer.ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}
	if !strings.Contains(rendered, "AND") || !strings.Contains(rendered, "OR") {
		t.Errorf("rendered = %q, want both AND and OR", rendered)
	}
}
