package semantic

import (
	"testing"

	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

func ordersDataset() *types.Dataset {
	return &types.Dataset{
		ID:        "orders",
		Engine:    "postgres",
		BaseTable: "orders",
		Fields: []types.Field{
			{Name: "city", PhysicalColumn: "city", Kind: types.FieldDimension, Type: types.TypeString},
			{Name: "order_date", PhysicalColumn: "order_date", Kind: types.FieldTime, Type: types.TypeDate},
			{Name: "total_revenue", PhysicalColumn: "amount", Kind: types.FieldMeasure, Type: types.TypeFloat, Aggregation: types.AggSum},
			{Name: "order_count", PhysicalColumn: "id", Kind: types.FieldMeasure, Type: types.TypeInt, Aggregation: types.AggCountDistinct},
			{Name: "avg_order_value", Kind: types.FieldMeasure, Type: types.TypeFloat, CalculatedExpression: "[total_revenue] / [order_count]"},
		},
	}
}

func noRLS() *types.RLSResult { return &types.RLSResult{} }

func TestCompile_SimpleDimensionAndMeasure(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{Dataset: "orders", Dimensions: []string{"city"}, Metrics: []string{"total_revenue"}, Limit: 50}

	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, noRLS())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(plan.Projections) != 2 {
		t.Fatalf("len(Projections) = %d, want 2", len(plan.Projections))
	}
	if plan.Projections[0].Alias != "city" || plan.Projections[0].Expression != "orders.city" {
		t.Errorf("dimension projection = %+v", plan.Projections[0])
	}
	if plan.Projections[1].Expression != "SUM(orders.amount)" {
		t.Errorf("measure projection expression = %q, want SUM(orders.amount)", plan.Projections[1].Expression)
	}
	if !plan.Projections[1].IsMeasure {
		t.Errorf("measure projection IsMeasure = false, want true")
	}
	if len(plan.GroupBy) != 1 || plan.GroupBy[0] != "orders.city" {
		t.Errorf("GroupBy = %v, want [orders.city]", plan.GroupBy)
	}
}

func TestCompile_CountDistinctMeasure(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{Dataset: "orders", Metrics: []string{"order_count"}}

	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, noRLS())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if plan.Projections[0].Expression != "COUNT(DISTINCT orders.id)" {
		t.Errorf("expression = %q, want COUNT(DISTINCT orders.id)", plan.Projections[0].Expression)
	}
}

func TestCompile_NoMeasuresOmitsGroupBy(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{Dataset: "orders", Dimensions: []string{"city"}}

	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, noRLS())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if plan.GroupBy != nil {
		t.Errorf("GroupBy = %v, want nil when no measures are selected", plan.GroupBy)
	}
}

func TestCompile_CalculatedFieldSubstitution(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{Dataset: "orders", Metrics: []string{"avg_order_value"}}

	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, noRLS())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := "(SUM(orders.amount)) / (COUNT(DISTINCT orders.id))"
	if plan.Projections[0].Expression != want {
		t.Errorf("expression = %q, want %q", plan.Projections[0].Expression, want)
	}
}

func TestCompile_UnknownDimensionFails(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{Dataset: "orders", Dimensions: []string{"nonexistent"}}

	_, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, noRLS())
	if err == nil {
		t.Fatal("Compile() error = nil, want error for unknown dimension")
	}
	kind, ok := errors.KindOf(err)
	if !ok || kind != errors.KindDimensionNotFound {
		t.Errorf("Kind = %v (ok=%v), want %v", kind, ok, errors.KindDimensionNotFound)
	}
}

func TestCompile_UnknownMeasureFails(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{Dataset: "orders", Metrics: []string{"nonexistent"}}

	_, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, noRLS())
	if err == nil {
		t.Fatal("Compile() error = nil, want error for unknown measure")
	}
	kind, ok := errors.KindOf(err)
	if !ok || kind != errors.KindMeasureNotFound {
		t.Errorf("Kind = %v (ok=%v), want %v", kind, ok, errors.KindMeasureNotFound)
	}
}

func TestCompile_DimensionInMetricsPositionFails(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{Dataset: "orders", Metrics: []string{"city"}}

	_, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, noRLS())
	if err == nil {
		t.Fatal("Compile() error = nil, want error: a dimension cannot be requested as a metric")
	}
	kind, ok := errors.KindOf(err)
	if !ok || kind != errors.KindMeasureNotFound {
		t.Errorf("Kind = %v (ok=%v), want %v", kind, ok, errors.KindMeasureNotFound)
	}
}

func TestCompile_RLSPredicateAlwaysMergedFirst(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{
		Dataset:    "orders",
		Dimensions: []string{"city"},
		Filters:    &types.FilterNode{Field: "city", Op: types.OpEq, Value: "nyc"},
	}
	rls := &types.RLSResult{Applied: true, Predicate: &types.FilterNode{Field: "tenant_id", Op: types.OpEq, Value: "acme"}}

	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, rls)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if plan.WhereTree == nil || len(plan.WhereTree.And) != 2 {
		t.Fatalf("WhereTree = %+v, want an AND of 2 nodes", plan.WhereTree)
	}
	if plan.WhereTree.And[0].Field != "tenant_id" {
		t.Errorf("WhereTree.And[0].Field = %q, want tenant_id to lead", plan.WhereTree.And[0].Field)
	}
	if plan.WhereTree.And[1].Field != "city" {
		t.Errorf("WhereTree.And[1].Field = %q, want the rewritten client filter", plan.WhereTree.And[1].Field)
	}
}

func TestCompile_FilterFieldRewrittenToPhysicalColumn(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{
		Dataset: "orders",
		Metrics: []string{"total_revenue"},
		Filters: &types.FilterNode{Field: "order_count", Op: types.OpGt, Value: 0},
	}

	// order_count maps to physical column "id"; filters rewrite by field name.
	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, noRLS())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if plan.WhereTree == nil || plan.WhereTree.Field != "id" {
		t.Errorf("WhereTree = %+v, want Field rewritten to physical column \"id\"", plan.WhereTree)
	}
}

func TestCompile_OrderByPreservesProjectedAlias(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{
		Dataset:    "orders",
		Dimensions: []string{"city"},
		Metrics:    []string{"total_revenue"},
		OrderBy:    []types.OrderBy{{Field: "total_revenue", Direction: types.Desc}},
	}

	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, noRLS())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(plan.OrderBy) != 1 || plan.OrderBy[0].Field != "total_revenue" {
		t.Errorf("OrderBy = %+v, want alias preserved", plan.OrderBy)
	}
	if plan.OrderBy[0].Direction != types.Desc {
		t.Errorf("OrderBy[0].Direction = %v, want Desc", plan.OrderBy[0].Direction)
	}
}

// S1 – basic aggregation: dataset orders, field city, measure
// total_revenue := SUM(amount), RLS on tenant_id. dims=[city],
// metrics=[total_revenue], filters=nil, tenant A.
func TestCompile_S1_BasicAggregation(t *testing.T) {
	ds := ordersDataset()
	ds.RLS = types.RLSPolicy{Enabled: true, Column: "tenant_id", Mode: types.RLSModeEquals}
	ds.Fields = append(ds.Fields, types.Field{Name: "tenant_id", PhysicalColumn: "tenant_id", Kind: types.FieldDimension, Type: types.TypeString})

	q := &types.SemanticQuery{Dataset: "orders", Dimensions: []string{"city"}, Metrics: []string{"total_revenue"}}
	rlsResult := &types.RLSResult{Applied: true, Predicate: &types.FilterNode{Field: "tenant_id", Op: types.OpEq, Value: "A"}}

	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, rlsResult)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(plan.Projections) != 2 || plan.Projections[0].Expression != "orders.city" || plan.Projections[1].Expression != "SUM(orders.amount)" {
		t.Fatalf("Projections = %+v, want [orders.city SUM(orders.amount)]", plan.Projections)
	}
	if len(plan.GroupBy) != 1 || plan.GroupBy[0] != "orders.city" {
		t.Errorf("GroupBy = %v, want [orders.city]", plan.GroupBy)
	}
	if plan.WhereTree == nil || plan.WhereTree.Field != "tenant_id" || plan.WhereTree.Value != "A" {
		t.Errorf("WhereTree = %+v, want tenant_id = A", plan.WhereTree)
	}
}

// S2 – admin bypass: same dataset with allowAdminBypass=true, role admin.
// No tenant_id predicate should reach the compiled plan; the rlsApplied /
// rlsBypassed stats are rls.Evaluate's contract (see rls_test.go) and are
// exercised end to end by the pipeline tests.
func TestCompile_S2_AdminBypassProducesNoRLSPredicate(t *testing.T) {
	ds := ordersDataset()
	ds.RLS = types.RLSPolicy{Enabled: true, Column: "tenant_id", AllowAdminBypass: true}

	q := &types.SemanticQuery{Dataset: "orders", Dimensions: []string{"city"}, Metrics: []string{"total_revenue"}}
	bypassed := &types.RLSResult{Applied: false, Bypassed: true, Reason: "admin bypass enabled for dataset"}

	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, bypassed)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if plan.WhereTree != nil {
		t.Errorf("WhereTree = %+v, want nil: admin bypass must not add a tenant predicate", plan.WhereTree)
	}
}

// S3 – filter tree + limit: filters = AND[city IN (X,Y), order_date
// BETWEEN 2024-01-01 AND 2024-01-31], limit=10. WhereTree must contain the
// RLS predicate ANDed with both client conditions, and Limit must carry
// through unchanged.
func TestCompile_S3_FilterTreePlusLimit(t *testing.T) {
	ds := ordersDataset()
	q := &types.SemanticQuery{
		Dataset:    "orders",
		Dimensions: []string{"city"},
		Metrics:    []string{"total_revenue"},
		Filters: &types.FilterNode{And: []types.FilterNode{
			{Field: "city", Op: types.OpIn, Values: []interface{}{"X", "Y"}},
			{Field: "order_date", Op: types.OpBetween, From: "2024-01-01", To: "2024-01-31"},
		}},
		Limit: 10,
	}
	rlsResult := &types.RLSResult{Applied: true, Predicate: &types.FilterNode{Field: "tenant_id", Op: types.OpEq, Value: "A"}}

	plan, err := NewCompiler().Compile(q, ds, &types.ERDModel{}, rlsResult)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if plan.Limit != 10 {
		t.Errorf("Limit = %d, want 10", plan.Limit)
	}
	if plan.WhereTree == nil || len(plan.WhereTree.And) != 2 {
		t.Fatalf("WhereTree = %+v, want an AND of [rls, client filters]", plan.WhereTree)
	}
	if plan.WhereTree.And[0].Field != "tenant_id" {
		t.Errorf("WhereTree.And[0].Field = %q, want tenant_id to lead", plan.WhereTree.And[0].Field)
	}
	clientFilter := plan.WhereTree.And[1]
	if len(clientFilter.And) != 2 {
		t.Fatalf("client filter = %+v, want both client conditions preserved", clientFilter)
	}
	if clientFilter.And[0].Op != types.OpIn || clientFilter.And[1].Op != types.OpBetween {
		t.Errorf("client filter ops = [%v %v], want [in between]", clientFilter.And[0].Op, clientFilter.And[1].Op)
	}
}

// S5 – join planning: orders(customer_id) -> customers(id, region_id) ->
// regions(id, name). dims=[region_name] (regions.name), metrics=[order_total]
// (SUM(orders.amount)). Join steps must resolve orders -> customers ->
// regions in that order, and GROUP BY must target regions.name.
func TestCompile_S5_JoinPlanningThreeTables(t *testing.T) {
	ds := &types.Dataset{
		ID:        "orders",
		BaseTable: "orders",
		Fields: []types.Field{
			{Name: "region_name", PhysicalColumn: "name", Kind: types.FieldDimension, Type: types.TypeString, SourceTable: "regions"},
			{Name: "order_total", PhysicalColumn: "amount", Kind: types.FieldMeasure, Type: types.TypeFloat, Aggregation: types.AggSum},
		},
	}
	erd := &types.ERDModel{
		Edges: []types.ERDEdge{
			{Source: types.TableRef{Table: "orders"}, Target: types.TableRef{Table: "customers"}, SourceCol: "customer_id", TargetCol: "id", Cardinality: types.CardinalityManyToOne, JoinType: types.JoinInner, Active: true},
			{Source: types.TableRef{Table: "customers"}, Target: types.TableRef{Table: "regions"}, SourceCol: "region_id", TargetCol: "id", Cardinality: types.CardinalityManyToOne, JoinType: types.JoinInner, Active: true},
		},
	}
	q := &types.SemanticQuery{Dataset: "orders", Dimensions: []string{"region_name"}, Metrics: []string{"order_total"}}

	plan, err := NewCompiler().Compile(q, ds, erd, noRLS())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(plan.JoinSteps) != 2 {
		t.Fatalf("len(JoinSteps) = %d, want 2 (orders->customers->regions)", len(plan.JoinSteps))
	}
	if plan.JoinSteps[0].Table.Table != "customers" || plan.JoinSteps[1].Table.Table != "regions" {
		t.Errorf("JoinSteps tables = [%s %s], want [customers regions]", plan.JoinSteps[0].Table.Table, plan.JoinSteps[1].Table.Table)
	}
	if len(plan.GroupBy) != 1 || plan.GroupBy[0] != "regions.name" {
		t.Errorf("GroupBy = %v, want [regions.name]", plan.GroupBy)
	}
}

func TestCompile_JoinAcrossSourceTable(t *testing.T) {
	ds := ordersDataset()
	ds.Fields = append(ds.Fields, types.Field{
		Name: "customer_name", PhysicalColumn: "name", Kind: types.FieldDimension,
		Type: types.TypeString, SourceTable: "customers",
	})
	erd := &types.ERDModel{
		Edges: []types.ERDEdge{
			{Source: types.TableRef{Table: "orders"}, Target: types.TableRef{Table: "customers"}, SourceCol: "customer_id", TargetCol: "id", Cardinality: types.CardinalityManyToOne, JoinType: types.JoinInner, Active: true},
		},
	}
	q := &types.SemanticQuery{Dataset: "orders", Dimensions: []string{"customer_name"}, Metrics: []string{"total_revenue"}}

	plan, err := NewCompiler().Compile(q, ds, erd, noRLS())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(plan.JoinSteps) != 1 {
		t.Fatalf("len(JoinSteps) = %d, want 1", len(plan.JoinSteps))
	}
	if plan.JoinSteps[0].Table.Table != "customers" {
		t.Errorf("JoinSteps[0].Table = %+v, want customers", plan.JoinSteps[0].Table)
	}
}
