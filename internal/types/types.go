// Package types holds the data model shared across the gateway's
// components: the request shape clients send, the catalog/ERD shapes the
// compiler reads, and the result/cache-entry shapes the pipeline returns.
// Every type here is a plain value — nothing here owns a connection, a
// goroutine, or a mutex.
package types

import "time"

// Role is the closed set of caller roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleService Role = "service"
)

// TenantContext is produced by the auth collaborator at request entry and
// discarded at request completion. Nothing downstream may read tenant/role
// from anywhere but this value.
type TenantContext struct {
	Tenant string
	Role   Role
	KeyID  string
}

// FieldKind classifies a dataset field.
type FieldKind string

const (
	FieldDimension FieldKind = "dimension"
	FieldMeasure   FieldKind = "measure"
	FieldTime      FieldKind = "time"
)

// FieldType is the declared scalar type of a field.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeDecimal  FieldType = "decimal"
	TypeBool     FieldType = "bool"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypeTimestamp FieldType = "timestamp"
)

// Aggregation is the aggregation tag carried by a measure.
type Aggregation string

const (
	AggSum           Aggregation = "SUM"
	AggCount         Aggregation = "COUNT"
	AggCountDistinct Aggregation = "COUNT_DISTINCT"
	AggAvg           Aggregation = "AVG"
	AggMin           Aggregation = "MIN"
	AggMax           Aggregation = "MAX"
	AggMedian        Aggregation = "MEDIAN"
	AggStddev        Aggregation = "STDDEV"
	AggVariance      Aggregation = "VARIANCE"
	AggFirst         Aggregation = "FIRST"
	AggLast          Aggregation = "LAST"
	AggNone          Aggregation = "NONE"
)

// RLSMode selects how the RLS predicate value is compared.
type RLSMode string

const (
	RLSModeEquals RLSMode = "equals"
	RLSModeInList RLSMode = "in_list"
)

// RLSPolicy is a dataset's row-level-security configuration.
type RLSPolicy struct {
	Enabled          bool
	Column           string
	Mode             RLSMode
	AllowAdminBypass bool
}

// Field is a single dimension, measure, or time field on a dataset.
type Field struct {
	Name           string
	PhysicalColumn string
	Kind           FieldKind
	Type           FieldType

	// Measure-only.
	Aggregation Aggregation
	Expression  string // bare column, or a full SQL expression

	// Calculated-field-only: an expression using [otherField] references.
	CalculatedExpression string

	// SourceTable qualifies PhysicalColumn/Expression when the field's
	// table differs from the dataset's base table (used by the join
	// planner to know which table a field lives on).
	SourceTable string
}

// IsCalculated reports whether this field is a [bracket]-referencing
// calculated field rather than a plain dimension/measure.
func (f Field) IsCalculated() bool { return f.CalculatedExpression != "" }

// Dataset is a named logical table: engine binding, base table, declared
// fields, and an RLS policy. Read-only in the core; owned by the catalog
// collaborator.
type Dataset struct {
	ID          string
	SourceID    string
	Engine      string
	BaseTable   string
	Fields      []Field
	RLS         RLSPolicy
	AllowedRoles []Role // empty means unrestricted
	QueryTimeout time.Duration
	CacheTTL     time.Duration
	AllowCrossJoin bool

	// DefaultLimit is the row limit applied when a query omits Limit
	// entirely. Zero means the pipeline falls back to its own row max.
	DefaultLimit int
}

// FieldByName looks up a declared field by name.
func (d *Dataset) FieldByName(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FilterOp is the closed set of filter comparison operators.
type FilterOp string

const (
	OpEq         FilterOp = "eq"
	OpNe         FilterOp = "ne"
	OpGt         FilterOp = "gt"
	OpGte        FilterOp = "gte"
	OpLt         FilterOp = "lt"
	OpLte        FilterOp = "lte"
	OpBetween    FilterOp = "between"
	OpIn         FilterOp = "in"
	OpNotIn      FilterOp = "not_in"
	OpContains   FilterOp = "contains"
	OpStartsWith FilterOp = "starts_with"
	OpEndsWith   FilterOp = "ends_with"
	OpIsNull     FilterOp = "is_null"
	OpIsNotNull  FilterOp = "is_not_null"
)

// FilterNode is one node of the filter tree: either a boolean combinator
// (And/Or/Not) or a leaf comparison (Field/Op/...).
type FilterNode struct {
	And []FilterNode
	Or  []FilterNode
	Not *FilterNode

	Field  string
	Op     FilterOp
	Value  interface{}
	Values []interface{}
	From   interface{}
	To     interface{}
}

// IsLeaf reports whether this node is a comparison rather than a combinator.
func (n FilterNode) IsLeaf() bool {
	return len(n.And) == 0 && len(n.Or) == 0 && n.Not == nil
}

// SortDirection orders a result column.
type SortDirection string

const (
	Asc  SortDirection = "ASC"
	Desc SortDirection = "DESC"
)

// OrderBy is one entry of a query's ordering clause.
type OrderBy struct {
	Field     string
	Direction SortDirection
}

// IncrementalWindow bounds a query to a time range over a named column.
type IncrementalWindow struct {
	Column string
	From   time.Time
	To     time.Time
}

// SemanticQuery is the normalized client request.
type SemanticQuery struct {
	Dataset           string
	Dimensions        []string
	Metrics           []string
	Filters           *FilterNode
	OrderBy           []OrderBy
	Limit             int
	Offset            int
	IncrementalWindow *IncrementalWindow
	NoCache           bool
}

// Cardinality describes a join edge's fan-out.
type Cardinality string

const (
	CardinalityOneToOne  Cardinality = "1:1"
	CardinalityOneToMany Cardinality = "1:N"
	CardinalityManyToOne Cardinality = "N:1"
	CardinalityManyToMany Cardinality = "N:N"
)

// rank orders cardinalities for the join planner's tie-break rule:
// smaller max cardinality wins (1:1 < 1:N/N:1 < N:N).
func (c Cardinality) rank() int {
	switch c {
	case CardinalityOneToOne:
		return 0
	case CardinalityOneToMany, CardinalityManyToOne:
		return 1
	case CardinalityManyToMany:
		return 2
	default:
		return 3
	}
}

// CardinalityRank exposes Cardinality.rank to other packages (e.g. the
// join planner's tie-break comparator) without making the method public
// on the type itself, since "rank" is an implementation detail of the
// ordering, not a property callers should rely on directly.
func CardinalityRank(c Cardinality) int { return c.rank() }

// JoinType is the SQL join kind an edge renders as.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
	JoinCross JoinType = "cross"
)

// TableRef names a physical table by schema-qualified name.
type TableRef struct {
	Schema string
	Table  string
}

// String renders "schema.table" or just "table" when schema is empty.
func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Table
	}
	return t.Schema + "." + t.Table
}

// ERDEdge is one join edge in the entity-relationship graph.
type ERDEdge struct {
	Source      TableRef
	Target      TableRef
	SourceCol   string
	TargetCol   string
	Cardinality Cardinality
	JoinType    JoinType
	Active      bool
}

// ERDModel is a directed multigraph of joins between physical tables. The
// graph may be disconnected; only Active edges are usable for planning.
type ERDModel struct {
	Edges []ERDEdge
}

// JoinStep is one ordered step of a resolved join plan.
type JoinStep struct {
	JoinType  JoinType
	Table     TableRef
	Predicate string // rendered "left.col = right.col"
}

// Projection is one SELECT-list entry of a compiled plan.
type Projection struct {
	Alias      string
	Expression string
	IsMeasure  bool
}

// CompiledPlan is the intermediate form C3 hands to C2.
type CompiledPlan struct {
	Dataset      string
	Engine       string
	Projections  []Projection
	SourceTable  TableRef
	JoinSteps    []JoinStep
	WhereTree    *FilterNode
	GroupBy      []string
	OrderBy      []OrderBy
	Limit        int
	Offset       int
}

// Column describes one output column of a QueryResult.
type Column struct {
	Name string
	Type string
}

// QueryResult is the materialized, tabular result of executing a query.
type QueryResult struct {
	Columns     []Column
	Rows        []map[string]interface{}
	RowCount    int
	ExecutionMs int64
	CacheHit    bool
	Engine      string
	Fingerprint string
}

// CacheEntry is what the cache store persists for a fingerprint.
type CacheEntry struct {
	Result    QueryResult
	ExpiresAt time.Time
}

// RLSResult is C4's output: whether a predicate was applied, bypassed, and why.
type RLSResult struct {
	Applied   bool
	Predicate *FilterNode
	Bypassed  bool
	Reason    string
}

// Stats is the one-way record emitted to observability per completed request.
type Stats struct {
	FingerprintPrefix string
	Tenant            string
	Dataset           string
	Engine            string
	Rows              int
	DurationMs        int64
	CacheHit          bool
	RLSApplied        bool
	RLSBypassed       bool
	Outcome           string
	Error             string
}
