package semantic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// Step names the compiler's state machine stage at the time of a failure:
// Received → Resolved → Planned → Rendered → Dispatched → Complete | Failed.
// Failures carry the step name for diagnostics.
type Step string

const (
	StepReceived Step = "Received"
	StepResolved Step = "Resolved"
	StepPlanned  Step = "Planned"
	StepRendered Step = "Rendered"
)

var bracketRef = regexp.MustCompile(`\[([A-Za-z0-9_.]+)\]`)

// Compiler resolves a SemanticQuery against a Dataset + ERDModel into a
// CompiledPlan, ready for C2 to render.
type Compiler struct{}

func NewCompiler() *Compiler { return &Compiler{} }

// Compile is C3's entry point. rlsPredicate is C4's output, already merged
// under AND with the client's filter tree here — never dropped.
func (c *Compiler) Compile(q *types.SemanticQuery, ds *types.Dataset, erd *types.ERDModel, rls *types.RLSResult) (*types.CompiledPlan, error) {
	anchor := types.TableRef{Table: ds.BaseTable}

	resolvedMeasures := make(map[string]string) // field name -> rendered SQL expression
	tablesUsed := map[string]types.TableRef{anchor.String(): anchor}

	// Resolve dimensions: each becomes a qualified physical column and is
	// added to both SELECT and GROUP BY, in the same order.
	var projections []types.Projection
	var groupBy []string

	resolveField := func(name string) (types.Field, error) {
		f, ok := ds.FieldByName(name)
		if !ok {
			return types.Field{}, errors.NewDimensionNotFound(name)
		}
		return f, nil
	}

	visitedCalc := map[string]bool{}
	var resolveCalculated func(name string) (string, error)

	renderMeasure := func(f types.Field) (string, error) {
		if expr, ok := resolvedMeasures[f.Name]; ok {
			return expr, nil
		}
		body := f.Expression
		if body == "" {
			body = f.PhysicalColumn
		}
		table := f.SourceTable
		if table == "" {
			table = ds.BaseTable
		}
		tablesUsed[types.TableRef{Table: table}.String()] = types.TableRef{Table: table}

		var rendered string
		switch {
		case strings.Contains(body, "("):
			// Body is already a full expression (it contains a call): used as-is.
			rendered = body
		case f.Aggregation == types.AggCountDistinct:
			rendered = fmt.Sprintf("COUNT(DISTINCT %s.%s)", table, quoteIdent(body))
		case f.Aggregation == types.AggNone || f.Aggregation == "":
			rendered = fmt.Sprintf("%s.%s", table, quoteIdent(body))
		default:
			rendered = fmt.Sprintf("%s(%s.%s)", string(f.Aggregation), table, quoteIdent(body))
		}
		resolvedMeasures[f.Name] = rendered
		return rendered, nil
	}

	resolveCalculated = func(name string) (string, error) {
		if visitedCalc[name] {
			return "", errors.NewPlanError(string(StepResolved), fmt.Sprintf("cycle detected resolving calculated field %q", name))
		}
		visitedCalc[name] = true
		defer delete(visitedCalc, name)

		f, err := resolveField(name)
		if err != nil {
			return "", err
		}
		if !f.IsCalculated() {
			if f.Kind == types.FieldMeasure {
				return renderMeasure(f)
			}
			table := f.SourceTable
			if table == "" {
				table = ds.BaseTable
			}
			tablesUsed[types.TableRef{Table: table}.String()] = types.TableRef{Table: table}
			return fmt.Sprintf("%s.%s", table, quoteIdent(f.PhysicalColumn)), nil
		}
		expr := f.CalculatedExpression
		var resolveErr error
		substituted := bracketRef.ReplaceAllStringFunc(expr, func(m string) string {
			ref := bracketRef.FindStringSubmatch(m)[1]
			sub, err := resolveCalculated(ref)
			if err != nil {
				resolveErr = err
				return m
			}
			return "(" + sub + ")"
		})
		if resolveErr != nil {
			return "", resolveErr
		}
		return substituted, nil
	}

	for _, dimName := range q.Dimensions {
		f, err := resolveField(dimName)
		if err != nil {
			return nil, err
		}
		var expr string
		if f.IsCalculated() {
			expr, err = resolveCalculated(dimName)
		} else {
			table := f.SourceTable
			if table == "" {
				table = ds.BaseTable
			}
			tablesUsed[types.TableRef{Table: table}.String()] = types.TableRef{Table: table}
			expr = fmt.Sprintf("%s.%s", table, quoteIdent(f.PhysicalColumn))
		}
		if err != nil {
			return nil, err
		}
		projections = append(projections, types.Projection{Alias: dimName, Expression: expr})
		groupBy = append(groupBy, expr)
	}

	for _, metricName := range q.Metrics {
		f, err := resolveField(metricName)
		if err != nil {
			if _, dimErr := resolveField(metricName); dimErr != nil {
				return nil, errors.NewMeasureNotFound(metricName)
			}
			return nil, err
		}
		var expr string
		if f.IsCalculated() {
			expr, err = resolveCalculated(metricName)
		} else if f.Kind == types.FieldMeasure {
			expr, err = renderMeasure(f)
		} else {
			return nil, errors.NewMeasureNotFound(metricName)
		}
		if err != nil {
			return nil, err
		}
		projections = append(projections, types.Projection{Alias: metricName, Expression: expr, IsMeasure: true})
	}

	if len(q.Metrics) == 0 {
		groupBy = nil // "When no measures are selected, GROUP BY is omitted."
	}

	// Join planning over the tables touched by the resolved projections.
	var required []types.TableRef
	for _, t := range tablesUsed {
		required = append(required, t)
	}
	sort.Slice(required, func(i, j int) bool { return required[i].String() < required[j].String() })

	var joinSteps []types.JoinStep
	if len(required) > 1 {
		steps, err := PlanJoins(erd, anchor, required)
		if err != nil {
			return nil, err
		}
		joinSteps = steps
	}

	// Filter composition: rewrite dimension names in client filters to
	// physical columns, then AND the RLS predicate in (never optional).
	rewritten, err := rewriteFilterNames(q.Filters, ds)
	if err != nil {
		return nil, err
	}
	whereTree := mergeAnd(rls.Predicate, rewritten)

	orderBy := make([]types.OrderBy, 0, len(q.OrderBy))
	for _, ob := range q.OrderBy {
		rewrittenField := ob.Field
		if isProjectedAlias(ob.Field, projections) {
			// already an alias
		} else if f, ok := ds.FieldByName(ob.Field); ok && !f.IsCalculated() {
			rewrittenField = f.PhysicalColumn
		}
		orderBy = append(orderBy, types.OrderBy{Field: rewrittenField, Direction: ob.Direction})
	}

	limit := q.Limit

	return &types.CompiledPlan{
		Dataset:     ds.ID,
		Engine:      ds.Engine,
		Projections: projections,
		SourceTable: anchor,
		JoinSteps:   joinSteps,
		WhereTree:   whereTree,
		GroupBy:     groupBy,
		OrderBy:     orderBy,
		Limit:       limit,
		Offset:      q.Offset,
	}, nil
}

func isProjectedAlias(name string, projections []types.Projection) bool {
	for _, p := range projections {
		if p.Alias == name {
			return true
		}
	}
	return false
}

// rewriteFilterNames rewrites every leaf's Field from a dimension name to
// its physical column. Unknown fields fail the request.
func rewriteFilterNames(n *types.FilterNode, ds *types.Dataset) (*types.FilterNode, error) {
	if n == nil {
		return nil, nil
	}
	if !n.IsLeaf() {
		out := *n
		if len(n.And) > 0 {
			out.And = make([]types.FilterNode, len(n.And))
			for i := range n.And {
				child, err := rewriteFilterNames(&n.And[i], ds)
				if err != nil {
					return nil, err
				}
				out.And[i] = *child
			}
		}
		if len(n.Or) > 0 {
			out.Or = make([]types.FilterNode, len(n.Or))
			for i := range n.Or {
				child, err := rewriteFilterNames(&n.Or[i], ds)
				if err != nil {
					return nil, err
				}
				out.Or[i] = *child
			}
		}
		if n.Not != nil {
			child, err := rewriteFilterNames(n.Not, ds)
			if err != nil {
				return nil, err
			}
			out.Not = child
		}
		return &out, nil
	}
	f, ok := ds.FieldByName(n.Field)
	if !ok {
		return nil, errors.NewDimensionNotFound(n.Field)
	}
	out := *n
	out.Field = f.PhysicalColumn
	return &out, nil
}

// mergeAnd combines two filter trees under AND, skipping nils. The RLS
// predicate always goes first so emitted SQL consistently leads with it.
func mergeAnd(rls, client *types.FilterNode) *types.FilterNode {
	switch {
	case rls == nil:
		return client
	case client == nil:
		return rls
	default:
		return &types.FilterNode{And: []types.FilterNode{*rls, *client}}
	}
}

func quoteIdent(col string) string {
	// Bare column name; dialect-specific quoting happens in the SQL
	// builder (C2), which owns identifier escaping per-engine.
	return col
}
