package sql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// Build renders a CompiledPlan to a single SQL statement (no trailing
// semicolon) plus its positional parameter vector, for the named dialect.
// The statement is assembled on an AST (squirrel's builder), never by
// concatenating user-supplied string fragments.
func Build(plan *types.CompiledPlan, dialectName string) (string, []interface{}, error) {
	d := DialectByName(dialectName)
	b := sq.StatementBuilder.PlaceholderFormat(d.PlaceholderFormat).
		Select().From(quoteTable(d, plan.SourceTable))

	if len(plan.Projections) == 0 {
		return "", nil, errors.NewBuildError("compiled plan has no projections", nil)
	}
	for _, p := range plan.Projections {
		b = b.Column(sq.Alias(sq.Expr(p.Expression), d.Quote(p.Alias)))
	}

	for _, j := range plan.JoinSteps {
		table := quoteTable(d, j.Table)
		clause := fmt.Sprintf("%s ON %s", table, j.Predicate)
		switch j.JoinType {
		case types.JoinLeft:
			b = b.LeftJoin(clause)
		case types.JoinRight:
			b = b.RightJoin(clause)
		case types.JoinInner, "":
			b = b.Join(clause)
		case types.JoinFull:
			b = b.JoinClause("FULL JOIN " + clause)
		default:
			return "", nil, errors.NewBuildError("unsupported join type for rendering: "+string(j.JoinType), nil)
		}
	}

	if plan.WhereTree != nil {
		sqlizer, err := renderFilterNode(plan.WhereTree, d)
		if err != nil {
			return "", nil, err
		}
		b = b.Where(sqlizer)
	}

	for _, g := range plan.GroupBy {
		b = b.GroupBy(g)
	}

	for _, o := range plan.OrderBy {
		dir := "ASC"
		if o.Direction == types.Desc {
			dir = "DESC"
		}
		b = b.OrderBy(fmt.Sprintf("%s %s", d.Quote(o.Field), dir))
	}

	if plan.Limit > 0 {
		b = b.Limit(uint64(plan.Limit))
	}
	if plan.Offset > 0 {
		b = b.Offset(uint64(plan.Offset))
	}

	rendered, args, err := b.ToSql()
	if err != nil {
		return "", nil, errors.NewBuildError("failed to render compiled plan", err)
	}
	rendered = strings.TrimRight(rendered, "; \n")

	if d.InlineValues {
		inlined, err := inlineLiterals(rendered, args)
		if err != nil {
			return "", nil, err
		}
		return inlined, nil, nil
	}
	return rendered, args, nil
}

func quoteTable(d Dialect, t types.TableRef) string {
	if t.Schema == "" {
		return d.Quote(t.Table) + " AS " + t.Table
	}
	return d.Quote(t.Schema) + "." + d.Quote(t.Table) + " AS " + t.Table
}

// ApplyRLS parses rawSQL in readDialect, combines its existing WHERE (if
// any) with rlsFilter using AND, and re-emits the combined predicate in
// writeDialect. Used on the native-SQL-bypass path: every call site that
// accepts hand-written SQL MUST route
// through this before dispatch. Never drops the predicate — a parse
// failure here fails the request rather than silently skipping RLS.
func ApplyRLS(rawSQL string, rlsFilter *types.FilterNode, readDialect, writeDialect string) (string, []interface{}, error) {
	if rlsFilter == nil {
		return rawSQL, nil, nil
	}
	existingWhere, err := ExtractWhere(rawSQL)
	if err != nil {
		return "", nil, err
	}

	d := DialectByName(writeDialect)
	rlsSqlizer, err := renderFilterNode(rlsFilter, d)
	if err != nil {
		return "", nil, err
	}
	rlsSQL, args, err := rlsSqlizer.ToSql()
	if err != nil {
		return "", nil, errors.NewBuildError("failed to render RLS predicate", err)
	}

	combinedWhere := rlsSQL
	if existingWhere != "" {
		combinedWhere = fmt.Sprintf("%s AND (%s)", rlsSQL, existingWhere)
	}

	selectStart := strings.Index(strings.ToUpper(rawSQL), " WHERE ")
	if selectStart == -1 {
		return strings.TrimRight(rawSQL, "; \n") + " WHERE " + combinedWhere, args, nil
	}
	return strings.TrimRight(rawSQL[:selectStart], "; \n") + " WHERE " + combinedWhere, args, nil
}

// Transpile re-renders a CompiledPlan under a different dialect's quoting
// and placeholder conventions. Since the builder always renders from the
// structured CompiledPlan rather than from a prior SQL string, transpilation
// is just Build called twice with different dialect names.
func Transpile(plan *types.CompiledPlan, fromDialect, toDialect string) (string, []interface{}, error) {
	return Build(plan, toDialect)
}

// renderFilterNode converts a FilterNode tree to a squirrel Sqlizer,
// mapping operator tags to squirrel AST nodes.
func renderFilterNode(n *types.FilterNode, d Dialect) (sq.Sqlizer, error) {
	if n == nil {
		return sq.Expr("1=1"), nil
	}
	if len(n.And) > 0 {
		and := sq.And{}
		for i := range n.And {
			child, err := renderFilterNode(&n.And[i], d)
			if err != nil {
				return nil, err
			}
			and = append(and, child)
		}
		return and, nil
	}
	if len(n.Or) > 0 {
		or := sq.Or{}
		for i := range n.Or {
			child, err := renderFilterNode(&n.Or[i], d)
			if err != nil {
				return nil, err
			}
			or = append(or, child)
		}
		return or, nil
	}
	if n.Not != nil {
		child, err := renderFilterNode(n.Not, d)
		if err != nil {
			return nil, err
		}
		sqlStr, args, err := child.ToSql()
		if err != nil {
			return nil, err
		}
		return sq.Expr("NOT ("+sqlStr+")", args...), nil
	}

	col := d.Quote(n.Field)
	switch n.Op {
	case types.OpEq:
		return sq.Eq{col: n.Value}, nil
	case types.OpNe:
		return sq.NotEq{col: n.Value}, nil
	case types.OpGt:
		return sq.Gt{col: n.Value}, nil
	case types.OpGte:
		return sq.GtOrEq{col: n.Value}, nil
	case types.OpLt:
		return sq.Lt{col: n.Value}, nil
	case types.OpLte:
		return sq.LtOrEq{col: n.Value}, nil
	case types.OpBetween:
		return sq.Expr(col+" BETWEEN ? AND ?", n.From, n.To), nil
	case types.OpIn:
		return sq.Eq{col: n.Values}, nil
	case types.OpNotIn:
		return sq.NotEq{col: n.Values}, nil
	case types.OpContains:
		return sq.Like{col: fmt.Sprintf("%%%v%%", n.Value)}, nil
	case types.OpStartsWith:
		return sq.Like{col: fmt.Sprintf("%v%%", n.Value)}, nil
	case types.OpEndsWith:
		return sq.Like{col: fmt.Sprintf("%%%v", n.Value)}, nil
	case types.OpIsNull:
		return sq.Expr(col + " IS NULL"), nil
	case types.OpIsNotNull:
		return sq.Expr(col + " IS NOT NULL"), nil
	default:
		return nil, errors.NewBuildError("unsupported filter operator: "+string(n.Op), nil)
	}
}
