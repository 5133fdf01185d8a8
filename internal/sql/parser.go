// Package sql implements the SQL Builder (C2): dialect-aware assembly of
// SELECT statements from a CompiledPlan, RLS-aware filter composition via
// ApplyRLS, syntactic validation, and cross-dialect transpilation.
package sql

import (
	"strings"

	"github.com/canonica-labs/semgate/internal/capabilities"
	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/xwb1989/sqlparser"
)

// Validate rejects multi-statement input, any DDL/DML, and comment tokens
// in any user-supplied SQL path. Used on the native-SQL-bypass path
// before ApplyRLS runs.
func Validate(rawSQL string) error {
	s := strings.TrimSpace(rawSQL)
	if s == "" {
		return errors.NewBuildError("empty SQL", nil)
	}
	if strings.Contains(s, "--") || strings.Contains(s, "/*") {
		return errors.NewBuildError("comment tokens are not allowed in user-supplied SQL", nil)
	}

	stmts, err := sqlparser.SplitStatementToPieces(s)
	if err != nil {
		return errors.NewBuildError("failed to split SQL into statements", err)
	}
	if len(stmts) > 1 {
		return errors.NewBuildError("multiple statements are not allowed", nil)
	}

	stmt, err := sqlparser.Parse(s)
	if err != nil {
		return errors.NewBuildError("invalid SQL syntax", err)
	}

	op, err := classifyOperation(stmt)
	if err != nil {
		return err
	}
	if op.IsWriteOperation() {
		return errors.NewBuildError("write operations are not allowed: "+string(op), nil)
	}
	return nil
}

// classifyOperation maps a parsed statement to its OperationType. It never
// returns an error; Validate rejects the kinds that are write operations.
func classifyOperation(stmt sqlparser.Statement) (capabilities.OperationType, error) {
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return capabilities.OperationSelect, nil
	case *sqlparser.Insert:
		return capabilities.OperationInsert, nil
	case *sqlparser.Update:
		return capabilities.OperationUpdate, nil
	case *sqlparser.Delete:
		return capabilities.OperationDelete, nil
	case *sqlparser.DDL:
		return capabilities.OperationDDL, nil
	default:
		return capabilities.OperationOther, nil
	}
}

// ExtractWhere parses sql and returns its WHERE clause as a string (without
// the leading "WHERE"), or "" if there is none. Used by ApplyRLS to splice
// the RLS predicate into hand-written SQL on the native-SQL-bypass path.
func ExtractWhere(rawSQL string) (string, error) {
	stmt, err := sqlparser.Parse(rawSQL)
	if err != nil {
		return "", errors.NewBuildError("failed to parse SQL for RLS injection", err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return "", errors.NewBuildError("RLS injection only supported for SELECT statements", nil)
	}
	if sel.Where == nil {
		return "", nil
	}
	return sqlparser.String(sel.Where.Expr), nil
}
