package executor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"QuillDB/types"
)

// whereCond is a single-column comparison extracted from a WHERE clause.
type whereCond struct {
	colIdx int
	op     string
	val    rowValue
}

func (ex *Executor) runSelect(s *sqlparser.Select) (string, error) {
	engine, err := ex.engine()
	if err != nil {
		return "", err
	}
	tableName, err := singleTable(s.From)
	if err != nil {
		return "", err
	}
	schema, err := engine.ReadSchema(tableName)
	if err != nil {
		return "", err
	}
	handle, err := engine.OpenTable(tableName)
	if err != nil {
		return "", err
	}

	projection, header, err := projectionColumns(schema, s.SelectExprs)
	if err != nil {
		return "", err
	}

	var cond *whereCond
	if s.Where != nil {
		cond, err = parseWhere(schema, s.Where.Expr)
		if err != nil {
			return "", err
		}
	}

	var rows [][]rowValue
	appendRow := func(row []rowValue) {
		projected := make([]rowValue, len(projection))
		for i, idx := range projection {
			projected[i] = row[idx]
		}
		rows = append(rows, projected)
	}

	pkIdx := schema.PrimaryKeyIndex()
	if cond != nil && cond.op == "=" && cond.colIdx == pkIdx && pkIdx >= 0 {
		// point lookup on the clustered key
		key, err := encodeKey(schema.Columns[pkIdx].Type, cond.val.Text)
		if err != nil {
			return "", err
		}
		raw, err := engine.Get(handle, key)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return renderRows(header, nil), nil
			}
			return "", err
		}
		row, err := deserializeRow(raw)
		if err != nil {
			return "", err
		}
		appendRow(row)
		return renderRows(header, rows), nil
	}

	var scanErr error
	err = engine.Scan(handle, func(_, value []byte) bool {
		row, derr := deserializeRow(value)
		if derr != nil {
			scanErr = derr
			return false
		}
		ok, merr := matches(schema, cond, row)
		if merr != nil {
			scanErr = merr
			return false
		}
		if ok {
			appendRow(row)
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if scanErr != nil {
		return "", scanErr
	}
	return renderRows(header, rows), nil
}

func singleTable(from sqlparser.TableExprs) (string, error) {
	if len(from) != 1 {
		return "", fmt.Errorf("%w: exactly one table expected", types.ErrInvalidArgument)
	}
	aliased, ok := from[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return "", fmt.Errorf("%w: joins are not supported", types.ErrInvalidArgument)
	}
	name, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return "", fmt.Errorf("%w: subqueries are not supported", types.ErrInvalidArgument)
	}
	return name.Name.String(), nil
}

func projectionColumns(schema *types.TableSchema, exprs sqlparser.SelectExprs) ([]int, []string, error) {
	var projection []int
	var header []string
	for _, se := range exprs {
		switch e := se.(type) {
		case *sqlparser.StarExpr:
			for i := range schema.Columns {
				projection = append(projection, i)
				header = append(header, schema.Columns[i].Name)
			}
		case *sqlparser.AliasedExpr:
			col, ok := e.Expr.(*sqlparser.ColName)
			if !ok {
				return nil, nil, fmt.Errorf("%w: unsupported select expression %s", types.ErrInvalidArgument, sqlparser.String(e))
			}
			idx := columnIndex(schema, col.Name.String())
			if idx < 0 {
				return nil, nil, fmt.Errorf("%w: unknown column %q", types.ErrInvalidArgument, col.Name.String())
			}
			projection = append(projection, idx)
			if e.As.String() != "" {
				header = append(header, e.As.String())
			} else {
				header = append(header, schema.Columns[idx].Name)
			}
		default:
			return nil, nil, fmt.Errorf("%w: unsupported select expression", types.ErrInvalidArgument)
		}
	}
	return projection, header, nil
}

// parseWhere accepts a single comparison between one column and a literal.
func parseWhere(schema *types.TableSchema, expr sqlparser.Expr) (*whereCond, error) {
	cmp, ok := expr.(*sqlparser.ComparisonExpr)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported WHERE clause %s", types.ErrInvalidArgument, sqlparser.String(expr))
	}
	col, ok := cmp.Left.(*sqlparser.ColName)
	if !ok {
		return nil, fmt.Errorf("%w: WHERE must compare a column to a literal", types.ErrInvalidArgument)
	}
	idx := columnIndex(schema, col.Name.String())
	if idx < 0 {
		return nil, fmt.Errorf("%w: unknown column %q", types.ErrInvalidArgument, col.Name.String())
	}
	val, err := exprValue(cmp.Right)
	if err != nil {
		return nil, err
	}
	switch cmp.Operator {
	case "=", "!=", "<>", "<", "<=", ">", ">=":
	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", types.ErrInvalidArgument, cmp.Operator)
	}
	return &whereCond{colIdx: idx, op: cmp.Operator, val: val}, nil
}

// matches evaluates a condition against a deserialized row. Integer columns
// compare numerically, everything else as text; NULL matches nothing.
func matches(schema *types.TableSchema, cond *whereCond, row []rowValue) (bool, error) {
	if cond == nil {
		return true, nil
	}
	cell := row[cond.colIdx]
	if cell.Null || cond.val.Null {
		return false, nil
	}

	var c int
	if isIntegerType(schema.Columns[cond.colIdx].Type) {
		a, err := strconv.ParseInt(strings.TrimSpace(cell.Text), 10, 64)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not an integer", types.ErrIntegrity, cell.Text)
		}
		b, err := strconv.ParseInt(strings.TrimSpace(cond.val.Text), 10, 64)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not an integer", types.ErrInvalidArgument, cond.val.Text)
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	} else {
		c = strings.Compare(cell.Text, cond.val.Text)
	}

	switch cond.op {
	case "=":
		return c == 0, nil
	case "!=", "<>":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, nil
}
