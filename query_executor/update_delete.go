package executor

import (
	"errors"
	"fmt"

	"github.com/xwb1989/sqlparser"

	"QuillDB/types"
)

// pkCondition extracts a primary-key equality from a WHERE clause, the only
// predicate UPDATE and DELETE accept.
func pkCondition(schema *types.TableSchema, where *sqlparser.Where, verb string) ([]byte, error) {
	pkIdx := schema.PrimaryKeyIndex()
	if pkIdx < 0 {
		return nil, fmt.Errorf("%w: %s requires a primary key on the table", types.ErrInvalidArgument, verb)
	}
	if where == nil {
		return nil, fmt.Errorf("%w: %s requires WHERE %s = <value>", types.ErrInvalidArgument, verb, schema.Columns[pkIdx].Name)
	}
	cond, err := parseWhere(schema, where.Expr)
	if err != nil {
		return nil, err
	}
	if cond.colIdx != pkIdx || cond.op != "=" {
		return nil, fmt.Errorf("%w: %s supports only WHERE %s = <value>", types.ErrInvalidArgument, verb, schema.Columns[pkIdx].Name)
	}
	if cond.val.Null {
		return nil, fmt.Errorf("%w: primary key is never NULL", types.ErrInvalidArgument)
	}
	return encodeKey(schema.Columns[pkIdx].Type, cond.val.Text)
}

func (ex *Executor) runUpdate(s *sqlparser.Update) (string, error) {
	engine, err := ex.engine()
	if err != nil {
		return "", err
	}
	tableName, err := singleTable(s.TableExprs)
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

	key, err := pkCondition(schema, s.Where, "UPDATE")
	if err != nil {
		return "", err
	}

	raw, err := engine.Get(handle, key)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "0 row(s) updated", nil
		}
		return "", err
	}
	row, err := deserializeRow(raw)
	if err != nil {
		return "", err
	}

	pkIdx := schema.PrimaryKeyIndex()
	for _, ue := range s.Exprs {
		idx := columnIndex(schema, ue.Name.Name.String())
		if idx < 0 {
			return "", fmt.Errorf("%w: unknown column %q", types.ErrInvalidArgument, ue.Name.Name.String())
		}
		if idx == pkIdx {
			return "", fmt.Errorf("%w: cannot update the primary key", types.ErrInvalidArgument)
		}
		v, err := exprValue(ue.Expr)
		if err != nil {
			return "", err
		}
		if schema.Columns[idx].IsNotNull && v.Null {
			return "", fmt.Errorf("%w: column %q is NOT NULL", types.ErrInvalidArgument, schema.Columns[idx].Name)
		}
		row[idx] = v
	}

	newRaw, err := serializeRow(row)
	if err != nil {
		return "", err
	}
	if err := engine.Update(handle, key, newRaw); err != nil {
		return "", err
	}
	return "1 row(s) updated", nil
}

func (ex *Executor) runDelete(s *sqlparser.Delete) (string, error) {
	engine, err := ex.engine()
	if err != nil {
		return "", err
	}
	tableName, err := singleTable(s.TableExprs)
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

	key, err := pkCondition(schema, s.Where, "DELETE")
	if err != nil {
		return "", err
	}

	if err := engine.Delete(handle, key); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "0 row(s) deleted", nil
		}
		return "", err
	}
	return "1 row(s) deleted", nil
}
