package executor

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"QuillDB/types"
)

func (ex *Executor) runInsert(s *sqlparser.Insert) (string, error) {
	engine, err := ex.engine()
	if err != nil {
		return "", err
	}
	tableName := s.Table.Name.String()

	schema, err := engine.ReadSchema(tableName)
	if err != nil {
		return "", err
	}
	handle, err := engine.OpenTable(tableName)
	if err != nil {
		return "", err
	}

	tuples, ok := s.Rows.(sqlparser.Values)
	if !ok {
		return "", fmt.Errorf("%w: only INSERT ... VALUES is supported", types.ErrInvalidArgument)
	}

	// map the statement's column list onto schema positions
	colOrder := make([]int, 0, len(schema.Columns))
	if len(s.Columns) == 0 {
		for i := range schema.Columns {
			colOrder = append(colOrder, i)
		}
	} else {
		for _, c := range s.Columns {
			idx := columnIndex(schema, c.String())
			if idx < 0 {
				return "", fmt.Errorf("%w: unknown column %q", types.ErrInvalidArgument, c.String())
			}
			colOrder = append(colOrder, idx)
		}
	}

	pkIdx := schema.PrimaryKeyIndex()
	inserted := 0

	for _, tuple := range tuples {
		if len(tuple) != len(colOrder) {
			return "", fmt.Errorf("%w: %d values for %d columns", types.ErrInvalidArgument, len(tuple), len(colOrder))
		}

		values := make([]rowValue, len(schema.Columns))
		provided := make([]bool, len(schema.Columns))
		for i := range values {
			values[i].Null = true
		}
		for i, expr := range tuple {
			v, err := exprValue(expr)
			if err != nil {
				return "", err
			}
			values[colOrder[i]] = v
			provided[colOrder[i]] = true
		}

		for i := range schema.Columns {
			col := &schema.Columns[i]
			if col.AutoIncrement && (!provided[i] || values[i].Null) {
				next, err := engine.NextAutoIncrement(handle, schema.AutoIncrementSlot(i))
				if err != nil {
					return "", err
				}
				values[i] = rowValue{Text: strconv.FormatUint(next, 10)}
			}
			if col.IsNotNull && values[i].Null {
				return "", fmt.Errorf("%w: column %q is NOT NULL", types.ErrInvalidArgument, col.Name)
			}
		}

		var key []byte
		if pkIdx >= 0 {
			if values[pkIdx].Null {
				return "", fmt.Errorf("%w: primary key %q is NULL", types.ErrInvalidArgument, schema.Columns[pkIdx].Name)
			}
			key, err = encodeKey(schema.Columns[pkIdx].Type, values[pkIdx].Text)
			if err != nil {
				return "", err
			}
		} else {
			rowID, err := engine.NextRowID(handle)
			if err != nil {
				return "", err
			}
			key = binary.BigEndian.AppendUint64(nil, rowID)
		}

		raw, err := serializeRow(values)
		if err != nil {
			return "", err
		}
		if err := engine.Insert(handle, key, raw); err != nil {
			return "", err
		}
		inserted++
	}

	return fmt.Sprintf("%d row(s) inserted", inserted), nil
}

func columnIndex(schema *types.TableSchema, name string) int {
	for i := range schema.Columns {
		if strings.EqualFold(schema.Columns[i].Name, name) {
			return i
		}
	}
	return -1
}
