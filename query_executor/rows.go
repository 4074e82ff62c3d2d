package executor

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"QuillDB/types"
)

// Rows are stored under the primary-key bytes with every column value
// serialized as length-prefixed text: col_count u16, then per value a null
// flag byte, len u16, bytes.

type rowValue struct {
	Null bool
	Text string
}

func serializeRow(values []rowValue) ([]byte, error) {
	buf := make([]byte, 0, 16)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(values)))
	for i := range values {
		if values[i].Null {
			buf = append(buf, 1)
			buf = binary.LittleEndian.AppendUint16(buf, 0)
			continue
		}
		if len(values[i].Text) > 0xFFFF {
			return nil, fmt.Errorf("%w: value longer than 64 KiB", types.ErrInvalidArgument)
		}
		buf = append(buf, 0)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(values[i].Text)))
		buf = append(buf, values[i].Text...)
	}
	return buf, nil
}

func deserializeRow(raw []byte) ([]rowValue, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: row blob too short", types.ErrIntegrity)
	}
	count := int(binary.LittleEndian.Uint16(raw))
	off := 2
	out := make([]rowValue, 0, count)
	for i := 0; i < count; i++ {
		if off+3 > len(raw) {
			return nil, fmt.Errorf("%w: truncated row value %d", types.ErrIntegrity, i)
		}
		null := raw[off] == 1
		n := int(binary.LittleEndian.Uint16(raw[off+1:]))
		off += 3
		if off+n > len(raw) {
			return nil, fmt.Errorf("%w: truncated row value %d", types.ErrIntegrity, i)
		}
		out = append(out, rowValue{Null: null, Text: string(raw[off : off+n])})
		off += n
	}
	if off != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing row bytes", types.ErrIntegrity, len(raw)-off)
	}
	return out, nil
}

// isIntegerType reports whether a column type string names an integer
// family type.
func isIntegerType(typeStr string) bool {
	t := strings.ToUpper(typeStr)
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT":
		return true
	}
	return false
}

// encodeKey builds the clustered key bytes for a primary-key value.
// Integer keys use big-endian with the sign bit flipped so bytewise order
// matches numeric order; everything else keys on the raw text.
func encodeKey(typeStr, text string) ([]byte, error) {
	if isIntegerType(typeStr) {
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", types.ErrInvalidArgument, text)
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], uint64(n)^(1<<63))
		return key[:], nil
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty key value", types.ErrInvalidArgument)
	}
	return []byte(text), nil
}

// exprValue evaluates a literal insert/where expression.
func exprValue(e sqlparser.Expr) (rowValue, error) {
	switch v := e.(type) {
	case *sqlparser.SQLVal:
		return rowValue{Text: string(v.Val)}, nil
	case *sqlparser.NullVal:
		return rowValue{Null: true}, nil
	case sqlparser.BoolVal:
		if v {
			return rowValue{Text: "1"}, nil
		}
		return rowValue{Text: "0"}, nil
	case *sqlparser.UnaryExpr:
		inner, err := exprValue(v.Expr)
		if err != nil {
			return rowValue{}, err
		}
		return rowValue{Text: v.Operator + inner.Text}, nil
	default:
		return rowValue{}, fmt.Errorf("%w: unsupported expression %s", types.ErrInvalidArgument, sqlparser.String(e))
	}
}

// renderRows formats a result set as tab-separated lines, header first.
func renderRows(header []string, rows [][]rowValue) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, "\t"))
	for _, row := range rows {
		b.WriteByte('\n')
		for i := range row {
			if i > 0 {
				b.WriteByte('\t')
			}
			if row[i].Null {
				b.WriteString("NULL")
			} else {
				b.WriteString(row[i].Text)
			}
		}
	}
	return b.String()
}
