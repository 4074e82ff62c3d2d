// Package schema serializes table schemas to the binary blob stored on the
// meta page. Layout: num_columns u16, table_name_len u16, table_name, then
// per column name_len u16, name, type_len u16, type, flags u8.
package schema

import (
	"encoding/binary"
	"fmt"

	"QuillDB/types"
)

// Column flag bits.
const (
	FlagPrimaryKey    uint8 = 1 << 0
	FlagUnique        uint8 = 1 << 1
	FlagNotNull       uint8 = 1 << 2
	FlagAutoIncrement uint8 = 1 << 3
)

// Serialize encodes a schema to its on-disk blob.
func Serialize(s *types.TableSchema) ([]byte, error) {
	if len(s.Columns) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d columns", types.ErrInvalidSchema, len(s.Columns))
	}
	if len(s.TableName) > 0xFFFF {
		return nil, fmt.Errorf("%w: table name too long", types.ErrInvalidSchema)
	}

	out := make([]byte, 0, 64+32*len(s.Columns))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(s.Columns)))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(s.TableName)))
	out = append(out, s.TableName...)

	for i := range s.Columns {
		col := &s.Columns[i]
		if len(col.Name) > 0xFFFF || len(col.Type) > 0xFFFF {
			return nil, fmt.Errorf("%w: column %q", types.ErrInvalidSchema, col.Name)
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(len(col.Name)))
		out = append(out, col.Name...)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(col.Type)))
		out = append(out, col.Type...)

		var flags uint8
		if col.IsPrimaryKey {
			flags |= FlagPrimaryKey
		}
		if col.IsUnique {
			flags |= FlagUnique
		}
		if col.IsNotNull {
			flags |= FlagNotNull
		}
		if col.AutoIncrement {
			flags |= FlagAutoIncrement
		}
		out = append(out, flags)
	}
	return out, nil
}

// Deserialize decodes a schema blob. Truncated data or trailing bytes are
// rejected as ErrInvalidSchema.
func Deserialize(data []byte) (*types.TableSchema, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: blob too small (%d bytes)", types.ErrInvalidSchema, len(data))
	}

	off := 0
	readU16 := func(what string) (int, error) {
		if off+2 > len(data) {
			return 0, fmt.Errorf("%w: truncated at %s", types.ErrInvalidSchema, what)
		}
		v := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		return v, nil
	}
	readBytes := func(n int, what string) ([]byte, error) {
		if off+n > len(data) {
			return nil, fmt.Errorf("%w: truncated at %s", types.ErrInvalidSchema, what)
		}
		b := data[off : off+n]
		off += n
		return b, nil
	}

	numCols, err := readU16("column count")
	if err != nil {
		return nil, err
	}
	nameLen, err := readU16("table name length")
	if err != nil {
		return nil, err
	}
	name, err := readBytes(nameLen, "table name")
	if err != nil {
		return nil, err
	}

	s := &types.TableSchema{
		TableName: string(name),
		Columns:   make([]types.ColumnDef, 0, numCols),
	}

	for i := 0; i < numCols; i++ {
		colNameLen, err := readU16("column name length")
		if err != nil {
			return nil, err
		}
		colName, err := readBytes(colNameLen, "column name")
		if err != nil {
			return nil, err
		}
		typeLen, err := readU16("type length")
		if err != nil {
			return nil, err
		}
		typeStr, err := readBytes(typeLen, "type")
		if err != nil {
			return nil, err
		}
		flagBytes, err := readBytes(1, "flags")
		if err != nil {
			return nil, err
		}
		flags := flagBytes[0]

		s.Columns = append(s.Columns, types.ColumnDef{
			Name:          string(colName),
			Type:          string(typeStr),
			IsPrimaryKey:  flags&FlagPrimaryKey != 0,
			IsUnique:      flags&FlagUnique != 0,
			IsNotNull:     flags&FlagNotNull != 0,
			AutoIncrement: flags&FlagAutoIncrement != 0,
		})
	}

	if off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", types.ErrInvalidSchema, len(data)-off)
	}
	return s, nil
}
