package types

// ColumnDef describes one column of a table schema. Type is kept as the
// raw type string from the DDL (e.g. "INT", "VARCHAR(255)"); the storage
// core never interprets it.
type ColumnDef struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsPrimaryKey  bool   `json:"is_primary_key"`
	IsUnique      bool   `json:"is_unique"`
	IsNotNull     bool   `json:"is_not_null"`
	AutoIncrement bool   `json:"auto_increment"`
}

type TableSchema struct {
	TableName string      `json:"table_name"`
	Columns   []ColumnDef `json:"columns"`
}

// PrimaryKeyIndex returns the index of the primary key column, or -1.
func (s *TableSchema) PrimaryKeyIndex() int {
	for i := range s.Columns {
		if s.Columns[i].IsPrimaryKey {
			return i
		}
	}
	return -1
}

// AutoIncrementSlot returns the AUTO_INCREMENT counter slot for the column
// at colIdx: the number of AUTO_INCREMENT columns that precede it. Returns
// -1 if the column is not AUTO_INCREMENT.
func (s *TableSchema) AutoIncrementSlot(colIdx int) int {
	if colIdx < 0 || colIdx >= len(s.Columns) || !s.Columns[colIdx].AutoIncrement {
		return -1
	}
	slot := 0
	for i := 0; i < colIdx; i++ {
		if s.Columns[i].AutoIncrement {
			slot++
		}
	}
	return slot
}
