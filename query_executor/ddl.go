package executor

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"

	"QuillDB/types"
)

// sqlparser keeps its ColumnKeyOption constants unexported; the numeric
// values are stable in the grammar.
const (
	colKeyPrimary   = 1
	colKeyUnique    = 3
	colKeyUniqueKey = 4
)

func (ex *Executor) runDBDDL(s *sqlparser.DBDDL) (string, error) {
	switch strings.ToLower(s.Action) {
	case sqlparser.CreateStr:
		if err := ex.DBM.CreateDB(s.DBName); err != nil {
			return "", err
		}
		return fmt.Sprintf("database %s created", s.DBName), nil
	case sqlparser.DropStr:
		if err := ex.DBM.DropDB(s.DBName); err != nil {
			return "", err
		}
		return fmt.Sprintf("database %s dropped", s.DBName), nil
	default:
		return "", fmt.Errorf("%w: unsupported database DDL %q", types.ErrInvalidArgument, s.Action)
	}
}

func (ex *Executor) runUse(s *sqlparser.Use) (string, error) {
	name := s.DBName.String()
	if _, err := ex.DBM.UseDB(name); err != nil {
		return "", err
	}
	return fmt.Sprintf("using database %s", name), nil
}

func (ex *Executor) runDDL(s *sqlparser.DDL) (string, error) {
	engine, err := ex.engine()
	if err != nil {
		return "", err
	}

	switch s.Action {
	case sqlparser.CreateStr:
		tableName := s.NewName.Name.String()
		if tableName == "" {
			tableName = s.Table.Name.String()
		}
		schema, err := schemaFromSpec(tableName, s.TableSpec)
		if err != nil {
			return "", err
		}
		if err := engine.CreateTable(tableName, schema); err != nil {
			return "", err
		}
		return fmt.Sprintf("table %s created", tableName), nil

	case sqlparser.DropStr:
		tableName := s.Table.Name.String()
		if err := engine.DropTable(tableName); err != nil {
			return "", err
		}
		return fmt.Sprintf("table %s dropped", tableName), nil

	default:
		return "", fmt.Errorf("%w: unsupported DDL %q", types.ErrInvalidArgument, s.Action)
	}
}

// schemaFromSpec converts a parsed CREATE TABLE body into the engine's
// schema, honoring both column-level key options and a table-level
// PRIMARY KEY index.
func schemaFromSpec(tableName string, spec *sqlparser.TableSpec) (*types.TableSchema, error) {
	if spec == nil || len(spec.Columns) == 0 {
		return nil, fmt.Errorf("%w: CREATE TABLE without columns", types.ErrInvalidArgument)
	}

	schema := &types.TableSchema{TableName: tableName}
	for _, col := range spec.Columns {
		def := types.ColumnDef{
			Name:          col.Name.String(),
			Type:          typeString(col.Type),
			IsNotNull:     bool(col.Type.NotNull),
			AutoIncrement: bool(col.Type.Autoincrement),
		}
		switch int(col.Type.KeyOpt) {
		case colKeyPrimary:
			def.IsPrimaryKey = true
			def.IsNotNull = true
		case colKeyUnique, colKeyUniqueKey:
			def.IsUnique = true
		}
		schema.Columns = append(schema.Columns, def)
	}

	// table-level PRIMARY KEY (...) overrides column-level markers
	for _, idx := range spec.Indexes {
		if !idx.Info.Primary {
			continue
		}
		if len(idx.Columns) != 1 {
			return nil, fmt.Errorf("%w: composite primary keys are not supported", types.ErrInvalidArgument)
		}
		target := idx.Columns[0].Column.String()
		for i := range schema.Columns {
			schema.Columns[i].IsPrimaryKey = false
		}
		found := false
		for i := range schema.Columns {
			if strings.EqualFold(schema.Columns[i].Name, target) {
				schema.Columns[i].IsPrimaryKey = true
				schema.Columns[i].IsNotNull = true
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: primary key column %q not defined", types.ErrInvalidArgument, target)
		}
	}

	pkCount := 0
	for i := range schema.Columns {
		if schema.Columns[i].IsPrimaryKey {
			pkCount++
		}
	}
	if pkCount > 1 {
		return nil, fmt.Errorf("%w: more than one primary key column", types.ErrInvalidArgument)
	}
	return schema, nil
}

// typeString rebuilds the column type as written, e.g. VARCHAR(255) or
// DECIMAL(10,2). The storage core never interprets it.
func typeString(t sqlparser.ColumnType) string {
	out := strings.ToUpper(t.Type)
	if t.Length != nil {
		if t.Scale != nil {
			out += fmt.Sprintf("(%s,%s)", string(t.Length.Val), string(t.Scale.Val))
		} else {
			out += fmt.Sprintf("(%s)", string(t.Length.Val))
		}
	}
	return out
}
