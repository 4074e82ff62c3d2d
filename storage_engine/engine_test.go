package storageengine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "QuillDB/catalog_manager"
	"QuillDB/types"
)

func testSchema() *types.TableSchema {
	return &types.TableSchema{
		TableName: "users",
		Columns: []types.ColumnDef{
			{Name: "id", Type: "INT", IsPrimaryKey: true, IsNotNull: true},
			{Name: "name", Type: "VARCHAR(50)"},
		},
	}
}

func newEngine(t *testing.T) *StorageEngine {
	t.Helper()
	engine, err := NewStorageEngine(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestCreateOpenDropTable(t *testing.T) {
	engine := newEngine(t)

	require.NoError(t, engine.CreateTable("users", testSchema()))
	assert.ErrorIs(t, engine.CreateTable("users", testSchema()), types.ErrAlreadyExists)

	h, err := engine.OpenTable("users")
	require.NoError(t, err)
	assert.Equal(t, "users", h.TableName)

	s, err := engine.ReadSchema("users")
	require.NoError(t, err)
	assert.Equal(t, testSchema(), s)

	path := catalog.TablePath(engine.DBPath, "users")
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, engine.DropTable("users"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = engine.OpenTable("users")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, engine.DropTable("users"), types.ErrNotFound)
}

func TestRecordOperations(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, engine.CreateTable("users", testSchema()))
	h, err := engine.OpenTable("users")
	require.NoError(t, err)

	require.NoError(t, engine.Insert(h, []byte("u1"), []byte("alice")))
	require.NoError(t, engine.Insert(h, []byte("u2"), []byte("bob")))

	v, err := engine.Get(h, []byte("u1"))
	require.NoError(t, err)
	assert.Equal(t, "alice", string(v))

	require.NoError(t, engine.Update(h, []byte("u1"), []byte("alicia")))
	v, err = engine.Get(h, []byte("u1"))
	require.NoError(t, err)
	assert.Equal(t, "alicia", string(v))

	assert.ErrorIs(t, engine.Update(h, []byte("u9"), []byte("x")), types.ErrNotFound)

	require.NoError(t, engine.Delete(h, []byte("u2")))
	_, err = engine.Get(h, []byte("u2"))
	assert.ErrorIs(t, err, types.ErrNotFound)

	var keys []string
	require.NoError(t, engine.Scan(h, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}))
	assert.Equal(t, []string{"u1"}, keys)
}

func TestCounterServices(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, engine.CreateTable("users", testSchema()))
	h, err := engine.OpenTable("users")
	require.NoError(t, err)

	id1, err := engine.NextRowID(h)
	require.NoError(t, err)
	id2, err := engine.NextRowID(h)
	require.NoError(t, err)
	assert.Equal(t, id1+1, id2)

	a1, err := engine.NextAutoIncrement(h, 0)
	require.NoError(t, err)
	a2, err := engine.NextAutoIncrement(h, 0)
	require.NoError(t, err)
	assert.Equal(t, a1+1, a2)

	_, err = engine.NextAutoIncrement(h, 8)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestPageAllocationReusesFreeList(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, engine.CreateTable("users", testSchema()))
	h, err := engine.OpenTable("users")
	require.NoError(t, err)

	// a fresh table has pages 0 and 1, so the first allocation appends
	id, err := engine.AllocatePage(h)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), id)

	require.NoError(t, engine.FreePage(h, id))
	again, err := engine.AllocatePage(h)
	require.NoError(t, err)
	assert.Equal(t, id, again, "freed page is handed out first")
}

func TestTooManyAutoIncrementColumns(t *testing.T) {
	engine := newEngine(t)

	s := &types.TableSchema{TableName: "wide"}
	for i := 0; i < 9; i++ {
		s.Columns = append(s.Columns, types.ColumnDef{
			Name: string(rune('a' + i)), Type: "INT", AutoIncrement: true,
		})
	}
	assert.ErrorIs(t, engine.CreateTable("wide", s), types.ErrInvalidArgument)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewStorageEngine(dir)
	require.NoError(t, err)
	require.NoError(t, engine.CreateTable("users", testSchema()))
	h, err := engine.OpenTable("users")
	require.NoError(t, err)
	require.NoError(t, engine.Insert(h, []byte("u1"), []byte("alice")))
	require.NoError(t, engine.Close())

	reopened, err := NewStorageEngine(dir)
	require.NoError(t, err)
	defer reopened.Close()

	h2, err := reopened.OpenTable("users")
	require.NoError(t, err)
	v, err := reopened.Get(h2, []byte("u1"))
	require.NoError(t, err)
	assert.Equal(t, "alice", string(v))
}

func TestDatabaseManager(t *testing.T) {
	root := t.TempDir()
	dbm, err := NewDatabaseManager(root)
	require.NoError(t, err)
	defer dbm.ClearCurrentDB()

	require.NoError(t, dbm.CreateDB("shop"))
	assert.ErrorIs(t, dbm.CreateDB("shop"), types.ErrAlreadyExists)
	assert.True(t, dbm.DatabaseExists("shop"))
	assert.False(t, dbm.DatabaseExists("ghost"))

	_, err = dbm.UseDB("ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)

	engine, err := dbm.UseDB("shop")
	require.NoError(t, err)
	assert.Equal(t, "shop", dbm.CurrentDB())
	assert.Same(t, engine, dbm.Engine())

	require.NoError(t, dbm.CreateDB("other"))
	names, err := dbm.ListDatabases()
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "shop"}, names)

	require.NoError(t, dbm.DropDB("shop"))
	assert.Equal(t, "", dbm.CurrentDB())
	assert.ErrorIs(t, dbm.DropDB("shop"), types.ErrNotFound)
}
