package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuillDB/types"
)

func sampleSchema() *types.TableSchema {
	return &types.TableSchema{
		TableName: "orders",
		Columns: []types.ColumnDef{
			{Name: "id", Type: "INT", IsPrimaryKey: true, IsNotNull: true, AutoIncrement: true},
			{Name: "sku", Type: "VARCHAR(64)", IsUnique: true},
			{Name: "price", Type: "DECIMAL(10,2)", IsNotNull: true},
			{Name: "note", Type: "VARCHAR(255)"},
		},
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	s := sampleSchema()
	blob, err := Serialize(s)
	require.NoError(t, err)

	got, err := Deserialize(blob)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSchemaFlagBits(t *testing.T) {
	s := sampleSchema()
	blob, err := Serialize(s)
	require.NoError(t, err)

	// flags byte of the first column sits right after its type string
	// 2 (ncols) + 2 + len("orders") + 2 + len("id") + 2 + len("INT")
	off := 2 + 2 + len("orders") + 2 + len("id") + 2 + len("INT")
	flags := blob[off]
	assert.Equal(t, FlagPrimaryKey|FlagNotNull|FlagAutoIncrement, flags)
}

func TestSchemaRejectsTruncated(t *testing.T) {
	blob, err := Serialize(sampleSchema())
	require.NoError(t, err)

	for _, cut := range []int{1, 3, len(blob) / 2, len(blob) - 1} {
		_, err := Deserialize(blob[:cut])
		assert.ErrorIs(t, err, types.ErrInvalidSchema, "cut at %d", cut)
	}
}

func TestSchemaRejectsTrailingBytes(t *testing.T) {
	blob, err := Serialize(sampleSchema())
	require.NoError(t, err)

	_, err = Deserialize(append(blob, 0xAB))
	assert.ErrorIs(t, err, types.ErrInvalidSchema)
}

func TestSchemaHelpers(t *testing.T) {
	s := sampleSchema()
	assert.Equal(t, 0, s.PrimaryKeyIndex())
	assert.Equal(t, 0, s.AutoIncrementSlot(0))
	assert.Equal(t, -1, s.AutoIncrementSlot(1))

	noPK := &types.TableSchema{TableName: "t", Columns: []types.ColumnDef{{Name: "a", Type: "INT"}}}
	assert.Equal(t, -1, noPK.PrimaryKeyIndex())
}
