package bplus_test

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bplus "QuillDB/bplustree"
	"QuillDB/page"
	storageengine "QuillDB/storage_engine"
	"QuillDB/types"
)

func newHandle(t *testing.T) *bplus.TableHandle {
	t.Helper()
	engine, err := storageengine.NewStorageEngine(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	schema := &types.TableSchema{
		TableName: "kv",
		Columns: []types.ColumnDef{
			{Name: "k", Type: "VARCHAR(64)", IsPrimaryKey: true},
			{Name: "v", Type: "VARCHAR(255)"},
		},
	}
	require.NoError(t, engine.CreateTable("kv", schema))
	h, err := engine.OpenTable("kv")
	require.NoError(t, err)
	return h
}

func collect(t *testing.T, th *bplus.TableHandle) (keys, values []string) {
	t.Helper()
	require.NoError(t, th.Scan(func(k, v []byte) bool {
		keys = append(keys, string(k))
		values = append(values, string(v))
		return true
	}))
	return
}

func TestBasicCRUD(t *testing.T) {
	th := newHandle(t)

	require.NoError(t, th.Insert([]byte("a"), []byte("v1")))
	require.NoError(t, th.Insert([]byte("b"), []byte("v2")))
	require.NoError(t, th.Insert([]byte("c"), []byte("v3")))

	v, err := th.Search([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))

	require.NoError(t, th.Delete([]byte("a")))
	_, err = th.Search([]byte("a"))
	assert.ErrorIs(t, err, types.ErrNotFound)

	keys, values := collect(t, th)
	assert.Equal(t, []string{"b", "c"}, keys)
	assert.Equal(t, []string{"v2", "v3"}, values)
}

func TestDuplicateInsertKeepsFirstValue(t *testing.T) {
	th := newHandle(t)

	require.NoError(t, th.Insert([]byte("k"), []byte("1")))
	err := th.Insert([]byte("k"), []byte("2"))
	assert.ErrorIs(t, err, types.ErrAlreadyExists)

	v, err := th.Search([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
}

func TestReverseInsertOrderScansSorted(t *testing.T) {
	th := newHandle(t)

	require.NoError(t, th.Insert([]byte("c"), []byte("3")))
	require.NoError(t, th.Insert([]byte("b"), []byte("2")))
	require.NoError(t, th.Insert([]byte("a"), []byte("1")))

	keys, values := collect(t, th)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, []string{"1", "2", "3"}, values)
}

func TestScanIsByteOrderNotNumeric(t *testing.T) {
	th := newHandle(t)

	value := bytes.Repeat([]byte("x"), 40)
	want := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		k := fmt.Sprintf("key%d", i)
		want = append(want, k)
		require.NoError(t, th.Insert([]byte(k), value))
	}
	sort.Strings(want) // key0, key1, key10, key11, ...

	for _, k := range want {
		v, err := th.Search([]byte(k))
		require.NoError(t, err)
		assert.Equal(t, value, v)
	}

	keys, _ := collect(t, th)
	assert.Equal(t, want, keys)
}

func TestSplitPropagation(t *testing.T) {
	th := newHandle(t)

	// large values force leaf splits and at least one internal level
	value := bytes.Repeat([]byte("p"), 1800)
	var want []string
	for i := 0; i < 30; i++ {
		k := fmt.Sprintf("key%02d", i)
		want = append(want, k)
		require.NoError(t, th.Insert([]byte(k), value))
	}

	leaves, err := th.LeafPages()
	require.NoError(t, err)
	assert.Greater(t, len(leaves), 1, "30 x 1800-byte records cannot fit one leaf")

	depth, err := th.Depth()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, depth, 2)

	for _, k := range want {
		v, err := th.Search([]byte(k))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(value, v), "key %s", k)
	}

	keys, _ := collect(t, th)
	assert.Equal(t, want, keys)

	checkLeafChain(t, th)
}

func TestMergeShrinksLeafCount(t *testing.T) {
	th := newHandle(t)

	value := bytes.Repeat([]byte("m"), 1800)
	var keys []string
	for i := 0; i < 40; i++ {
		k := fmt.Sprintf("merge_test_key_%02d", i)
		keys = append(keys, k)
		require.NoError(t, th.Insert([]byte(k), value))
	}
	sort.Strings(keys)

	before, err := th.LeafPages()
	require.NoError(t, err)
	require.Greater(t, len(before), 2)

	for _, k := range keys[:30] {
		require.NoError(t, th.Delete([]byte(k)))
	}

	after, err := th.LeafPages()
	require.NoError(t, err)
	assert.Less(t, len(after), len(before), "deleting 30 of 40 records must merge leaves")

	for _, k := range keys[:30] {
		_, err := th.Search([]byte(k))
		assert.ErrorIs(t, err, types.ErrNotFound)
	}
	for _, k := range keys[30:] {
		v, err := th.Search([]byte(k))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(value, v))
	}

	got, _ := collect(t, th)
	assert.Equal(t, keys[30:], got)
	checkLeafChain(t, th)
}

func TestLargeValueAmongSmall(t *testing.T) {
	th := newHandle(t)

	large := bytes.Repeat([]byte("L"), 1800)
	require.NoError(t, th.Insert([]byte("large_key1"), large))

	small := map[string][]byte{}
	for i := 0; i < 5; i++ {
		k := fmt.Sprintf("small%d", i)
		v := bytes.Repeat([]byte{byte('a' + i)}, 20)
		small[k] = v
		require.NoError(t, th.Insert([]byte(k), v))
	}

	got, err := th.Search([]byte("large_key1"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(large, got))
	for k, v := range small {
		got, err := th.Search([]byte(k))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(v, got), "key %s", k)
	}
}

func TestDeleteToEmptyAndReuse(t *testing.T) {
	th := newHandle(t)

	require.NoError(t, th.Insert([]byte("only"), []byte("v")))
	require.NoError(t, th.Delete([]byte("only")))

	_, err := th.Search([]byte("only"))
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, uint32(page.InvalidPageID), th.Root)

	// the tree roots again on the next insert
	require.NoError(t, th.Insert([]byte("again"), []byte("w")))
	v, err := th.Search([]byte("again"))
	require.NoError(t, err)
	assert.Equal(t, "w", string(v))
}

func TestDeleteMissingKey(t *testing.T) {
	th := newHandle(t)
	assert.ErrorIs(t, th.Delete([]byte("nope")), types.ErrNotFound)

	require.NoError(t, th.Insert([]byte("a"), []byte("1")))
	assert.ErrorIs(t, th.Delete([]byte("b")), types.ErrNotFound)
}

func TestInvalidArguments(t *testing.T) {
	th := newHandle(t)

	assert.ErrorIs(t, th.Insert(nil, []byte("v")), types.ErrInvalidArgument)
	assert.ErrorIs(t, th.Delete(nil), types.ErrInvalidArgument)
	_, err := th.Search(nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	huge := make([]byte, page.MaxRecordSize)
	assert.ErrorIs(t, th.Insert([]byte("k"), huge), types.ErrInvalidArgument)
}

func TestRangeScan(t *testing.T) {
	th := newHandle(t)

	for _, k := range []string{"apple", "banana", "cherry", "date", "elder"} {
		require.NoError(t, th.Insert([]byte(k), []byte("v:"+k)))
	}

	var got []string
	require.NoError(t, th.RangeScan([]byte("banana"), []byte("date"), func(k, _ []byte) bool {
		got = append(got, string(k))
		return true
	}))
	assert.Equal(t, []string{"banana", "cherry", "date"}, got)

	// open-ended start and end
	got = nil
	require.NoError(t, th.RangeScan(nil, []byte("banana"), func(k, _ []byte) bool {
		got = append(got, string(k))
		return true
	}))
	assert.Equal(t, []string{"apple", "banana"}, got)

	got = nil
	require.NoError(t, th.RangeScan([]byte("cherry"), nil, func(k, _ []byte) bool {
		got = append(got, string(k))
		return true
	}))
	assert.Equal(t, []string{"cherry", "date", "elder"}, got)

	// the visitor can stop early
	got = nil
	require.NoError(t, th.Scan(func(k, _ []byte) bool {
		got = append(got, string(k))
		return len(got) < 2
	}))
	assert.Equal(t, []string{"apple", "banana"}, got)

	// a start key between records begins at the next larger key
	got = nil
	require.NoError(t, th.RangeScan([]byte("blueberry"), nil, func(k, _ []byte) bool {
		got = append(got, string(k))
		return true
	}))
	assert.Equal(t, []string{"cherry", "date", "elder"}, got)
}

func TestMixedWorkloadStaysConsistent(t *testing.T) {
	th := newHandle(t)

	value := bytes.Repeat([]byte("w"), 700)
	live := map[string]bool{}
	for i := 0; i < 120; i++ {
		k := fmt.Sprintf("key-%03d", i)
		require.NoError(t, th.Insert([]byte(k), value))
		live[k] = true
	}
	// delete every third key, then reinsert a few
	for i := 0; i < 120; i += 3 {
		k := fmt.Sprintf("key-%03d", i)
		require.NoError(t, th.Delete([]byte(k)))
		delete(live, k)
	}
	for i := 0; i < 120; i += 12 {
		k := fmt.Sprintf("key-%03d", i)
		require.NoError(t, th.Insert([]byte(k), value))
		live[k] = true
	}

	var want []string
	for k := range live {
		want = append(want, k)
	}
	sort.Strings(want)

	got, _ := collect(t, th)
	assert.Equal(t, want, got)

	for _, k := range want {
		_, err := th.Search([]byte(k))
		require.NoError(t, err, "key %s", k)
	}

	checkLeafChain(t, th)
}

// checkLeafChain verifies the doubly linked leaf list is symmetric: forward
// and backward traversal visit the same pages in reverse.
func checkLeafChain(t *testing.T, th *bplus.TableHandle) {
	t.Helper()

	ids, err := th.LeafPages()
	require.NoError(t, err)
	if len(ids) == 0 {
		return
	}

	buf := make([]byte, page.PageSize)
	for i, id := range ids {
		require.NoError(t, th.DM.ReadPage(id, buf))

		wantPrev := uint32(0)
		if i > 0 {
			wantPrev = ids[i-1]
		}
		wantNext := uint32(0)
		if i < len(ids)-1 {
			wantNext = ids[i+1]
		}
		assert.Equal(t, wantPrev, page.PrevLeaf(buf), "prev of leaf %d", id)
		assert.Equal(t, wantNext, page.NextLeaf(buf), "next of leaf %d", id)
	}
}
