package diskmgr

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuillDB/page"
)

func openTemp(t *testing.T) *DiskManager {
	t.Helper()
	dm, err := Open(filepath.Join(t.TempDir(), "t.ibd"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return dm
}

func filledPage(b byte) []byte {
	p := make([]byte, page.PageSize)
	for i := range p {
		p[i] = b
	}
	return p
}

func TestReadPastEOFIsZeroed(t *testing.T) {
	dm := openTemp(t)

	buf := filledPage(0xAA)
	require.NoError(t, dm.ReadPage(10, buf))
	assert.Equal(t, make([]byte, page.PageSize), buf)
}

func TestWriteExtendsFile(t *testing.T) {
	dm := openTemp(t)

	require.NoError(t, dm.WritePage(5, filledPage(0x5A)))

	count, err := dm.PageCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(6), count)

	info, err := os.Stat(dm.Path())
	require.NoError(t, err)
	assert.Zero(t, info.Size()%page.PageSize, "file length stays page aligned")

	// the gap pages read back zeroed
	buf := filledPage(0xFF)
	require.NoError(t, dm.ReadPage(3, buf))
	assert.Equal(t, make([]byte, page.PageSize), buf)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	dm := openTemp(t)

	want := filledPage(0x17)
	require.NoError(t, dm.WritePage(2, want))

	got := make([]byte, page.PageSize)
	require.NoError(t, dm.ReadPage(2, got))
	assert.True(t, bytes.Equal(want, got))
}

func TestCacheNeverServesStaleBytes(t *testing.T) {
	dm := openTemp(t)

	first := filledPage(0x01)
	require.NoError(t, dm.WritePage(4, first))
	got := make([]byte, page.PageSize)
	require.NoError(t, dm.ReadPage(4, got)) // warms the cache

	second := filledPage(0x02)
	require.NoError(t, dm.WritePage(4, second))
	require.NoError(t, dm.ReadPage(4, got))
	assert.True(t, bytes.Equal(second, got))

	dm.DropCached(4)
	require.NoError(t, dm.ReadPage(4, got))
	assert.True(t, bytes.Equal(second, got))
}

func TestClosedHandleFails(t *testing.T) {
	dm := openTemp(t)
	require.NoError(t, dm.Close())

	buf := make([]byte, page.PageSize)
	assert.Error(t, dm.ReadPage(0, buf))
	assert.Error(t, dm.WritePage(0, buf))
	assert.Error(t, dm.Flush())
	assert.NoError(t, dm.Close(), "second close is a no-op")
}
