// Package diskmgr owns the raw page I/O for one table file (<table>.ibd):
// page-aligned reads with zero-padding past EOF, extend-on-write, and an
// in-process ristretto read cache for B+ tree pages.
package diskmgr

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"QuillDB/page"
	"QuillDB/types"
)

// Pages 0 and 1 belong to the catalog cache and never enter the read cache.
const firstCachedPage = 2

// cachedPages bounds the read cache per open table file.
const cachedPages = 64

// DiskManager is the file handle for one table. All mutation happens on the
// transaction worker; the mutex only guards against a concurrent Close.
type DiskManager struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	cache    *ristretto.Cache[uint32, []byte]
}

// Open opens or creates the table file at filePath.
func Open(filePath string) (*DiskManager, error) {
	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open table file %s: %w: %v", filePath, types.ErrIO, err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint32, []byte]{
		NumCounters: cachedPages * 10,
		MaxCost:     cachedPages * page.PageSize,
		BufferItems: 64,
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to build page cache: %w", err)
	}

	return &DiskManager{
		file:     file,
		filePath: filePath,
		cache:    cache,
	}, nil
}

// Path returns the table file path.
func (dm *DiskManager) Path() string {
	return dm.filePath
}

// ReadPage fills buf with page id. Reading past the end of the file yields
// a zeroed tail, so a never-written page reads as a fresh page.
func (dm *DiskManager) ReadPage(id uint32, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.file == nil {
		return fmt.Errorf("read page %d: %w: file closed", id, types.ErrIO)
	}
	if len(buf) != page.PageSize {
		return fmt.Errorf("read page %d: buffer is %d bytes, want %d", id, len(buf), page.PageSize)
	}

	if id >= firstCachedPage {
		if cached, ok := dm.cache.Get(id); ok {
			copy(buf, cached)
			return nil
		}
	}

	n, err := dm.file.ReadAt(buf, int64(id)*page.PageSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read page %d: %w: %v", id, types.ErrIO, err)
	}
	for i := n; i < page.PageSize; i++ {
		buf[i] = 0
	}

	if id >= firstCachedPage {
		dm.cache.Set(id, append([]byte(nil), buf...), page.PageSize)
	}
	return nil
}

// WritePage writes page id, extending the file first if it is too short,
// and syncs. The cache is updated write-through and waited on so a later
// read can never observe stale bytes.
func (dm *DiskManager) WritePage(id uint32, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.file == nil {
		return fmt.Errorf("write page %d: %w: file closed", id, types.ErrIO)
	}
	if len(buf) != page.PageSize {
		return fmt.Errorf("write page %d: buffer is %d bytes, want %d", id, len(buf), page.PageSize)
	}

	offset := int64(id) * page.PageSize
	stat, err := dm.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat table file: %w: %v", types.ErrIO, err)
	}
	if stat.Size() < offset+page.PageSize {
		// extend with a single zero byte at the last offset of the page
		if _, err := dm.file.WriteAt([]byte{0}, offset+page.PageSize-1); err != nil {
			return fmt.Errorf("failed to extend file for page %d: %w: %v", id, types.ErrIO, err)
		}
	}

	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("failed to write page %d: %w: %v", id, types.ErrIO, err)
	}
	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync page %d: %w: %v", id, types.ErrIO, err)
	}

	if id >= firstCachedPage {
		dm.cache.Set(id, append([]byte(nil), buf...), page.PageSize)
		dm.cache.Wait()
	}
	return nil
}

// DropCached evicts page id from the read cache (used when a page returns
// to the free list).
func (dm *DiskManager) DropCached(id uint32) {
	if id >= firstCachedPage {
		dm.cache.Del(id)
		dm.cache.Wait()
	}
}

// PageCount returns the number of whole pages in the file.
func (dm *DiskManager) PageCount() (uint32, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.file == nil {
		return 0, fmt.Errorf("page count: %w: file closed", types.ErrIO)
	}
	stat, err := dm.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat table file: %w: %v", types.ErrIO, err)
	}
	return uint32(stat.Size() / page.PageSize), nil
}

// Flush syncs outstanding writes.
func (dm *DiskManager) Flush() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.file == nil {
		return fmt.Errorf("flush: %w: file closed", types.ErrIO)
	}
	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("failed to flush: %w: %v", types.ErrIO, err)
	}
	return nil
}

// Close syncs and releases the file and the cache.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.file == nil {
		return nil
	}
	err := dm.file.Sync()
	if cerr := dm.file.Close(); err == nil {
		err = cerr
	}
	dm.file = nil
	dm.cache.Close()
	if err != nil {
		return fmt.Errorf("failed to close table file: %w: %v", types.ErrIO, err)
	}
	return nil
}
