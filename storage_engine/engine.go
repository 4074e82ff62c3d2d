// Package storageengine is the table facade over the storage core: it owns
// the catalog cache and the open table handles for one database directory
// and exposes the record operations the SQL layer consumes. Callers are
// responsible for routing every mutation through the transaction queue.
package storageengine

import (
	"fmt"
	"os"

	bplus "QuillDB/bplustree"
	catalog "QuillDB/catalog_manager"
	diskmgr "QuillDB/disk_manager"
	"QuillDB/page"
	"QuillDB/types"
)

type StorageEngine struct {
	DBPath  string
	Catalog *catalog.CatalogManager

	openTables map[string]*bplus.TableHandle
}

func NewStorageEngine(dbPath string) (*StorageEngine, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w: %v", types.ErrIO, err)
	}
	return &StorageEngine{
		DBPath:     dbPath,
		Catalog:    catalog.NewCatalogManager(),
		openTables: make(map[string]*bplus.TableHandle),
	}, nil
}

// CreateTable writes the header and meta pages of a fresh table file and
// loads them into the catalog.
func (se *StorageEngine) CreateTable(name string, s *types.TableSchema) error {
	if name == "" {
		return fmt.Errorf("%w: empty table name", types.ErrInvalidArgument)
	}
	aiCount := 0
	for i := range s.Columns {
		if s.Columns[i].AutoIncrement {
			aiCount++
		}
	}
	if aiCount > page.AutoIncrementSlots {
		return fmt.Errorf("%w: %d AUTO_INCREMENT columns, max %d", types.ErrInvalidArgument, aiCount, page.AutoIncrementSlots)
	}
	return se.Catalog.CreateTableMeta(se.DBPath, name, s)
}

// DropTable closes the table, evicts its catalog slot, and unlinks the file.
func (se *StorageEngine) DropTable(name string) error {
	if h, ok := se.openTables[name]; ok {
		h.DM.Close()
		delete(se.openTables, name)
	}
	if err := se.Catalog.Evict(se.DBPath, name); err != nil {
		return err
	}
	path := catalog.TablePath(se.DBPath, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("table %q: %w", name, types.ErrNotFound)
		}
		return fmt.Errorf("failed to remove table file: %w: %v", types.ErrIO, err)
	}
	return nil
}

// OpenTable returns the handle for a table, opening its file and reading
// the root page id from the cached header page.
func (se *StorageEngine) OpenTable(name string) (*bplus.TableHandle, error) {
	if h, ok := se.openTables[name]; ok {
		return h, nil
	}

	p0, err := se.Catalog.Page0(se.DBPath, name)
	if err != nil {
		return nil, err
	}
	root := page.RootPageID(p0)

	dm, err := diskmgr.Open(catalog.TablePath(se.DBPath, name))
	if err != nil {
		return nil, err
	}

	h := &bplus.TableHandle{
		TableName: name,
		DBPath:    se.DBPath,
		DM:        dm,
		Root:      root,
		Catalog:   se.Catalog,
	}
	se.openTables[name] = h
	return h, nil
}

// Insert stores value under key. Duplicate keys are rejected.
func (se *StorageEngine) Insert(h *bplus.TableHandle, key, value []byte) error {
	return h.Insert(key, value)
}

// Get returns a copy of the value under key, or ErrNotFound.
func (se *StorageEngine) Get(h *bplus.TableHandle, key []byte) ([]byte, error) {
	return h.Search(key)
}

// Update replaces the value under key as delete-then-insert; the pair is
// atomic for observers because the caller holds the transaction queue. A
// failed reinsert restores the previous value.
func (se *StorageEngine) Update(h *bplus.TableHandle, key, newValue []byte) error {
	old, err := h.Search(key)
	if err != nil {
		return err
	}
	if err := h.Delete(key); err != nil {
		return err
	}
	if err := h.Insert(key, newValue); err != nil {
		if restoreErr := h.Insert(key, old); restoreErr != nil {
			return fmt.Errorf("update failed and old value lost: %v: %w", restoreErr, err)
		}
		return err
	}
	return nil
}

// Delete removes the record under key.
func (se *StorageEngine) Delete(h *bplus.TableHandle, key []byte) error {
	return h.Delete(key)
}

// Scan visits every record in key order.
func (se *StorageEngine) Scan(h *bplus.TableHandle, visit bplus.Visitor) error {
	return h.Scan(visit)
}

// RangeScan visits records between startKey and endKey (either may be
// empty for an open end).
func (se *StorageEngine) RangeScan(h *bplus.TableHandle, startKey, endKey []byte, visit bplus.Visitor) error {
	return h.RangeScan(startKey, endKey, visit)
}

// AllocatePage hands out a page id for the table: the head of page 0's
// free list, or a fresh page appended to the file.
func (se *StorageEngine) AllocatePage(h *bplus.TableHandle) (uint32, error) {
	return h.AllocatePage()
}

// FreePage returns a page id to the table's free list.
func (se *StorageEngine) FreePage(h *bplus.TableHandle, id uint32) error {
	return h.FreePage(id)
}

// ReadSchema returns the table's schema from the cached meta page.
func (se *StorageEngine) ReadSchema(name string) (*types.TableSchema, error) {
	return se.Catalog.ReadSchema(se.DBPath, name)
}

// NextRowID advances and returns the table's row-id counter.
func (se *StorageEngine) NextRowID(h *bplus.TableHandle) (uint64, error) {
	return se.Catalog.NextRowID(h.DBPath, h.TableName)
}

// NextAutoIncrement advances and returns one of the table's eight
// AUTO_INCREMENT counters.
func (se *StorageEngine) NextAutoIncrement(h *bplus.TableHandle, counterSlot int) (uint64, error) {
	return se.Catalog.NextAutoIncrement(h.DBPath, h.TableName, counterSlot)
}

// Flush writes all dirty catalog pages and syncs every open table file.
func (se *StorageEngine) Flush() error {
	if err := se.Catalog.Flush(); err != nil {
		return err
	}
	for _, h := range se.openTables {
		if err := h.DM.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and releases every open table and the catalog.
func (se *StorageEngine) Close() error {
	err := se.Catalog.Clear()
	for name, h := range se.openTables {
		if cerr := h.DM.Close(); err == nil {
			err = cerr
		}
		delete(se.openTables, name)
	}
	return err
}
