// Package catalog caches the header page (page 0) and meta page (page 1) of
// recently touched tables. It is the only component allowed to read or write
// those two pages. Three slots, strict LRU by access-counter timestamp,
// dirty pages flushed on eviction and on demand.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	diskmgr "QuillDB/disk_manager"
	"QuillDB/page"
	"QuillDB/schema"
	"QuillDB/types"
)

// NumSlots is a deliberate, tested constant; eviction is strict LRU.
const NumSlots = 3

type slot struct {
	valid      bool
	dbPath     string
	tableName  string
	page0      [page.PageSize]byte
	page1      [page.PageSize]byte
	dirty0     bool
	dirty1     bool
	lastAccess uint64
}

// CatalogManager is confined to the transaction worker; it carries no lock.
type CatalogManager struct {
	slots         [NumSlots]slot
	accessCounter uint64
}

func NewCatalogManager() *CatalogManager {
	return &CatalogManager{}
}

// TablePath returns the .ibd path for a table in a database directory.
func TablePath(dbPath, tableName string) string {
	return filepath.Join(dbPath, tableName+".ibd")
}

func (cm *CatalogManager) findSlot(dbPath, tableName string) int {
	for i := range cm.slots {
		if cm.slots[i].valid && cm.slots[i].tableName == tableName && cm.slots[i].dbPath == dbPath {
			return i
		}
	}
	return -1
}

func (cm *CatalogManager) touch(i int) {
	cm.accessCounter++
	cm.slots[i].lastAccess = cm.accessCounter
}

func (cm *CatalogManager) flushSlot(i int) error {
	s := &cm.slots[i]
	if !s.dirty0 && !s.dirty1 {
		return nil
	}
	dm, err := diskmgr.Open(TablePath(s.dbPath, s.tableName))
	if err != nil {
		return err
	}
	defer dm.Close()

	if s.dirty0 {
		if err := dm.WritePage(0, s.page0[:]); err != nil {
			return err
		}
		s.dirty0 = false
	}
	if s.dirty1 {
		if err := dm.WritePage(1, s.page1[:]); err != nil {
			return err
		}
		s.dirty1 = false
	}
	return nil
}

// evictLRU flushes and frees the slot with the oldest access time, returning
// its index. Caller guarantees at least one slot is valid.
func (cm *CatalogManager) evictLRU() (int, error) {
	oldest := uint64(1<<64 - 1)
	victim := 0
	for i := range cm.slots {
		if cm.slots[i].valid && cm.slots[i].lastAccess < oldest {
			oldest = cm.slots[i].lastAccess
			victim = i
		}
	}
	if err := cm.flushSlot(victim); err != nil {
		return 0, err
	}
	cm.slots[victim] = slot{}
	return victim, nil
}

// Load ensures the table's pages 0 and 1 are cached, evicting the LRU slot
// if all three are taken. A missing table file is ErrNotFound.
func (cm *CatalogManager) Load(dbPath, tableName string) error {
	if cm.findSlot(dbPath, tableName) >= 0 {
		return nil
	}

	path := TablePath(dbPath, tableName)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("table %q: %w", tableName, types.ErrNotFound)
	}

	idx := -1
	for i := range cm.slots {
		if !cm.slots[i].valid {
			idx = i
			break
		}
	}
	if idx < 0 {
		var err error
		idx, err = cm.evictLRU()
		if err != nil {
			return err
		}
	}

	dm, err := diskmgr.Open(path)
	if err != nil {
		return err
	}
	defer dm.Close()

	s := &cm.slots[idx]
	if err := dm.ReadPage(0, s.page0[:]); err != nil {
		return err
	}
	if err := dm.ReadPage(1, s.page1[:]); err != nil {
		return err
	}

	s.valid = true
	s.dbPath = dbPath
	s.tableName = tableName
	s.dirty0 = false
	s.dirty1 = false
	cm.touch(idx)
	return nil
}

// Page0 returns the cached header page. The buffer is borrowed: it is valid
// only until the next catalog operation and must not be retained across a
// transaction boundary.
func (cm *CatalogManager) Page0(dbPath, tableName string) ([]byte, error) {
	if err := cm.Load(dbPath, tableName); err != nil {
		return nil, err
	}
	i := cm.findSlot(dbPath, tableName)
	cm.touch(i)
	return cm.slots[i].page0[:], nil
}

// SchemaPage returns the cached meta page, borrowed like Page0.
func (cm *CatalogManager) SchemaPage(dbPath, tableName string) ([]byte, error) {
	if err := cm.Load(dbPath, tableName); err != nil {
		return nil, err
	}
	i := cm.findSlot(dbPath, tableName)
	cm.touch(i)
	return cm.slots[i].page1[:], nil
}

func (cm *CatalogManager) MarkPage0Dirty(dbPath, tableName string) {
	if i := cm.findSlot(dbPath, tableName); i >= 0 {
		cm.slots[i].dirty0 = true
	}
}

func (cm *CatalogManager) MarkSchemaDirty(dbPath, tableName string) {
	if i := cm.findSlot(dbPath, tableName); i >= 0 {
		cm.slots[i].dirty1 = true
	}
}

// CreateTableMeta writes the two initial pages of a fresh table file and
// loads them. An existing file is ErrAlreadyExists.
func (cm *CatalogManager) CreateTableMeta(dbPath, tableName string, s *types.TableSchema) error {
	path := TablePath(dbPath, tableName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("table %q: %w", tableName, types.ErrAlreadyExists)
	}
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w: %v", types.ErrIO, err)
	}

	blob, err := schema.Serialize(s)
	if err != nil {
		return err
	}
	if len(blob) > page.MaxSchemaSize {
		return fmt.Errorf("%w: serialized schema is %d bytes, max %d", types.ErrInvalidSchema, len(blob), page.MaxSchemaSize)
	}

	var page0 [page.PageSize]byte
	if err := page.InitPage0(page0[:], tableName, filepath.Base(dbPath)); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)
	}
	var page1 [page.PageSize]byte
	if err := page.InitMetaPage(page1[:], blob); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidSchema, err)
	}

	dm, err := diskmgr.Open(path)
	if err != nil {
		return err
	}
	if err := dm.WritePage(0, page0[:]); err != nil {
		dm.Close()
		return err
	}
	if err := dm.WritePage(1, page1[:]); err != nil {
		dm.Close()
		return err
	}
	if err := dm.Close(); err != nil {
		return err
	}

	return cm.Load(dbPath, tableName)
}

// ReadSchema deserializes the schema from the cached meta page.
func (cm *CatalogManager) ReadSchema(dbPath, tableName string) (*types.TableSchema, error) {
	p1, err := cm.SchemaPage(dbPath, tableName)
	if err != nil {
		return nil, err
	}
	blob, err := page.SchemaBlob(p1)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w: %v", tableName, types.ErrInvalidSchema, err)
	}
	return schema.Deserialize(blob)
}

// WriteSchema replaces the schema on the cached meta page and dirties it.
func (cm *CatalogManager) WriteSchema(dbPath, tableName string, s *types.TableSchema) error {
	p1, err := cm.SchemaPage(dbPath, tableName)
	if err != nil {
		return err
	}
	blob, err := schema.Serialize(s)
	if err != nil {
		return err
	}
	if err := page.SetSchemaBlob(p1, blob); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidSchema, err)
	}
	cm.MarkSchemaDirty(dbPath, tableName)
	return nil
}

// NextRowID returns the table's row-id counter and advances it. The
// read-modify-write is safe because all callers run on the transaction
// worker.
func (cm *CatalogManager) NextRowID(dbPath, tableName string) (uint64, error) {
	p0, err := cm.Page0(dbPath, tableName)
	if err != nil {
		return 0, err
	}
	id := page.NextRowID(p0)
	page.SetNextRowID(p0, id+1)
	cm.MarkPage0Dirty(dbPath, tableName)
	return id, nil
}

// NextAutoIncrement returns and advances the AUTO_INCREMENT counter in the
// given slot (0..7).
func (cm *CatalogManager) NextAutoIncrement(dbPath, tableName string, counterSlot int) (uint64, error) {
	if counterSlot < 0 || counterSlot >= page.AutoIncrementSlots {
		return 0, fmt.Errorf("%w: AUTO_INCREMENT slot %d out of range", types.ErrInvalidArgument, counterSlot)
	}
	p0, err := cm.Page0(dbPath, tableName)
	if err != nil {
		return 0, err
	}
	v := page.AutoIncrement(p0, counterSlot)
	page.SetAutoIncrement(p0, counterSlot, v+1)
	cm.MarkPage0Dirty(dbPath, tableName)
	return v, nil
}

// Flush writes every dirty page and clears the flags.
func (cm *CatalogManager) Flush() error {
	for i := range cm.slots {
		if cm.slots[i].valid {
			if err := cm.flushSlot(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clear flushes and then invalidates every slot.
func (cm *CatalogManager) Clear() error {
	if err := cm.Flush(); err != nil {
		return err
	}
	for i := range cm.slots {
		cm.slots[i] = slot{}
	}
	cm.accessCounter = 0
	return nil
}

// Evict flushes and frees one table's slot, if cached.
func (cm *CatalogManager) Evict(dbPath, tableName string) error {
	i := cm.findSlot(dbPath, tableName)
	if i < 0 {
		return nil
	}
	if err := cm.flushSlot(i); err != nil {
		return err
	}
	cm.slots[i] = slot{}
	return nil
}
