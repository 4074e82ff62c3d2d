package bplus

import (
	"fmt"

	"QuillDB/page"
	"QuillDB/types"
)

// readPage loads and validates one tree page.
func (th *TableHandle) readPage(id uint32) ([]byte, error) {
	buf := make([]byte, page.PageSize)
	if err := th.DM.ReadPage(id, buf); err != nil {
		return nil, err
	}
	if err := page.Validate(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIntegrity, err)
	}
	return buf, nil
}

func (th *TableHandle) writePage(id uint32, buf []byte) error {
	return th.DM.WritePage(id, buf)
}

// AllocatePage pops a page id from page 0's free list, or extends the file.
func (th *TableHandle) AllocatePage() (uint32, error) {
	return th.allocatePage()
}

// FreePage pushes a page id onto page 0's free list.
func (th *TableHandle) FreePage(id uint32) error {
	return th.freePage(id)
}

// allocatePage pops a page id from page 0's free list, or extends the file.
func (th *TableHandle) allocatePage() (uint32, error) {
	p0, err := th.Catalog.Page0(th.DBPath, th.TableName)
	if err != nil {
		return 0, err
	}
	if id, ok := page.PopFreePage(p0); ok {
		th.Catalog.MarkPage0Dirty(th.DBPath, th.TableName)
		th.DM.DropCached(id)
		return id, nil
	}
	count, err := th.DM.PageCount()
	if err != nil {
		return 0, err
	}
	if count < 2 {
		// a table file always carries its header and meta pages
		return 0, fmt.Errorf("%w: table file has %d pages", types.ErrIntegrity, count)
	}
	// extend the file by one zeroed page so the id is taken at once
	if err := th.DM.WritePage(count, make([]byte, page.PageSize)); err != nil {
		return 0, err
	}
	return count, nil
}

// freePage returns a page id to page 0's free list. A full list leaks the
// page in the file, which only wastes space.
func (th *TableHandle) freePage(id uint32) error {
	p0, err := th.Catalog.Page0(th.DBPath, th.TableName)
	if err != nil {
		return err
	}
	page.PushFreePage(p0, id)
	th.Catalog.MarkPage0Dirty(th.DBPath, th.TableName)
	th.DM.DropCached(id)
	return nil
}

// setRoot updates the root page id on page 0 through the catalog and in the
// handle's cache.
func (th *TableHandle) setRoot(id uint32) error {
	p0, err := th.Catalog.Page0(th.DBPath, th.TableName)
	if err != nil {
		return err
	}
	page.SetRootPageID(p0, id)
	th.Catalog.MarkPage0Dirty(th.DBPath, th.TableName)
	th.Root = id
	return nil
}

// setParent rewrites child's parent pointer on disk.
func (th *TableHandle) setParent(childID, parentID uint32) error {
	p, err := th.readPage(childID)
	if err != nil {
		return err
	}
	page.SetParentPage(p, parentID)
	return th.writePage(childID, p)
}

// encodeRecord builds the on-page bytes of a leaf record.
func encodeRecord(key, value []byte) []byte {
	raw := make([]byte, page.RecordSize(len(key), len(value)))
	raw[0] = 0
	raw[1] = byte(len(key))
	raw[2] = byte(len(key) >> 8)
	raw[3] = byte(len(value))
	raw[4] = byte(len(value) >> 8)
	copy(raw[page.RecordHeaderSize:], key)
	copy(raw[page.RecordHeaderSize+len(key):], value)
	return raw
}

// leafCells copies out every record of a leaf in slot order, skipping any
// transiently tombstoned slot.
func leafCells(p []byte) [][]byte {
	h := page.ReadHeader(p)
	cells := make([][]byte, 0, h.CellCount)
	for i := uint16(0); i < h.CellCount; i++ {
		if page.SlotTombstoned(p, i) {
			continue
		}
		cells = append(cells, append([]byte(nil), page.RawCell(p, i)...))
	}
	return cells
}

// internalCells decodes every routing cell of an internal page in slot order.
func internalCells(p []byte) []internalCell {
	h := page.ReadHeader(p)
	cells := make([]internalCell, 0, h.CellCount)
	for i := uint16(0); i < h.CellCount; i++ {
		cells = append(cells, internalCell{
			key:   append([]byte(nil), page.SlotKey(p, i)...),
			child: page.SlotChild(p, i),
		})
	}
	return cells
}

// rebuildLeaf rewrites p from scratch with the given records (already in key
// order), defragmenting any holes left by deletes.
func rebuildLeaf(p []byte, id, parent, prev, next uint32, cells [][]byte) {
	page.Init(p, id, page.KindData, page.LevelLeaf)
	page.SetParentPage(p, parent)
	page.SetPrevLeaf(p, prev)
	page.SetNextLeaf(p, next)
	for i, raw := range cells {
		off := page.WriteRaw(p, raw)
		page.InsertSlot(p, uint16(i), off)
	}
}

// rebuildInternal rewrites p from scratch with the given routing cells.
func rebuildInternal(p []byte, id, parent, leftmost uint32, cells []internalCell) {
	page.Init(p, id, page.KindIndex, page.LevelInternal)
	page.SetParentPage(p, parent)
	page.SetLeftmostChild(p, leftmost)
	for i, c := range cells {
		off := page.WriteInternalEntry(p, c.key, c.child)
		page.InsertSlot(p, uint16(i), off)
	}
}

// childAt returns the page id routed at position pos: 0 is the leftmost
// child, pos i+1 is cell i's child.
func childAt(p []byte, pos int) uint32 {
	if pos == 0 {
		return page.LeftmostChild(p)
	}
	return page.SlotChild(p, uint16(pos-1))
}
