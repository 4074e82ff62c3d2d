package bplus

import (
	"encoding/binary"
	"fmt"

	"QuillDB/page"
	"QuillDB/types"
)

// Insert adds a record under key. The tree is unique-key: inserting an
// existing key fails with ErrAlreadyExists and leaves the stored value
// untouched.
func (th *TableHandle) Insert(key, value []byte) error {
	if err := checkRecord(key, value); err != nil {
		return err
	}

	// first insert allocates the first leaf and roots the tree
	if th.Root == page.InvalidPageID {
		id, err := th.allocatePage()
		if err != nil {
			return err
		}
		p := make([]byte, page.PageSize)
		page.Init(p, id, page.KindData, page.LevelLeaf)
		off := page.WriteRecord(p, key, value)
		page.InsertSlot(p, 0, off)
		if err := th.writePage(id, p); err != nil {
			return err
		}
		return th.setRoot(id)
	}

	leafID, leaf, _, err := th.findLeaf(key)
	if err != nil {
		return err
	}
	found, idx := page.Search(leaf, key)
	if found {
		return fmt.Errorf("duplicate key: %w", types.ErrAlreadyExists)
	}

	if page.CanInsert(leaf, page.RecordSize(len(key), len(value))) {
		off := page.WriteRecord(leaf, key, value)
		page.InsertSlot(leaf, idx, off)
		return th.writePage(leafID, leaf)
	}

	return th.splitLeafAndInsert(leafID, leaf, int(idx), key, value)
}

func checkRecord(key, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", types.ErrInvalidArgument)
	}
	if len(key) > 0xFFFF || len(value) > 0xFFFF {
		return fmt.Errorf("%w: key or value exceeds 64 KiB", types.ErrInvalidArgument)
	}
	if page.RecordSize(len(key), len(value)) > page.MaxRecordSize {
		return fmt.Errorf("%w: record of %d bytes exceeds one page", types.ErrInvalidArgument, page.RecordSize(len(key), len(value)))
	}
	return nil
}

// splitLeafAndInsert splits a full leaf. All live cells plus the pending
// record are partitioned at the cell-count midpoint (nudged so both halves
// fit); rewriting both pages from the cell list defragments any holes left
// by earlier deletes. The separator promoted to the parent is the first key
// of the new right page.
func (th *TableHandle) splitLeafAndInsert(leafID uint32, leaf []byte, idx int, key, value []byte) error {
	cells := leafCells(leaf)
	combined := make([][]byte, 0, len(cells)+1)
	combined = append(combined, cells[:idx]...)
	combined = append(combined, encodeRecord(key, value))
	combined = append(combined, cells[idx:]...)

	h := page.ReadHeader(leaf)
	prev, next := page.PrevLeaf(leaf), page.NextLeaf(leaf)

	newID, err := th.allocatePage()
	if err != nil {
		return err
	}

	mid := splitPoint(combined, rawLen)

	newPage := make([]byte, page.PageSize)
	rebuildLeaf(newPage, newID, h.ParentPage, leafID, next, combined[mid:])
	rebuildLeaf(leaf, leafID, h.ParentPage, prev, newID, combined[:mid])

	sep := leafRecordKey(combined[mid])

	if err := th.writePage(leafID, leaf); err != nil {
		return err
	}
	if err := th.writePage(newID, newPage); err != nil {
		return err
	}
	if next != 0 {
		np, err := th.readPage(next)
		if err != nil {
			return err
		}
		page.SetPrevLeaf(np, newID)
		if err := th.writePage(next, np); err != nil {
			return err
		}
	}

	return th.insertIntoParent(leafID, sep, newID)
}

func rawLen(raw []byte) int { return len(raw) }

// leafRecordKey extracts a copy of the key from an encoded leaf record.
func leafRecordKey(raw []byte) []byte {
	keyLen := int(binary.LittleEndian.Uint16(raw[1:3]))
	return append([]byte(nil), raw[page.RecordHeaderSize:page.RecordHeaderSize+keyLen]...)
}

// splitPoint picks the partition index for a combined cell list: the count
// midpoint, nudged so each half fits a page, with at least one cell per side.
func splitPoint[T any](cells []T, size func(T) int) int {
	mid := len(cells) / 2
	if mid < 1 {
		mid = 1
	}
	capacity := page.PageSize - page.HeaderSize

	fits := func(lo, hi int) bool {
		total := 0
		for i := lo; i < hi; i++ {
			total += size(cells[i]) + page.SlotSize
		}
		return total <= capacity
	}

	for !fits(0, mid) && mid > 1 {
		mid--
	}
	for !fits(mid, len(cells)) && mid < len(cells)-1 {
		mid++
	}
	return mid
}

// insertIntoParent links (sep, rightID) into the parent of leftID, growing a
// new root or splitting the parent as needed.
func (th *TableHandle) insertIntoParent(leftID uint32, sep []byte, rightID uint32) error {
	leftPage, err := th.readPage(leftID)
	if err != nil {
		return err
	}
	parentID := page.ReadHeader(leftPage).ParentPage

	if parentID == 0 {
		// left was the root: grow the tree one level
		rootID, err := th.allocatePage()
		if err != nil {
			return err
		}
		root := make([]byte, page.PageSize)
		page.Init(root, rootID, page.KindIndex, page.LevelInternal)
		page.SetLeftmostChild(root, leftID)
		off := page.WriteInternalEntry(root, sep, rightID)
		page.InsertSlot(root, 0, off)
		if err := th.writePage(rootID, root); err != nil {
			return err
		}
		if err := th.setParent(leftID, rootID); err != nil {
			return err
		}
		if err := th.setParent(rightID, rootID); err != nil {
			return err
		}
		return th.setRoot(rootID)
	}

	parent, err := th.readPage(parentID)
	if err != nil {
		return err
	}

	if page.CanInsert(parent, page.InternalEntrySize+len(sep)) {
		_, idx := page.Search(parent, sep)
		off := page.WriteInternalEntry(parent, sep, rightID)
		page.InsertSlot(parent, idx, off)
		if err := th.writePage(parentID, parent); err != nil {
			return err
		}
		return th.setParent(rightID, parentID)
	}

	return th.splitInternal(parentID, parent, sep, rightID)
}

// splitInternal splits a full internal page around the midpoint cell, which
// is promoted to the level above (not copied down); its child becomes the
// new right page's leftmost child.
func (th *TableHandle) splitInternal(pageID uint32, p []byte, sep []byte, rightChild uint32) error {
	cells := internalCells(p)
	_, idx := page.Search(p, sep)
	combined := make([]internalCell, 0, len(cells)+1)
	combined = append(combined, cells[:idx]...)
	combined = append(combined, internalCell{key: append([]byte(nil), sep...), child: rightChild})
	combined = append(combined, cells[idx:]...)

	mid := splitPoint(combined, func(c internalCell) int { return page.InternalEntrySize + len(c.key) })
	promoted := combined[mid]

	newID, err := th.allocatePage()
	if err != nil {
		return err
	}

	h := page.ReadHeader(p)
	leftmost := page.LeftmostChild(p)

	newPage := make([]byte, page.PageSize)
	rebuildInternal(newPage, newID, h.ParentPage, promoted.child, combined[mid+1:])
	rebuildInternal(p, pageID, h.ParentPage, leftmost, combined[:mid])

	if err := th.writePage(pageID, p); err != nil {
		return err
	}
	if err := th.writePage(newID, newPage); err != nil {
		return err
	}

	// every child that moved to the new page needs its parent pointer fixed
	if err := th.setParent(promoted.child, newID); err != nil {
		return err
	}
	for _, c := range combined[mid+1:] {
		if err := th.setParent(c.child, newID); err != nil {
			return err
		}
	}
	// the pending right child may have landed on the left half, whose id is
	// unchanged; its header already names pageID, so nothing more to do.

	return th.insertIntoParent(pageID, promoted.key, newID)
}
