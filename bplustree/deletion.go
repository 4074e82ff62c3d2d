package bplus

import (
	"fmt"

	"QuillDB/page"
	"QuillDB/types"
)

// Delete removes the record under key, rebalancing underfull pages with a
// same-parent sibling (redistribute when the donor stays above threshold,
// merge otherwise) and collapsing the root when it empties.
func (th *TableHandle) Delete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", types.ErrInvalidArgument)
	}
	if th.Root == page.InvalidPageID {
		return types.ErrNotFound
	}

	leafID, leaf, path, err := th.findLeaf(key)
	if err != nil {
		return err
	}
	found, idx := page.Search(leaf, key)
	if !found {
		return types.ErrNotFound
	}

	// tombstone then drop the slot in the same step; the bit never survives
	// past this write
	page.MarkTombstone(leaf, idx)
	page.RemoveSlot(leaf, idx)
	if err := th.writePage(leafID, leaf); err != nil {
		return err
	}

	h := page.ReadHeader(leaf)
	if leafID == th.Root {
		if h.CellCount == 0 {
			if err := th.freePage(leafID); err != nil {
				return err
			}
			return th.setRoot(page.InvalidPageID)
		}
		return nil
	}
	if h.CellCount >= underfullCells {
		return nil
	}
	return th.rebalance(path, leafID)
}

// fitsPage reports whether a cell list fits one page.
func fitsPage[T any](cells []T, size func(T) int) bool {
	total := page.HeaderSize
	for _, c := range cells {
		total += size(c) + page.SlotSize
	}
	return total <= page.PageSize
}

// rebalance fixes the underfull page childID whose parent is the last step
// of path, recursing upward when a merge leaves the parent underfull.
func (th *TableHandle) rebalance(path []descentStep, childID uint32) error {
	step := path[len(path)-1]
	parentID, pos := step.pageID, step.childPos

	parent, err := th.readPage(parentID)
	if err != nil {
		return err
	}
	ph := page.ReadHeader(parent)
	numChildren := int(ph.CellCount) + 1

	child, err := th.readPage(childID)
	if err != nil {
		return err
	}
	isLeaf := page.ReadHeader(child).Level == page.LevelLeaf

	// redistribution first: borrow one cell from a sibling that stays above
	// threshold after donating
	if pos+1 < numChildren {
		sibID := childAt(parent, pos+1)
		sib, err := th.readPage(sibID)
		if err != nil {
			return err
		}
		if int(page.ReadHeader(sib).CellCount) > underfullCells {
			ok, err := th.borrow(parentID, parent, pos, childID, child, sibID, sib, isLeaf, true)
			if err != nil || ok {
				return err
			}
		}
	}
	if pos > 0 {
		sibID := childAt(parent, pos-1)
		sib, err := th.readPage(sibID)
		if err != nil {
			return err
		}
		if int(page.ReadHeader(sib).CellCount) > underfullCells {
			ok, err := th.borrow(parentID, parent, pos, childID, child, sibID, sib, isLeaf, false)
			if err != nil || ok {
				return err
			}
		}
	}

	// merge into the left-hand page of the pair
	var leftPos int
	if pos+1 < numChildren {
		leftPos = pos
	} else {
		leftPos = pos - 1
	}
	merged, err := th.merge(parentID, parent, leftPos, isLeaf)
	if err != nil {
		return err
	}
	if !merged {
		// neither redistribution nor merge fits (oversized cells); the page
		// stays below threshold, which only costs space
		return nil
	}

	ph = page.ReadHeader(parent)
	if parentID == th.Root {
		if ph.CellCount == 0 {
			// single remaining child becomes the root
			newRoot := page.LeftmostChild(parent)
			if err := th.freePage(parentID); err != nil {
				return err
			}
			if err := th.setParent(newRoot, 0); err != nil {
				return err
			}
			return th.setRoot(newRoot)
		}
		return nil
	}
	if int(ph.CellCount) < underfullCells && len(path) > 1 {
		return th.rebalance(path[:len(path)-1], parentID)
	}
	return nil
}

// borrow moves one cell from sib into child (fromRight picks the donor
// side) and refreshes the separator in the parent. Returns false when the
// moved cell would not fit.
func (th *TableHandle) borrow(parentID uint32, parent []byte, pos int, childID uint32, child []byte, sibID uint32, sib []byte, isLeaf, fromRight bool) (bool, error) {
	parentCells := internalCells(parent)
	ph := page.ReadHeader(parent)

	if isLeaf {
		childCells := leafCells(child)
		sibCells := leafCells(sib)

		var moved []byte
		var sepIdx int
		if fromRight {
			moved = sibCells[0]
			sibCells = sibCells[1:]
			childCells = append(childCells, moved)
			sepIdx = pos // routing cell of the right sibling
			parentCells[sepIdx].key = leafRecordKey(sibCells[0])
		} else {
			moved = sibCells[len(sibCells)-1]
			sibCells = sibCells[:len(sibCells)-1]
			childCells = append([][]byte{moved}, childCells...)
			sepIdx = pos - 1 // routing cell of child itself
			parentCells[sepIdx].key = leafRecordKey(moved)
		}
		if !fitsPage(childCells, rawLen) || !fitsPage(parentCells, internalCellLen) {
			return false, nil
		}

		chPrev, chNext := page.PrevLeaf(child), page.NextLeaf(child)
		sbPrev, sbNext := page.PrevLeaf(sib), page.NextLeaf(sib)
		rebuildLeaf(child, childID, parentID, chPrev, chNext, childCells)
		rebuildLeaf(sib, sibID, parentID, sbPrev, sbNext, sibCells)
		if err := th.writePage(childID, child); err != nil {
			return false, err
		}
		if err := th.writePage(sibID, sib); err != nil {
			return false, err
		}
		rebuildInternal(parent, parentID, ph.ParentPage, page.LeftmostChild(parent), parentCells)
		return true, th.writePage(parentID, parent)
	}

	childCells := internalCells(child)
	sibCells := internalCells(sib)
	childLeftmost := page.LeftmostChild(child)
	sibLeftmost := page.LeftmostChild(sib)

	var movedChild uint32
	if fromRight {
		// separator rotates down to child; sib's leftmost subtree moves over
		sepIdx := pos
		movedChild = sibLeftmost
		childCells = append(childCells, internalCell{key: parentCells[sepIdx].key, child: movedChild})
		parentCells[sepIdx].key = sibCells[0].key
		sibLeftmost = sibCells[0].child
		sibCells = sibCells[1:]
	} else {
		sepIdx := pos - 1
		movedChild = sibCells[len(sibCells)-1].child
		childCells = append([]internalCell{{key: parentCells[sepIdx].key, child: childLeftmost}}, childCells...)
		childLeftmost = movedChild
		parentCells[sepIdx].key = sibCells[len(sibCells)-1].key
		sibCells = sibCells[:len(sibCells)-1]
	}
	if !fitsPage(childCells, internalCellLen) || !fitsPage(parentCells, internalCellLen) {
		return false, nil
	}

	rebuildInternal(child, childID, parentID, childLeftmost, childCells)
	rebuildInternal(sib, sibID, parentID, sibLeftmost, sibCells)
	rebuildInternal(parent, parentID, ph.ParentPage, page.LeftmostChild(parent), parentCells)

	if err := th.writePage(childID, child); err != nil {
		return false, err
	}
	if err := th.writePage(sibID, sib); err != nil {
		return false, err
	}
	if err := th.writePage(parentID, parent); err != nil {
		return false, err
	}
	// the moved subtree now hangs under child
	return true, th.setParent(movedChild, childID)
}

func internalCellLen(c internalCell) int { return page.InternalEntrySize + len(c.key) }

// merge absorbs the page at leftPos+1 into the page at leftPos, drops the
// separating cell from the parent, and frees the emptied page. Returns
// false when the combined cells would overflow one page.
func (th *TableHandle) merge(parentID uint32, parent []byte, leftPos int, isLeaf bool) (bool, error) {
	leftID := childAt(parent, leftPos)
	rightID := childAt(parent, leftPos+1)

	left, err := th.readPage(leftID)
	if err != nil {
		return false, err
	}
	right, err := th.readPage(rightID)
	if err != nil {
		return false, err
	}

	parentCells := internalCells(parent)
	ph := page.ReadHeader(parent)

	if isLeaf {
		combined := append(leafCells(left), leafCells(right)...)
		if !fitsPage(combined, rawLen) {
			return false, nil
		}
		prev := page.PrevLeaf(left)
		next := page.NextLeaf(right)
		rebuildLeaf(left, leftID, parentID, prev, next, combined)
		if err := th.writePage(leftID, left); err != nil {
			return false, err
		}
		if next != 0 {
			np, err := th.readPage(next)
			if err != nil {
				return false, err
			}
			page.SetPrevLeaf(np, leftID)
			if err := th.writePage(next, np); err != nil {
				return false, err
			}
		}
	} else {
		sep := parentCells[leftPos].key
		rightCells := internalCells(right)
		rightLeftmost := page.LeftmostChild(right)
		combined := append(internalCells(left), internalCell{key: sep, child: rightLeftmost})
		combined = append(combined, rightCells...)
		if !fitsPage(combined, internalCellLen) {
			return false, nil
		}
		rebuildInternal(left, leftID, parentID, page.LeftmostChild(left), combined)
		if err := th.writePage(leftID, left); err != nil {
			return false, err
		}
		if err := th.setParent(rightLeftmost, leftID); err != nil {
			return false, err
		}
		for _, c := range rightCells {
			if err := th.setParent(c.child, leftID); err != nil {
				return false, err
			}
		}
	}

	if err := th.freePage(rightID); err != nil {
		return false, err
	}

	parentCells = append(parentCells[:leftPos], parentCells[leftPos+1:]...)
	rebuildInternal(parent, parentID, ph.ParentPage, page.LeftmostChild(parent), parentCells)
	if err := th.writePage(parentID, parent); err != nil {
		return false, err
	}
	return true, nil
}
