package bplus

import (
	"QuillDB/page"
)

// Visitor receives (key, value) pairs in key order. Returning false stops
// the scan. Both slices are borrowed from the page buffer and must be
// copied if retained.
type Visitor func(key, value []byte) bool

// RangeScan walks the leaf sibling chain from startKey (the leftmost leaf
// when empty) and visits every record until endKey is exceeded (forever
// when endKey is empty).
func (th *TableHandle) RangeScan(startKey, endKey []byte, visit Visitor) error {
	if th.Root == page.InvalidPageID {
		return nil
	}

	var (
		leaf []byte
		err  error
		idx  uint16
	)
	if len(startKey) == 0 {
		_, leaf, err = th.leftmostLeaf()
		if err != nil {
			return err
		}
	} else {
		_, leaf, _, err = th.findLeaf(startKey)
		if err != nil {
			return err
		}
		_, idx = page.Search(leaf, startKey)
	}

	for {
		h := page.ReadHeader(leaf)
		for ; idx < h.CellCount; idx++ {
			if page.SlotTombstoned(leaf, idx) {
				continue
			}
			key := page.SlotKey(leaf, idx)
			if len(endKey) != 0 && page.CompareKeys(key, endKey) > 0 {
				return nil
			}
			if !visit(key, page.SlotValue(leaf, idx)) {
				return nil
			}
		}

		next := page.NextLeaf(leaf)
		if next == 0 {
			return nil
		}
		leaf, err = th.readPage(next)
		if err != nil {
			return err
		}
		idx = 0
	}
}

// Scan visits every record of the table in key order.
func (th *TableHandle) Scan(visit Visitor) error {
	return th.RangeScan(nil, nil, visit)
}
