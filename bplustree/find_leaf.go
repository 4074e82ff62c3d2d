package bplus

import (
	"fmt"

	"QuillDB/page"
	"QuillDB/types"
)

// descentStep records one internal page crossed on the way to a leaf and
// which child position was taken (0 = leftmost child, i+1 = cell i's child).
type descentStep struct {
	pageID   uint32
	childPos int
}

// routePos picks the child position for key on an internal page: the
// leftmost child when key sorts before cell 0, otherwise the child of the
// last cell whose key is <= key.
func routePos(p []byte, key []byte) int {
	found, idx := page.Search(p, key)
	if found {
		return int(idx) + 1
	}
	return int(idx)
}

// findLeaf descends from the root to the leaf that does or would hold key,
// returning the leaf page and the internal path above it.
func (th *TableHandle) findLeaf(key []byte) (uint32, []byte, []descentStep, error) {
	id := th.Root
	var path []descentStep

	for depth := 0; depth < maxDepth; depth++ {
		p, err := th.readPage(id)
		if err != nil {
			return 0, nil, nil, err
		}
		h := page.ReadHeader(p)
		if h.Level == page.LevelLeaf {
			return id, p, path, nil
		}
		pos := routePos(p, key)
		path = append(path, descentStep{pageID: id, childPos: pos})
		id = childAt(p, pos)
	}
	return 0, nil, nil, fmt.Errorf("%w: descent exceeded %d levels", types.ErrIntegrity, maxDepth)
}

// leftmostLeaf descends along leftmost children.
func (th *TableHandle) leftmostLeaf() (uint32, []byte, error) {
	id := th.Root
	for depth := 0; depth < maxDepth; depth++ {
		p, err := th.readPage(id)
		if err != nil {
			return 0, nil, err
		}
		if page.ReadHeader(p).Level == page.LevelLeaf {
			return id, p, nil
		}
		id = page.LeftmostChild(p)
	}
	return 0, nil, fmt.Errorf("%w: descent exceeded %d levels", types.ErrIntegrity, maxDepth)
}

// Search returns a copy of the value stored under key, or ErrNotFound.
func (th *TableHandle) Search(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", types.ErrInvalidArgument)
	}
	if th.Root == page.InvalidPageID {
		return nil, types.ErrNotFound
	}
	_, leaf, _, err := th.findLeaf(key)
	if err != nil {
		return nil, err
	}
	found, idx := page.Search(leaf, key)
	if !found || page.SlotTombstoned(leaf, idx) {
		return nil, types.ErrNotFound
	}
	return append([]byte(nil), page.SlotValue(leaf, idx)...), nil
}
