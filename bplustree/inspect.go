package bplus

import (
	"fmt"

	"QuillDB/page"
	"QuillDB/types"
)

// LeafPages returns the ids of every leaf, in chain order. Mostly useful
// for tests and debugging.
func (th *TableHandle) LeafPages() ([]uint32, error) {
	if th.Root == page.InvalidPageID {
		return nil, nil
	}
	id, leaf, err := th.leftmostLeaf()
	if err != nil {
		return nil, err
	}
	var ids []uint32
	for {
		ids = append(ids, id)
		next := page.NextLeaf(leaf)
		if next == 0 {
			return ids, nil
		}
		if len(ids) > 1<<20 {
			return nil, fmt.Errorf("%w: leaf chain does not terminate", types.ErrIntegrity)
		}
		id = next
		leaf, err = th.readPage(next)
		if err != nil {
			return nil, err
		}
	}
}

// Depth returns the number of levels from root to leaf (0 for an empty
// tree).
func (th *TableHandle) Depth() (int, error) {
	if th.Root == page.InvalidPageID {
		return 0, nil
	}
	depth := 0
	id := th.Root
	for depth < maxDepth {
		p, err := th.readPage(id)
		if err != nil {
			return 0, err
		}
		depth++
		if page.ReadHeader(p).Level == page.LevelLeaf {
			return depth, nil
		}
		id = page.LeftmostChild(p)
	}
	return 0, fmt.Errorf("%w: descent exceeded %d levels", types.ErrIntegrity, maxDepth)
}
