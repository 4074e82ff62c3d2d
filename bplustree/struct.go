// Structure of the clustered index
/*
Tree (one per table, rooted from page 0's root_page_id)
 ├── Internal page (routing cells + leftmost child)
 │      └── Child internal pages ...
 │             └── Leaf pages (records, prev/next sibling links)

- slot directories sorted ascending by key; no duplicate keys in the tree
- an internal page with n cells routes n+1 children
- all leaves at the same depth, doubly linked for range scans
*/
package bplus

import (
	catalog "QuillDB/catalog_manager"
	diskmgr "QuillDB/disk_manager"
)

// maxDepth bounds descent; a healthy tree stays far below this, so hitting
// it means a corrupt parent/child cycle.
const maxDepth = 100

// underfullCells is the rebalance threshold for both leaf and internal
// pages, by cell count. Conservative so arbitrarily large variable-length
// cells never wedge a page below threshold; a merge of two pages always
// yields at least two cells and never re-triggers underflow.
const underfullCells = 2

// TableHandle is one open table: its file, its cached root page id, and the
// catalog that owns the table's header and meta pages. All methods run on
// the transaction worker.
type TableHandle struct {
	TableName string
	DBPath    string
	DM        *diskmgr.DiskManager
	Root      uint32
	Catalog   *catalog.CatalogManager
}

// internalCell is a decoded routing entry: keys >= key live under child.
type internalCell struct {
	key   []byte
	child uint32
}
