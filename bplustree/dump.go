package bplus

import (
	"fmt"
	"io"

	diskmgr "QuillDB/disk_manager"
	"QuillDB/page"
)

// DumpTableFile prints a page-by-page summary of a table file. Debugging
// aid for cmd/quilldb-inspect; it bypasses the catalog, so only run it on
// files no live engine has open.
func DumpTableFile(path string, w io.Writer) error {
	dm, err := diskmgr.Open(path)
	if err != nil {
		return err
	}
	defer dm.Close()

	count, err := dm.PageCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d pages\n", path, count)

	buf := make([]byte, page.PageSize)
	for id := uint32(0); id < count; id++ {
		if err := dm.ReadPage(id, buf); err != nil {
			return err
		}
		h := page.ReadHeader(buf)
		switch {
		case id == 0:
			fmt.Fprintf(w, "page %4d: header table=%q db=%q root=%d free_pages=%d next_row_id=%d\n",
				id, page.TableName(buf), page.DBName(buf), int32(page.RootPageID(buf)), page.FreePageCount(buf), page.NextRowID(buf))
		case id == 1:
			blob, err := page.SchemaBlob(buf)
			if err != nil {
				fmt.Fprintf(w, "page %4d: meta (unreadable schema: %v)\n", id, err)
			} else {
				fmt.Fprintf(w, "page %4d: meta schema=%d bytes\n", id, len(blob))
			}
		case h.Level == page.LevelLeaf:
			fmt.Fprintf(w, "page %4d: leaf cells=%d free=[%d,%d) parent=%d prev=%d next=%d\n",
				id, h.CellCount, h.FreeStart, h.FreeEnd, h.ParentPage, page.PrevLeaf(buf), page.NextLeaf(buf))
		default:
			fmt.Fprintf(w, "page %4d: internal cells=%d free=[%d,%d) parent=%d leftmost=%d\n",
				id, h.CellCount, h.FreeStart, h.FreeEnd, h.ParentPage, page.LeftmostChild(buf))
		}
	}
	return nil
}
