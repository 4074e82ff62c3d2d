// Package page implements the fixed-size slotted page format shared by every
// on-disk structure: records grow upward from free_start, a slot directory of
// 16-bit record offsets grows downward from free_end, and the directory is
// kept sorted by the key of the record each slot points at.
package page

import (
	"encoding/binary"
	"fmt"
)

const (
	PageSize   = 8192
	HeaderSize = 32
	SlotSize   = 2 // one u16 record offset per slot

	// RecordHeaderSize is flags(1) + key_len(2) + value_len(2).
	RecordHeaderSize = 5

	// InternalEntrySize is key_len(2) + child_page(4).
	InternalEntrySize = 6

	// MaxRecordSize is the largest record (header + key + value) a single
	// page can hold. Enforced at the engine boundary so a leaf split always
	// produces two non-empty halves.
	MaxRecordSize = PageSize - HeaderSize

	// InvalidPageID marks "no page": the empty-tree root sentinel on page 0.
	InvalidPageID = 0xFFFFFFFF
)

type Kind uint16

const (
	KindFree Kind = iota
	KindHeader
	KindMeta
	KindData
	KindIndex
)

type Level uint16

const (
	LevelLeaf Level = iota
	LevelInternal
)

// Record flags.
const (
	RecordTombstone uint8 = 1 << 0
)

// Header is the 32-byte header at the start of every page. The last 8 bytes
// are a reserved area interpreted per level: leaves keep prev/next sibling
// page ids there, internal pages keep the leftmost child id. LSN is reserved
// and always written as zero.
type Header struct {
	PageID     uint32
	Kind       Kind
	Level      Level
	Flags      uint16
	CellCount  uint16
	FreeStart  uint16
	FreeEnd    uint16
	ParentPage uint32
	LSN        uint32
}

func ReadHeader(p []byte) Header {
	return Header{
		PageID:     binary.LittleEndian.Uint32(p[0:4]),
		Kind:       Kind(binary.LittleEndian.Uint16(p[4:6])),
		Level:      Level(binary.LittleEndian.Uint16(p[6:8])),
		Flags:      binary.LittleEndian.Uint16(p[8:10]),
		CellCount:  binary.LittleEndian.Uint16(p[10:12]),
		FreeStart:  binary.LittleEndian.Uint16(p[12:14]),
		FreeEnd:    binary.LittleEndian.Uint16(p[14:16]),
		ParentPage: binary.LittleEndian.Uint32(p[16:20]),
		LSN:        binary.LittleEndian.Uint32(p[20:24]),
	}
}

func WriteHeader(p []byte, h Header) {
	binary.LittleEndian.PutUint32(p[0:4], h.PageID)
	binary.LittleEndian.PutUint16(p[4:6], uint16(h.Kind))
	binary.LittleEndian.PutUint16(p[6:8], uint16(h.Level))
	binary.LittleEndian.PutUint16(p[8:10], h.Flags)
	binary.LittleEndian.PutUint16(p[10:12], h.CellCount)
	binary.LittleEndian.PutUint16(p[12:14], h.FreeStart)
	binary.LittleEndian.PutUint16(p[14:16], h.FreeEnd)
	binary.LittleEndian.PutUint32(p[16:20], h.ParentPage)
	binary.LittleEndian.PutUint32(p[20:24], h.LSN)
}

// Init zeros the page and writes a fresh header: free_start right after the
// header, free_end at the end of the page, no cells.
func Init(p []byte, id uint32, kind Kind, level Level) {
	for i := range p {
		p[i] = 0
	}
	WriteHeader(p, Header{
		PageID:    id,
		Kind:      kind,
		Level:     level,
		FreeStart: HeaderSize,
		FreeEnd:   PageSize,
	})
}

// Leaf sibling pointers live in the reserved header area (leaf pages only).
// A zero id terminates the chain.

func PrevLeaf(p []byte) uint32        { return binary.LittleEndian.Uint32(p[24:28]) }
func SetPrevLeaf(p []byte, id uint32) { binary.LittleEndian.PutUint32(p[24:28], id) }
func NextLeaf(p []byte) uint32        { return binary.LittleEndian.Uint32(p[28:32]) }
func SetNextLeaf(p []byte, id uint32) { binary.LittleEndian.PutUint32(p[28:32], id) }

// LeftmostChild is the child routing keys smaller than cell 0's key
// (internal pages only; same reserved bytes the leaves use for prev).
func LeftmostChild(p []byte) uint32        { return binary.LittleEndian.Uint32(p[24:28]) }
func SetLeftmostChild(p []byte, id uint32) { binary.LittleEndian.PutUint32(p[24:28], id) }

func SetCellCount(p []byte, n uint16)  { binary.LittleEndian.PutUint16(p[10:12], n) }
func SetFreeStart(p []byte, v uint16)  { binary.LittleEndian.PutUint16(p[12:14], v) }
func SetFreeEnd(p []byte, v uint16)    { binary.LittleEndian.PutUint16(p[14:16], v) }
func SetParentPage(p []byte, v uint32) { binary.LittleEndian.PutUint32(p[16:20], v) }

// Validate checks the on-page invariants that must hold on any page read
// from disk before its contents are trusted.
func Validate(p []byte) error {
	h := ReadHeader(p)
	if h.FreeStart > h.FreeEnd {
		return fmt.Errorf("page %d: free_start %d > free_end %d", h.PageID, h.FreeStart, h.FreeEnd)
	}
	if h.FreeEnd > PageSize {
		return fmt.Errorf("page %d: free_end %d past page end", h.PageID, h.FreeEnd)
	}
	if int(h.CellCount)*SlotSize != PageSize-int(h.FreeEnd) {
		return fmt.Errorf("page %d: cell_count %d inconsistent with free_end %d", h.PageID, h.CellCount, h.FreeEnd)
	}
	return nil
}
