package page

import (
	"encoding/binary"
	"fmt"
)

// Page 0 is the table header page. Fixed offsets past the 32-byte header:
//
//	+32  root_page_id   u32 (InvalidPageID until the first insert)
//	+36  table_name_len u16, +38 table_name arena (256 bytes)
//	+294 db_name_len    u16, +296 db_name arena (256 bytes)
//	+552 free_page_count u32
//	+556 next_row_id    u64
//	+564 auto_increment counters, 8 x u64
//	+628 free_page_list, u32 each
const (
	page0RootOffset      = HeaderSize
	page0TableNameLenOff = page0RootOffset + 4      // 36
	page0TableNameOff    = page0TableNameLenOff + 2 // 38
	page0NameArenaSize   = 256
	page0DBNameLenOff    = page0TableNameOff + page0NameArenaSize // 294
	page0DBNameOff       = page0DBNameLenOff + 2                  // 296
	page0FreeCountOff    = page0DBNameOff + page0NameArenaSize    // 552
	page0NextRowIDOff    = page0FreeCountOff + 4                  // 556
	page0AICountersOff   = page0NextRowIDOff + 8                  // 564

	// AutoIncrementSlots is the number of AUTO_INCREMENT counters page 0
	// carries; at most this many AUTO_INCREMENT columns per table.
	AutoIncrementSlots = 8

	page0FreeListOff = page0AICountersOff + AutoIncrementSlots*8 // 628
	maxFreePages     = (PageSize - page0FreeListOff) / 4
)

// InitPage0 builds a fresh table header page in p.
func InitPage0(p []byte, tableName, dbName string) error {
	if len(tableName) > page0NameArenaSize || len(dbName) > page0NameArenaSize {
		return fmt.Errorf("name longer than %d bytes", page0NameArenaSize)
	}
	Init(p, 0, KindHeader, LevelLeaf)
	SetFreeStart(p, page0FreeListOff)

	SetRootPageID(p, InvalidPageID)
	binary.LittleEndian.PutUint16(p[page0TableNameLenOff:], uint16(len(tableName)))
	copy(p[page0TableNameOff:], tableName)
	binary.LittleEndian.PutUint16(p[page0DBNameLenOff:], uint16(len(dbName)))
	copy(p[page0DBNameOff:], dbName)
	SetNextRowID(p, 1)
	for i := 0; i < AutoIncrementSlots; i++ {
		SetAutoIncrement(p, i, 1)
	}
	return nil
}

func RootPageID(p []byte) uint32        { return binary.LittleEndian.Uint32(p[page0RootOffset:]) }
func SetRootPageID(p []byte, id uint32) { binary.LittleEndian.PutUint32(p[page0RootOffset:], id) }

func TableName(p []byte) string {
	n := binary.LittleEndian.Uint16(p[page0TableNameLenOff:])
	return string(p[page0TableNameOff : page0TableNameOff+int(n)])
}

func DBName(p []byte) string {
	n := binary.LittleEndian.Uint16(p[page0DBNameLenOff:])
	return string(p[page0DBNameOff : page0DBNameOff+int(n)])
}

func NextRowID(p []byte) uint64        { return binary.LittleEndian.Uint64(p[page0NextRowIDOff:]) }
func SetNextRowID(p []byte, id uint64) { binary.LittleEndian.PutUint64(p[page0NextRowIDOff:], id) }

func AutoIncrement(p []byte, slot int) uint64 {
	return binary.LittleEndian.Uint64(p[page0AICountersOff+slot*8:])
}

func SetAutoIncrement(p []byte, slot int, v uint64) {
	binary.LittleEndian.PutUint64(p[page0AICountersOff+slot*8:], v)
}

func FreePageCount(p []byte) uint32 {
	return binary.LittleEndian.Uint32(p[page0FreeCountOff:])
}

// PushFreePage appends id to the free list. False when the list is full;
// the page is then simply leaked in the file.
func PushFreePage(p []byte, id uint32) bool {
	count := FreePageCount(p)
	if count >= maxFreePages {
		return false
	}
	binary.LittleEndian.PutUint32(p[page0FreeListOff+int(count)*4:], id)
	binary.LittleEndian.PutUint32(p[page0FreeCountOff:], count+1)
	return true
}

// PopFreePage removes and returns the head of the free list.
func PopFreePage(p []byte) (uint32, bool) {
	count := FreePageCount(p)
	if count == 0 {
		return 0, false
	}
	id := binary.LittleEndian.Uint32(p[page0FreeListOff:])
	copy(p[page0FreeListOff:], p[page0FreeListOff+4:page0FreeListOff+int(count)*4])
	binary.LittleEndian.PutUint32(p[page0FreeCountOff:], count-1)
	return id, true
}
