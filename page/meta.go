package page

import (
	"encoding/binary"
	"fmt"
)

// Page 1 is the meta page: a schema blob, length-prefixed, after the header.
const (
	metaSchemaSizeOff = HeaderSize
	metaSchemaDataOff = metaSchemaSizeOff + 2

	// MaxSchemaSize is the largest serialized schema page 1 can hold.
	MaxSchemaSize = PageSize - metaSchemaDataOff
)

// InitMetaPage builds a fresh page 1 carrying the serialized schema blob.
func InitMetaPage(p []byte, schemaBlob []byte) error {
	if len(schemaBlob) > MaxSchemaSize {
		return fmt.Errorf("schema blob %d bytes exceeds %d", len(schemaBlob), MaxSchemaSize)
	}
	Init(p, 1, KindMeta, LevelLeaf)
	return SetSchemaBlob(p, schemaBlob)
}

// SchemaBlob returns the serialized schema bytes stored on the meta page.
func SchemaBlob(p []byte) ([]byte, error) {
	h := ReadHeader(p)
	if h.Kind != KindMeta || h.PageID != 1 {
		return nil, fmt.Errorf("page %d kind %d is not the meta page", h.PageID, h.Kind)
	}
	size := binary.LittleEndian.Uint16(p[metaSchemaSizeOff:])
	if size == 0 || int(size) > MaxSchemaSize {
		return nil, fmt.Errorf("schema size %d out of range", size)
	}
	return p[metaSchemaDataOff : metaSchemaDataOff+int(size)], nil
}

// SetSchemaBlob replaces the schema bytes in place.
func SetSchemaBlob(p []byte, blob []byte) error {
	if len(blob) > MaxSchemaSize {
		return fmt.Errorf("schema blob %d bytes exceeds %d", len(blob), MaxSchemaSize)
	}
	for i := metaSchemaSizeOff; i < PageSize; i++ {
		p[i] = 0
	}
	binary.LittleEndian.PutUint16(p[metaSchemaSizeOff:], uint16(len(blob)))
	copy(p[metaSchemaDataOff:], blob)

	h := ReadHeader(p)
	if end := uint16(metaSchemaDataOff + len(blob)); end > h.FreeStart {
		SetFreeStart(p, end)
	}
	return nil
}
