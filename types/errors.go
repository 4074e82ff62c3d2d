package types

import "errors"

// Error kinds distinct at the API boundary. Callers match with errors.Is;
// lower layers wrap these with context via fmt.Errorf and %w.
var (
	// ErrNotFound: table absent, or key absent on get/delete.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists: table create collision, or duplicate key on insert.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidSchema: schema too large for the meta page, or corrupt
	// schema bytes on deserialization.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrInvalidArgument: empty key, key/value over the u16 limits, record
	// over one page, AUTO_INCREMENT column index out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO: any disk read/write/seek/sync failure. The file handle stays
	// open; the caller may retry.
	ErrIO = errors.New("io error")

	// ErrIntegrity: an on-page invariant violated on read. Fatal for the
	// current transaction.
	ErrIntegrity = errors.New("integrity error")
)
