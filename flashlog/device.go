// Package flashlog implements a small log-structured key/blob store laid out
// on an erase-granularity flash partition. Objects are addressed by a 64-bit
// id; writes append records, deletes append tombstones, and the live set is
// tracked in a RAM index rebuilt by scanning the medium at mount time.
package flashlog

// EraseValue is the byte value erased flash reads back as.
const EraseValue = 0xFF

// Device is the raw flash medium the log is laid out on. Offsets are
// byte-addressed from the start of the partition. Programming is only valid
// on erased bytes; Erase restores whole pages to EraseValue.
type Device interface {
	// Ready reports whether the device can accept I/O.
	Ready() bool
	// ReadAt fills p with the bytes starting at off.
	ReadAt(p []byte, off int64) error
	// Write programs p at off. The target range must be erased.
	Write(off int64, p []byte) error
	// Erase resets length bytes starting at off to EraseValue.
	// Both off and length must be page-aligned.
	Erase(off, length int64) error
	// PageSize returns the erase-page size in bytes.
	PageSize() int64
	// Size returns the partition size in bytes.
	Size() int64
	// Sync flushes buffered writes to the medium.
	Sync() error
}
