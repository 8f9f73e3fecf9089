package flashlog

import "fmt"

// MemDevice simulates a NOR flash partition in RAM. Fresh devices read back
// as EraseValue everywhere, and programming a byte that is not erased is
// rejected, which surfaces log-discipline bugs immediately in tests.
type MemDevice struct {
	buf      []byte
	pageSize int64
	ready    bool
}

// NewMemDevice creates a simulated device with pageCount erase pages of
// pageSize bytes each, fully erased and ready.
func NewMemDevice(pageSize int64, pageCount int) *MemDevice {
	buf := make([]byte, pageSize*int64(pageCount))
	for i := range buf {
		buf[i] = EraseValue
	}
	return &MemDevice{buf: buf, pageSize: pageSize, ready: true}
}

// SetReady overrides the device readiness, for exercising mount failures.
func (d *MemDevice) SetReady(ready bool) {
	d.ready = ready
}

func (d *MemDevice) Ready() bool {
	return d.ready
}

func (d *MemDevice) ReadAt(p []byte, off int64) error {
	if err := d.bounds(off, int64(len(p))); err != nil {
		return err
	}
	copy(p, d.buf[off:])
	return nil
}

func (d *MemDevice) Write(off int64, p []byte) error {
	if err := d.bounds(off, int64(len(p))); err != nil {
		return err
	}
	for i := range p {
		if d.buf[off+int64(i)] != EraseValue {
			return fmt.Errorf("program on non-erased byte at offset %d", off+int64(i))
		}
	}
	copy(d.buf[off:], p)
	return nil
}

func (d *MemDevice) Erase(off, length int64) error {
	if off%d.pageSize != 0 || length%d.pageSize != 0 {
		return fmt.Errorf("erase range %d+%d not aligned to page size %d", off, length, d.pageSize)
	}
	if err := d.bounds(off, length); err != nil {
		return err
	}
	for i := off; i < off+length; i++ {
		d.buf[i] = EraseValue
	}
	return nil
}

func (d *MemDevice) PageSize() int64 {
	return d.pageSize
}

func (d *MemDevice) Size() int64 {
	return int64(len(d.buf))
}

func (d *MemDevice) Sync() error {
	return nil
}

func (d *MemDevice) bounds(off, length int64) error {
	if off < 0 || off+length > int64(len(d.buf)) {
		return fmt.Errorf("access %d+%d out of bounds (size %d)", off, length, len(d.buf))
	}
	return nil
}
