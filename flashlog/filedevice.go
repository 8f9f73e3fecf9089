package flashlog

import (
	"fmt"
	"os"
)

// FileDevice stores the flash partition as a regular file, one byte per
// flash cell. A fresh image is created fully erased. Unlike MemDevice it
// does not enforce the program-on-erased constraint; the file is assumed to
// stand in for a managed medium.
type FileDevice struct {
	file     *os.File
	pageSize int64
	size     int64
}

// OpenFileDevice opens or creates a flash image at path with pageCount
// erase pages of pageSize bytes. An existing image must match the requested
// geometry exactly.
func OpenFileDevice(path string, pageSize int64, pageCount int) (*FileDevice, error) {
	if pageSize <= 0 || pageCount <= 0 {
		return nil, fmt.Errorf("invalid geometry: page size %d, page count %d", pageSize, pageCount)
	}

	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	size := pageSize * int64(pageCount)

	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	dev := &FileDevice{file: fd, pageSize: pageSize, size: size}

	switch info.Size() {
	case size:
		// existing image with matching geometry
	case 0:
		if err := dev.Erase(0, size); err != nil {
			fd.Close()
			return nil, fmt.Errorf("failed to initialize image: %w", err)
		}
		if err := fd.Sync(); err != nil {
			fd.Close()
			return nil, fmt.Errorf("failed to sync image: %w", err)
		}
	default:
		fd.Close()
		return nil, fmt.Errorf("image size %d does not match geometry %d", info.Size(), size)
	}

	return dev, nil
}

func (d *FileDevice) Ready() bool {
	return d.file != nil
}

func (d *FileDevice) ReadAt(p []byte, off int64) error {
	if err := d.bounds(off, int64(len(p))); err != nil {
		return err
	}
	if _, err := d.file.ReadAt(p, off); err != nil {
		return fmt.Errorf("failed to read at %d: %w", off, err)
	}
	return nil
}

func (d *FileDevice) Write(off int64, p []byte) error {
	if err := d.bounds(off, int64(len(p))); err != nil {
		return err
	}
	if _, err := d.file.WriteAt(p, off); err != nil {
		return fmt.Errorf("failed to write at %d: %w", off, err)
	}
	return nil
}

func (d *FileDevice) Erase(off, length int64) error {
	if off%d.pageSize != 0 || length%d.pageSize != 0 {
		return fmt.Errorf("erase range %d+%d not aligned to page size %d", off, length, d.pageSize)
	}
	if err := d.bounds(off, length); err != nil {
		return err
	}

	page := make([]byte, d.pageSize)
	for i := range page {
		page[i] = EraseValue
	}
	for at := off; at < off+length; at += d.pageSize {
		if _, err := d.file.WriteAt(page, at); err != nil {
			return fmt.Errorf("failed to erase page at %d: %w", at, err)
		}
	}
	return nil
}

func (d *FileDevice) PageSize() int64 {
	return d.pageSize
}

func (d *FileDevice) Size() int64 {
	return d.size
}

func (d *FileDevice) Sync() error {
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync image: %w", err)
	}
	return nil
}

// Close releases the underlying image file.
func (d *FileDevice) Close() error {
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w", err)
	}
	d.file = nil
	return nil
}

func (d *FileDevice) bounds(off, length int64) error {
	if off < 0 || off+length > d.size {
		return fmt.Errorf("access %d+%d out of bounds (size %d)", off, length, d.size)
	}
	return nil
}
