package flashlog

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// DefaultSectorCount is the number of erase sectors the log occupies unless
// configured otherwise.
const DefaultSectorCount = 4

// Config holds log geometry and image location.
type Config struct {
	Path        string `json:"path,omitempty"`         // flash image file; empty selects a RAM-simulated device
	PageSize    int64  `json:"page_size,omitempty"`    // erase-page size of the medium
	SectorCount int    `json:"sector_count,omitempty"` // erase sectors allocated to the log
}

// DefaultConfig returns the default log geometry.
func DefaultConfig() Config {
	return Config{
		PageSize:    4096,
		SectorCount: DefaultSectorCount,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.PageSize > 0 {
		c.PageSize = source.PageSize
	}
	if source.SectorCount > 0 {
		c.SectorCount = source.SectorCount
	}
}

type location struct {
	off  int64 // record header offset
	size int   // payload length
}

// FS is a mounted log. The sector size is the device's erase-page size and
// the sector count is fixed at mount. FS does no internal locking; callers
// must serialize access.
type FS struct {
	dev         Device
	id          string
	sectorSize  int64
	sectorCount int
	index       map[uint64]location
	head        int64 // next append offset
}

// Mount binds the log to dev, verifies the device is usable, and rebuilds
// the live-object index by scanning every sector. A failed mount leaves no
// usable FS; no format or retry is attempted.
func Mount(dev Device, cfg *Config) (*FS, error) {
	if !dev.Ready() {
		return nil, ErrDeviceNotReady
	}

	sectorSize := dev.PageSize()
	if sectorSize <= headerSize {
		return nil, fmt.Errorf("erase-page size %d too small for records", sectorSize)
	}

	sectorCount := cfg.SectorCount
	if sectorCount <= 0 {
		sectorCount = DefaultSectorCount
	}
	if int64(sectorCount)*sectorSize > dev.Size() {
		return nil, fmt.Errorf("geometry %d sectors x %d bytes exceeds device size %d",
			sectorCount, sectorSize, dev.Size())
	}

	f := &FS{
		dev:         dev,
		id:          uuid.Must(uuid.NewV7()).String(),
		sectorSize:  sectorSize,
		sectorCount: sectorCount,
		index:       make(map[uint64]location),
	}

	if err := f.scan(); err != nil {
		return nil, fmt.Errorf("mount scan: %w", err)
	}
	return f, nil
}

// ID returns the UUIDv7 assigned to this mount instance.
func (f *FS) ID() string {
	return f.id
}

// Len returns the number of live objects.
func (f *FS) Len() int {
	return len(f.index)
}

// Write stores data under id, superseding any previous record. The record
// length field bounds payloads at 65535 bytes regardless of sector size.
// When the log ring is exhausted, live records are compacted before giving
// up with ErrNoSpace.
func (f *FS) Write(id uint64, data []byte) error {
	if len(data) > maxRecordPayload {
		return fmt.Errorf("%w: payload %d exceeds record limit %d", ErrNoSpace, len(data), maxRecordPayload)
	}

	need := int64(headerSize + len(data))
	if err := f.reserve(need, true); err != nil {
		return err
	}
	return f.append(kindData, id, data)
}

// Read copies up to len(buf) bytes of the record stored under id into buf
// and returns the count copied, clamped to the record length.
func (f *FS) Read(id uint64, buf []byte) (int, error) {
	loc, ok := f.index[id]
	if !ok {
		return 0, ErrNotFound
	}

	n := min(len(buf), loc.size)
	if n > 0 {
		if err := f.dev.ReadAt(buf[:n], loc.off+headerSize); err != nil {
			return 0, fmt.Errorf("read id %#x: %w", id, err)
		}
	}
	return n, nil
}

// DataLength returns the stored payload length for id.
func (f *FS) DataLength(id uint64) (int, error) {
	loc, ok := f.index[id]
	if !ok {
		return 0, ErrNotFound
	}
	return loc.size, nil
}

// Delete removes id from the log by appending a tombstone, so the removal
// survives a remount.
func (f *FS) Delete(id uint64) error {
	if _, ok := f.index[id]; !ok {
		return ErrNotFound
	}
	if err := f.reserve(headerSize, true); err != nil {
		return err
	}
	return f.append(kindTombstone, id, nil)
}

// scan walks every sector in write order, replaying records into the index
// and locating the append head. A sector ends at the first erased kind
// byte; a corrupt record (unknown kind, impossible length, or CRC mismatch)
// marks the remainder of its sector dirty and unusable until compaction.
func (f *FS) scan() error {
	hdr := make([]byte, headerSize)

	for s := 0; s < f.sectorCount; s++ {
		off := int64(s) * f.sectorSize
		end := off + f.sectorSize
		dirty := false

		for off+headerSize <= end {
			if err := f.dev.ReadAt(hdr, off); err != nil {
				return fmt.Errorf("read header at %d: %w", off, err)
			}

			kind, id, payloadLen, sum := decodeHeader(hdr)
			if kind == EraseValue {
				break
			}
			if kind != kindData && kind != kindTombstone {
				dirty = true
				break
			}
			if kind == kindTombstone && payloadLen != 0 {
				dirty = true
				break
			}
			if off+headerSize+int64(payloadLen) > end {
				dirty = true
				break
			}

			payload := make([]byte, payloadLen)
			if payloadLen > 0 {
				if err := f.dev.ReadAt(payload, off+headerSize); err != nil {
					return fmt.Errorf("read payload at %d: %w", off, err)
				}
			}
			if recordCRC(hdr, payload) != sum {
				dirty = true // torn write
				break
			}

			switch kind {
			case kindData:
				f.index[id] = location{off: off, size: payloadLen}
			case kindTombstone:
				delete(f.index, id)
			}

			off += headerSize + int64(payloadLen)
			f.head = off
		}

		if dirty {
			// the rest of the sector is unusable until compaction
			f.head = end
		}
	}
	return nil
}

// reserve positions the head so that need bytes fit inside one sector,
// skipping unusable sector tails and compacting once if the ring is full.
func (f *FS) reserve(need int64, allowCompact bool) error {
	if need > f.sectorSize {
		return ErrNoSpace
	}

	for {
		if f.head+need <= f.total() && f.head%f.sectorSize+need <= f.sectorSize {
			return nil
		}

		next := (f.head/f.sectorSize + 1) * f.sectorSize
		if next+need <= f.total() {
			f.head = next
			return nil
		}

		if !allowCompact {
			return ErrNoSpace
		}
		if err := f.compact(); err != nil {
			return err
		}
		allowCompact = false
	}
}

// append programs one record at the head and updates the index. The caller
// must have reserved space.
func (f *FS) append(kind byte, id uint64, payload []byte) error {
	rec := encodeRecord(kind, id, payload)

	if err := f.dev.Write(f.head, rec); err != nil {
		return fmt.Errorf("append id %#x: %w", id, err)
	}
	if err := f.dev.Sync(); err != nil {
		return fmt.Errorf("append id %#x: %w", id, err)
	}

	switch kind {
	case kindData:
		f.index[id] = location{off: f.head, size: len(payload)}
	case kindTombstone:
		delete(f.index, id)
	}

	f.head += int64(len(rec))
	return nil
}

// compact rewrites the live set from scratch: read every live payload,
// erase the whole ring, and append the records back in id order. Dead
// records, tombstones, and dirty sector tails are reclaimed.
func (f *FS) compact() error {
	type blob struct {
		id   uint64
		data []byte
	}

	live := make([]blob, 0, len(f.index))
	for id, loc := range f.index {
		data := make([]byte, loc.size)
		if loc.size > 0 {
			if err := f.dev.ReadAt(data, loc.off+headerSize); err != nil {
				return fmt.Errorf("compact read id %#x: %w", id, err)
			}
		}
		live = append(live, blob{id: id, data: data})
	}
	slices.SortFunc(live, func(a, b blob) int { return cmp.Compare(a.id, b.id) })

	if err := f.dev.Erase(0, f.total()); err != nil {
		return fmt.Errorf("compact erase: %w", err)
	}
	f.head = 0
	clear(f.index)

	for _, b := range live {
		if err := f.reserve(int64(headerSize+len(b.data)), false); err != nil {
			return fmt.Errorf("compact rewrite id %#x: %w", b.id, err)
		}
		if err := f.append(kindData, b.id, b.data); err != nil {
			return fmt.Errorf("compact rewrite id %#x: %w", b.id, err)
		}
	}
	return nil
}

func (f *FS) total() int64 {
	return int64(f.sectorCount) * f.sectorSize
}
