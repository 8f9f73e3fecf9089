package its

import (
	"context"
	"fmt"

	"github.com/embeddedkv/itstore/observability"
)

// Defaults for backend capacity limits.
const (
	DefaultMaxEntries  = 8
	DefaultMaxItemSize = 1024
)

// poisonByte fills freshly constructed slot buffers so uninitialized reads
// are visibly distinct from the zero fill valid data carries past its size.
const poisonByte = 0xFF

type slot struct {
	used bool
	uid  UID
	size uint32
	data []byte
}

// RAMStore is the volatile backend: a fixed table of equally sized slots
// looked up by linear uid scan. It has no I/O failure mode by construction.
type RAMStore struct {
	slots       []slot
	maxItemSize uint32
	observer    observability.Observer
}

const ramSource = "its.RAMStore"

// NewRAMStore creates a RAMStore with maxEntries slots holding up to
// maxItemSize bytes each. Non-positive arguments select the defaults. All
// slots start free with poison-filled buffers.
func NewRAMStore(maxEntries int, maxItemSize uint32, opts ...Option) *RAMStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxItemSize == 0 {
		maxItemSize = DefaultMaxItemSize
	}

	slots := make([]slot, maxEntries)
	for i := range slots {
		slots[i].data = make([]byte, maxItemSize)
		for j := range slots[i].data {
			slots[i].data[j] = poisonByte
		}
	}

	applied := applyOptions(opts)
	return &RAMStore{
		slots:       slots,
		maxItemSize: maxItemSize,
		observer:    applied.observer,
	}
}

func (s *RAMStore) Set(ctx context.Context, uid UID, data []byte) error {
	if data == nil {
		err := fmt.Errorf("%w: nil data", ErrInvalidArgument)
		emitError(ctx, s.observer, ramSource, "set", uid, err)
		return err
	}
	if uint32(len(data)) > s.maxItemSize {
		err := fmt.Errorf("%w: %d bytes exceeds max item size %d", ErrInsufficientStorage, len(data), s.maxItemSize)
		emitError(ctx, s.observer, ramSource, "set", uid, err)
		return err
	}

	idx := s.findEntry(uid)
	if idx < 0 {
		idx = s.findFreeSlot()
		if idx < 0 {
			err := fmt.Errorf("%w: no free slots", ErrInsufficientStorage)
			emitError(ctx, s.observer, ramSource, "set", uid, err)
			return err
		}
	}

	sl := &s.slots[idx]
	sl.used = true
	sl.uid = uid
	sl.size = uint32(len(data))
	copy(sl.data, data)
	// zero the tail so reads past a later, shorter overwrite can never
	// observe a previous tenant's bytes
	for i := len(data); i < len(sl.data); i++ {
		sl.data[i] = 0
	}

	emit(ctx, s.observer, ramSource, EventSet, observability.LevelInfo, map[string]any{
		"uid":  uint64(uid),
		"size": len(data),
		"slot": idx,
	})
	return nil
}

func (s *RAMStore) Get(ctx context.Context, uid UID, offset uint32, out []byte) (int, error) {
	if out == nil {
		err := fmt.Errorf("%w: nil output buffer", ErrInvalidArgument)
		emitError(ctx, s.observer, ramSource, "get", uid, err)
		return 0, err
	}

	idx := s.findEntry(uid)
	if idx < 0 {
		err := fmt.Errorf("%w: uid %#x", ErrDoesNotExist, uint64(uid))
		emitError(ctx, s.observer, ramSource, "get", uid, err)
		return 0, err
	}

	sl := &s.slots[idx]
	if offset > sl.size {
		err := fmt.Errorf("%w: offset %d beyond stored size %d", ErrInvalidArgument, offset, sl.size)
		emitError(ctx, s.observer, ramSource, "get", uid, err)
		return 0, err
	}

	n := min(len(out), int(sl.size-offset))
	copy(out[:n], sl.data[offset:])

	emit(ctx, s.observer, ramSource, EventGet, observability.LevelVerbose, map[string]any{
		"uid":       uint64(uid),
		"offset":    offset,
		"requested": len(out),
		"copied":    n,
	})
	return n, nil
}

func (s *RAMStore) GetInfo(ctx context.Context, uid UID) (Info, error) {
	idx := s.findEntry(uid)
	if idx < 0 {
		err := fmt.Errorf("%w: uid %#x", ErrDoesNotExist, uint64(uid))
		emitError(ctx, s.observer, ramSource, "get_info", uid, err)
		return Info{}, err
	}

	info := Info{Size: s.slots[idx].size}
	emit(ctx, s.observer, ramSource, EventGetInfo, observability.LevelVerbose, map[string]any{
		"uid":  uint64(uid),
		"size": info.Size,
	})
	return info, nil
}

func (s *RAMStore) Remove(ctx context.Context, uid UID) error {
	idx := s.findEntry(uid)
	if idx < 0 {
		err := fmt.Errorf("%w: uid %#x", ErrDoesNotExist, uint64(uid))
		emitError(ctx, s.observer, ramSource, "remove", uid, err)
		return err
	}

	// clear the whole entry, liveness flag included
	sl := &s.slots[idx]
	sl.used = false
	sl.uid = 0
	sl.size = 0
	for i := range sl.data {
		sl.data[i] = 0
	}

	emit(ctx, s.observer, ramSource, EventRemove, observability.LevelInfo, map[string]any{
		"uid":  uint64(uid),
		"slot": idx,
	})
	return nil
}

func (s *RAMStore) findEntry(uid UID) int {
	for i := range s.slots {
		if s.slots[i].used && s.slots[i].uid == uid {
			return i
		}
	}
	return -1
}

func (s *RAMStore) findFreeSlot() int {
	for i := range s.slots {
		if !s.slots[i].used {
			return i
		}
	}
	return -1
}
