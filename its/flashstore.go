package its

import (
	"context"
	"errors"
	"fmt"

	"github.com/embeddedkv/itstore/flashlog"
	"github.com/embeddedkv/itstore/observability"
)

// FlashStore is the persistent backend: objects live as records in a
// mounted log-structured flash filesystem, addressed by uid as the log's
// native key. Capacity is bounded by the log's sector allocation rather
// than an entry count.
type FlashStore struct {
	fs          *flashlog.FS
	maxItemSize uint32
	observer    observability.Observer
}

const flashSource = "its.FlashStore"

// NewFlashStore creates a FlashStore over an already mounted log. A zero
// maxItemSize selects the default.
func NewFlashStore(fs *flashlog.FS, maxItemSize uint32, opts ...Option) *FlashStore {
	if maxItemSize == 0 {
		maxItemSize = DefaultMaxItemSize
	}

	applied := applyOptions(opts)
	return &FlashStore{
		fs:          fs,
		maxItemSize: maxItemSize,
		observer:    applied.observer,
	}
}

func (s *FlashStore) Set(ctx context.Context, uid UID, data []byte) error {
	if data == nil {
		err := fmt.Errorf("%w: nil data", ErrInvalidArgument)
		emitError(ctx, s.observer, flashSource, "set", uid, err)
		return err
	}
	if uint32(len(data)) > s.maxItemSize {
		err := fmt.Errorf("%w: %d bytes exceeds max item size %d", ErrInsufficientStorage, len(data), s.maxItemSize)
		emitError(ctx, s.observer, flashSource, "set", uid, err)
		return err
	}

	if err := s.fs.Write(uint64(uid), data); err != nil {
		err = s.translate("write", err)
		emitError(ctx, s.observer, flashSource, "set", uid, err)
		return err
	}

	emit(ctx, s.observer, flashSource, EventSet, observability.LevelInfo, map[string]any{
		"uid":  uint64(uid),
		"size": len(data),
	})
	return nil
}

func (s *FlashStore) Get(ctx context.Context, uid UID, offset uint32, out []byte) (int, error) {
	if out == nil {
		err := fmt.Errorf("%w: nil output buffer", ErrInvalidArgument)
		emitError(ctx, s.observer, flashSource, "get", uid, err)
		return 0, err
	}

	size, err := s.fs.DataLength(uint64(uid))
	if err != nil {
		err = s.translate("length", err)
		emitError(ctx, s.observer, flashSource, "get", uid, err)
		return 0, err
	}
	if offset > uint32(size) {
		err := fmt.Errorf("%w: offset %d beyond stored size %d", ErrInvalidArgument, offset, size)
		emitError(ctx, s.observer, flashSource, "get", uid, err)
		return 0, err
	}

	n := min(len(out), size-int(offset))
	if n > 0 {
		// the log reads records from the start, so stage the prefix
		staging := make([]byte, int(offset)+n)
		read, err := s.fs.Read(uint64(uid), staging)
		if err != nil {
			err = s.translate("read", err)
			emitError(ctx, s.observer, flashSource, "get", uid, err)
			return 0, err
		}
		if read < len(staging) {
			err := fmt.Errorf("%w: short read: %d of %d bytes", ErrIO, read, len(staging))
			emitError(ctx, s.observer, flashSource, "get", uid, err)
			return 0, err
		}
		copy(out[:n], staging[offset:])
	}

	emit(ctx, s.observer, flashSource, EventGet, observability.LevelVerbose, map[string]any{
		"uid":       uint64(uid),
		"offset":    offset,
		"requested": len(out),
		"copied":    n,
	})
	return n, nil
}

func (s *FlashStore) GetInfo(ctx context.Context, uid UID) (Info, error) {
	size, err := s.fs.DataLength(uint64(uid))
	if err != nil {
		err = s.translate("length", err)
		emitError(ctx, s.observer, flashSource, "get_info", uid, err)
		return Info{}, err
	}

	info := Info{Size: uint32(size)}
	emit(ctx, s.observer, flashSource, EventGetInfo, observability.LevelVerbose, map[string]any{
		"uid":  uint64(uid),
		"size": info.Size,
	})
	return info, nil
}

func (s *FlashStore) Remove(ctx context.Context, uid UID) error {
	if err := s.fs.Delete(uint64(uid)); err != nil {
		// a delete appends a tombstone, so an exhausted log is a medium
		// failure here, not a storage-capacity status
		if errors.Is(err, flashlog.ErrNoSpace) {
			err = fmt.Errorf("%w: delete: %v", ErrIO, err)
		} else {
			err = s.translate("delete", err)
		}
		emitError(ctx, s.observer, flashSource, "remove", uid, err)
		return err
	}

	emit(ctx, s.observer, flashSource, EventRemove, observability.LevelInfo, map[string]any{
		"uid": uint64(uid),
	})
	return nil
}

// translate maps log engine failures into the status taxonomy.
func (s *FlashStore) translate(op string, err error) error {
	switch {
	case errors.Is(err, flashlog.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrDoesNotExist, err)
	case errors.Is(err, flashlog.ErrNoSpace):
		return fmt.Errorf("%w: %v", ErrInsufficientStorage, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrIO, op, err)
	}
}
