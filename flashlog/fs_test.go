package flashlog_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/embeddedkv/itstore/flashlog"
)

func newTestFS(t *testing.T) (*flashlog.FS, *flashlog.MemDevice) {
	t.Helper()

	dev := flashlog.NewMemDevice(256, 4)
	cfg := flashlog.DefaultConfig()
	fs, err := flashlog.Mount(dev, &cfg)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	return fs, dev
}

func remount(t *testing.T, dev flashlog.Device) *flashlog.FS {
	t.Helper()

	cfg := flashlog.DefaultConfig()
	fs, err := flashlog.Mount(dev, &cfg)
	if err != nil {
		t.Fatalf("remount error = %v", err)
	}
	return fs
}

func TestMount_EmptyDevice(t *testing.T) {
	fs, _ := newTestFS(t)

	if fs.Len() != 0 {
		t.Errorf("Len() = %d, want 0", fs.Len())
	}
	if fs.ID() == "" {
		t.Error("ID() is empty, want a mount instance id")
	}
}

func TestMount_DeviceNotReady(t *testing.T) {
	dev := flashlog.NewMemDevice(256, 4)
	dev.SetReady(false)

	cfg := flashlog.DefaultConfig()
	if _, err := flashlog.Mount(dev, &cfg); !errors.Is(err, flashlog.ErrDeviceNotReady) {
		t.Errorf("Mount() error = %v, want ErrDeviceNotReady", err)
	}
}

func TestMount_GeometryExceedsDevice(t *testing.T) {
	dev := flashlog.NewMemDevice(256, 2)

	cfg := flashlog.Config{SectorCount: 4}
	if _, err := flashlog.Mount(dev, &cfg); err == nil {
		t.Error("Mount() succeeded with 4 sectors on a 2-page device, want error")
	}
}

func TestFS_WriteRead(t *testing.T) {
	fs, _ := newTestFS(t)

	data := []byte("payload")
	if err := fs.Write(0xA1, data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	buf := make([]byte, len(data))
	n, err := fs.Read(0xA1, buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != len(data) {
		t.Errorf("Read() n = %d, want %d", n, len(data))
	}
	if !bytes.Equal(buf, data) {
		t.Errorf("Read() = %q, want %q", buf, data)
	}
}

func TestFS_Read_Missing(t *testing.T) {
	fs, _ := newTestFS(t)

	if _, err := fs.Read(0xA1, make([]byte, 8)); !errors.Is(err, flashlog.ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

func TestFS_Read_ClampsToRecordLength(t *testing.T) {
	fs, _ := newTestFS(t)

	if err := fs.Write(1, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	buf := make([]byte, 16)
	n, err := fs.Read(1, buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Read() n = %d, want 3", n)
	}
}

func TestFS_Overwrite_LatestWins(t *testing.T) {
	fs, _ := newTestFS(t)

	if err := fs.Write(7, []byte("first")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := fs.Write(7, []byte("second")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	buf := make([]byte, 16)
	n, err := fs.Read(7, buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := string(buf[:n]); got != "second" {
		t.Errorf("Read() = %q, want %q", got, "second")
	}
	if fs.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (overwrite must not duplicate)", fs.Len())
	}
}

func TestFS_DataLength(t *testing.T) {
	fs, _ := newTestFS(t)

	if err := fs.Write(9, []byte("12345")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	n, err := fs.DataLength(9)
	if err != nil {
		t.Fatalf("DataLength() error = %v", err)
	}
	if n != 5 {
		t.Errorf("DataLength() = %d, want 5", n)
	}

	if _, err := fs.DataLength(10); !errors.Is(err, flashlog.ErrNotFound) {
		t.Errorf("DataLength(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFS_Delete(t *testing.T) {
	fs, _ := newTestFS(t)

	if err := fs.Write(3, []byte("x")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := fs.Delete(3); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := fs.Read(3, make([]byte, 1)); !errors.Is(err, flashlog.ErrNotFound) {
		t.Errorf("Read() after Delete error = %v, want ErrNotFound", err)
	}
	if _, err := fs.DataLength(3); !errors.Is(err, flashlog.ErrNotFound) {
		t.Errorf("DataLength() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestFS_Delete_Missing(t *testing.T) {
	fs, _ := newTestFS(t)

	if err := fs.Delete(42); !errors.Is(err, flashlog.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestFS_PersistAcrossRemount(t *testing.T) {
	fs, dev := newTestFS(t)

	if err := fs.Write(1, []byte("keep")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := fs.Write(2, []byte("drop")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := fs.Delete(2); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	fs2 := remount(t, dev)

	buf := make([]byte, 8)
	n, err := fs2.Read(1, buf)
	if err != nil {
		t.Fatalf("Read() after remount error = %v", err)
	}
	if got := string(buf[:n]); got != "keep" {
		t.Errorf("Read() after remount = %q, want %q", got, "keep")
	}

	if _, err := fs2.Read(2, buf); !errors.Is(err, flashlog.ErrNotFound) {
		t.Errorf("deleted id survived remount: error = %v, want ErrNotFound", err)
	}
	if fs2.Len() != 1 {
		t.Errorf("Len() after remount = %d, want 1", fs2.Len())
	}
}

func TestFS_Compaction_ReclaimsDeadRecords(t *testing.T) {
	fs, _ := newTestFS(t)

	if err := fs.Write(100, []byte("pinned")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Far more rewrites than the 4x256-byte ring can hold without
	// reclaiming superseded records.
	payload := make([]byte, 32)
	for i := 0; i < 100; i++ {
		payload[0] = byte(i)
		if err := fs.Write(200, payload); err != nil {
			t.Fatalf("Write() iteration %d error = %v", i, err)
		}
	}

	buf := make([]byte, 32)
	n, err := fs.Read(100, buf)
	if err != nil {
		t.Fatalf("Read(pinned) error = %v", err)
	}
	if got := string(buf[:n]); got != "pinned" {
		t.Errorf("Read(pinned) = %q, want %q", got, "pinned")
	}

	if _, err := fs.Read(200, buf); err != nil {
		t.Fatalf("Read(rewritten) error = %v", err)
	}
	if buf[0] != 99 {
		t.Errorf("rewritten payload marker = %d, want 99", buf[0])
	}
}

func TestFS_Write_NoSpace(t *testing.T) {
	fs, _ := newTestFS(t)

	// Distinct live ids until the ring genuinely cannot hold them.
	payload := make([]byte, 32)
	var err error
	for id := uint64(0); id < 64; id++ {
		if err = fs.Write(id, payload); err != nil {
			break
		}
	}
	if !errors.Is(err, flashlog.ErrNoSpace) {
		t.Fatalf("filling the log: error = %v, want ErrNoSpace", err)
	}

	// Earlier objects are intact after the failed write.
	if _, err := fs.Read(0, payload); err != nil {
		t.Errorf("Read(0) after full error = %v", err)
	}
}

func TestFS_Write_RecordLargerThanSector(t *testing.T) {
	fs, _ := newTestFS(t)

	if err := fs.Write(1, make([]byte, 512)); !errors.Is(err, flashlog.ErrNoSpace) {
		t.Errorf("Write() error = %v, want ErrNoSpace (record exceeds sector)", err)
	}
}

func TestFS_Write_PayloadAtRecordLimit(t *testing.T) {
	// a sector large enough that only the record length field bounds payloads
	dev := flashlog.NewMemDevice(128*1024, 4)
	cfg := flashlog.DefaultConfig()
	fs, err := flashlog.Mount(dev, &cfg)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	payload := make([]byte, 65535)
	payload[0] = 0xA5
	payload[65534] = 0x5A
	if err := fs.Write(1, payload); err != nil {
		t.Fatalf("Write(65535 bytes) error = %v", err)
	}

	// the full record survives a remount
	fs2 := remount(t, dev)
	n, err := fs2.DataLength(1)
	if err != nil {
		t.Fatalf("DataLength() after remount error = %v", err)
	}
	if n != 65535 {
		t.Errorf("DataLength() after remount = %d, want 65535", n)
	}

	buf := make([]byte, 65535)
	if _, err := fs2.Read(1, buf); err != nil {
		t.Fatalf("Read() after remount error = %v", err)
	}
	if buf[0] != 0xA5 || buf[65534] != 0x5A {
		t.Errorf("payload markers = %#x/%#x after remount, want 0xa5/0x5a", buf[0], buf[65534])
	}
}

func TestFS_Write_PayloadExceedsRecordLimit(t *testing.T) {
	dev := flashlog.NewMemDevice(128*1024, 4)
	cfg := flashlog.DefaultConfig()
	fs, err := flashlog.Mount(dev, &cfg)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	if err := fs.Write(1, []byte("intact")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// one byte past the length field's range must be rejected up front,
	// not truncated into a record that a later mount drops as torn
	if err := fs.Write(2, make([]byte, 65536)); !errors.Is(err, flashlog.ErrNoSpace) {
		t.Fatalf("Write(65536 bytes) error = %v, want ErrNoSpace", err)
	}
	if _, err := fs.Read(2, make([]byte, 8)); !errors.Is(err, flashlog.ErrNotFound) {
		t.Errorf("rejected write left a readable record: error = %v, want ErrNotFound", err)
	}

	fs2 := remount(t, dev)
	buf := make([]byte, 8)
	n, err := fs2.Read(1, buf)
	if err != nil {
		t.Fatalf("Read() after remount error = %v", err)
	}
	if got := string(buf[:n]); got != "intact" {
		t.Errorf("Read() after remount = %q, want %q", got, "intact")
	}
	if _, err := fs2.Read(2, buf); !errors.Is(err, flashlog.ErrNotFound) {
		t.Errorf("rejected write surfaced after remount: error = %v, want ErrNotFound", err)
	}
}

func TestFS_TornWrite_StopsScan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flash.img")

	dev, err := flashlog.OpenFileDevice(path, 256, 4)
	if err != nil {
		t.Fatalf("OpenFileDevice() error = %v", err)
	}

	cfg := flashlog.DefaultConfig()
	fs, err := flashlog.Mount(dev, &cfg)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	if err := fs.Write(1, []byte("good")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := fs.Write(2, []byte("torn")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Flip one payload byte of the second record. Records are packed from
	// offset 0: header(15)+4, then the second record's payload at 15+4+15.
	img, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open image: %v", err)
	}
	if _, err := img.WriteAt([]byte{'X'}, 34); err != nil {
		t.Fatalf("corrupt image: %v", err)
	}
	if err := img.Close(); err != nil {
		t.Fatalf("close image: %v", err)
	}

	dev2, err := flashlog.OpenFileDevice(path, 256, 4)
	if err != nil {
		t.Fatalf("reopen device: %v", err)
	}
	fs2, err := flashlog.Mount(dev2, &cfg)
	if err != nil {
		t.Fatalf("remount error = %v", err)
	}

	buf := make([]byte, 8)
	n, err := fs2.Read(1, buf)
	if err != nil {
		t.Fatalf("Read(intact) error = %v", err)
	}
	if got := string(buf[:n]); got != "good" {
		t.Errorf("Read(intact) = %q, want %q", got, "good")
	}

	if _, err := fs2.Read(2, buf); !errors.Is(err, flashlog.ErrNotFound) {
		t.Errorf("corrupt record still readable: error = %v, want ErrNotFound", err)
	}
}
