package flashlog_test

import (
	"testing"

	"github.com/embeddedkv/itstore/flashlog"
)

func TestMemDevice_FreshDeviceIsErased(t *testing.T) {
	dev := flashlog.NewMemDevice(64, 2)

	buf := make([]byte, 128)
	if err := dev.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	for i, b := range buf {
		if b != flashlog.EraseValue {
			t.Fatalf("byte %d = %#x, want erase value %#x", i, b, flashlog.EraseValue)
		}
	}
}

func TestMemDevice_WriteRequiresErased(t *testing.T) {
	dev := flashlog.NewMemDevice(64, 2)

	if err := dev.Write(0, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write() on erased range error = %v", err)
	}
	if err := dev.Write(1, []byte{4}); err == nil {
		t.Error("Write() over programmed byte succeeded, want error")
	}

	if err := dev.Erase(0, 64); err != nil {
		t.Fatalf("Erase() error = %v", err)
	}
	if err := dev.Write(1, []byte{4}); err != nil {
		t.Errorf("Write() after erase error = %v", err)
	}
}

func TestMemDevice_EraseAlignment(t *testing.T) {
	dev := flashlog.NewMemDevice(64, 2)

	if err := dev.Erase(1, 64); err == nil {
		t.Error("Erase() with unaligned offset succeeded, want error")
	}
	if err := dev.Erase(0, 63); err == nil {
		t.Error("Erase() with unaligned length succeeded, want error")
	}
}

func TestMemDevice_OutOfBounds(t *testing.T) {
	dev := flashlog.NewMemDevice(64, 2)

	if err := dev.ReadAt(make([]byte, 1), 128); err == nil {
		t.Error("ReadAt() past device end succeeded, want error")
	}
	if err := dev.Write(120, make([]byte, 16)); err == nil {
		t.Error("Write() past device end succeeded, want error")
	}
}
