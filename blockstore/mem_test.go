package blockstore

import (
	"bytes"
	"testing"
)

func TestMemReadWriteRoundTrip(t *testing.T) {
	m := NewMem(64, 4)

	if got, want := m.BlockSize(), 64; got != want {
		t.Fatalf("BlockSize() = %d, want %d", got, want)
	}
	if got, want := m.NumBlocks(), 4; got != want {
		t.Fatalf("NumBlocks() = %d, want %d", got, want)
	}

	buf := make([]byte, 64)
	copy(buf, []byte("hello block 2"))
	if err := m.WriteBlock(2, buf); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	read := make([]byte, 64)
	if err := m.ReadBlock(2, read); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(read, buf) {
		t.Fatalf("ReadBlock returned %q, want %q", read, buf)
	}

	other := make([]byte, 64)
	if err := m.ReadBlock(0, other); err != nil {
		t.Fatalf("ReadBlock(0): %v", err)
	}
	if !bytes.Equal(other, make([]byte, 64)) {
		t.Fatalf("untouched block 0 is not zero-filled: %q", other)
	}
}

func TestMemOutOfRange(t *testing.T) {
	m := NewMem(16, 2)
	buf := make([]byte, 16)
	if err := m.ReadBlock(5, buf); err == nil {
		t.Fatalf("ReadBlock(5) on a 2-block store: want error, got nil")
	}
	if err := m.WriteBlock(5, buf); err == nil {
		t.Fatalf("WriteBlock(5) on a 2-block store: want error, got nil")
	}
}

func TestMemWrongBufferSize(t *testing.T) {
	m := NewMem(16, 2)
	if err := m.WriteBlock(0, make([]byte, 8)); err == nil {
		t.Fatalf("WriteBlock with undersized buffer: want error, got nil")
	}
}
