package blockstore

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestFileCreateWriteReopenReadsThroughCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.idx")

	fs, err := CreateFile(path, 32, 8)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if got, want := fs.NumBlocks(), 8; got != want {
		t.Fatalf("NumBlocks() = %d, want %d", got, want)
	}

	payload := make([]byte, 32)
	copy(payload, []byte("persisted"))
	if err := fs.WriteBlock(3, payload); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	// First read should be served from the write-through cache.
	read := make([]byte, 32)
	if err := fs.ReadBlock(3, read); err != nil {
		t.Fatalf("ReadBlock (cached): %v", err)
	}
	if !bytes.Equal(read, payload) {
		t.Fatalf("ReadBlock (cached) = %q, want %q", read, payload)
	}

	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenFile(path, 32)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer reopened.Close()

	if got, want := reopened.NumBlocks(), 8; got != want {
		t.Fatalf("reopened NumBlocks() = %d, want %d", got, want)
	}

	fromDisk := make([]byte, 32)
	if err := reopened.ReadBlock(3, fromDisk); err != nil {
		t.Fatalf("ReadBlock after reopen: %v", err)
	}
	if !bytes.Equal(fromDisk, payload) {
		t.Fatalf("ReadBlock after reopen = %q, want %q", fromDisk, payload)
	}
}

func TestFileOpenRejectsMisalignedSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "misaligned.idx")

	fs, err := CreateFile(path, 32, 4)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	fs.Close()

	if _, err := OpenFile(path, 30); err == nil {
		t.Fatalf("OpenFile with mismatched block size: want error, got nil")
	}
}
