// Package blockstore provides two index.BlockStore implementations: Mem,
// a map-backed store for tests and scratch trees, and File, a disk-backed
// store with a ristretto read-through cache in front of it.
package blockstore

import (
	"fmt"
	"sync"

	"blocktree/index"
)

// Mem is an in-memory index.BlockStore over a fixed number of
// fixed-size blocks, grounded on the teacher's InMemoryPager: a
// slice indexed by block number, guarded by a single mutex.
type Mem struct {
	mu        sync.Mutex
	blockSize int
	blocks    [][]byte
	allocs    int
	deallocs  int
}

// NewMem allocates numBlocks blocks of blockSize bytes each, all
// zero-filled.
func NewMem(blockSize, numBlocks int) *Mem {
	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &Mem{blockSize: blockSize, blocks: blocks}
}

func (m *Mem) BlockSize() int { return m.blockSize }

func (m *Mem) NumBlocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blocks)
}

func (m *Mem) ReadBlock(n index.BlockNum, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(n) >= len(m.blocks) {
		return fmt.Errorf("blockstore: block %d out of range (have %d)", n, len(m.blocks))
	}
	if len(buf) != m.blockSize {
		return fmt.Errorf("blockstore: buffer size %d does not match block size %d", len(buf), m.blockSize)
	}
	copy(buf, m.blocks[n])
	return nil
}

func (m *Mem) WriteBlock(n index.BlockNum, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(n) >= len(m.blocks) {
		return fmt.Errorf("blockstore: block %d out of range (have %d)", n, len(m.blocks))
	}
	if len(buf) != m.blockSize {
		return fmt.Errorf("blockstore: buffer size %d does not match block size %d", len(buf), m.blockSize)
	}
	dest := make([]byte, m.blockSize)
	copy(dest, buf)
	m.blocks[n] = dest
	return nil
}

func (m *Mem) NotifyAllocate(n index.BlockNum) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocs++
}

func (m *Mem) NotifyDeallocate(n index.BlockNum) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deallocs++
}

// Stats reports the running count of blocks allocated and deallocated
// over this store's lifetime, for the CLI's stats output.
func (m *Mem) Stats() (allocs, deallocs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocs, m.deallocs
}
