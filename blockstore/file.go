package blockstore

import (
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"blocktree/index"
)

// File is a disk-backed index.BlockStore with a fixed block count,
// established once at Open time (spec.md calls for block stores of a
// fixed size; this tree never grows the file, only the free list
// inside it). Reads go through a ristretto read-through cache;
// writes are write-through, grounded on the teacher's OnDiskPager
// ReadAt/WriteAt pattern plus the dirty-tracking discipline of its
// BufferPool, simplified here since every write is immediately
// durable rather than deferred to a flush.
type File struct {
	mu        sync.Mutex
	f         *os.File
	blockSize int
	numBlocks int
	cache     *ristretto.Cache[uint32, []byte]
	allocs    int
	deallocs  int
}

// CreateFile truncates path to exactly numBlocks*blockSize bytes,
// zero-filling it, and returns a File bound to it.
func CreateFile(path string, blockSize, numBlocks int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("blockstore: create %s: %w", path, err)
	}
	size := int64(blockSize) * int64(numBlocks)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("blockstore: truncate %s to %d bytes: %w", path, size, err)
	}
	return newFile(f, blockSize, numBlocks)
}

// OpenFile opens an existing block file created by CreateFile. Its
// size must be an exact multiple of blockSize.
func OpenFile(path string, blockSize int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockstore: stat %s: %w", path, err)
	}
	if stat.Size()%int64(blockSize) != 0 {
		f.Close()
		return nil, fmt.Errorf("blockstore: %s size %d is not a multiple of block size %d", path, stat.Size(), blockSize)
	}
	numBlocks := int(stat.Size() / int64(blockSize))
	return newFile(f, blockSize, numBlocks)
}

func newFile(f *os.File, blockSize, numBlocks int) (*File, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[uint32, []byte]{
		NumCounters: int64(numBlocks) * 10,
		MaxCost:     int64(numBlocks * blockSize),
		BufferItems: 64,
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockstore: create cache: %w", err)
	}
	return &File{f: f, blockSize: blockSize, numBlocks: numBlocks, cache: cache}, nil
}

func (fs *File) BlockSize() int { return fs.blockSize }
func (fs *File) NumBlocks() int { return fs.numBlocks }

func (fs *File) ReadBlock(n index.BlockNum, buf []byte) error {
	if int(n) >= fs.numBlocks {
		return fmt.Errorf("blockstore: block %d out of range (have %d)", n, fs.numBlocks)
	}
	if len(buf) != fs.blockSize {
		return fmt.Errorf("blockstore: buffer size %d does not match block size %d", len(buf), fs.blockSize)
	}

	if cached, ok := fs.cache.Get(uint32(n)); ok {
		copy(buf, cached)
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	offset := int64(n) * int64(fs.blockSize)
	if _, err := fs.f.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("blockstore: read block %d: %w", n, err)
	}

	cached := append([]byte(nil), buf...)
	fs.cache.Set(uint32(n), cached, int64(fs.blockSize))
	return nil
}

func (fs *File) WriteBlock(n index.BlockNum, buf []byte) error {
	if int(n) >= fs.numBlocks {
		return fmt.Errorf("blockstore: block %d out of range (have %d)", n, fs.numBlocks)
	}
	if len(buf) != fs.blockSize {
		return fmt.Errorf("blockstore: buffer size %d does not match block size %d", len(buf), fs.blockSize)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	offset := int64(n) * int64(fs.blockSize)
	if _, err := fs.f.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("blockstore: write block %d: %w", n, err)
	}

	fs.cache.Set(uint32(n), append([]byte(nil), buf...), int64(fs.blockSize))
	return nil
}

func (fs *File) NotifyAllocate(n index.BlockNum) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.allocs++
}

// NotifyDeallocate drops n from the cache. The free list has already
// overwritten the block by then; the next read of n comes from the file,
// and the next read or write of it repopulates the cache.
func (fs *File) NotifyDeallocate(n index.BlockNum) {
	fs.cache.Del(uint32(n))
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.deallocs++
}

// Stats reports the running count of blocks allocated and deallocated
// over this store's lifetime, for the CLI's stats output.
func (fs *File) Stats() (allocs, deallocs int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.allocs, fs.deallocs
}

// Sync flushes pending writes to stable storage.
func (fs *File) Sync() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.f.Sync()
}

// Close releases the cache (which holds no unwritten data, since writes
// go straight to the file), syncs the file and closes it.
func (fs *File) Close() error {
	fs.cache.Close()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.f.Sync(); err != nil {
		fs.f.Close()
		return fmt.Errorf("blockstore: sync before close: %w", err)
	}
	return fs.f.Close()
}
