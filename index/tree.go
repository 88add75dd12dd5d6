// Package index implements a persistent, block-addressed B-tree that maps
// fixed-width byte keys to fixed-width byte values atop an external
// BlockStore. It knows nothing about disk layout, I/O, or caching policy
// beyond the BlockStore contract.
package index

import (
	"bytes"
	"fmt"
	"sync"
)

// Index is the tree engine. It owns the in-memory superblock and the
// logical right to mutate any reachable node; every BlockStore call it
// makes is checked and non-success propagated immediately, with no
// retries. A single Index is not safe for concurrent use by multiple
// goroutines without external synchronization (spec.md §5); the mutex
// here only protects against accidental concurrent misuse within one
// process, not against multi-process sharing.
type Index struct {
	mu    sync.Mutex
	store BlockStore

	ksz       int
	vsz       int
	blockSize int

	super superblockInfo
}

// superblockAddr is always block 0 in this design.
const superblockAddr BlockNum = 0

// New returns an Index bound to store, with the given fixed key and value
// widths. Call Attach before any other operation.
func New(ksz, vsz int, store BlockStore) *Index {
	return &Index{
		store:     store,
		ksz:       ksz,
		vsz:       vsz,
		blockSize: store.BlockSize(),
	}
}

// Attach mounts the index. initBlock must be 0 (the superblock always
// lives at block 0 in this design). If create is true, a fresh
// superblock, an empty root at block 1, and a free-list chain threaded
// through blocks 2..N-1 are written first. In all cases the in-memory
// superblock is then loaded from block 0.
func (ix *Index) Attach(initBlock BlockNum, create bool) error {
	if initBlock != superblockAddr {
		return fmt.Errorf("index: Attach requires initBlock == 0, got %d", initBlock)
	}

	if create {
		numBlocks := BlockNum(ix.store.NumBlocks())
		if numBlocks < 3 {
			return fmt.Errorf("index: Attach(create=true) needs at least 3 blocks, got %d", numBlocks)
		}

		sb := superblockInfo{
			ksz:          ix.ksz,
			vsz:          ix.vsz,
			rootNode:     1,
			freelistHead: 2,
		}
		ix.super = sb
		if err := ix.writeSuperblock(); err != nil {
			return fmt.Errorf("index: Attach: write superblock: %w", err)
		}
		ix.store.NotifyAllocate(superblockAddr)

		root := newEmptyNode(typeRoot, ix.ksz, ix.vsz, ix.blockSize)
		if err := ix.writeNode(1, root); err != nil {
			return fmt.Errorf("index: Attach: write root: %w", err)
		}
		ix.store.NotifyAllocate(1)

		for n := BlockNum(2); n < numBlocks; n++ {
			next := BlockNum(0)
			if n+1 != numBlocks {
				next = n + 1
			}
			free := &node{typ: typeUnallocated, freelist: next, keySize: ix.ksz, valSize: ix.vsz}
			if err := ix.writeNode(n, free); err != nil {
				return fmt.Errorf("index: Attach: init free list block %d: %w", n, err)
			}
		}
	}

	sb, err := ix.readSuperblock()
	if err != nil {
		return fmt.Errorf("index: Attach: read superblock: %w", err)
	}
	ix.super = *sb
	return nil
}

// Detach flushes the in-memory superblock.
func (ix *Index) Detach() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.writeSuperblock()
}

func (ix *Index) readSuperblock() (*superblockInfo, error) {
	buf := make([]byte, ix.blockSize)
	if err := ix.store.ReadBlock(superblockAddr, buf); err != nil {
		return nil, err
	}
	n, err := decodeNode(buf)
	if err != nil {
		return nil, err
	}
	return superblockFromNode(n)
}

func (ix *Index) writeSuperblock() error {
	buf, err := encodeNode(ix.super.toNode(), ix.blockSize)
	if err != nil {
		return err
	}
	return ix.store.WriteBlock(superblockAddr, buf)
}

func (ix *Index) readNode(b BlockNum) (*node, error) {
	buf := make([]byte, ix.blockSize)
	if err := ix.store.ReadBlock(b, buf); err != nil {
		return nil, fmt.Errorf("index: read block %d: %w", b, err)
	}
	n, err := decodeNode(buf)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (ix *Index) writeNode(b BlockNum, n *node) error {
	buf, err := encodeNode(n, ix.blockSize)
	if err != nil {
		return err
	}
	if err := ix.store.WriteBlock(b, buf); err != nil {
		return fmt.Errorf("index: write block %d: %w", b, err)
	}
	return nil
}

// Lookup returns the value stored for key, or ErrNonexistent.
func (ix *Index) Lookup(key []byte) ([]byte, error) {
	if len(key) != ix.ksz {
		return nil, ErrSize
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.lookupOrUpdate(ix.super.rootNode, false, key, nil)
}

// Update overwrites the value stored for key, or returns ErrNonexistent.
func (ix *Index) Update(key, value []byte) error {
	if len(key) != ix.ksz || len(value) != ix.vsz {
		return ErrSize
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, err := ix.lookupOrUpdate(ix.super.rootNode, true, key, value)
	return err
}

// lookupOrUpdate is the shared recursive descent for Lookup and Update.
// The equality tie-break at interior nodes descends right (spec.md §9,
// Open Question 1), which pairs with copy-up separators: finding the
// first key strictly greater than the probe and descending the pointer
// before it achieves exactly that, with no special-cased equality branch.
func (ix *Index) lookupOrUpdate(addr BlockNum, update bool, key, value []byte) ([]byte, error) {
	nd, err := ix.readNode(addr)
	if err != nil {
		return nil, err
	}

	switch nd.typ {
	case typeRoot, typeInterior:
		idx := upperBoundChild(nd, key)
		ptr, err := nd.getPtr(idx)
		if err != nil {
			return nil, err
		}
		if ptr == NullBlock {
			return nil, ErrNonexistent
		}
		return ix.lookupOrUpdate(ptr, update, key, value)

	case typeLeaf:
		for offset := 0; offset < nd.numKeys; offset++ {
			if bytes.Equal(nd.keys[offset], key) {
				if !update {
					return nd.vals[offset], nil
				}
				if err := nd.setVal(offset, value); err != nil {
					return nil, err
				}
				return nil, ix.writeNode(addr, nd)
			}
		}
		return nil, ErrNonexistent

	default:
		return nil, ErrInsane
	}
}

// upperBoundChild returns the smallest index i with n.keys[i] > key, or
// n.numKeys if no such key exists.
func upperBoundChild(n *node, key []byte) int {
	for i := 0; i < n.numKeys; i++ {
		if bytes.Compare(key, n.keys[i]) < 0 {
			return i
		}
	}
	return n.numKeys
}

// childForInsert returns the child index insertion should descend into,
// exactly like upperBoundChild, except it reports conflict=true the
// moment it encounters a key equal to the probe - duplicates are
// rejected at internal separators too (spec.md §4.5), since a separator
// is always a copy of its subtree's minimum and therefore already
// present as real data.
func childForInsert(n *node, key []byte) (idx int, conflict bool) {
	for i := 0; i < n.numKeys; i++ {
		cmp := bytes.Compare(key, n.keys[i])
		if cmp == 0 {
			return i, true
		}
		if cmp < 0 {
			return i, false
		}
	}
	return n.numKeys, false
}

// Insert adds (key, value) using the classical CLRS proactive top-down
// split algorithm: every full node encountered on the way down is split
// before being descended into, so the parent always has room when a
// split is needed.
func (ix *Index) Insert(key, value []byte) error {
	if len(key) != ix.ksz || len(value) != ix.vsz {
		return ErrSize
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rootAddr := ix.super.rootNode
	root, err := ix.readNode(rootAddr)
	if err != nil {
		return err
	}

	if root.isFull(ix.blockSize) {
		newRootAddr, err := ix.allocate()
		if err != nil {
			return err
		}

		root.typ = typeInterior
		if err := ix.writeNode(rootAddr, root); err != nil {
			return err
		}

		newRoot := newEmptyNode(typeRoot, ix.ksz, ix.vsz, ix.blockSize)
		if err := newRoot.setPtr(0, rootAddr); err != nil {
			return err
		}
		if err := ix.writeNode(newRootAddr, newRoot); err != nil {
			return err
		}

		ix.super.rootNode = newRootAddr
		if err := ix.writeSuperblock(); err != nil {
			return err
		}

		if err := ix.splitChild(newRootAddr, 0); err != nil {
			return err
		}
		return ix.insertNonfull(newRootAddr, key, value)
	}

	if root.numKeys == 0 {
		ptr0, err := root.getPtr(0)
		if err != nil {
			return err
		}
		if ptr0 == NullBlock {
			// A fresh root needs only its first child wired: with
			// numKeys == 0, every descent (childForInsert,
			// upperBoundChild, SanityCheck, Display) only ever touches
			// ptr[0]. ptr[1] is wired later, by splitChild, the first
			// time this leaf actually overflows - pre-creating it here
			// would leave it permanently unreachable once that split
			// overwrites the slot with its own right sibling.
			leafA, err := ix.allocate()
			if err != nil {
				return err
			}
			if err := ix.writeNode(leafA, newEmptyNode(typeLeaf, ix.ksz, ix.vsz, ix.blockSize)); err != nil {
				return err
			}

			if err := root.setPtr(0, leafA); err != nil {
				return err
			}
			if err := ix.writeNode(rootAddr, root); err != nil {
				return err
			}
		}
	}

	return ix.insertNonfull(rootAddr, key, value)
}

// splitChild splits parent.ptr[i] (the full left child) into two
// siblings around its median, using copy-up: the separator promoted to
// parent is a copy of the right sibling's minimum key, which remains in
// the right sibling. For interior splits this copy-up is applied
// exactly as spec.md §4.5 describes ("R's pointer count is R.numkeys+1
// drawn from the top of L") - the boundary pointer ends up referenced
// from both siblings. Lookup and insert never follow it from R: descent
// into R only happens once the probe is already >= R's minimum key, at
// which point R's own child-selection never picks its leading pointer.
// Display skips it as well; SanityCheck visits it with the bounds
// (-inf, R's minimum), which the shared subtree satisfies.
func (ix *Index) splitChild(parentAddr BlockNum, i int) error {
	parent, err := ix.readNode(parentAddr)
	if err != nil {
		return err
	}
	childAddr, err := parent.getPtr(i)
	if err != nil {
		return err
	}
	left, err := ix.readNode(childAddr)
	if err != nil {
		return err
	}

	capacity := slotsFor(left.typ, ix.ksz, ix.vsz, ix.blockSize)
	s := capacity / 2
	rightCount := capacity - s

	rightAddr, err := ix.allocate()
	if err != nil {
		return err
	}
	right := newEmptyNode(left.typ, ix.ksz, ix.vsz, ix.blockSize)

	for j := 0; j < rightCount; j++ {
		right.keys[j] = append([]byte(nil), left.keys[s+j]...)
	}
	right.numKeys = rightCount

	switch left.typ {
	case typeLeaf:
		for j := 0; j < rightCount; j++ {
			right.vals[j] = append([]byte(nil), left.vals[s+j]...)
		}
	default: // INTERIOR (the root is always demoted before it is split)
		for j := 0; j <= rightCount; j++ {
			if err := right.setPtr(j, left.ptrs[s+j]); err != nil {
				return err
			}
		}
	}

	promoted := append([]byte(nil), right.keys[0]...)
	left.numKeys = s

	for j := parent.numKeys; j > i; j-- {
		parent.ptrs[j+1] = parent.ptrs[j]
	}
	parent.ptrs[i+1] = rightAddr
	for j := parent.numKeys; j > i; j-- {
		parent.keys[j] = parent.keys[j-1]
	}
	parent.keys[i] = promoted
	parent.numKeys++

	if err := ix.writeNode(childAddr, left); err != nil {
		return err
	}
	if err := ix.writeNode(rightAddr, right); err != nil {
		return err
	}
	return ix.writeNode(parentAddr, parent)
}

// insertNonfull descends from addr, which is guaranteed not full,
// splitting any full child it must pass through before recursing into
// it - so every split happens in a parent known to have room.
func (ix *Index) insertNonfull(addr BlockNum, key, value []byte) error {
	nd, err := ix.readNode(addr)
	if err != nil {
		return err
	}

	switch nd.typ {
	case typeLeaf:
		p := nd.numKeys
		for p > 0 {
			cmp := bytes.Compare(key, nd.keys[p-1])
			if cmp == 0 {
				return ErrConflict
			}
			if cmp > 0 {
				break
			}
			p--
		}
		nd.numKeys++
		for j := nd.numKeys - 1; j > p; j-- {
			k, v, err := nd.getKV(j - 1)
			if err != nil {
				return err
			}
			if err := nd.setKV(j, k, v); err != nil {
				return err
			}
		}
		if err := nd.setKV(p, key, value); err != nil {
			return err
		}
		return ix.writeNode(addr, nd)

	case typeRoot, typeInterior:
		c, conflict := childForInsert(nd, key)
		if conflict {
			return ErrConflict
		}
		childAddr, err := nd.getPtr(c)
		if err != nil {
			return err
		}
		child, err := ix.readNode(childAddr)
		if err != nil {
			return err
		}

		if child.isFull(ix.blockSize) {
			if err := ix.splitChild(addr, c); err != nil {
				return err
			}
			nd, err = ix.readNode(addr)
			if err != nil {
				return err
			}
			sepKey, err := nd.getKey(c)
			if err != nil {
				return err
			}
			if bytes.Compare(sepKey, key) <= 0 {
				c++
			}
		}

		childAddr, err = nd.getPtr(c)
		if err != nil {
			return err
		}
		return ix.insertNonfull(childAddr, key, value)

	default:
		return ErrInsane
	}
}

// Delete is an intentionally unimplemented placeholder (spec.md §1, §6).
func (ix *Index) Delete(key []byte) error {
	return ErrUnimplemented
}
