package index

// allocate pops the head of the free list and returns its block number.
// The returned block is uninitialized from the tree's viewpoint; the
// caller must immediately serialize a valid node into it.
func (ix *Index) allocate() (BlockNum, error) {
	n := ix.super.freelistHead
	if n == NullBlock {
		return NullBlock, ErrNoSpace
	}

	blk, err := ix.readNode(n)
	if err != nil {
		return NullBlock, err
	}
	if blk.typ != typeUnallocated {
		return NullBlock, ErrInsane
	}

	ix.super.freelistHead = blk.freelist
	if err := ix.writeSuperblock(); err != nil {
		return NullBlock, err
	}

	ix.store.NotifyAllocate(n)
	return n, nil
}

// deallocate returns block n to the head of the free list.
func (ix *Index) deallocate(n BlockNum) error {
	blk, err := ix.readNode(n)
	if err != nil {
		return err
	}
	if blk.typ == typeUnallocated {
		return ErrInsane
	}

	free := &node{
		typ:      typeUnallocated,
		freelist: ix.super.freelistHead,
		keySize:  ix.ksz,
		valSize:  ix.vsz,
	}
	if err := ix.writeNode(n, free); err != nil {
		return err
	}

	ix.super.freelistHead = n
	if err := ix.writeSuperblock(); err != nil {
		return err
	}

	ix.store.NotifyDeallocate(n)
	return nil
}
