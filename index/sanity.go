package index

import "bytes"

// bound represents one side of a key range during sanity checking. A
// plain key comparison cannot express "no bound yet" without reserving
// a byte pattern that might collide with a real key, so the sentinel is
// carried as a tag instead (spec.md §4.6, KEY_MIN/KEY_MAX).
type bound struct {
	key      []byte
	infinite bool // true means -inf (as lo) or +inf (as hi)
}

func negInf() bound { return bound{infinite: true} }
func posInf() bound { return bound{infinite: true} }

func (b bound) gt(key []byte) bool {
	if b.infinite {
		return true // +inf > anything; caller only uses gt() for hi bounds
	}
	return bytes.Compare(b.key, key) > 0
}

func (b bound) equalKey(key []byte) bool {
	return !b.infinite && bytes.Equal(b.key, key)
}

// SanityCheck performs a bounded in-order traversal of the tree rooted
// at the superblock's root node and reports the first structural
// invariant violation it finds, or nil if the whole tree is internally
// consistent: keys strictly ascending within every node, every node's
// minimum matching the separator its parent copied up for it, and every
// key falling within the [lo, hi) range implied by its ancestors.
func (ix *Index) SanityCheck() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.checkSubtree(ix.super.rootNode, negInf(), posInf())
}

func (ix *Index) checkSubtree(addr BlockNum, lo, hi bound) error {
	nd, err := ix.readNode(addr)
	if err != nil {
		return err
	}

	switch nd.typ {
	case typeRoot, typeInterior, typeLeaf:
	default:
		return ErrInsane
	}

	if nd.numKeys > 0 {
		if !lo.infinite && !lo.equalKey(nd.keys[0]) {
			return ErrBadConfig
		}
		if !hi.gt(nd.keys[nd.numKeys-1]) {
			return ErrBadConfig
		}
		for i := 1; i < nd.numKeys; i++ {
			if bytes.Compare(nd.keys[i-1], nd.keys[i]) >= 0 {
				return ErrBadConfig
			}
		}
	}

	if nd.typ == typeLeaf {
		return nil
	}

	for i := 0; i <= nd.numKeys; i++ {
		childLo := negInf()
		if i > 0 {
			childLo = bound{key: nd.keys[i-1]}
		}
		childHi := posInf()
		if i < nd.numKeys {
			childHi = bound{key: nd.keys[i]}
		}

		ptr, err := nd.getPtr(i)
		if err != nil {
			return err
		}
		if ptr == NullBlock {
			if nd.numKeys > 0 {
				return ErrBadConfig
			}
			continue
		}
		if err := ix.checkSubtree(ptr, childLo, childHi); err != nil {
			return err
		}
	}

	return nil
}
