package index

// superblockInfo is the in-memory, authoritative copy of block 0. Every
// mutation of it must be followed by an immediate re-serialize; nothing
// outside Index ever sees it directly.
type superblockInfo struct {
	ksz, vsz     int
	rootNode     BlockNum
	freelistHead BlockNum
}

// toNode packs the superblock fields into the shared node header shape so
// the ordinary codec can (de)serialize block 0 too.
func (s *superblockInfo) toNode() *node {
	return &node{
		typ:      typeSuperblock,
		rootHint: s.rootNode,
		freelist: s.freelistHead,
		numKeys:  0,
		keySize:  s.ksz,
		valSize:  s.vsz,
	}
}

func superblockFromNode(n *node) (*superblockInfo, error) {
	if n.typ != typeSuperblock {
		return nil, ErrInsane
	}
	return &superblockInfo{
		ksz:          n.keySize,
		vsz:          n.valSize,
		rootNode:     n.rootHint,
		freelistHead: n.freelist,
	}, nil
}
