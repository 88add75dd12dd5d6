package index

import "encoding/binary"

// encodeNode serializes n into a new buffer of exactly blockSize bytes.
// Slots beyond numKeys are written as they stand in n (zero if never
// set, stale data left behind by a split otherwise); they carry no meaning.
func encodeNode(n *node, blockSize int) ([]byte, error) {
	buf := make([]byte, blockSize)

	buf[0] = byte(n.typ)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(n.rootHint))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(n.freelist))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(n.numKeys))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(n.keySize))
	binary.LittleEndian.PutUint32(buf[17:21], uint32(n.valSize))

	offset := headerSize
	switch n.typ {
	case typeRoot, typeInterior:
		for _, p := range n.ptrs {
			binary.LittleEndian.PutUint32(buf[offset:offset+ptrSize], uint32(p))
			offset += ptrSize
		}
		for _, k := range n.keys {
			copy(buf[offset:offset+n.keySize], k)
			offset += n.keySize
		}
	case typeLeaf:
		for _, k := range n.keys {
			copy(buf[offset:offset+n.keySize], k)
			offset += n.keySize
		}
		for _, v := range n.vals {
			copy(buf[offset:offset+n.valSize], v)
			offset += n.valSize
		}
	case typeUnallocated, typeSuperblock:
		// header only; no payload.
	default:
		return nil, ErrInsane
	}

	return buf, nil
}

// decodeNode deserializes buf (exactly blockSize bytes) into a node.
// It fails only when the header carries an unrecognized node type.
func decodeNode(buf []byte) (*node, error) {
	blockSize := len(buf)
	typ := nodeType(buf[0])

	switch typ {
	case typeRoot, typeInterior, typeLeaf, typeUnallocated, typeSuperblock:
	default:
		return nil, ErrInsane
	}

	n := &node{
		typ:      typ,
		rootHint: BlockNum(binary.LittleEndian.Uint32(buf[1:5])),
		freelist: BlockNum(binary.LittleEndian.Uint32(buf[5:9])),
		numKeys:  int(binary.LittleEndian.Uint32(buf[9:13])),
		keySize:  int(binary.LittleEndian.Uint32(buf[13:17])),
		valSize:  int(binary.LittleEndian.Uint32(buf[17:21])),
	}

	slots := slotsFor(typ, n.keySize, n.valSize, blockSize)
	offset := headerSize

	switch typ {
	case typeRoot, typeInterior:
		n.ptrs = make([]BlockNum, slots+1)
		for i := range n.ptrs {
			n.ptrs[i] = BlockNum(binary.LittleEndian.Uint32(buf[offset : offset+ptrSize]))
			offset += ptrSize
		}
		n.keys = make([][]byte, slots)
		for i := range n.keys {
			k := make([]byte, n.keySize)
			copy(k, buf[offset:offset+n.keySize])
			n.keys[i] = k
			offset += n.keySize
		}
	case typeLeaf:
		n.keys = make([][]byte, slots)
		for i := range n.keys {
			k := make([]byte, n.keySize)
			copy(k, buf[offset:offset+n.keySize])
			n.keys[i] = k
			offset += n.keySize
		}
		n.vals = make([][]byte, slots)
		for i := range n.vals {
			v := make([]byte, n.valSize)
			copy(v, buf[offset:offset+n.valSize])
			n.vals[i] = v
			offset += n.valSize
		}
	case typeUnallocated, typeSuperblock:
		// header only; superblock payload is handled separately.
	}

	return n, nil
}
