package index_test

import (
	"bytes"
	"math/rand"
	"strconv"
	"testing"

	"blocktree/blockstore"
	"blocktree/index"
)

// newTestIndex returns an attached, freshly created Index backed by a
// blockstore.Mem sized for numBlocks blocks of blockSize bytes.
func newTestIndex(t *testing.T, ksz, vsz, blockSize, numBlocks int) *index.Index {
	t.Helper()
	store := blockstore.NewMem(blockSize, numBlocks)
	ix := index.New(ksz, vsz, store)
	if err := ix.Attach(0, true); err != nil {
		t.Fatalf("Attach(create=true): %v", err)
	}
	return ix
}

func k(b byte) []byte { return []byte{b} }

func TestFreshTreeLookup(t *testing.T) {
	ix := newTestIndex(t, 1, 1, 41, 64)
	if _, err := ix.Lookup(k('a')); err != index.ErrNonexistent {
		t.Fatalf("Lookup on fresh tree: got %v, want ErrNonexistent", err)
	}
}

func TestSingleInsert(t *testing.T) {
	ix := newTestIndex(t, 1, 1, 41, 64)
	if err := ix.Insert(k('a'), k('1')); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, err := ix.Lookup(k('a'))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !bytes.Equal(v, k('1')) {
		t.Fatalf("Lookup = %q, want %q", v, k('1'))
	}
	if err := ix.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck: %v", err)
	}
}

func TestDuplicateInsert(t *testing.T) {
	ix := newTestIndex(t, 1, 1, 41, 64)
	mustInsert(t, ix, 'a', '1')

	if err := ix.Insert(k('a'), k('9')); err != index.ErrConflict {
		t.Fatalf("second Insert: got %v, want ErrConflict", err)
	}
	v, err := ix.Lookup(k('a'))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !bytes.Equal(v, k('1')) {
		t.Fatalf("Lookup after rejected duplicate = %q, want %q", v, k('1'))
	}
}

func TestUpdate(t *testing.T) {
	ix := newTestIndex(t, 1, 1, 41, 64)
	mustInsert(t, ix, 'a', '1')

	if err := ix.Update(k('a'), k('9')); err != nil {
		t.Fatalf("Update: %v", err)
	}
	v, err := ix.Lookup(k('a'))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !bytes.Equal(v, k('9')) {
		t.Fatalf("Lookup after Update = %q, want %q", v, k('9'))
	}

	if err := ix.Update(k('z'), k('0')); err != index.ErrNonexistent {
		t.Fatalf("Update of missing key: got %v, want ErrNonexistent", err)
	}
}

func TestLeafSplit(t *testing.T) {
	ix := newTestIndex(t, 1, 1, 41, 64)

	// slots_L = 10 at this block size; 11 inserts force a leaf split.
	for i := 0; i < 11; i++ {
		mustInsert(t, ix, byte('a'+i), byte('0'+i))
	}

	if err := ix.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck: %v", err)
	}
	assertSortedKeys(t, ix, 11)
}

func TestRootSplit(t *testing.T) {
	ix := newTestIndex(t, 1, 1, 41, 128)

	const n = 60
	for i := 0; i < n; i++ {
		mustInsert(t, ix, byte(i), byte(i))
	}

	if err := ix.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck: %v", err)
	}
	assertSortedKeys(t, ix, n)

	for i := 0; i < n; i++ {
		v, err := ix.Lookup(k(byte(i)))
		if err != nil {
			t.Fatalf("Lookup(%d): %v", i, err)
		}
		if v[0] != byte(i) {
			t.Fatalf("Lookup(%d) = %v, want %v", i, v, byte(i))
		}
	}
}

func TestNoSpace(t *testing.T) {
	ix := newTestIndex(t, 1, 1, 41, 6) // very few blocks: free list exhausts fast

	inserted := 0
	var gotNoSpace bool
	for i := 0; i < 250; i++ {
		err := ix.Insert(k(byte(i)), k(byte(i)))
		if err == index.ErrNoSpace {
			gotNoSpace = true
			break
		}
		if err != nil {
			t.Fatalf("Insert(%d): unexpected error %v", i, err)
		}
		inserted++
	}
	if !gotNoSpace {
		t.Fatalf("expected ErrNoSpace within 250 inserts on a 6-block store, inserted %d", inserted)
	}

	for i := 0; i < inserted; i++ {
		v, err := ix.Lookup(k(byte(i)))
		if err != nil {
			t.Fatalf("Lookup(%d) after NoSpace: %v", i, err)
		}
		if v[0] != byte(i) {
			t.Fatalf("Lookup(%d) = %v, want %v", i, v, byte(i))
		}
	}
	if err := ix.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck after NoSpace: %v", err)
	}
}

func TestOrderingAfterPermutation(t *testing.T) {
	keys := make([]byte, 40)
	for i := range keys {
		keys[i] = byte(i)
	}

	perm := append([]byte(nil), keys...)
	rand.New(rand.NewSource(1)).Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

	ix := newTestIndex(t, 1, 1, 41, 128)
	for _, key := range perm {
		mustInsert(t, ix, key, key)
	}

	if err := ix.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck: %v", err)
	}
	assertSortedKeys(t, ix, len(keys))
}

// TestCapacityIsFullBoundary pins down spec.md §9 Open Question 4: a
// node with numkeys == slots is full; one short of full is not.
func TestCapacityIsFullBoundary(t *testing.T) {
	ix := newTestIndex(t, 1, 1, 41, 64)

	// nodeCount counts the nodes DEPTH renders, one line per node.
	nodeCount := func() int {
		var buf bytes.Buffer
		if err := ix.Display(&buf, index.DisplayDepth); err != nil {
			t.Fatalf("Display(DEPTH): %v", err)
		}
		return bytes.Count(buf.Bytes(), []byte("\n"))
	}

	// slots_L = 10. The 10th insert fills the root's first lazily
	// created leaf to exactly capacity without splitting; no descent
	// has yet observed it as full (the check runs on the way IN to a
	// child, not after leaving it), so no split occurs until insert 11.
	for i := 0; i < 10; i++ {
		mustInsert(t, ix, byte('a'+i), byte(i))
	}
	if err := ix.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck at exact capacity: %v", err)
	}
	assertSortedKeys(t, ix, 10)
	if got := nodeCount(); got != 2 {
		t.Fatalf("at exact capacity: %d nodes, want 2 (root + one unsplit leaf)", got)
	}

	mustInsert(t, ix, byte('a'+10), 10)
	if err := ix.SanityCheck(); err != nil {
		t.Fatalf("SanityCheck after the split-triggering insert: %v", err)
	}
	assertSortedKeys(t, ix, 11)
	if got := nodeCount(); got != 3 {
		t.Fatalf("after the split-triggering insert: %d nodes, want 3 (root + two leaves)", got)
	}
}

// TestDisplayDepth pins down the DEPTH rendering: one indented line per
// node, interior/root lines giving pointers and separator keys, leaf
// lines giving (key,value) pairs.
func TestDisplayDepth(t *testing.T) {
	ix := newTestIndex(t, 1, 1, 41, 128)

	const n = 30
	for i := 0; i < n; i++ {
		mustInsert(t, ix, byte(i), byte(i))
	}

	var buf bytes.Buffer
	if err := ix.Display(&buf, index.DisplayDepth); err != nil {
		t.Fatalf("Display(DEPTH): %v", err)
	}

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	if len(lines) == 0 {
		t.Fatalf("Display(DEPTH) produced no output")
	}

	var leafPairs, interiorLines int
	for _, line := range lines {
		trimmed := bytes.TrimLeft(line, " ")
		switch {
		case bytes.Contains(trimmed, []byte(": Leaf: ")):
			leafPairs += bytes.Count(trimmed, []byte("("))
			if bytes.Contains(trimmed, []byte("*")) {
				t.Fatalf("leaf line unexpectedly carries a pointer: %q", line)
			}
		case bytes.Contains(trimmed, []byte(": Interior: ")):
			interiorLines++
			if _, err := strconv.Atoi(string(bytes.SplitN(trimmed, []byte(":"), 2)[0])); err != nil {
				t.Fatalf("interior line missing block number prefix: %q", line)
			}
			if !bytes.Contains(trimmed, []byte("*")) {
				t.Fatalf("interior line has no pointers: %q", line)
			}
		default:
			t.Fatalf("line matches neither Leaf nor Interior format: %q", line)
		}
	}
	if interiorLines == 0 {
		t.Fatalf("expected at least a root Interior line after %d inserts", n)
	}
	if leafPairs != n {
		t.Fatalf("Display(DEPTH) leaves carry %d (key,val) pairs, want %d", leafPairs, n)
	}
}

func mustInsert(t *testing.T, ix *index.Index, key, val byte) {
	t.Helper()
	if err := ix.Insert(k(key), k(val)); err != nil {
		t.Fatalf("Insert(%q): %v", key, err)
	}
}

func assertSortedKeys(t *testing.T, ix *index.Index, want int) {
	t.Helper()
	var buf bytes.Buffer
	if err := ix.Display(&buf, index.DisplaySorted); err != nil {
		t.Fatalf("Display: %v", err)
	}

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	if len(lines) != want {
		t.Fatalf("Display(SORTED_KEYVAL) emitted %d records, want %d", len(lines), want)
	}

	var prev []byte
	for _, line := range lines {
		line = bytes.TrimSuffix(bytes.TrimPrefix(line, []byte("(")), []byte(")"))
		fields := bytes.Split(line, []byte(","))
		if len(fields) != 2 {
			t.Fatalf("malformed display line %q", line)
		}
		if prev != nil && bytes.Compare(prev, fields[0]) >= 0 {
			t.Fatalf("keys not strictly ascending: %q then %q", prev, fields[0])
		}
		prev = fields[0]
	}
}
