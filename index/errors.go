package index

import "errors"

// Error taxonomy for the tree engine. Each value is distinct and flat,
// matching the contract the block store itself uses for IO failures:
// errors are returned directly, never silently retried or recovered.
var (
	// ErrNonexistent is returned by Lookup/Update when the key is absent.
	ErrNonexistent = errors.New("index: key does not exist")

	// ErrConflict is returned by Insert when the key is already present.
	ErrConflict = errors.New("index: key already exists")

	// ErrNoSpace is returned when the free list is exhausted.
	ErrNoSpace = errors.New("index: no free blocks available")

	// ErrSize is returned when a supplied key or value does not match
	// the index's configured key/value size.
	ErrSize = errors.New("index: key or value size mismatch")

	// ErrBadConfig is returned by SanityCheck when a structural invariant
	// does not hold.
	ErrBadConfig = errors.New("index: structural invariant violated")

	// ErrInsane indicates an unreachable case, such as an unrecognized
	// node type encountered where only ROOT/INTERIOR/LEAF may appear.
	// It signals corruption, not a bug in the caller's usage.
	ErrInsane = errors.New("index: insane - corrupt or unreachable node state")

	// ErrUnimplemented is returned by operations intentionally not
	// implemented by this core, such as Delete.
	ErrUnimplemented = errors.New("index: operation not implemented")

	// ErrOutOfBounds is returned by node accessors when an index falls
	// outside the currently valid key/pointer/value range.
	ErrOutOfBounds = errors.New("index: accessor index out of bounds")
)
