package spv

import "errors"

var (
	// ErrMalformedHeader indicates the raw header is not exactly BlockHeaderSize bytes
	// or a header field is unusable.
	ErrMalformedHeader = errors.New("spv: malformed header")

	// ErrInsufficientWork indicates the header hash is not strictly below the target
	// decoded from its bits field, or the target itself is out of range.
	ErrInsufficientWork = errors.New("spv: insufficient proof of work")

	// ErrDepthMismatch indicates the number of Merkle siblings disagrees with the
	// declared tree height, or the leaf index does not fit in the tree.
	ErrDepthMismatch = errors.New("spv: merkle depth mismatch")

	// ErrMerkleRootMismatch indicates the recomputed Merkle root differs from the
	// root committed to by the block header.
	ErrMerkleRootMismatch = errors.New("spv: merkle root mismatch")

	// ErrChainBroken indicates headers do not link through their previous hash.
	ErrChainBroken = errors.New("spv: header chain broken")

	// ErrHeaderNotFound indicates the block header was not found in the local store.
	ErrHeaderNotFound = errors.New("spv: header not found")

	// ErrInvalidHash indicates a hash string or slice is not a 32-byte value.
	ErrInvalidHash = errors.New("spv: invalid hash")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("spv: required parameter is nil")
)
