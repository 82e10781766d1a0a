package watch

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"

	"github.com/bitfsorg/spvwallet-go/network"
	"github.com/bitfsorg/spvwallet-go/spv"
)

// ProofFromBranch converts a server Merkle branch for txid into a proof.
// The server lists hashes in display order, leaf level first.
//
// The branch does not carry the block's transaction count, so the tree height
// is taken from the number of siblings. A branch that is too short or too long
// surfaces as a root mismatch; only a position that cannot fit in a tree of
// that height is reported as spv.ErrDepthMismatch.
func ProofFromBranch(txid string, branch *network.MerkleBranch) (*spv.MerkleProof, error) {
	if branch == nil {
		return nil, fmt.Errorf("%w: branch", ErrNilParam)
	}
	leaf, err := spv.HashFromDisplayHex(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: txid: %w", ErrMalformedProof, err)
	}

	siblings := make([]chainhash.Hash, 0, len(branch.Merkle))
	for i, s := range branch.Merkle {
		h, err := spv.HashFromDisplayHex(s)
		if err != nil {
			return nil, fmt.Errorf("%w: sibling %d: %w", ErrMalformedProof, i, err)
		}
		siblings = append(siblings, h)
	}

	return &spv.MerkleProof{
		LeafHash:   leaf,
		Siblings:   siblings,
		LeafIndex:  branch.Pos,
		TreeHeight: uint32(len(siblings)), //nolint:gosec // bounded by block size
	}, nil
}

// VerifyInclusion checks that txid is committed to by the block at height
// whose serialized header is rawHeader. The header must meet its own
// proof-of-work target and the branch must recompute its Merkle root.
// It performs no I/O, so repeated calls with the same inputs agree.
func VerifyInclusion(v *spv.HeaderValidator, height uint32, rawHeader []byte, txid string, branch *network.MerkleBranch) (*spv.Inclusion, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: validator", ErrNilParam)
	}
	proof, err := ProofFromBranch(txid, branch)
	if err != nil {
		return nil, err
	}
	if branch.BlockHeight != 0 && branch.BlockHeight != height {
		return nil, fmt.Errorf("%w: branch is for height %d, want %d", ErrMalformedProof, branch.BlockHeight, height)
	}
	return v.VerifyInclusion(rawHeader, proof)
}
