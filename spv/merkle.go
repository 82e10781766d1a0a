package spv

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// MerkleProof is an inclusion proof for one leaf of a block's transaction tree.
// Siblings are ordered bottom-up, leaf level first.
type MerkleProof struct {
	LeafHash   chainhash.Hash
	Siblings   []chainhash.Hash
	LeafIndex  uint32
	TreeHeight uint32
}

// ComputeMerkleRoot folds the sibling path into a root. At each level an even
// index means the running hash is the left operand, an odd index the right.
//
//	for sibling in siblings:
//	    if idx is even: cur = DoubleHash(cur || sibling)
//	    else:           cur = DoubleHash(sibling || cur)
//	    idx /= 2
func ComputeMerkleRoot(leaf chainhash.Hash, index uint32, siblings []chainhash.Hash) chainhash.Hash {
	cur := leaf
	idx := index
	for _, sibling := range siblings {
		if idx%2 == 0 {
			cur = DoubleHashConcat(cur, sibling)
		} else {
			cur = DoubleHashConcat(sibling, cur)
		}
		idx /= 2
	}
	return cur
}

// VerifyMerkleProof recomputes the root from the proof and compares it with
// expectedRoot. A proof whose sibling count differs from TreeHeight, or whose
// index does not fit in a tree of that height, fails with ErrDepthMismatch.
// A well-formed proof for another root returns false and ErrMerkleRootMismatch.
func VerifyMerkleProof(proof *MerkleProof, expectedRoot chainhash.Hash) (bool, error) {
	if proof == nil {
		return false, fmt.Errorf("%w: proof", ErrNilParam)
	}
	if uint32(len(proof.Siblings)) != proof.TreeHeight {
		return false, fmt.Errorf("%w: %d siblings for tree height %d",
			ErrDepthMismatch, len(proof.Siblings), proof.TreeHeight)
	}
	if proof.TreeHeight < 32 && proof.LeafIndex>>proof.TreeHeight != 0 {
		return false, fmt.Errorf("%w: leaf index %d outside tree of height %d",
			ErrDepthMismatch, proof.LeafIndex, proof.TreeHeight)
	}

	root := ComputeMerkleRoot(proof.LeafHash, proof.LeafIndex, proof.Siblings)
	if root != expectedRoot {
		return false, ErrMerkleRootMismatch
	}
	return true, nil
}

// BuildMerkleTree returns every level of the tree over leaves, level 0 first
// and the single-element root level last. Odd levels pair their last node
// with itself.
func BuildMerkleTree(leaves []chainhash.Hash) [][]chainhash.Hash {
	if len(leaves) == 0 {
		return nil
	}

	level := make([]chainhash.Hash, len(leaves))
	copy(level, leaves)
	levels := [][]chainhash.Hash{level}

	for len(level) > 1 {
		next := make([]chainhash.Hash, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next[i/2] = DoubleHashConcat(level[i], right)
		}
		levels = append(levels, next)
		level = next
	}
	return levels
}

// MerkleRoot returns the root of the tree over leaves.
func MerkleRoot(leaves []chainhash.Hash) chainhash.Hash {
	levels := BuildMerkleTree(leaves)
	if levels == nil {
		return chainhash.Hash{}
	}
	return levels[len(levels)-1][0]
}

// BuildMerkleProof extracts the sibling path for leaves[index].
func BuildMerkleProof(leaves []chainhash.Hash, index uint32) (*MerkleProof, error) {
	if int(index) >= len(leaves) {
		return nil, fmt.Errorf("%w: index %d of %d leaves", ErrDepthMismatch, index, len(leaves))
	}

	levels := BuildMerkleTree(leaves)
	proof := &MerkleProof{
		LeafHash:   leaves[index],
		LeafIndex:  index,
		TreeHeight: uint32(len(levels) - 1),
	}

	idx := int(index)
	for _, level := range levels[:len(levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx
		}
		proof.Siblings = append(proof.Siblings, level[sibling])
		idx /= 2
	}
	return proof, nil
}
