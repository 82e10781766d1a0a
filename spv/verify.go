package spv

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// Inclusion is the outcome of a successful end-to-end inclusion check.
type Inclusion struct {
	TxID        chainhash.Hash
	BlockHash   chainhash.Hash
	MerkleDepth uint32
	Header      *BlockHeader
}

// VerifyInclusion proves that proof.LeafHash is committed to by the block whose
// serialized header is rawHeader:
//  1. the header parses and its hash meets its own target
//  2. the Merkle path recomputes the header's Merkle root
//
// It is a pure function of its inputs, so repeated calls agree.
func (v *HeaderValidator) VerifyInclusion(rawHeader []byte, proof *MerkleProof) (*Inclusion, error) {
	if proof == nil {
		return nil, fmt.Errorf("%w: proof", ErrNilParam)
	}

	header, blockHash, err := v.ValidateRaw(rawHeader)
	if err != nil {
		return nil, err
	}

	if _, err := VerifyMerkleProof(proof, header.MerkleRoot); err != nil {
		return nil, err
	}

	return &Inclusion{
		TxID:        proof.LeafHash,
		BlockHash:   blockHash,
		MerkleDepth: proof.TreeHeight,
		Header:      header,
	}, nil
}
