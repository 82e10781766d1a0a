// Package spv implements simplified payment verification primitives for BSV:
// the double-SHA256 hash, 80-byte block header parsing with proof-of-work
// checks, and Merkle inclusion proofs.
//
// Hashes are held in internal byte order (the raw digest). Indexing servers and
// block explorers print them byte-reversed; use HashFromDisplayHex and
// DisplayHex at those boundaries.
package spv

import (
	"encoding/hex"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
)

// HashSize is the size of a SHA256 digest in bytes.
const HashSize = chainhash.HashSize

// DoubleHash computes SHA256(SHA256(data)).
func DoubleHash(data []byte) chainhash.Hash {
	return chainhash.DoubleHashH(data)
}

// DoubleHashConcat hashes the 64-byte concatenation left || right, the node
// combination rule of a Merkle tree.
func DoubleHashConcat(left, right chainhash.Hash) chainhash.Hash {
	var buf [2 * HashSize]byte
	copy(buf[:HashSize], left[:])
	copy(buf[HashSize:], right[:])
	return DoubleHash(buf[:])
}

// Hash160 computes RIPEMD160(SHA256(data)), the public key hash of P2PKH scripts.
func Hash160(data []byte) []byte {
	return bsvhash.Hash160(data)
}

// ReverseBytes returns a reversed copy of b.
func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// HashFromDisplayHex parses a byte-reversed hex hash (txid, block hash or
// Merkle sibling as printed by servers) into internal byte order.
func HashFromDisplayHex(s string) (chainhash.Hash, error) {
	var h chainhash.Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	if len(raw) != HashSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHash, HashSize, len(raw))
	}
	copy(h[:], ReverseBytes(raw))
	return h, nil
}

// DisplayHex renders an internal-order hash the way servers print it.
func DisplayHex(h chainhash.Hash) string {
	return hex.EncodeToString(ReverseBytes(h[:]))
}
