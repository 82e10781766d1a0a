package spv

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// BlockHeaderSize is the size of a serialized BSV block header in bytes.
const BlockHeaderSize = 80

// BlockHeader represents a BSV block header (80 bytes serialized).
// Its hash is always derived from the serialized fields.
type BlockHeader struct {
	Version    int32          // 4 bytes, little-endian
	PrevHash   chainhash.Hash // 32 bytes, internal order
	MerkleRoot chainhash.Hash // 32 bytes, internal order
	Timestamp  uint32         // 4 bytes, little-endian (Unix timestamp)
	Bits       uint32         // 4 bytes, little-endian (compact target)
	Nonce      uint32         // 4 bytes, little-endian
}

// Serialize encodes the header in BSV wire format.
//
// Layout: version(4) | prevHash(32) | merkleRoot(32) | timestamp(4) | bits(4) | nonce(4)
func (h *BlockHeader) Serialize() []byte {
	buf := make([]byte, BlockHeaderSize)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevHash[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)

	return buf
}

// Hash returns the double-SHA256 of the serialized header in internal order.
func (h *BlockHeader) Hash() chainhash.Hash {
	return DoubleHash(h.Serialize())
}

// ParseHeader decodes exactly 80 bytes into a BlockHeader.
func ParseHeader(data []byte) (*BlockHeader, error) {
	if len(data) != BlockHeaderSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedHeader, BlockHeaderSize, len(data))
	}

	h := &BlockHeader{
		Version:   int32(binary.LittleEndian.Uint32(data[0:4])),
		Timestamp: binary.LittleEndian.Uint32(data[68:72]),
		Bits:      binary.LittleEndian.Uint32(data[72:76]),
		Nonce:     binary.LittleEndian.Uint32(data[76:80]),
	}
	copy(h.PrevHash[:], data[4:36])
	copy(h.MerkleRoot[:], data[36:68])

	return h, nil
}

// CompactToTarget decodes a compact (nBits) value into its 256-bit target:
// target = mantissa * 256^(exponent-3). The second return value reports
// whether the encoding is usable: a set sign bit or a target that overflows
// 256 bits is not.
func CompactToTarget(bits uint32) (*big.Int, bool) {
	exponent := bits >> 24
	mantissa := bits & 0x007fffff

	if bits&0x00800000 != 0 && mantissa != 0 {
		return new(big.Int), false
	}
	if mantissa != 0 && (exponent > 34 ||
		(mantissa > 0xff && exponent > 33) ||
		(mantissa > 0xffff && exponent > 32)) {
		return new(big.Int), false
	}

	target := big.NewInt(int64(mantissa))
	if exponent <= 3 {
		target.Rsh(target, uint(8*(3-exponent)))
	} else {
		target.Lsh(target, uint(8*(exponent-3)))
	}
	return target, true
}

// HashToBig interprets a header hash as a 256-bit unsigned integer. The
// digest is read in display order, most significant byte first, which is how
// block hashes acquire their leading zeros.
func HashToBig(h chainhash.Hash) *big.Int {
	return new(big.Int).SetBytes(ReverseBytes(h[:]))
}

// Network identifies the BSV network whose proof-of-work limit applies.
type Network int

const (
	// Mainnet is the BSV production network.
	Mainnet Network = iota
	// Testnet is the BSV test network.
	Testnet
	// Regtest is the BSV regression test network.
	Regtest
)

// Easiest allowed nBits per network.
const (
	MainnetPowLimitBits uint32 = 0x1d00ffff
	TestnetPowLimitBits uint32 = 0x1d00ffff
	RegtestPowLimitBits uint32 = 0x207fffff
)

// ParseNetwork maps a configuration name to a Network.
func ParseNetwork(name string) (Network, error) {
	switch name {
	case "mainnet", "main", "":
		return Mainnet, nil
	case "testnet", "test":
		return Testnet, nil
	case "regtest":
		return Regtest, nil
	default:
		return Mainnet, fmt.Errorf("spv: unknown network %q", name)
	}
}

// PowLimit returns the largest target a header on net may declare.
func (n Network) PowLimit() *big.Int {
	bits := MainnetPowLimitBits
	switch n {
	case Testnet:
		bits = TestnetPowLimitBits
	case Regtest:
		bits = RegtestPowLimitBits
	}
	target, _ := CompactToTarget(bits)
	return target
}

func (n Network) String() string {
	switch n {
	case Testnet:
		return "testnet"
	case Regtest:
		return "regtest"
	default:
		return "mainnet"
	}
}

// HeaderValidator checks block headers against a network's proof-of-work limit.
// It holds no mutable state and is safe for concurrent use.
type HeaderValidator struct {
	powLimit *big.Int
}

// NewHeaderValidator returns a validator for the given network.
func NewHeaderValidator(net Network) *HeaderValidator {
	return &HeaderValidator{powLimit: net.PowLimit()}
}

// Validate computes the header hash and checks that it is strictly below the
// target encoded in Bits. It returns the block hash in internal order.
func (v *HeaderValidator) Validate(h *BlockHeader) (chainhash.Hash, error) {
	if h == nil {
		return chainhash.Hash{}, fmt.Errorf("%w: header", ErrNilParam)
	}

	target, ok := CompactToTarget(h.Bits)
	if !ok || target.Sign() <= 0 {
		return chainhash.Hash{}, fmt.Errorf("%w: unusable bits 0x%08x", ErrInsufficientWork, h.Bits)
	}
	if target.Cmp(v.powLimit) > 0 {
		return chainhash.Hash{}, fmt.Errorf("%w: bits 0x%08x above network limit", ErrInsufficientWork, h.Bits)
	}

	hash := h.Hash()
	if HashToBig(hash).Cmp(target) >= 0 {
		return chainhash.Hash{}, fmt.Errorf("%w: hash %s not below target", ErrInsufficientWork, DisplayHex(hash))
	}
	return hash, nil
}

// ValidateRaw parses and validates a serialized header.
func (v *HeaderValidator) ValidateRaw(raw []byte) (*BlockHeader, chainhash.Hash, error) {
	h, err := ParseHeader(raw)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}
	hash, err := v.Validate(h)
	if err != nil {
		return nil, chainhash.Hash{}, err
	}
	return h, hash, nil
}
