package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"

	"github.com/bitfsorg/spvwallet-go/spv"
)

// DerivedAddress is a P2PKH address produced by the key chain.
type DerivedAddress struct {
	Index        uint32
	PubKeyHash   [20]byte
	ScriptPubKey []byte
	Address      string
}

// NewDerivedAddress builds the P2PKH address of pub.
func NewDerivedAddress(index uint32, pub *ec.PublicKey, network spv.Network) (*DerivedAddress, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: public key", ErrNilParam)
	}
	addr, err := script.NewAddressFromPublicKey(pub, network == spv.Mainnet)
	if err != nil {
		return nil, fmt.Errorf("%w: address from pubkey: %w", ErrDerivationFailed, err)
	}
	lock, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: P2PKH lock script: %w", ErrDerivationFailed, err)
	}

	d := &DerivedAddress{
		Index:        index,
		ScriptPubKey: []byte(*lock),
		Address:      addr.AddressString,
	}
	copy(d.PubKeyHash[:], addr.PublicKeyHash)
	return d, nil
}

// ScriptHash is the ElectrumX key of the address: SHA256 of the locking
// script, byte-reversed, in hex.
func (d *DerivedAddress) ScriptHash() string {
	return ScriptHash(d.ScriptPubKey)
}

func (d *DerivedAddress) String() string { return d.Address }

// ScriptHash returns the ElectrumX scripthash of a locking script.
func ScriptHash(scriptPubKey []byte) string {
	sum := sha256.Sum256(scriptPubKey)
	return hex.EncodeToString(spv.ReverseBytes(sum[:]))
}

// ScriptFromAddress decodes a Base58Check P2PKH address into its locking script.
func ScriptFromAddress(address string) ([]byte, error) {
	addr, err := script.NewAddressFromString(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, address, err)
	}
	lock, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, address, err)
	}
	return []byte(*lock), nil
}
