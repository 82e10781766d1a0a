package wallet

import (
	"fmt"
	"sync"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"

	"github.com/bitfsorg/spvwallet-go/spv"
)

const (
	// BIP44 path constants.
	PurposeBIP44    = 44
	CoinTypeBitcoin = 0
	DefaultAccount  = 0

	// MaxAddressIndex is the largest non-hardened child index.
	MaxAddressIndex = 1<<31 - 1

	// Hardened is the BIP32 hardened offset.
	Hardened = 0x80000000
)

// KeyPair holds a derived key and its P2PKH address.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"`
	Address    *DerivedAddress
}

// KeyChain derives the receive keys m/44'/0'/0'/index from a seed. Derived
// keys are memoised so signing can look them up by public key hash.
type KeyChain struct {
	account *bip32.ExtendedKey
	network spv.Network

	mu     sync.RWMutex
	keys   map[uint32]*KeyPair
	byHash map[[20]byte]uint32
}

// NewKeyChain creates a key chain from a BIP39 seed.
func NewKeyChain(seed []byte, network spv.Network) (*KeyChain, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	params := &chaincfg.MainNet
	if network != spv.Mainnet {
		params = &chaincfg.TestNet
	}

	master, err := bip32.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	// m/44'/0'/0'
	account := master
	for _, step := range []uint32{PurposeBIP44, CoinTypeBitcoin, DefaultAccount} {
		account, err = account.Child(step + Hardened)
		if err != nil {
			return nil, fmt.Errorf("%w: account derivation: %w", ErrDerivationFailed, err)
		}
	}

	return &KeyChain{
		account: account,
		network: network,
		keys:    make(map[uint32]*KeyPair),
		byHash:  make(map[[20]byte]uint32),
	}, nil
}

// Network returns the network addresses are encoded for.
func (k *KeyChain) Network() spv.Network { return k.network }

// DeriveKey derives the key pair at m/44'/0'/0'/index.
func (k *KeyChain) DeriveKey(index uint32) (*KeyPair, error) {
	if index > MaxAddressIndex {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	k.mu.RLock()
	kp, ok := k.keys[index]
	k.mu.RUnlock()
	if ok {
		return kp, nil
	}

	child, err := k.account.Child(index)
	if err != nil {
		return nil, fmt.Errorf("%w: index %d: %w", ErrDerivationFailed, index, err)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}
	pub := priv.PubKey()

	addr, err := NewDerivedAddress(index, pub, k.network)
	if err != nil {
		return nil, err
	}

	kp = &KeyPair{
		PrivateKey: priv,
		PublicKey:  pub,
		Path:       fmt.Sprintf("m/44'/0'/0'/%d", index),
		Address:    addr,
	}

	k.mu.Lock()
	k.keys[index] = kp
	k.byHash[addr.PubKeyHash] = index
	k.mu.Unlock()
	return kp, nil
}

// Address returns the P2PKH address at index.
func (k *KeyChain) Address(index uint32) (*DerivedAddress, error) {
	kp, err := k.DeriveKey(index)
	if err != nil {
		return nil, err
	}
	return kp.Address, nil
}

// Addresses derives indexes 0..count-1.
func (k *KeyChain) Addresses(count int) ([]*DerivedAddress, error) {
	out := make([]*DerivedAddress, 0, count)
	for i := 0; i < count; i++ {
		addr, err := k.Address(uint32(i)) //nolint:gosec // count is bounded by scan depth
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// PrivateKey returns the key owning pubKeyHash. Only keys that have already
// been derived are searched.
func (k *KeyChain) PrivateKey(pubKeyHash [20]byte) (*ec.PrivateKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	index, ok := k.byHash[pubKeyHash]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrKeyNotFound, pubKeyHash)
	}
	return k.keys[index].PrivateKey, nil
}
