// Package wallet holds the key material of a single-account BSV wallet:
// BIP39 mnemonics, the BIP44 key chain m/44'/0'/0'/i, derived P2PKH
// addresses and the address scanner.
package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	"golang.org/x/crypto/argon2"
)

const (
	// Mnemonic entropy sizes.
	Mnemonic12Words = 128
	Mnemonic24Words = 256

	saltLen  = 16
	nonceLen = 12
)

// seedFileMagic prefixes every encrypted mnemonic file.
var seedFileMagic = []byte("SPVW")

const seedFileVersion = 1

// KDFParams are the Argon2id cost parameters stored in a seed file header.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams is the cost used for new seed files.
var DefaultKDFParams = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// header: magic(4) | version(1) | time(4) | memory(4) | threads(1) | salt(16) | nonce(12)
const headerLen = 4 + 1 + 4 + 4 + 1 + saltLen + nonceLen

// NewMnemonic creates a BIP39 mnemonic with the given entropy size.
func NewMnemonic(entropyBits int) (string, error) {
	if entropyBits != Mnemonic12Words && entropyBits != Mnemonic24Words {
		return "", ErrInvalidEntropy
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("wallet: failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("wallet: failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// NormalizeMnemonic lower-cases and collapses whitespace.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic checks if a mnemonic string is valid BIP39.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}

// SeedFromMnemonic derives the 64-byte BIP39 seed. The passphrase may be empty.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	return seed, nil
}

// EncryptMnemonic seals a mnemonic under passcode with Argon2id and
// AES-256-GCM using DefaultKDFParams.
func EncryptMnemonic(mnemonic, passcode string) ([]byte, error) {
	return EncryptMnemonicWithParams(mnemonic, passcode, DefaultKDFParams)
}

// EncryptMnemonicWithParams is EncryptMnemonic with explicit KDF cost. The
// whole header is authenticated as GCM additional data.
func EncryptMnemonicWithParams(mnemonic, passcode string, p KDFParams) ([]byte, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return nil, fmt.Errorf("wallet: invalid KDF parameters %+v", p)
	}

	header := make([]byte, headerLen)
	copy(header, seedFileMagic)
	header[4] = seedFileVersion
	binary.BigEndian.PutUint32(header[5:], p.Time)
	binary.BigEndian.PutUint32(header[9:], p.Memory)
	header[13] = p.Threads
	salt := header[14 : 14+saltLen]
	nonce := header[14+saltLen:]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate salt: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate nonce: %w", err)
	}

	gcm, err := newSeedCipher(passcode, salt, p)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerLen, headerLen+len(mnemonic)+gcm.Overhead())
	copy(out, header)
	return gcm.Seal(out, nonce, []byte(mnemonic), header), nil
}

// DecryptMnemonic opens a file produced by EncryptMnemonic.
func DecryptMnemonic(data []byte, passcode string) (string, error) {
	if len(data) < headerLen || !bytes.Equal(data[:4], seedFileMagic) {
		return "", ErrUnsupportedFormat
	}
	if data[4] != seedFileVersion {
		return "", fmt.Errorf("%w: version %d", ErrUnsupportedFormat, data[4])
	}

	header := data[:headerLen]
	p := KDFParams{
		Time:    binary.BigEndian.Uint32(header[5:]),
		Memory:  binary.BigEndian.Uint32(header[9:]),
		Threads: header[13],
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return "", ErrUnsupportedFormat
	}
	salt := header[14 : 14+saltLen]
	nonce := header[14+saltLen:]

	gcm, err := newSeedCipher(passcode, salt, p)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, data[headerLen:], header)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	mnemonic := string(plaintext)
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", ErrDecryptionFailed
	}
	return mnemonic, nil
}

func newSeedCipher(passcode string, salt []byte, p KDFParams) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passcode), salt, p.Time, p.Memory, p.Threads, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLen)
	if err != nil {
		return nil, fmt.Errorf("wallet: GCM creation failed: %w", err)
	}
	return gcm, nil
}
