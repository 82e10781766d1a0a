package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("wallet: entropy bits must be 128 or 256")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrIndexOutOfRange indicates an address index in the hardened range.
	ErrIndexOutOfRange = errors.New("wallet: address index exceeds maximum (2^31-1)")

	// ErrKeyNotFound indicates no derived key matches a public key hash.
	ErrKeyNotFound = errors.New("wallet: key not found")

	// ErrInvalidAddress indicates a destination address failed to decode.
	ErrInvalidAddress = errors.New("wallet: invalid address")

	// ErrInvalidAmount indicates a BSV amount string is malformed, negative or
	// finer than one satoshi.
	ErrInvalidAmount = errors.New("wallet: invalid amount")

	// ErrDecryptionFailed indicates wrong passcode or corrupted seed file.
	ErrDecryptionFailed = errors.New("wallet: seed decryption failed (wrong passcode or corrupted data)")

	// ErrUnsupportedFormat indicates a seed file with an unknown header.
	ErrUnsupportedFormat = errors.New("wallet: unsupported seed file format")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("wallet: required parameter is nil")
)
