package watch

import (
	"errors"

	"github.com/bitfsorg/spvwallet-go/spv"
)

var (
	// ErrUnknownMode indicates a mode name other than fast or full.
	ErrUnknownMode = errors.New("watch: unknown mode")

	// ErrInvalidConfig indicates an unusable watcher configuration.
	ErrInvalidConfig = errors.New("watch: invalid config")

	// ErrAlreadyRunning indicates Run was called on a watcher whose loop is active.
	ErrAlreadyRunning = errors.New("watch: already running")

	// ErrMalformedProof indicates the server's Merkle branch could not be decoded
	// or answers for another block.
	ErrMalformedProof = errors.New("watch: malformed merkle branch")

	// ErrNotConfirmed indicates the server places a transaction in no block.
	ErrNotConfirmed = errors.New("watch: transaction not confirmed")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("watch: required parameter is nil")
)

// IsRejection reports whether err is a cryptographic verification failure.
// Such a transaction is rejected for good; any other error leaves it pending.
func IsRejection(err error) bool {
	return errors.Is(err, spv.ErrInsufficientWork) || errors.Is(err, spv.ErrMerkleRootMismatch)
}
