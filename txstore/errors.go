package txstore

import "errors"

var (
	// ErrNotFound indicates no transaction is stored under the txid.
	ErrNotFound = errors.New("txstore: transaction not found")

	// ErrTxIDMismatch indicates the raw bytes do not hash to the given txid.
	ErrTxIDMismatch = errors.New("txstore: raw transaction does not match txid")

	// ErrCorrupt indicates an stored file is not the transaction it is named after.
	ErrCorrupt = errors.New("txstore: stored transaction is corrupt")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("txstore: I/O failure")

	// ErrEmptyContent indicates an attempt to store an empty transaction.
	ErrEmptyContent = errors.New("txstore: transaction is empty")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("txstore: invalid base directory")
)
