package tx

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrInsufficientFunds indicates the available outputs cannot cover the
	// amount plus fee, even without change.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrDustAmount indicates a payment below the dust threshold.
	ErrDustAmount = errors.New("tx: amount below dust threshold")

	// ErrDuplicateInput indicates the same outpoint was offered twice.
	ErrDuplicateInput = errors.New("tx: duplicate input")

	// ErrUTXOReserved indicates an outpoint is already held by another draft.
	ErrUTXOReserved = errors.New("tx: utxo reserved by another draft")

	// ErrUTXONotFound indicates an outpoint is not tracked by the pool.
	ErrUTXONotFound = errors.New("tx: utxo not found")

	// ErrUnknownKey indicates no private key owns an input's previous output.
	ErrUnknownKey = errors.New("tx: unknown key")

	// ErrMalformedDraft indicates a draft that is empty or not fee-balanced.
	ErrMalformedDraft = errors.New("tx: malformed draft")

	// ErrNonCanonicalSignature indicates a signature that failed the strict
	// encoding self-check.
	ErrNonCanonicalSignature = errors.New("tx: non-canonical signature")

	// ErrSignatureInvalid indicates a produced signature did not verify.
	ErrSignatureInvalid = errors.New("tx: signature verification failed")

	// ErrInvalidTxID indicates a txid that is not 32 bytes of hex.
	ErrInvalidTxID = errors.New("tx: invalid txid")
)
