package watch

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/bitfsorg/spvwallet-go/network"
	"github.com/bitfsorg/spvwallet-go/spv"
	"github.com/bitfsorg/spvwallet-go/wallet"
)

// Locator is the part of the indexing server needed to find the block of a
// transaction.
type Locator interface {
	GetTransaction(ctx context.Context, txid string) ([]byte, error)
	ListConfirmedTransactions(ctx context.Context, scripthash string) ([]*network.HistoryItem, error)
}

// LocateTransaction returns the height of the block holding txid. The server
// has no txid-to-block index, so the transaction is fetched and looked up in
// the confirmed history of each of its output scripts in turn.
func LocateTransaction(ctx context.Context, src Locator, txid string) (uint32, error) {
	if src == nil {
		return 0, fmt.Errorf("%w: locator", ErrNilParam)
	}
	want, err := spv.HashFromDisplayHex(txid)
	if err != nil {
		return 0, fmt.Errorf("%w: txid: %w", ErrMalformedProof, err)
	}
	txid = spv.DisplayHex(want)

	raw, err := src.GetTransaction(ctx, txid)
	if err != nil {
		return 0, err
	}
	parsed, err := transaction.NewTransactionFromBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: transaction %s: %w", ErrMalformedProof, txid, err)
	}
	if got := *parsed.TxID(); got != want {
		return 0, fmt.Errorf("%w: server returned %s for %s", ErrMalformedProof, spv.DisplayHex(got), txid)
	}

	checked := make(map[string]struct{}, len(parsed.Outputs))
	for _, out := range parsed.Outputs {
		if out.LockingScript == nil || len(*out.LockingScript) == 0 {
			continue
		}
		sh := wallet.ScriptHash(*out.LockingScript)
		if _, dup := checked[sh]; dup {
			continue
		}
		checked[sh] = struct{}{}

		history, err := src.ListConfirmedTransactions(ctx, sh)
		if err != nil {
			return 0, err
		}
		for _, item := range history {
			if item != nil && item.Confirmed() && strings.EqualFold(item.TxHash, txid) {
				return uint32(item.Height), nil //nolint:gosec // confirmed heights are positive
			}
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotConfirmed, txid)
}

// PaidTo sums the outputs of the serialized transaction raw that pay to
// lockingScript.
func PaidTo(raw, lockingScript []byte) (uint64, error) {
	parsed, err := transaction.NewTransactionFromBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: transaction: %w", ErrMalformedProof, err)
	}
	var total uint64
	for _, out := range parsed.Outputs {
		if out.LockingScript != nil && bytes.Equal(*out.LockingScript, lockingScript) {
			total += out.Satoshis
		}
	}
	return total, nil
}
