// Package tx selects, builds and signs P2PKH spends of wallet outputs.
package tx

import (
	"bytes"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"

	"github.com/bitfsorg/spvwallet-go/spv"
	"github.com/bitfsorg/spvwallet-go/wallet"
)

// UTXO is an unspent output owned by a derived address. Address is a lookup
// reference into the key chain; the UTXO does not own it.
type UTXO struct {
	TxID          chainhash.Hash // internal byte order
	Vout          uint32
	Address       *wallet.DerivedAddress
	Value         uint64
	Confirmations uint32
}

// Outpoint identifies a transaction output.
type Outpoint struct {
	TxID chainhash.Hash
	Vout uint32
}

// String renders txid:vout with the txid in display order.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", spv.DisplayHex(o.TxID), o.Vout)
}

func (o Outpoint) less(other Outpoint) bool {
	if c := bytes.Compare(o.TxID[:], other.TxID[:]); c != 0 {
		return c < 0
	}
	return o.Vout < other.Vout
}

// Outpoint returns the output reference of u.
func (u *UTXO) Outpoint() Outpoint {
	return Outpoint{TxID: u.TxID, Vout: u.Vout}
}

// UTXOsFromScan converts the unspent outputs of a scan. Confirmations are
// derived from the scan's tip height and are zero for mempool outputs.
func UTXOsFromScan(res *wallet.ScanResult) ([]*UTXO, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: scan result", ErrNilParam)
	}

	var out []*UTXO
	for _, a := range res.Addresses {
		for _, u := range a.Unspent {
			txid, err := spv.HashFromDisplayHex(u.TxHash)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidTxID, u.TxHash, err)
			}
			out = append(out, &UTXO{
				TxID:          txid,
				Vout:          u.TxPos,
				Address:       a.Address,
				Value:         u.Value,
				Confirmations: confirmations(u.Height, res.TipHeight),
			})
		}
	}
	return out, nil
}

func confirmations(height int64, tip uint32) uint32 {
	if height <= 0 || tip == 0 || int64(tip) < height {
		return 0
	}
	return uint32(int64(tip) - height + 1) //nolint:gosec // tip >= height
}

// TotalValue sums the values of utxos, saturating at math.MaxUint64.
func TotalValue(utxos []*UTXO) uint64 {
	var total uint64
	for _, u := range utxos {
		total = addSat(total, u.Value)
	}
	return total
}
