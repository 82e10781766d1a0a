package tx

import (
	"encoding/hex"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/bitfsorg/spvwallet-go/spv"
)

// FinalizedTx is a fully signed transaction. It exposes copies only.
type FinalizedTx struct {
	raw         []byte
	txid        chainhash.Hash
	fee         uint64
	spent       []Outpoint
	outputs     []Output
	changeIndex int
}

func newFinalizedTx(sdkTx *transaction.Transaction, d *Draft) *FinalizedTx {
	f := &FinalizedTx{
		raw:         sdkTx.Bytes(),
		txid:        *sdkTx.TxID(),
		fee:         d.Fee,
		spent:       d.Outpoints(),
		changeIndex: d.ChangeIndex,
	}
	for _, out := range d.Outputs {
		f.outputs = append(f.outputs, Output{Value: out.Value, LockingScript: clone(out.LockingScript)})
	}
	return f
}

// Bytes returns the serialized transaction.
func (f *FinalizedTx) Bytes() []byte { return clone(f.raw) }

// Hex returns the serialized transaction in hex.
func (f *FinalizedTx) Hex() string { return hex.EncodeToString(f.raw) }

// Hash returns the transaction hash in internal byte order.
func (f *FinalizedTx) Hash() chainhash.Hash { return f.txid }

// TxID returns the transaction id in display order.
func (f *FinalizedTx) TxID() string { return spv.DisplayHex(f.txid) }

// Fee returns the fee paid in satoshis.
func (f *FinalizedTx) Fee() uint64 { return f.fee }

// Size returns the serialized size in bytes.
func (f *FinalizedTx) Size() int { return len(f.raw) }

// Spent returns the outpoints consumed by the transaction.
func (f *FinalizedTx) Spent() []Outpoint {
	return append([]Outpoint(nil), f.spent...)
}

// Outputs returns a copy of the outputs in transaction order.
func (f *FinalizedTx) Outputs() []Output {
	out := make([]Output, len(f.outputs))
	for i, o := range f.outputs {
		out[i] = Output{Value: o.Value, LockingScript: clone(o.LockingScript)}
	}
	return out
}

// Change returns the change output, if any.
func (f *FinalizedTx) Change() (Output, bool) {
	if f.changeIndex < 0 || f.changeIndex >= len(f.outputs) {
		return Output{}, false
	}
	o := f.outputs[f.changeIndex]
	return Output{Value: o.Value, LockingScript: clone(o.LockingScript)}, true
}
