package tx

import (
	"fmt"

	"github.com/bitfsorg/spvwallet-go/wallet"
)

// SpendableInput is a draft input. UnlockingScript is empty until signed.
type SpendableInput struct {
	UTXO            *UTXO
	UnlockingScript []byte
	Sequence        uint32
}

// Output is a draft output.
type Output struct {
	Value         uint64
	LockingScript []byte
}

// Draft is an unsigned transaction. A draft has a single owner; it is not
// safe for concurrent use.
type Draft struct {
	Version  uint32
	LockTime uint32
	Inputs   []*SpendableInput
	Outputs  []*Output
	Fee      uint64
	// ChangeIndex is the index of the change output, -1 when change was
	// folded into the fee.
	ChangeIndex int
}

// InputTotal sums the input values.
func (d *Draft) InputTotal() uint64 {
	var total uint64
	for _, in := range d.Inputs {
		if in != nil && in.UTXO != nil {
			total = addSat(total, in.UTXO.Value)
		}
	}
	return total
}

// OutputTotal sums the output values.
func (d *Draft) OutputTotal() uint64 {
	var total uint64
	for _, out := range d.Outputs {
		if out != nil {
			total = addSat(total, out.Value)
		}
	}
	return total
}

// Outpoints lists the outputs the draft spends.
func (d *Draft) Outpoints() []Outpoint {
	ops := make([]Outpoint, 0, len(d.Inputs))
	for _, in := range d.Inputs {
		if in != nil && in.UTXO != nil {
			ops = append(ops, in.UTXO.Outpoint())
		}
	}
	return ops
}

// Validate checks that the draft is well formed and that inputs cover
// outputs plus the declared fee.
func (d *Draft) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: draft", ErrNilParam)
	}
	if len(d.Inputs) == 0 || len(d.Outputs) == 0 {
		return fmt.Errorf("%w: %d inputs, %d outputs", ErrMalformedDraft, len(d.Inputs), len(d.Outputs))
	}
	seen := make(map[Outpoint]struct{}, len(d.Inputs))
	for i, in := range d.Inputs {
		if in == nil || in.UTXO == nil || in.UTXO.Address == nil {
			return fmt.Errorf("%w: input %d has no owned output", ErrMalformedDraft, i)
		}
		op := in.UTXO.Outpoint()
		if _, dup := seen[op]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateInput, op)
		}
		seen[op] = struct{}{}
	}
	for i, out := range d.Outputs {
		if out == nil || len(out.LockingScript) == 0 {
			return fmt.Errorf("%w: output %d has no locking script", ErrMalformedDraft, i)
		}
	}
	in, out := d.InputTotal(), d.OutputTotal()
	if in < out || in-out < d.Fee {
		return fmt.Errorf("%w: inputs %d < outputs %d + fee %d", ErrMalformedDraft, in, out, d.Fee)
	}
	return nil
}

// Build assembles a payment of amount to destination from selected. The
// destination output comes first; change to changeAddr follows only when it
// would be at least DustThreshold, otherwise it is left to the miner.
func Build(selected []*UTXO, destination []byte, amount uint64, changeAddr *wallet.DerivedAddress, feeRate uint64) (*Draft, error) {
	if len(destination) == 0 {
		return nil, fmt.Errorf("%w: empty destination script", ErrMalformedDraft)
	}
	if changeAddr == nil {
		return nil, fmt.Errorf("%w: change address", ErrNilParam)
	}
	if amount < DustThreshold {
		return nil, fmt.Errorf("%w: %d < %d", ErrDustAmount, amount, DustThreshold)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no inputs selected", ErrInsufficientFunds)
	}

	d := &Draft{
		Version:     DefaultVersion,
		ChangeIndex: -1,
	}
	seen := make(map[Outpoint]struct{}, len(selected))
	for _, u := range selected {
		if u == nil {
			return nil, fmt.Errorf("%w: utxo", ErrNilParam)
		}
		if u.Address == nil {
			return nil, fmt.Errorf("%w: utxo %s has no address", ErrMalformedDraft, u.Outpoint())
		}
		op := u.Outpoint()
		if _, dup := seen[op]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInput, op)
		}
		seen[op] = struct{}{}
		d.Inputs = append(d.Inputs, &SpendableInput{UTXO: u, Sequence: DefaultSequence})
	}

	total := d.InputTotal()
	n := len(d.Inputs)
	feeNoChange := EstimateFee(n, 1, feeRate)
	if !covers(total, amount, feeNoChange) {
		return nil, fmt.Errorf("%w: inputs %d < amount %d + fee %d", ErrInsufficientFunds, total, amount, feeNoChange)
	}

	d.Outputs = append(d.Outputs, &Output{Value: amount, LockingScript: clone(destination)})

	feeWithChange := EstimateFee(n, 2, feeRate)
	if covers(total, amount, feeWithChange) && total-amount-feeWithChange >= DustThreshold {
		d.Outputs = append(d.Outputs, &Output{
			Value:         total - amount - feeWithChange,
			LockingScript: clone(changeAddr.ScriptPubKey),
		})
		d.ChangeIndex = 1
		d.Fee = feeWithChange
	} else {
		d.Fee = total - amount
	}
	return d, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
