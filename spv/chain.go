package spv

import (
	"fmt"
	"math/big"
)

// two256 is 2^256, used for work calculations.
var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// WorkForBits returns the expected number of hashes to meet the compact
// target: 2^256 / (target + 1). Unusable encodings contribute zero work.
func WorkForBits(bits uint32) *big.Int {
	target, ok := CompactToTarget(bits)
	if !ok || target.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Div(two256, new(big.Int).Add(target, big.NewInt(1)))
}

// VerifyHeaderLink checks that next builds on prev.
func VerifyHeaderLink(prev, next *BlockHeader) error {
	if prev == nil || next == nil {
		return fmt.Errorf("%w: header", ErrNilParam)
	}
	if next.PrevHash != prev.Hash() {
		return fmt.Errorf("%w: prev hash %s does not match %s",
			ErrChainBroken, DisplayHex(next.PrevHash), DisplayHex(prev.Hash()))
	}
	return nil
}

// VerifyHeaderChain validates every header in ascending order and checks that
// each one links to its predecessor. It returns the cumulative work.
func (v *HeaderValidator) VerifyHeaderChain(headers []*BlockHeader) (*big.Int, error) {
	work := new(big.Int)
	for i, h := range headers {
		if _, err := v.Validate(h); err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
		if i > 0 {
			if err := VerifyHeaderLink(headers[i-1], h); err != nil {
				return nil, fmt.Errorf("header %d: %w", i, err)
			}
		}
		work.Add(work, WorkForBits(h.Bits))
	}
	return work, nil
}
