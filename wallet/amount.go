package wallet

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// SatoshisPerBSV is the number of satoshis in one BSV.
const SatoshisPerBSV = 100_000_000

// FormatBSV renders a satoshi amount as BSV with eight decimals.
func FormatBSV(sats uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sats), -8).StringFixed(8)
}

// ParseBSV converts a decimal BSV amount to satoshis. Negative values and
// amounts finer than one satoshi are rejected.
func ParseBSV(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	if d.Sign() < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}

	sats := d.Shift(8)
	if !sats.Equal(sats.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has more than 8 decimal places", ErrInvalidAmount, s)
	}
	if sats.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, s)
	}
	return uint64(sats.IntPart()), nil //nolint:gosec // bounds checked above
}
