package tx

import (
	"math"
	"math/bits"
)

const (
	// BaseTxSize covers version, locktime and the two count varints.
	BaseTxSize = 10
	// P2PKHInputSize is a P2PKH input with a 72-byte signature push.
	P2PKHInputSize = 148
	// P2PKHOutputSize is a P2PKH output.
	P2PKHOutputSize = 34

	// DustThreshold is the smallest output value the network relays.
	DustThreshold = 546

	// DefaultFeeRate is the fee rate in satoshis per byte.
	DefaultFeeRate = 1

	// DefaultSequence is the final input sequence.
	DefaultSequence = 0xffffffff
	// DefaultVersion is the transaction version.
	DefaultVersion = 1
)

// EstimateSize returns the serialized size of a P2PKH transaction.
func EstimateSize(inputs, outputs int) uint64 {
	return uint64(BaseTxSize + P2PKHInputSize*inputs + P2PKHOutputSize*outputs) //nolint:gosec // counts are small
}

// EstimateFee returns EstimateSize times feeRate, saturating at math.MaxUint64.
func EstimateFee(inputs, outputs int, feeRate uint64) uint64 {
	hi, lo := bits.Mul64(EstimateSize(inputs, outputs), feeRate)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// covers reports whether have pays want plus fee. It never overflows.
func covers(have, want, fee uint64) bool {
	return have >= fee && have-fee >= want
}

// addSat adds satoshi amounts, saturating at math.MaxUint64.
func addSat(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}
