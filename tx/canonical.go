package tx

import (
	"math/big"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

var (
	curveOrder = new(big.Int).Set(ec.S256().Params().N)
	halfOrder  = new(big.Int).Rsh(curveOrder, 1)
)

// normalizeLowS replaces s with N-s when s is in the upper half of the order.
func normalizeLowS(sig *ec.Signature) {
	if sig.S.Cmp(halfOrder) > 0 {
		sig.S = new(big.Int).Sub(curveOrder, sig.S)
	}
}

// IsLowS reports whether s <= N/2.
func IsLowS(s *big.Int) bool {
	return s.Sign() > 0 && s.Cmp(halfOrder) <= 0
}

// IsCanonicalSignature reports whether der (no sighash byte) is a strict DER
// ECDSA signature with minimally encoded positive integers and a low s.
func IsCanonicalSignature(der []byte) bool {
	r, s, ok := parseStrictDER(der)
	if !ok {
		return false
	}
	return r.Sign() > 0 && r.Cmp(curveOrder) < 0 && IsLowS(s)
}

// parseStrictDER decodes 0x30 len 0x02 lenR R 0x02 lenS S, rejecting any
// padding, negative values or trailing bytes.
func parseStrictDER(der []byte) (r, s *big.Int, ok bool) {
	if len(der) < 8 || len(der) > 72 {
		return nil, nil, false
	}
	if der[0] != 0x30 || int(der[1]) != len(der)-2 {
		return nil, nil, false
	}

	lenR := int(der[3])
	if 5+lenR >= len(der) {
		return nil, nil, false
	}
	lenS := int(der[5+lenR])
	if lenR+lenS+6 != len(der) {
		return nil, nil, false
	}

	if der[2] != 0x02 || lenR == 0 || der[4]&0x80 != 0 {
		return nil, nil, false
	}
	if lenR > 1 && der[4] == 0x00 && der[5]&0x80 == 0 {
		return nil, nil, false
	}

	if der[lenR+4] != 0x02 || lenS == 0 || der[lenR+6]&0x80 != 0 {
		return nil, nil, false
	}
	if lenS > 1 && der[lenR+6] == 0x00 && der[lenR+7]&0x80 == 0 {
		return nil, nil, false
	}

	r = new(big.Int).SetBytes(der[4 : 4+lenR])
	s = new(big.Int).SetBytes(der[lenR+6:])
	return r, s, true
}
