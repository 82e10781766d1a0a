package tx

import (
	"fmt"
	"sort"
)

// Select picks outputs greedily, largest first, until they cover target plus
// the fee of a two-output transaction. When no prefix leaves room for change,
// the shortest prefix that covers target plus a change-less fee is returned
// and the builder folds the remainder into the fee. Small trailing outputs
// that cost more to spend than they add are never required.
//
// Duplicate outpoints in available are counted once. Ties in value are broken
// by outpoint so the result is deterministic.
func Select(available []*UTXO, target, feeRate uint64) ([]*UTXO, error) {
	candidates := make([]*UTXO, 0, len(available))
	seen := make(map[Outpoint]struct{}, len(available))
	for _, u := range available {
		if u == nil {
			continue
		}
		op := u.Outpoint()
		if _, dup := seen[op]; dup {
			continue
		}
		seen[op] = struct{}{}
		candidates = append(candidates, u)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Value != candidates[j].Value {
			return candidates[i].Value > candidates[j].Value
		}
		return candidates[i].Outpoint().less(candidates[j].Outpoint())
	})

	var sum uint64
	for i, u := range candidates {
		sum = addSat(sum, u.Value)
		if covers(sum, target, EstimateFee(i+1, 2, feeRate)) {
			return candidates[:i+1], nil
		}
	}

	var prefix uint64
	for i, u := range candidates {
		prefix = addSat(prefix, u.Value)
		if covers(prefix, target, EstimateFee(i+1, 1, feeRate)) {
			return candidates[:i+1], nil
		}
	}
	n := len(candidates)
	return nil, fmt.Errorf("%w: have %d sat in %d outputs, need %d plus fee",
		ErrInsufficientFunds, sum, n, target)
}
