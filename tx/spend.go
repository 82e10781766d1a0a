package tx

import (
	"context"
	"fmt"

	"github.com/bitfsorg/spvwallet-go/network"
	"github.com/bitfsorg/spvwallet-go/wallet"
)

// SpendRequest describes a single payment.
type SpendRequest struct {
	Destination   []byte // locking script
	Amount        uint64
	ChangeAddress *wallet.DerivedAddress
	FeeRate       uint64
}

// Spend selects, reserves, builds and signs a payment from pool. On any
// failure the reservation is released and the pool is unchanged. On success
// the caller owns the reservation and must Commit or Release it.
func Spend(pool *Pool, req SpendRequest, keys KeyLookup) (*FinalizedTx, *Reservation, error) {
	if pool == nil {
		return nil, nil, fmt.Errorf("%w: pool", ErrNilParam)
	}
	if req.Amount < DustThreshold {
		return nil, nil, fmt.Errorf("%w: %d < %d", ErrDustAmount, req.Amount, DustThreshold)
	}
	feeRate := req.FeeRate
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}

	selected, err := Select(pool.Available(), req.Amount, feeRate)
	if err != nil {
		return nil, nil, err
	}

	res, err := pool.Reserve(selected)
	if err != nil {
		return nil, nil, err
	}

	draft, err := Build(selected, req.Destination, req.Amount, req.ChangeAddress, feeRate)
	if err != nil {
		pool.Release(res)
		return nil, nil, err
	}

	signed, err := Sign(draft, keys)
	if err != nil {
		pool.Release(res)
		return nil, nil, err
	}
	return signed, res, nil
}

// Commit broadcasts ftx. The reserved outputs are marked spent when the
// broadcaster accepts it and released otherwise.
func Commit(ctx context.Context, b network.Broadcaster, pool *Pool, res *Reservation, ftx *FinalizedTx) (string, error) {
	if b == nil || pool == nil || ftx == nil {
		return "", fmt.Errorf("%w: broadcaster, pool and transaction are required", ErrNilParam)
	}
	txid, err := b.BroadcastTransaction(ctx, ftx.Bytes())
	if err != nil {
		pool.Release(res)
		return "", err
	}
	pool.MarkSpent(res)
	if txid == "" {
		txid = ftx.TxID()
	}
	return txid, nil
}
