package tx

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/spvwallet-go/network"
	"github.com/bitfsorg/spvwallet-go/spv"
	"github.com/bitfsorg/spvwallet-go/wallet"
)

const abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testKeyChain(t testing.TB) *wallet.KeyChain {
	t.Helper()
	seed, err := wallet.SeedFromMnemonic(abandonMnemonic, "")
	require.NoError(t, err)
	kc, err := wallet.NewKeyChain(seed, spv.Mainnet)
	require.NoError(t, err)
	return kc
}

func testAddress(t testing.TB, kc *wallet.KeyChain, index uint32) *wallet.DerivedAddress {
	t.Helper()
	addr, err := kc.Address(index)
	require.NoError(t, err)
	return addr
}

func makeUTXO(seed byte, vout uint32, value uint64, addr *wallet.DerivedAddress) *UTXO {
	return &UTXO{TxID: spv.DoubleHash([]byte{seed}), Vout: vout, Address: addr, Value: value, Confirmations: 6}
}

// destinationScript is the locking script of an address outside the key chain.
var destinationScript = append(append([]byte{0x76, 0xa9, 0x14}, make([]byte, 20)...), 0x88, 0xac)

func TestEstimateFee(t *testing.T) {
	assert.Equal(t, uint64(226), EstimateSize(1, 2))
	assert.Equal(t, uint64(192), EstimateSize(1, 1))
	assert.Equal(t, uint64(374), EstimateSize(2, 2))
	assert.Equal(t, uint64(452), EstimateFee(1, 2, 2))
	assert.Zero(t, EstimateFee(3, 2, 0))
}

// --- Select ---

func TestSelectGreedyDescending(t *testing.T) {
	addr := &wallet.DerivedAddress{}
	small := makeUTXO(1, 0, 1000, addr)
	big := makeUTXO(2, 0, 50000, addr)
	mid := makeUTXO(3, 0, 20000, addr)

	got, err := Select([]*UTXO{small, big, mid}, 30000, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Same(t, big, got[0])

	got, err = Select([]*UTXO{small, big, mid}, 60000, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Same(t, big, got[0])
	assert.Same(t, mid, got[1])
}

func TestSelectExactMatchFailsOnFee(t *testing.T) {
	only := makeUTXO(1, 0, 10000, &wallet.DerivedAddress{})
	_, err := Select([]*UTXO{only}, 10000, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = Select(nil, 1, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectFallsBackToNoChange(t *testing.T) {
	only := makeUTXO(1, 0, 10000, &wallet.DerivedAddress{})

	// Enough for one output but not for two.
	got, err := Select([]*UTXO{only}, 10000-EstimateFee(1, 1, 1), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = Select([]*UTXO{only}, 10000-EstimateFee(1, 1, 1)+1, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectDeterministicTies(t *testing.T) {
	addr := &wallet.DerivedAddress{}
	a := makeUTXO(1, 1, 5000, addr)
	b := makeUTXO(1, 0, 5000, addr)
	c := makeUTXO(9, 0, 5000, addr)

	first, err := Select([]*UTXO{a, b, c}, 4000, 1)
	require.NoError(t, err)
	second, err := Select([]*UTXO{c, a, b}, 4000, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, first[0].Outpoint(), second[0].Outpoint())
}

func TestSelectCountsDuplicatesOnce(t *testing.T) {
	u := makeUTXO(1, 0, 6000, &wallet.DerivedAddress{})
	_, err := Select([]*UTXO{u, u, u}, 10000, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectNeverUnderfunds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	addr := &wallet.DerivedAddress{}

	for round := 0; round < 200; round++ {
		var utxos []*UTXO
		for i := 0; i < 1+rng.Intn(12); i++ {
			utxos = append(utxos, makeUTXO(byte(round), uint32(i), uint64(600+rng.Intn(200000)), addr)) //nolint:gosec
		}
		target := uint64(546 + rng.Intn(400000)) //nolint:gosec
		rate := uint64(1 + rng.Intn(3))          //nolint:gosec

		got, err := Select(utxos, target, rate)
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientFunds)
			assert.Less(t, TotalValue(utxos), target+EstimateFee(len(utxos), 1, rate))
			continue
		}
		assert.GreaterOrEqual(t, TotalValue(got), target+EstimateFee(len(got), 1, rate))
	}
}

func TestSelectRejectsAmountsNearMaxUint64(t *testing.T) {
	only := makeUTXO(1, 0, 1000, &wallet.DerivedAddress{})

	_, err := Select([]*UTXO{only}, math.MaxUint64-100, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = Select([]*UTXO{only}, 600, math.MaxUint64)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	huge := makeUTXO(2, 0, math.MaxUint64, &wallet.DerivedAddress{})
	_, err = Select([]*UTXO{huge, only}, math.MaxUint64-100, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestEstimateFeeSaturates(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), EstimateFee(1, 1, math.MaxUint64))
	assert.Equal(t, EstimateSize(2, 2)*3, EstimateFee(2, 2, 3))
}

func TestSelectSkipsDustThatCostsMoreThanItAdds(t *testing.T) {
	addr := &wallet.DerivedAddress{}
	covering := makeUTXO(1, 0, 1000, addr)
	dust := makeUTXO(2, 0, 10, addr)

	// 1000 covers 808 plus a one-input change-less fee of 192; adding the
	// 10-sat output would raise the fee by 148.
	got, err := Select([]*UTXO{covering}, 808, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = Select([]*UTXO{dust, covering}, 808, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, covering.Outpoint(), got[0].Outpoint())

	kc := testKeyChain(t)
	draft, err := Build(got, destinationScript, 808, testAddress(t, kc, 0), 1)
	require.NoError(t, err)
	assert.Equal(t, -1, draft.ChangeIndex)
	assert.Equal(t, EstimateFee(1, 1, 1), draft.Fee)
	assert.NoError(t, draft.Validate())
}

// --- Build ---

func TestScenarioSingleInputWithChange(t *testing.T) {
	kc := testKeyChain(t)
	addr0 := testAddress(t, kc, 0)
	utxo := makeUTXO(7, 0, 100000, addr0)

	selected, err := Select([]*UTXO{utxo}, 50000, 1)
	require.NoError(t, err)
	require.Len(t, selected, 1)

	draft, err := Build(selected, destinationScript, 50000, addr0, 1)
	require.NoError(t, err)
	require.Len(t, draft.Inputs, 1)
	require.Len(t, draft.Outputs, 2)

	fee := EstimateFee(1, 2, 1)
	assert.Equal(t, fee, draft.Fee)
	assert.Equal(t, uint64(50000), draft.Outputs[0].Value)
	assert.Equal(t, destinationScript, draft.Outputs[0].LockingScript)
	assert.Equal(t, uint64(100000-50000)-fee, draft.Outputs[1].Value)
	assert.Equal(t, addr0.ScriptPubKey, draft.Outputs[1].LockingScript)
	assert.Equal(t, 1, draft.ChangeIndex)
	assert.Equal(t, uint32(DefaultVersion), draft.Version)
	assert.Zero(t, draft.LockTime)
	assert.Equal(t, uint32(DefaultSequence), draft.Inputs[0].Sequence)
	require.NoError(t, draft.Validate())

	signed, err := Sign(draft, kc)
	require.NoError(t, err)
	assert.Equal(t, fee, signed.Fee())
	change, ok := signed.Change()
	require.True(t, ok)
	assert.Equal(t, uint64(49774), change.Value)
}

func TestBuildFoldsDustChange(t *testing.T) {
	addr := &wallet.DerivedAddress{ScriptPubKey: destinationScript}
	total := uint64(50000) + EstimateFee(1, 2, 1) + 500
	draft, err := Build([]*UTXO{makeUTXO(1, 0, total, addr)}, destinationScript, 50000, addr, 1)
	require.NoError(t, err)

	require.Len(t, draft.Outputs, 1)
	assert.Equal(t, -1, draft.ChangeIndex)
	assert.Equal(t, total-50000, draft.Fee)
	require.NoError(t, draft.Validate())
}

func TestBuildRejects(t *testing.T) {
	addr := &wallet.DerivedAddress{ScriptPubKey: destinationScript}
	u := makeUTXO(1, 0, 100000, addr)

	_, err := Build([]*UTXO{u}, destinationScript, DustThreshold-1, addr, 1)
	assert.ErrorIs(t, err, ErrDustAmount)

	_, err = Build([]*UTXO{u, u}, destinationScript, 1000, addr, 1)
	assert.ErrorIs(t, err, ErrDuplicateInput)

	_, err = Build([]*UTXO{u}, destinationScript, 100000, addr, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = Build(nil, destinationScript, 1000, addr, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = Build([]*UTXO{makeUTXO(3, 0, 1000, addr)}, destinationScript, math.MaxUint64-100, addr, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = Build([]*UTXO{u}, destinationScript, 1000, addr, math.MaxUint64)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = Build([]*UTXO{u}, nil, 1000, addr, 1)
	assert.ErrorIs(t, err, ErrMalformedDraft)

	_, err = Build([]*UTXO{u}, destinationScript, 1000, nil, 1)
	assert.ErrorIs(t, err, ErrNilParam)

	_, err = Build([]*UTXO{makeUTXO(2, 0, 100000, nil)}, destinationScript, 1000, addr, 1)
	assert.ErrorIs(t, err, ErrMalformedDraft)
}

func TestUTXOsFromScan(t *testing.T) {
	addr := &wallet.DerivedAddress{Index: 4}
	txid := "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	res := &wallet.ScanResult{
		TipHeight: 100,
		Addresses: []*wallet.AddressBalance{{
			Address: addr,
			Unspent: []*network.Unspent{
				{TxHash: txid, TxPos: 2, Value: 5000, Height: 91},
				{TxHash: txid, TxPos: 3, Value: 700, Height: 0},
			},
		}},
	}

	utxos, err := UTXOsFromScan(res)
	require.NoError(t, err)
	require.Len(t, utxos, 2)
	assert.Equal(t, txid+":2", utxos[0].Outpoint().String())
	assert.Equal(t, uint32(10), utxos[0].Confirmations)
	assert.Zero(t, utxos[1].Confirmations)
	assert.Same(t, addr, utxos[0].Address)

	res.Addresses[0].Unspent[0].TxHash = "zz"
	_, err = UTXOsFromScan(res)
	assert.ErrorIs(t, err, ErrInvalidTxID)
}

// --- Pool ---

func TestPoolReservations(t *testing.T) {
	addr := &wallet.DerivedAddress{}
	a, b := makeUTXO(1, 0, 1000, addr), makeUTXO(2, 0, 2000, addr)
	pool := NewPool(a, b)
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, uint64(3000), pool.Balance())

	r1, err := pool.Reserve([]*UTXO{a})
	require.NoError(t, err)
	assert.Equal(t, []Outpoint{a.Outpoint()}, r1.Outpoints())
	assert.Equal(t, uint64(2000), pool.Balance())

	// All-or-nothing: b must stay free when a is taken.
	_, err = pool.Reserve([]*UTXO{b, a})
	assert.ErrorIs(t, err, ErrUTXOReserved)
	assert.Len(t, pool.Available(), 1)

	_, err = pool.Reserve([]*UTXO{makeUTXO(9, 0, 1, addr)})
	assert.ErrorIs(t, err, ErrUTXONotFound)

	_, err = pool.Reserve([]*UTXO{b, b})
	assert.ErrorIs(t, err, ErrDuplicateInput)

	pool.Release(r1)
	assert.Len(t, pool.Available(), 2)

	r2, err := pool.Reserve([]*UTXO{a, b})
	require.NoError(t, err)
	pool.Release(r1) // stale release must not free r2's outputs
	assert.Empty(t, pool.Available())

	pool.MarkSpent(r2)
	assert.Zero(t, pool.Len())
}

type failingKeys struct{}

func (failingKeys) PrivateKey([20]byte) (*ec.PrivateKey, error) { return nil, errors.New("locked") }

func TestSpendReleasesOnFailure(t *testing.T) {
	kc := testKeyChain(t)
	addr := testAddress(t, kc, 0)
	pool := NewPool(makeUTXO(1, 0, 100000, addr))

	_, _, err := Spend(pool, SpendRequest{Destination: destinationScript, Amount: 50000, ChangeAddress: addr, FeeRate: 1}, failingKeys{})
	require.ErrorIs(t, err, ErrUnknownKey)
	assert.Len(t, pool.Available(), 1)

	_, _, err = Spend(pool, SpendRequest{Destination: destinationScript, Amount: 500000, ChangeAddress: addr}, kc)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Len(t, pool.Available(), 1)

	_, _, err = Spend(pool, SpendRequest{Destination: destinationScript, Amount: 10, ChangeAddress: addr}, kc)
	require.ErrorIs(t, err, ErrDustAmount)
}

func TestSpendNoDoubleSpendUnderConcurrency(t *testing.T) {
	kc := testKeyChain(t)
	addr := testAddress(t, kc, 0)
	pool := NewPool(makeUTXO(1, 0, 100000, addr))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok int
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := Spend(pool, SpendRequest{Destination: destinationScript, Amount: 50000, ChangeAddress: addr, FeeRate: 1}, kc)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, ErrUTXOReserved) || errors.Is(err, ErrInsufficientFunds), err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Empty(t, pool.Available())
}

func TestCommit(t *testing.T) {
	kc := testKeyChain(t)
	addr := testAddress(t, kc, 0)
	pool := NewPool(makeUTXO(1, 0, 100000, addr), makeUTXO(2, 0, 80000, addr))
	req := SpendRequest{Destination: destinationScript, Amount: 50000, ChangeAddress: addr, FeeRate: 1}

	rejecting := &network.MockClient{
		BroadcastTransactionFn: func(context.Context, []byte) (string, error) {
			return "", network.ErrBroadcastRejected
		},
	}
	signed, res, err := Spend(pool, req, kc)
	require.NoError(t, err)
	_, err = Commit(context.Background(), rejecting, pool, res, signed)
	require.ErrorIs(t, err, network.ErrBroadcastRejected)
	assert.Len(t, pool.Available(), 2)

	var sent []byte
	accepting := &network.MockClient{
		BroadcastTransactionFn: func(_ context.Context, raw []byte) (string, error) {
			sent = raw
			return "", nil
		},
	}
	signed, res, err = Spend(pool, req, kc)
	require.NoError(t, err)
	txid, err := Commit(context.Background(), accepting, pool, res, signed)
	require.NoError(t, err)
	assert.Equal(t, signed.TxID(), txid)
	assert.Equal(t, signed.Bytes(), sent)
	assert.Equal(t, 1, pool.Len())
	assert.Equal(t, uint64(80000), pool.Balance())
}

func TestOutpointString(t *testing.T) {
	var h chainhash.Hash
	h[0] = 0xab
	op := Outpoint{TxID: h, Vout: 3}
	assert.Equal(t, "00000000000000000000000000000000000000000000000000000000000000ab:3", op.String())
}
