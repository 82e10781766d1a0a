package network

import "context"

// MockClient is a test double for Service. Unset function fields return
// ErrNotConfigured.
type MockClient struct {
	GetBalanceFn           func(ctx context.Context, scripthash string) (*Balance, error)
	ListUnspentFn          func(ctx context.Context, scripthash string) ([]*Unspent, error)
	GetHistoryFn           func(ctx context.Context, scripthash string) ([]*HistoryItem, error)
	GetBlockHeaderFn       func(ctx context.Context, height uint32) ([]byte, error)
	GetMerkleProofFn       func(ctx context.Context, txid string, height uint32) (*MerkleBranch, error)
	GetTransactionFn       func(ctx context.Context, txid string) ([]byte, error)
	BroadcastTransactionFn func(ctx context.Context, rawTx []byte) (string, error)
	TipHeightFn            func(ctx context.Context) (uint32, error)
}

var _ Service = (*MockClient)(nil)

func (m *MockClient) GetBalance(ctx context.Context, scripthash string) (*Balance, error) {
	if m.GetBalanceFn == nil {
		return nil, ErrNotConfigured
	}
	return m.GetBalanceFn(ctx, scripthash)
}

func (m *MockClient) ListUnspent(ctx context.Context, scripthash string) ([]*Unspent, error) {
	if m.ListUnspentFn == nil {
		return nil, ErrNotConfigured
	}
	return m.ListUnspentFn(ctx, scripthash)
}

func (m *MockClient) GetHistory(ctx context.Context, scripthash string) ([]*HistoryItem, error) {
	if m.GetHistoryFn == nil {
		return nil, ErrNotConfigured
	}
	return m.GetHistoryFn(ctx, scripthash)
}

func (m *MockClient) ListConfirmedTransactions(ctx context.Context, scripthash string) ([]*HistoryItem, error) {
	history, err := m.GetHistory(ctx, scripthash)
	if err != nil {
		return nil, err
	}
	return FilterConfirmed(history), nil
}

func (m *MockClient) GetBlockHeader(ctx context.Context, height uint32) ([]byte, error) {
	if m.GetBlockHeaderFn == nil {
		return nil, ErrNotConfigured
	}
	return m.GetBlockHeaderFn(ctx, height)
}

func (m *MockClient) GetMerkleProof(ctx context.Context, txid string, height uint32) (*MerkleBranch, error) {
	if m.GetMerkleProofFn == nil {
		return nil, ErrNotConfigured
	}
	return m.GetMerkleProofFn(ctx, txid, height)
}

func (m *MockClient) GetTransaction(ctx context.Context, txid string) ([]byte, error) {
	if m.GetTransactionFn == nil {
		return nil, ErrNotConfigured
	}
	return m.GetTransactionFn(ctx, txid)
}

func (m *MockClient) BroadcastTransaction(ctx context.Context, rawTx []byte) (string, error) {
	if m.BroadcastTransactionFn == nil {
		return "", ErrNotConfigured
	}
	return m.BroadcastTransactionFn(ctx, rawTx)
}

func (m *MockClient) TipHeight(ctx context.Context) (uint32, error) {
	if m.TipHeightFn == nil {
		return 0, ErrNotConfigured
	}
	return m.TipHeightFn(ctx)
}
