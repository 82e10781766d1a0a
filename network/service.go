package network

import "context"

// Service is the indexing-server surface the wallet consumes. Hashes cross this
// boundary as hex strings in the byte-reversed order servers print them.
type Service interface {
	// GetBalance returns the confirmed and unconfirmed balance of a scripthash.
	GetBalance(ctx context.Context, scripthash string) (*Balance, error)

	// ListUnspent returns the unspent outputs paying to a scripthash.
	ListUnspent(ctx context.Context, scripthash string) ([]*Unspent, error)

	// GetHistory returns every transaction touching a scripthash, mempool included.
	GetHistory(ctx context.Context, scripthash string) ([]*HistoryItem, error)

	// ListConfirmedTransactions returns only the mined part of the history.
	ListConfirmedTransactions(ctx context.Context, scripthash string) ([]*HistoryItem, error)

	// GetBlockHeader returns the raw 80-byte header at height.
	GetBlockHeader(ctx context.Context, height uint32) ([]byte, error)

	// GetMerkleProof returns the Merkle branch of txid within the block at height.
	GetMerkleProof(ctx context.Context, txid string, height uint32) (*MerkleBranch, error)

	// GetTransaction returns the raw transaction bytes.
	GetTransaction(ctx context.Context, txid string) ([]byte, error)

	Broadcaster
}

// TipSource reports the current chain tip height.
type TipSource interface {
	TipHeight(ctx context.Context) (uint32, error)
}

// Broadcaster submits signed transactions.
type Broadcaster interface {
	// BroadcastTransaction submits raw transaction bytes and returns the txid.
	BroadcastTransaction(ctx context.Context, rawTx []byte) (string, error)
}

// Balance is a scripthash balance in satoshis. Unconfirmed can be negative
// while a spend of confirmed coins waits in the mempool.
type Balance struct {
	Confirmed   uint64 `json:"confirmed"`
	Unconfirmed int64  `json:"unconfirmed"`
}

// Total returns confirmed plus unconfirmed, floored at zero.
func (b *Balance) Total() uint64 {
	total := int64(b.Confirmed) + b.Unconfirmed
	if total < 0 {
		return 0
	}
	return uint64(total)
}

// Unspent is an output reported by blockchain.scripthash.listunspent.
type Unspent struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Value  uint64 `json:"value"`
	Height int64  `json:"height"` // 0 or negative while unconfirmed
}

// HistoryItem is an entry of blockchain.scripthash.get_history.
type HistoryItem struct {
	TxHash string `json:"tx_hash"`
	Height int64  `json:"height"`
}

// Confirmed reports whether the transaction has been mined.
func (h *HistoryItem) Confirmed() bool { return h.Height > 0 }

// MerkleBranch is the answer of blockchain.transaction.get_merkle: the sibling
// hashes bottom-up and the leaf position within the block.
type MerkleBranch struct {
	BlockHeight uint32   `json:"block_height"`
	Merkle      []string `json:"merkle"`
	Pos         uint32   `json:"pos"`
}
