package network

import (
	"context"
	"encoding/hex"
	"fmt"
)

// ServerVersion negotiates the protocol version and returns the server software string.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	var result []string
	if err := c.Call(ctx, "server.version", []interface{}{clientName, protocolVersion}, &result); err != nil {
		return "", err
	}
	if len(result) == 0 {
		return "", fmt.Errorf("%w: server.version: empty reply", ErrInvalidResponse)
	}
	return result[0], nil
}

// GetBalance returns the confirmed and unconfirmed balance of a scripthash.
func (c *Client) GetBalance(ctx context.Context, scripthash string) (*Balance, error) {
	var b Balance
	if err := c.Call(ctx, "blockchain.scripthash.get_balance", []interface{}{scripthash}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListUnspent returns the unspent outputs paying to a scripthash.
func (c *Client) ListUnspent(ctx context.Context, scripthash string) ([]*Unspent, error) {
	var utxos []*Unspent
	if err := c.Call(ctx, "blockchain.scripthash.listunspent", []interface{}{scripthash}, &utxos); err != nil {
		return nil, err
	}
	return utxos, nil
}

// GetHistory returns the transaction history of a scripthash.
func (c *Client) GetHistory(ctx context.Context, scripthash string) ([]*HistoryItem, error) {
	var history []*HistoryItem
	if err := c.Call(ctx, "blockchain.scripthash.get_history", []interface{}{scripthash}, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// ListConfirmedTransactions returns the mined entries of the history.
func (c *Client) ListConfirmedTransactions(ctx context.Context, scripthash string) ([]*HistoryItem, error) {
	history, err := c.GetHistory(ctx, scripthash)
	if err != nil {
		return nil, err
	}
	return FilterConfirmed(history), nil
}

// FilterConfirmed keeps history entries with a positive height.
func FilterConfirmed(history []*HistoryItem) []*HistoryItem {
	confirmed := make([]*HistoryItem, 0, len(history))
	for _, h := range history {
		if h != nil && h.Confirmed() {
			confirmed = append(confirmed, h)
		}
	}
	return confirmed
}

// GetBlockHeader returns the raw 80-byte header at height.
func (c *Client) GetBlockHeader(ctx context.Context, height uint32) ([]byte, error) {
	var headerHex string
	if err := c.Call(ctx, "blockchain.block.header", []interface{}{height}, &headerHex); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(headerHex)
	if err != nil {
		return nil, fmt.Errorf("%w: block header hex: %w", ErrInvalidResponse, err)
	}
	return raw, nil
}

// GetMerkleProof returns the Merkle branch of txid within the block at height.
func (c *Client) GetMerkleProof(ctx context.Context, txid string, height uint32) (*MerkleBranch, error) {
	var branch MerkleBranch
	if err := c.Call(ctx, "blockchain.transaction.get_merkle", []interface{}{txid, height}, &branch); err != nil {
		return nil, err
	}
	return &branch, nil
}

// GetTransaction returns the raw bytes of txid.
func (c *Client) GetTransaction(ctx context.Context, txid string) ([]byte, error) {
	var txHex string
	if err := c.Call(ctx, "blockchain.transaction.get", []interface{}{txid, false}, &txHex); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction hex: %w", ErrInvalidResponse, err)
	}
	return raw, nil
}

// BroadcastTransaction submits a raw transaction. A server error object is
// reported as ErrBroadcastRejected.
func (c *Client) BroadcastTransaction(ctx context.Context, rawTx []byte) (string, error) {
	var txid string
	err := c.Call(ctx, "blockchain.transaction.broadcast", []interface{}{hex.EncodeToString(rawTx)}, &txid)
	if err != nil {
		return "", wrapRejected(err)
	}
	return txid, nil
}

// TipHeight returns the height of the server's best header. The subscription
// side effect is harmless: later notifications carry no id and are skipped.
func (c *Client) TipHeight(ctx context.Context) (uint32, error) {
	var tip struct {
		Height uint32 `json:"height"`
		Hex    string `json:"hex"`
	}
	if err := c.Call(ctx, "blockchain.headers.subscribe", nil, &tip); err != nil {
		return 0, err
	}
	return tip.Height, nil
}
