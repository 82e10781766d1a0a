package network

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// NodeRPCConfig points at a bitcoind-compatible node (SV Node, Teranode RPC).
type NodeRPCConfig struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
}

// NodeRPC is a JSON-RPC 1.0 client for a full node. It is an alternative
// Broadcaster and a second source of block headers for cross-checking the
// ElectrumX server.
type NodeRPC struct {
	url    string
	user   string
	pass   string
	client *http.Client
	nextID atomic.Int64
}

var _ Broadcaster = (*NodeRPC)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewNodeRPC creates a node client. HTTP Basic Auth is sent when User is set.
func NewNodeRPC(cfg NodeRPCConfig) (*NodeRPC, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: node rpc url", ErrNotConfigured)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NodeRPC{
		url:  cfg.URL,
		user: cfg.User,
		pass: cfg.Password,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
	}, nil
}

// Call invokes method and decodes the result into result (nil discards it).
// RPC error objects are reported as ErrServer.
func (c *NodeRPC) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody := rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("network: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("network: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// bitcoind answers RPC errors with HTTP 500 and a JSON body, so only
	// bail out early when the body cannot be a JSON-RPC reply.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusNotFound {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: HTTP %d: decode response: %w", ErrInvalidResponse, resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: %s: %d %s", ErrServer, method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}

	if result != nil {
		if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
			return fmt.Errorf("%w: %s: empty result", ErrInvalidResponse, method)
		}
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}

// BroadcastTransaction submits rawTx with sendrawtransaction.
func (c *NodeRPC) BroadcastTransaction(ctx context.Context, rawTx []byte) (string, error) {
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", []interface{}{hex.EncodeToString(rawTx)}, &txid); err != nil {
		return "", wrapRejected(err)
	}
	return txid, nil
}

// GetBlockHeader returns the raw header at height via getblockhash and a
// non-verbose getblockheader.
func (c *NodeRPC) GetBlockHeader(ctx context.Context, height uint32) ([]byte, error) {
	var blockHash string
	if err := c.Call(ctx, "getblockhash", []interface{}{height}, &blockHash); err != nil {
		return nil, err
	}
	var headerHex string
	if err := c.Call(ctx, "getblockheader", []interface{}{blockHash, false}, &headerHex); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(headerHex)
	if err != nil {
		return nil, fmt.Errorf("%w: block header hex: %w", ErrInvalidResponse, err)
	}
	return raw, nil
}

// GetBlockCount returns the node's best height.
func (c *NodeRPC) GetBlockCount(ctx context.Context) (uint32, error) {
	var height uint32
	if err := c.Call(ctx, "getblockcount", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}
