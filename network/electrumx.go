package network

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/bitfsorg/spvwallet-go/logging"
)

const (
	// DefaultServer is the public ElectrumX endpoint used when none is configured.
	DefaultServer = "electrumx.gorillapool.io"
	// DefaultPort is the ElectrumX TLS port.
	DefaultPort = 50002
	// DefaultTimeout bounds a single request round trip.
	DefaultTimeout = 10 * time.Second
	// DefaultRateLimit is the request rate ceiling per second.
	DefaultRateLimit = 10

	clientName      = "spvwallet"
	protocolVersion = "1.4"
	maxLineBytes    = 16 << 20
)

// Breaker tuning, mirroring how other clients in this codebase trip.
var (
	// MaxFailingRequests is the request count after which the failure ratio is evaluated.
	MaxFailingRequests = 10
	// FailingRatio opens the breaker once this share of requests has failed.
	FailingRatio = 0.6
	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown = 30 * time.Second
)

// ClientConfig configures an ElectrumX client.
type ClientConfig struct {
	Server string
	Port   int
	TLS    bool
	// InsecureSkipVerify accepts self-signed server certificates, which many
	// public ElectrumX servers use.
	InsecureSkipVerify bool
	Timeout            time.Duration
	// RateLimit is the maximum number of requests per second; 0 disables pacing.
	RateLimit int
}

func (c ClientConfig) address() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// Client speaks the ElectrumX protocol: newline-delimited JSON-RPC over a
// single TCP (optionally TLS) connection. Requests are serialized on that
// connection; a broken connection is dropped and redialed on the next call.
type Client struct {
	cfg     ClientConfig
	log     logging.Logger
	limiter ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	nextID  atomic.Int64

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	dial   func(ctx context.Context) (net.Conn, error)
}

// Compile-time interface check.
var _ Service = (*Client)(nil)

type electrumRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type electrumResponse struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *electrumError  `json:"error"`
}

type electrumError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a client. No connection is made until the first call.
func NewClient(cfg ClientConfig, log logging.Logger) *Client {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logging.Nop()
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.RateLimit > 0 {
		limiter = ratelimit.New(cfg.RateLimit)
	}

	c := &Client{
		cfg:     cfg,
		log:     log.With("electrumx"),
		limiter: limiter,
		breaker: newBreaker(cfg.address(), log),
	}
	c.dial = c.dialServer
	return c
}

func newBreaker(name string, log logging.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) > MaxFailingRequests && ratio >= FailingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit %s: %s -> %s", name, from, to)
		},
	})
}

func (c *Client) dialServer(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: c.cfg.Timeout}
	if !c.cfg.TLS {
		return d.DialContext(ctx, "tcp", c.cfg.address())
	}
	td := &tls.Dialer{
		NetDialer: d,
		Config: &tls.Config{
			ServerName:         c.cfg.Server,
			InsecureSkipVerify: c.cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in
			MinVersion:         tls.VersionTLS12,
		},
	}
	return td.DialContext(ctx, "tcp", c.cfg.address())
}

// Close drops the server connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked()
}

func (c *Client) dropLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// Call invokes an ElectrumX method and decodes its result into result.
//
// Transport failures return ErrConnectionFailed, undecodable replies
// ErrInvalidResponse, and error objects from the server ErrServer. Only the
// first two count against the circuit breaker.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}

	c.limiter.Take()

	var rpcErr *electrumError
	raw, err := c.breaker.Execute(func() (interface{}, error) {
		res, e, err := c.roundTrip(ctx, method, params)
		rpcErr = e
		return res, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s: %w", ErrCircuitOpen, method, err)
		}
		return err
	}
	if rpcErr != nil {
		return fmt.Errorf("%w: %s: %d %s", ErrServer, method, rpcErr.Code, rpcErr.Message)
	}

	if result == nil {
		return nil
	}
	res, _ := raw.(json.RawMessage)
	if len(res) == 0 || string(res) == "null" {
		return fmt.Errorf("%w: %s: empty result", ErrInvalidResponse, method)
	}
	if err := json.Unmarshal(res, result); err != nil {
		return fmt.Errorf("%w: %s: unmarshal result: %w", ErrInvalidResponse, method, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params []interface{}) (json.RawMessage, *electrumError, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, c.cfg.address(), err)
		}
		c.conn = conn
		c.reader = bufio.NewReaderSize(conn, 64<<10)
		c.log.Debugf("connected to %s", c.cfg.address())
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		_ = c.dropLocked()
		return nil, nil, fmt.Errorf("%w: set deadline: %w", ErrConnectionFailed, err)
	}

	req := electrumRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("network: marshal request: %w", err)
	}
	body = append(body, '\n')

	if _, err := c.conn.Write(body); err != nil {
		_ = c.dropLocked()
		return nil, nil, fmt.Errorf("%w: write %s: %w", ErrConnectionFailed, method, err)
	}

	for {
		line, err := c.readLine()
		if err != nil {
			_ = c.dropLocked()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, method, ctxErr)
			}
			return nil, nil, fmt.Errorf("%w: read %s: %w", ErrConnectionFailed, method, err)
		}

		var resp electrumResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			_ = c.dropLocked()
			return nil, nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidResponse, method, err)
		}
		// Subscription notifications carry no id.
		if resp.ID == nil {
			continue
		}
		if *resp.ID != req.ID {
			_ = c.dropLocked()
			return nil, nil, fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
				ErrInvalidResponse, req.ID, *resp.ID)
		}
		return resp.Result, resp.Error, nil
	}
}

func (c *Client) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := c.reader.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxLineBytes {
			return nil, fmt.Errorf("response exceeds %d bytes", maxLineBytes)
		}
		if !isPrefix {
			return line, nil
		}
	}
}
