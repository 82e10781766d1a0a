package wallet

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/spvwallet-go/logging"
	"github.com/bitfsorg/spvwallet-go/network"
)

// DefaultScanDepth is the number of receive addresses checked by a scan.
const DefaultScanDepth = 20

// scanConcurrency bounds in-flight address lookups.
const scanConcurrency = 4

// ScanSource is the part of the indexing server a scan needs.
type ScanSource interface {
	GetBalance(ctx context.Context, scripthash string) (*network.Balance, error)
	ListUnspent(ctx context.Context, scripthash string) ([]*network.Unspent, error)
}

// AddressBalance is the scan outcome for one address.
type AddressBalance struct {
	Address *DerivedAddress
	Balance network.Balance
	Unspent []*network.Unspent
}

// Funded reports whether the address holds or has pending coins.
func (a *AddressBalance) Funded() bool {
	return a.Balance.Total() > 0 || len(a.Unspent) > 0
}

// ScanResult collects balances in index order.
type ScanResult struct {
	Addresses []*AddressBalance
	Total     uint64
	// TipHeight is the chain tip at scan time, 0 when the source cannot tell.
	TipHeight uint32
}

// Funded returns the addresses holding coins.
func (r *ScanResult) Funded() []*AddressBalance {
	var out []*AddressBalance
	for _, a := range r.Addresses {
		if a.Funded() {
			out = append(out, a)
		}
	}
	return out
}

// ChangeAddress is the first funded address, or index 0 when none is funded.
func (r *ScanResult) ChangeAddress() *DerivedAddress {
	for _, a := range r.Addresses {
		if a.Funded() {
			return a.Address
		}
	}
	if len(r.Addresses) > 0 {
		return r.Addresses[0].Address
	}
	return nil
}

// Scanner looks up the first Depth receive addresses of a key chain.
type Scanner struct {
	keys   *KeyChain
	source ScanSource
	depth  int
	log    logging.Logger
}

// NewScanner creates a scanner. A depth of 0 means DefaultScanDepth.
func NewScanner(keys *KeyChain, source ScanSource, depth int, log logging.Logger) *Scanner {
	if depth <= 0 {
		depth = DefaultScanDepth
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Scanner{keys: keys, source: source, depth: depth, log: log.With("scanner")}
}

// Scan fetches balance and unspent outputs for every address. Any lookup
// failure aborts the scan.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	addrs, err := s.keys.Addresses(s.depth)
	if err != nil {
		return nil, err
	}

	results := make([]*AddressBalance, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)

	for i, addr := range addrs {
		g.Go(func() error {
			sh := addr.ScriptHash()
			bal, err := s.source.GetBalance(gctx, sh)
			if err != nil {
				return fmt.Errorf("wallet: balance of %s (index %d): %w", addr.Address, addr.Index, err)
			}
			utxos, err := s.source.ListUnspent(gctx, sh)
			if err != nil {
				return fmt.Errorf("wallet: unspent of %s (index %d): %w", addr.Address, addr.Index, err)
			}
			results[i] = &AddressBalance{Address: addr, Balance: *bal, Unspent: utxos}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &ScanResult{Addresses: results}
	for _, a := range results {
		res.Total += a.Balance.Total()
		if a.Funded() {
			s.log.Debugf("index %d %s: %s BSV, %d unspent", a.Address.Index, a.Address.Address,
				FormatBSV(a.Balance.Total()), len(a.Unspent))
		}
	}

	if tips, ok := s.source.(network.TipSource); ok {
		tip, err := tips.TipHeight(ctx)
		if err != nil {
			s.log.Warnf("tip height unavailable: %v", err)
		} else {
			res.TipHeight = tip
		}
	}

	s.log.Infof("scanned %d addresses, %d funded, total %s BSV", len(addrs), len(res.Funded()), FormatBSV(res.Total))
	return res, nil
}
