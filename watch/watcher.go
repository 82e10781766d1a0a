// Package watch is the SPV verification engine. A Watcher follows one
// scripthash in one of two modes: fast mode reports server-asserted balance
// changes, full mode proves each confirmed transaction with a Merkle branch
// against a proof-of-work checked block header before reporting it.
package watch

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"github.com/looplab/fsm"
	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/spvwallet-go/logging"
	"github.com/bitfsorg/spvwallet-go/network"
	"github.com/bitfsorg/spvwallet-go/spv"
)

// DefaultHeaderCacheTTL bounds how long a fetched header is reused.
const DefaultHeaderCacheTTL = 10 * time.Minute

// Source is the part of the indexing server a watcher consumes.
type Source interface {
	GetBalance(ctx context.Context, scripthash string) (*network.Balance, error)
	ListConfirmedTransactions(ctx context.Context, scripthash string) ([]*network.HistoryItem, error)
	GetBlockHeader(ctx context.Context, height uint32) ([]byte, error)
	GetMerkleProof(ctx context.Context, txid string, height uint32) (*network.MerkleBranch, error)
}

// Config describes one watch.
type Config struct {
	Mode       Mode
	ScriptHash string
	// Interval between cycle starts. Zero selects the mode default.
	Interval time.Duration
	// Network selects the proof-of-work limit for full mode.
	Network spv.Network
	// InitialBalance, when set, is the fast mode baseline. Otherwise the
	// first observed balance is the baseline and is not reported.
	InitialBalance *uint64
	// HeaderCacheTTL bounds header reuse in full mode. Zero selects the default.
	HeaderCacheTTL time.Duration
	// TrackReorgs re-checks the blocks of confirmed transactions every cycle.
	TrackReorgs bool
	// ShowPeriodicChecks logs every cycle at info level instead of debug.
	ShowPeriodicChecks bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithHeaderStore records verified headers in store. It enables reorg
// tracking.
func WithHeaderStore(store spv.HeaderStore) Option {
	return func(w *Watcher) { w.store = store }
}

type confirmedBlock struct {
	hash  chainhash.Hash
	txids []string
}

// Watcher runs the poll loop of one watch. The seen set and balance baseline
// are private to it.
type Watcher struct {
	cfg       Config
	name      string
	src       Source
	log       logging.Logger
	machine   *fsm.FSM
	validator *spv.HeaderValidator
	headers   *ttlcache.Cache[uint32, []byte]
	store     spv.HeaderStore
	running   atomic.Bool
	cycles    atomic.Uint64

	// fast mode
	haveBaseline bool
	balance      uint64

	// full mode
	seen      map[string]struct{}
	confirmed map[uint32]*confirmedBlock
}

// New creates a watcher for cfg reading from src.
func New(cfg Config, src Source, opts ...Option) (*Watcher, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source", ErrNilParam)
	}
	if cfg.Mode != ModeFast && cfg.Mode != ModeFull {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, cfg.Mode)
	}
	if b, err := hex.DecodeString(cfg.ScriptHash); err != nil || len(b) != 32 {
		return nil, fmt.Errorf("%w: scripthash %q", ErrInvalidConfig, cfg.ScriptHash)
	}
	if cfg.Interval < 0 || cfg.HeaderCacheTTL < 0 {
		return nil, fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	if cfg.Interval == 0 {
		cfg.Interval = cfg.Mode.DefaultInterval()
	}
	if cfg.HeaderCacheTTL == 0 {
		cfg.HeaderCacheTTL = DefaultHeaderCacheTTL
	}

	w := &Watcher{
		cfg:       cfg,
		name:      fmt.Sprintf("%s/%s", cfg.Mode, shortHash(cfg.ScriptHash)),
		src:       src,
		log:       logging.Nop(),
		validator: spv.NewHeaderValidator(cfg.Network),
		headers: ttlcache.New[uint32, []byte](
			ttlcache.WithTTL[uint32, []byte](cfg.HeaderCacheTTL),
			ttlcache.WithDisableTouchOnHit[uint32, []byte](),
		),
		seen:      make(map[string]struct{}),
		confirmed: make(map[uint32]*confirmedBlock),
	}
	for _, opt := range opts {
		opt(w)
	}
	if cfg.TrackReorgs && w.store == nil {
		w.store = spv.NewMemHeaderStore()
	}
	if cfg.InitialBalance != nil {
		w.haveBaseline = true
		w.balance = *cfg.InitialBalance
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			w.log.Debugf("%s: %s -> %s", w.name, e.Src, e.Dst)
		},
	}
	if cfg.Mode == ModeFull {
		w.machine = newFullFSM(callbacks)
	} else {
		w.machine = newFastFSM(callbacks)
	}
	return w, nil
}

// Mode returns the watch mode.
func (w *Watcher) Mode() Mode { return w.cfg.Mode }

// ScriptHash returns the watched scripthash.
func (w *Watcher) ScriptHash() string { return w.cfg.ScriptHash }

// State returns the current state machine state.
func (w *Watcher) State() string { return w.machine.Current() }

// Cycles returns the number of completed poll cycles.
func (w *Watcher) Cycles() uint64 { return w.cycles.Load() }

// Run polls until ctx is cancelled, sending events to events. Cycles never
// overlap and cancellation is honoured between cycles; transport failures
// are logged and retried on the next cycle. Run returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, events chan<- Event) error {
	if events == nil {
		return fmt.Errorf("%w: events channel", ErrNilParam)
	}
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)

	w.fire(ctx, eventStart)
	defer w.fire(ctx, eventStop)
	w.log.Infof("%s: watching every %s", w.name, w.cfg.Interval)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			w.log.Infof("%s: stopped after %d cycles", w.name, w.Cycles())
			return nil
		}
		w.cycle(ctx, events)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// RunAll runs independent watchers concurrently until ctx is cancelled or
// one of them fails.
func RunAll(ctx context.Context, watchers []*Watcher, events chan<- Event) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range watchers {
		g.Go(func() error { return w.Run(gctx, events) })
	}
	return g.Wait()
}

func (w *Watcher) cycle(ctx context.Context, events chan<- Event) {
	if w.cfg.Mode == ModeFull {
		w.watchHistory(ctx, events)
	} else {
		w.pollBalance(ctx, events)
	}
	w.cycles.Add(1)
}

func (w *Watcher) periodic(format string, args ...interface{}) {
	if w.cfg.ShowPeriodicChecks {
		w.log.Infof(format, args...)
	} else {
		w.log.Debugf(format, args...)
	}
}

func (w *Watcher) transportFailure(what string, err error) {
	if network.IsRecoverable(err) || errors.Is(err, context.Canceled) {
		w.log.Warnf("%s: %s: %v (retrying next cycle)", w.name, what, err)
		return
	}
	w.log.Errorf("%s: %s: %v (retrying next cycle)", w.name, what, err)
}

// emit delivers ev unless ctx is cancelled first.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// --- fast mode ---

func (w *Watcher) pollBalance(ctx context.Context, events chan<- Event) {
	bal, err := w.src.GetBalance(ctx, w.cfg.ScriptHash)
	if err != nil {
		w.transportFailure("get balance", err)
		return
	}
	total := bal.Total()

	if !w.haveBaseline {
		w.haveBaseline = true
		w.balance = total
		w.fire(ctx, eventUnchanged)
		w.log.Infof("%s: initial balance %d sat", w.name, total)
		w.fire(ctx, eventPoll)
		return
	}

	if total == w.balance {
		w.fire(ctx, eventUnchanged)
		w.periodic("%s: balance unchanged at %d sat", w.name, total)
		w.fire(ctx, eventPoll)
		return
	}

	w.fire(ctx, eventChanged)
	ev := BalanceChanged{
		ScriptHash: w.cfg.ScriptHash,
		Delta:      int64(total) - int64(w.balance), //nolint:gosec // satoshi supply fits in int64
		NewBalance: total,
	}
	if emit(ctx, events, ev) {
		w.log.Infof("%s: %s", w.name, ev)
		w.balance = total
	}
	w.fire(ctx, eventPoll)
}

// --- full mode ---

func (w *Watcher) watchHistory(ctx context.Context, events chan<- Event) {
	if w.store != nil {
		w.checkReorgs(ctx, events)
	}

	history, err := w.src.ListConfirmedTransactions(ctx, w.cfg.ScriptHash)
	if err != nil {
		w.transportFailure("list confirmed transactions", err)
		return
	}

	pending := 0
	for _, item := range history {
		if ctx.Err() != nil {
			return
		}
		if item == nil || !item.Confirmed() {
			continue
		}
		if _, ok := w.seen[item.TxHash]; ok {
			continue
		}
		w.fire(ctx, eventCandidate)
		if !w.verifyCandidate(ctx, events, item) {
			pending++
		}
		w.fire(ctx, eventResume)
	}
	w.periodic("%s: %d transactions seen, %d pending", w.name, len(w.seen), pending)
}

// verifyCandidate runs one verification attempt and reports whether the
// transaction reached a final verdict.
func (w *Watcher) verifyCandidate(ctx context.Context, events chan<- Event, item *network.HistoryItem) bool {
	height := uint32(item.Height) //nolint:gosec // confirmed heights are positive
	txid := item.TxHash

	w.fire(ctx, eventFetch)
	raw, err := w.header(ctx, height)
	if err != nil {
		w.transportFailure(fmt.Sprintf("header %d for %s", height, txid), err)
		return false
	}
	branch, err := w.src.GetMerkleProof(ctx, txid, height)
	if err != nil {
		w.transportFailure(fmt.Sprintf("merkle proof for %s", txid), err)
		return false
	}

	w.fire(ctx, eventVerify)
	inc, err := VerifyInclusion(w.validator, height, raw, txid, branch)
	switch {
	case err == nil:
		w.fire(ctx, eventConfirm)
		ev := TransactionConfirmed{
			ScriptHash:  w.cfg.ScriptHash,
			TxID:        txid,
			BlockHeight: height,
			BlockHash:   spv.DisplayHex(inc.BlockHash),
			MerkleDepth: inc.MerkleDepth,
		}
		if !emit(ctx, events, ev) {
			return false
		}
		w.seen[txid] = struct{}{}
		w.log.Infof("%s: %s", w.name, ev)
		w.recordConfirmed(ctx, events, height, inc, txid)
		return true

	case IsRejection(err):
		w.fire(ctx, eventReject)
		w.headers.Delete(height)
		ev := TransactionRejected{
			ScriptHash:  w.cfg.ScriptHash,
			TxID:        txid,
			BlockHeight: height,
			Reason:      err.Error(),
			Err:         err,
		}
		if !emit(ctx, events, ev) {
			return false
		}
		w.seen[txid] = struct{}{}
		w.log.Errorf("%s: %s", w.name, ev)
		return true

	default:
		w.headers.Delete(height)
		w.log.Warnf("%s: tx %s stays pending: %v", w.name, txid, err)
		return false
	}
}

// header returns the raw header at height, from the cache when possible.
func (w *Watcher) header(ctx context.Context, height uint32) ([]byte, error) {
	if item := w.headers.Get(height); item != nil {
		return item.Value(), nil
	}
	raw, err := w.src.GetBlockHeader(ctx, height)
	if err != nil {
		return nil, err
	}
	w.headers.Set(height, raw, ttlcache.DefaultTTL)
	return raw, nil
}

// recordConfirmed remembers the block of a verified transaction and stores its
// header. A stored neighbour that no longer links to the new header belongs to
// a replaced branch and is orphaned.
func (w *Watcher) recordConfirmed(ctx context.Context, events chan<- Event, height uint32, inc *spv.Inclusion, txid string) {
	if w.store == nil {
		return
	}
	block, ok := w.confirmed[height]
	if !ok || block.hash != inc.BlockHash {
		block = &confirmedBlock{hash: inc.BlockHash}
		w.confirmed[height] = block
	}
	block.txids = append(block.txids, txid)

	if prev, err := w.store.GetHeaderByHeight(height); err == nil && prev.Hash() != inc.BlockHash {
		w.log.Warnf("%s: replacing stored header at height %d", w.name, height)
	}
	if err := w.store.PutHeader(height, inc.Header); err != nil {
		w.log.Errorf("%s: store header %d: %v", w.name, height, err)
	}

	if height > 0 {
		if below := w.storedHeader(height - 1); below != nil {
			if err := spv.VerifyHeaderLink(below, inc.Header); err != nil {
				w.log.Warnf("%s: height %d: %v", w.name, height, err)
				if !w.orphan(ctx, events, height-1) {
					return
				}
			}
		}
	}
	if above := w.storedHeader(height + 1); above != nil {
		if err := spv.VerifyHeaderLink(inc.Header, above); err != nil {
			w.log.Warnf("%s: height %d: %v", w.name, height+1, err)
			w.orphan(ctx, events, height+1)
		}
	}
}

func (w *Watcher) storedHeader(height uint32) *spv.BlockHeader {
	h, err := w.store.GetHeaderByHeight(height)
	if err != nil {
		if !errors.Is(err, spv.ErrHeaderNotFound) {
			w.log.Errorf("%s: load header %d: %v", w.name, height, err)
		}
		return nil
	}
	return h
}

// checkReorgs re-fetches the header of every block holding a confirmed
// transaction. When the server's header at that height has changed, or no
// longer links to the stored header below it, the affected transactions are
// reported orphaned and forgotten so they are re-verified.
func (w *Watcher) checkReorgs(ctx context.Context, events chan<- Event) {
	heights := make([]uint32, 0, len(w.confirmed))
	for h := range w.confirmed {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	for _, height := range heights {
		if ctx.Err() != nil {
			return
		}
		block, ok := w.confirmed[height]
		if !ok {
			continue
		}
		raw, err := w.src.GetBlockHeader(ctx, height)
		if err != nil {
			w.transportFailure(fmt.Sprintf("recheck header %d", height), err)
			return
		}
		current, err := spv.ParseHeader(raw)
		if err != nil {
			w.log.Warnf("%s: recheck header %d: %v", w.name, height, err)
			continue
		}
		if current.Hash() != block.hash {
			w.log.Warnf("%s: block %s at height %d was replaced by %s",
				w.name, spv.DisplayHex(block.hash), height, spv.DisplayHex(current.Hash()))
			if !w.orphan(ctx, events, height) {
				return
			}
			continue
		}
		if height == 0 {
			continue
		}
		if below := w.storedHeader(height - 1); below != nil {
			if err := spv.VerifyHeaderLink(below, current); err != nil {
				w.log.Warnf("%s: height %d: %v", w.name, height, err)
				if !w.orphan(ctx, events, height-1) {
					return
				}
			}
		}
	}
}

// orphan reports the confirmed transactions at height as orphaned and drops
// the block from the cache and the store. It returns false when ctx was
// cancelled before every event was delivered.
func (w *Watcher) orphan(ctx context.Context, events chan<- Event, height uint32) bool {
	if block, ok := w.confirmed[height]; ok {
		for len(block.txids) > 0 {
			txid := block.txids[0]
			ev := TransactionOrphaned{
				ScriptHash:  w.cfg.ScriptHash,
				TxID:        txid,
				BlockHeight: height,
				BlockHash:   spv.DisplayHex(block.hash),
			}
			if !emit(ctx, events, ev) {
				return false
			}
			w.log.Warnf("%s: %s", w.name, ev)
			delete(w.seen, txid)
			block.txids = block.txids[1:]
		}
		delete(w.confirmed, height)
	}
	w.headers.Delete(height)
	if err := w.store.DeleteHeader(height); err != nil {
		w.log.Errorf("%s: drop header %d: %v", w.name, height, err)
	}
	return true
}

func shortHash(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
