package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/bitfsorg/spvwallet-go/config"
	"github.com/bitfsorg/spvwallet-go/logging"
	"github.com/bitfsorg/spvwallet-go/network"
	"github.com/bitfsorg/spvwallet-go/spv"
	"github.com/bitfsorg/spvwallet-go/tx"
	"github.com/bitfsorg/spvwallet-go/txstore"
	"github.com/bitfsorg/spvwallet-go/wallet"
	"github.com/bitfsorg/spvwallet-go/watch"
)

// seedPasswordEnv supplies the seed file password non-interactively.
const seedPasswordEnv = config.EnvPrefix + "_SEED_PASSWORD"

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errEmptyPassword    = errors.New("empty password")
)

// runtime is the state shared by commands that talk to the wallet.
type runtime struct {
	cfg    *config.Config
	log    logging.Logger
	out    io.Writer
	errOut io.Writer
	stdin  io.Reader
}

func loadRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	log := logging.New(appName, logging.WithLevel(level), logging.WithWriter(c.App.ErrWriter))

	return &runtime{
		cfg:    cfg,
		log:    log,
		out:    c.App.Writer,
		errOut: c.App.ErrWriter,
		stdin:  os.Stdin,
	}, nil
}

// mnemonic returns the wallet mnemonic from the seed file when one is
// configured, otherwise from [Credentials] mnemonic.
func (r *runtime) mnemonic() (string, error) {
	if path := r.cfg.Credentials.SeedFile; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read seed file: %w", err)
		}
		password, err := r.readPassword("Seed file password: ")
		if err != nil {
			return "", err
		}
		return wallet.DecryptMnemonic(data, password)
	}
	if !r.cfg.HasMnemonic() {
		return "", config.ErrMissingMnemonic
	}
	if !wallet.ValidateMnemonic(r.cfg.Credentials.Mnemonic) {
		return "", wallet.ErrInvalidMnemonic
	}
	return r.cfg.Credentials.Mnemonic, nil
}

func (r *runtime) keyChain() (*wallet.KeyChain, error) {
	mnemonic, err := r.mnemonic()
	if err != nil {
		return nil, err
	}
	seed, err := wallet.SeedFromMnemonic(mnemonic, r.cfg.Credentials.Passcode)
	if err != nil {
		return nil, err
	}
	return wallet.NewKeyChain(seed, r.cfg.SPVNetwork())
}

// server is the indexing server as the commands use it.
type server interface {
	network.Service
	io.Closer
}

// dialServer connects lazily on first use.
var dialServer = func(r *runtime) server {
	return network.NewClient(r.cfg.ClientConfig(), r.log.With("electrumx"))
}

func (r *runtime) client() server { return dialServer(r) }

// broadcaster prefers the configured node RPC endpoint over the indexing server.
func (r *runtime) broadcaster(fallback network.Broadcaster) (network.Broadcaster, error) {
	if r.cfg.Network.NodeRPCURL == "" {
		return fallback, nil
	}
	return network.NewNodeRPC(r.cfg.NodeRPCConfig())
}

func (r *runtime) scan(ctx context.Context, keys *wallet.KeyChain, src wallet.ScanSource) (*wallet.ScanResult, error) {
	return wallet.NewScanner(keys, src, r.cfg.Wallet.ScanDepth, r.log).Scan(ctx)
}

func (r *runtime) readPassword(prompt string) (string, error) {
	if p, ok := os.LookupEnv(seedPasswordEnv); ok {
		return p, nil
	}

	if f, ok := r.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(r.errOut, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.errOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(r.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func initConfig(c *cli.Context) error {
	path := c.String("config")
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\nEdit [Credentials] mnemonic and [Transaction] destination_address before use.\n", path)
	return nil
}

func generateMnemonic(c *cli.Context) error {
	var bits int
	switch c.Int("words") {
	case 12:
		bits = wallet.Mnemonic12Words
	case 24:
		bits = wallet.Mnemonic24Words
	default:
		return fmt.Errorf("--words must be 12 or 24, got %d", c.Int("words"))
	}

	mnemonic, err := wallet.NewMnemonic(bits)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, mnemonic)
	return nil
}

func encryptSeed(c *cli.Context) error {
	r, err := loadRuntime(c)
	if err != nil {
		return err
	}
	if !r.cfg.HasMnemonic() {
		return config.ErrMissingMnemonic
	}
	mnemonic := r.cfg.Credentials.Mnemonic
	if !wallet.ValidateMnemonic(mnemonic) {
		return wallet.ErrInvalidMnemonic
	}

	password, err := r.readPassword("New seed file password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errEmptyPassword
	}
	if _, ok := os.LookupEnv(seedPasswordEnv); !ok {
		confirm, err := r.readPassword("Repeat password: ")
		if err != nil {
			return err
		}
		if confirm != password {
			return errPasswordMismatch
		}
	}

	data, err := wallet.EncryptMnemonic(mnemonic, password)
	if err != nil {
		return err
	}

	out := c.String("out")
	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create seed file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write seed file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Wrote %s\nSet [Credentials] seed_file = %s and clear the mnemonic line.\n", out, out)
	return nil
}

func listAddresses(c *cli.Context) error {
	r, err := loadRuntime(c)
	if err != nil {
		return err
	}
	keys, err := r.keyChain()
	if err != nil {
		return err
	}

	count := c.Int("count")
	if count <= 0 {
		count = r.cfg.Wallet.ScanDepth
	}
	addrs, err := keys.Addresses(count)
	if err != nil {
		return err
	}
	for _, a := range addrs {
		fmt.Fprintf(r.out, "%4d  %-34s  %s\n", a.Index, a.Address, a.ScriptHash())
	}
	return nil
}

func showBalance(c *cli.Context) error {
	r, err := loadRuntime(c)
	if err != nil {
		return err
	}
	keys, err := r.keyChain()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	client := r.client()
	defer client.Close()

	res, err := r.scan(ctx, keys, client)
	if err != nil {
		return err
	}

	funded := res.Funded()
	if len(funded) == 0 {
		fmt.Fprintf(r.out, "No funds found in the first %d addresses.\n", len(res.Addresses))
		return nil
	}
	for _, a := range funded {
		fmt.Fprintf(r.out, "%4d  %-34s  %s BSV", a.Address.Index, a.Address.Address, wallet.FormatBSV(a.Balance.Total()))
		if a.Balance.Unconfirmed != 0 {
			fmt.Fprintf(r.out, "  (unconfirmed %+d sat)", a.Balance.Unconfirmed)
		}
		fmt.Fprintln(r.out)
	}
	fmt.Fprintf(r.out, "Total: %s BSV\n", wallet.FormatBSV(res.Total))
	return nil
}

func send(c *cli.Context) error {
	r, err := loadRuntime(c)
	if err != nil {
		return err
	}

	dest := c.String("to")
	if dest == "" {
		if dest, err = r.cfg.Destination(); err != nil {
			return err
		}
	}
	lockingScript, err := wallet.ScriptFromAddress(dest)
	if err != nil {
		return err
	}

	var amount uint64
	if s := c.String("amount"); s != "" {
		amount, err = wallet.ParseBSV(s)
	} else {
		amount, err = r.cfg.AmountSatoshis()
	}
	if err != nil {
		return err
	}

	feeRate := c.Uint64("fee-rate")
	if feeRate == 0 {
		feeRate = r.cfg.Transaction.FeePerByte
	}

	keys, err := r.keyChain()
	if err != nil {
		return err
	}

	lock, err := txstore.TryLock(c.String("out-dir"))
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, stop := signalContext(c)
	defer stop()

	client := r.client()
	defer client.Close()

	res, err := r.scan(ctx, keys, client)
	if err != nil {
		return err
	}
	utxos, err := tx.UTXOsFromScan(res)
	if err != nil {
		return err
	}

	pool := tx.NewPool(utxos...)
	ftx, reservation, err := tx.Spend(pool, tx.SpendRequest{
		Destination:   lockingScript,
		Amount:        amount,
		ChangeAddress: res.ChangeAddress(),
		FeeRate:       feeRate,
	}, keys)
	if err != nil {
		return err
	}

	path, err := saveTransaction(c.String("out-dir"), ftx)
	if err != nil {
		pool.Release(reservation)
		return err
	}
	outbox, err := txstore.NewFileStore(outboxDir(c.String("out-dir")))
	if err == nil {
		err = outbox.Put(ftx.Hash(), ftx.Bytes())
	}
	if err != nil {
		pool.Release(reservation)
		return err
	}

	fmt.Fprintf(r.out, "Sending %s BSV to %s\n", wallet.FormatBSV(amount), dest)
	fmt.Fprintf(r.out, "Inputs: %d  Fee: %d sat  Size: %d bytes\n", len(ftx.Spent()), ftx.Fee(), ftx.Size())
	if change, ok := ftx.Change(); ok {
		fmt.Fprintf(r.out, "Change: %s BSV to %s\n", wallet.FormatBSV(change.Value), res.ChangeAddress().Address)
	}
	fmt.Fprintf(r.out, "Saved %s\n", path)

	if c.Bool("dry-run") {
		pool.Release(reservation)
		fmt.Fprintf(r.out, "Dry run, not broadcast. Send it later with: rebroadcast --txid %s\n", ftx.TxID())
		return nil
	}

	b, err := r.broadcaster(client)
	if err != nil {
		pool.Release(reservation)
		return err
	}
	txid, err := tx.Commit(ctx, b, pool, reservation, ftx)
	if err != nil {
		fmt.Fprintf(r.out, "Broadcast failed. Retry with: rebroadcast --txid %s\n", ftx.TxID())
		return err
	}
	if err := outbox.Delete(ftx.Hash()); err != nil {
		r.log.Warnf("failed to clear %s from outbox: %v", txid, err)
	}
	fmt.Fprintf(r.out, "Broadcast %s\n", txid)
	return nil
}

// saveTransaction writes the signed transaction hex to dir/tx_<unix>.hex.
func saveTransaction(dir string, ftx *tx.FinalizedTx) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("tx_%d.hex", time.Now().Unix()))
	if err := os.WriteFile(path, []byte(ftx.Hex()+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}
	return path, nil
}

// outboxDir holds signed transactions that have not been broadcast yet.
func outboxDir(outDir string) string { return filepath.Join(outDir, "outbox") }

func rebroadcast(c *cli.Context) error {
	store, err := txstore.NewFileStore(outboxDir(c.String("out-dir")))
	if err != nil {
		return err
	}

	if c.String("txid") == "" {
		txids, err := store.List()
		if err != nil {
			return err
		}
		for _, txid := range txids {
			fmt.Fprintln(c.App.Writer, spv.DisplayHex(txid))
		}
		return nil
	}

	txid, err := spv.HashFromDisplayHex(c.String("txid"))
	if err != nil {
		return err
	}
	raw, err := store.Get(txid)
	if err != nil {
		return err
	}

	r, err := loadRuntime(c)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c)
	defer stop()

	client := r.client()
	defer client.Close()

	b, err := r.broadcaster(client)
	if err != nil {
		return err
	}
	got, err := b.BroadcastTransaction(ctx, raw)
	if err != nil {
		return err
	}
	if err := store.Delete(txid); err != nil {
		r.log.Warnf("failed to clear %s from outbox: %v", got, err)
	}
	fmt.Fprintf(r.out, "Broadcast %s\n", got)
	return nil
}

func watchAddress(c *cli.Context) error {
	r, err := loadRuntime(c)
	if err != nil {
		return err
	}
	mode, err := watch.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}
	count := c.Int("count")
	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	var expect uint64
	if s := c.String("expect"); s != "" {
		if expect, err = wallet.ParseBSV(s); err != nil {
			return err
		}
	}

	keys, err := r.keyChain()
	if err != nil {
		return err
	}

	var headers *spv.BoltHeaderStore
	if path := r.cfg.SPV.HeaderDB; path != "" && r.cfg.SPV.TrackReorgs && mode == watch.ModeFull {
		if headers, err = spv.OpenBoltHeaderStore(path); err != nil {
			return err
		}
		defer headers.Close()
	}

	interval := r.cfg.SPV.CheckInterval
	if mode == watch.ModeFull {
		interval = r.cfg.SPV.FullCheckInterval
	}

	client := r.client()
	defer client.Close()

	start := uint32(c.Uint("address-index"))
	addrs := make(map[string]*wallet.DerivedAddress, count)
	watchers := make([]*watch.Watcher, 0, count)
	for i := 0; i < count; i++ {
		addr, err := keys.Address(start + uint32(i))
		if err != nil {
			return err
		}
		opts := []watch.Option{watch.WithLogger(r.log)}
		if headers != nil {
			scoped, err := headers.Scope(addr.ScriptHash())
			if err != nil {
				return err
			}
			opts = append(opts, watch.WithHeaderStore(scoped))
		}
		w, err := watch.New(watch.Config{
			Mode:               mode,
			ScriptHash:         addr.ScriptHash(),
			Interval:           interval,
			Network:            r.cfg.SPVNetwork(),
			HeaderCacheTTL:     r.cfg.SPV.HeaderCacheTTL,
			TrackReorgs:        r.cfg.SPV.TrackReorgs,
			ShowPeriodicChecks: r.cfg.SPV.ShowPeriodicChecks,
		}, client, opts...)
		if err != nil {
			return err
		}
		addrs[addr.ScriptHash()] = addr
		watchers = append(watchers, w)
		fmt.Fprintf(r.out, "Watching %s (index %d) in %s mode every %s\n", addr.Address, addr.Index, mode, interval)
	}
	if expect > 0 {
		fmt.Fprintf(r.out, "Expecting %s BSV\n", wallet.FormatBSV(expect))
	}

	sigCtx, stop := signalContext(c)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	events := make(chan watch.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tally := receipts{counted: make(map[string]struct{})}
		for ev := range events {
			fmt.Fprintf(r.out, "%s  %s  %s\n", time.Now().Format("15:04:05"), addrs[ev.Watched()].Address, ev)
			if expect == 0 || ctx.Err() != nil {
				continue
			}
			if tally.add(ctx, r, client, addrs[ev.Watched()], ev) >= expect {
				fmt.Fprintf(r.out, "Expected amount received: %s BSV\n", wallet.FormatBSV(tally.total))
				cancel()
			}
		}
	}()

	err = watch.RunAll(ctx, watchers, events)
	close(events)
	<-done
	return err
}

// receipts totals the funds received while watching.
type receipts struct {
	total   uint64
	counted map[string]struct{}
}

// add counts what ev brought in and returns the running total. Fast mode
// counts positive balance changes. Full mode counts the outputs of each
// confirmed transaction paying the watched address, once per transaction.
func (t *receipts) add(ctx context.Context, r *runtime, src watch.Locator, addr *wallet.DerivedAddress, ev watch.Event) uint64 {
	switch ev := ev.(type) {
	case watch.BalanceChanged:
		if ev.Delta > 0 {
			t.total += uint64(ev.Delta) //nolint:gosec // positive
		}
	case watch.TransactionConfirmed:
		if _, ok := t.counted[ev.TxID]; ok || addr == nil {
			break
		}
		raw, err := src.GetTransaction(ctx, ev.TxID)
		if err != nil {
			r.log.Warnf("fetch %s: %v", ev.TxID, err)
			break
		}
		paid, err := watch.PaidTo(raw, addr.ScriptPubKey)
		if err != nil {
			r.log.Warnf("decode %s: %v", ev.TxID, err)
			break
		}
		t.counted[ev.TxID] = struct{}{}
		t.total += paid
	}
	return t.total
}

func verifyTransaction(c *cli.Context) error {
	r, err := loadRuntime(c)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	client := r.client()
	defer client.Close()

	txid := c.String("txid")
	height := uint32(c.Uint("height"))
	if height == 0 {
		if height, err = watch.LocateTransaction(ctx, client, txid); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Found %s in block %d\n", txid, height)
	}

	raw, err := client.GetBlockHeader(ctx, height)
	if err != nil {
		return err
	}
	branch, err := client.GetMerkleProof(ctx, txid, height)
	if err != nil {
		return err
	}

	validator := spv.NewHeaderValidator(r.cfg.SPVNetwork())
	inc, err := watch.VerifyInclusion(validator, height, raw, txid, branch)
	if err != nil {
		if watch.IsRejection(err) {
			fmt.Fprintf(r.out, "REJECTED %s: %v\n", txid, err)
		}
		return err
	}

	fmt.Fprintf(r.out, "CONFIRMED %s\n", spv.DisplayHex(inc.TxID))
	fmt.Fprintf(r.out, "Block %d  %s\n", height, spv.DisplayHex(inc.BlockHash))
	fmt.Fprintf(r.out, "Merkle depth %d  Time %s\n", inc.MerkleDepth,
		time.Unix(int64(inc.Header.Timestamp), 0).UTC().Format(time.RFC3339))

	depth := uint32(c.Uint("depth"))
	if depth == 0 {
		return nil
	}
	chain := []*spv.BlockHeader{inc.Header}
	for h := height + 1; h <= height+depth; h++ {
		raw, err := client.GetBlockHeader(ctx, h)
		if err != nil {
			return err
		}
		header, err := spv.ParseHeader(raw)
		if err != nil {
			return err
		}
		chain = append(chain, header)
	}
	work, err := validator.VerifyHeaderChain(chain)
	if err != nil {
		fmt.Fprintf(r.out, "REJECTED %s: %v\n", txid, err)
		return err
	}
	fmt.Fprintf(r.out, "Buried under %d blocks  Chain work %s\n", depth, work)
	return nil
}
