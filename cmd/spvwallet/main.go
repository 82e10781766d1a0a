// Command spvwallet is a BSV wallet that derives its addresses from a BIP39
// mnemonic, reads balances from an ElectrumX server and verifies incoming
// transactions with Merkle proofs against proof-of-work checked headers.
//
// Usage:
//
//	spvwallet [--config config.ini] [--log-level debug] <command> [flags]
//
// Commands:
//   - init: write a commented config.ini
//   - mnemonic: generate a new mnemonic
//   - encrypt-seed: store the configured mnemonic encrypted under a password
//   - addresses: list derived addresses and their scripthashes
//   - balance: scan derived addresses for coins
//   - send: build, sign, save and broadcast a payment
//   - rebroadcast: list or send signed transactions left unbroadcast
//   - watch: follow an address in fast or full SPV mode
//   - verify: prove one transaction's inclusion in a block
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bitfsorg/spvwallet-go/config"
)

const (
	appName    = "spvwallet"
	appVersion = "1.0.0"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Command output goes to stdout, logs to stderr.
func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      appName,
		Usage:     "BSV SPV wallet",
		Version:   appVersion,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path of the INI configuration file",
				Value:   config.DefaultFile,
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override [Log] level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write a default configuration file",
				Action: initConfig,
			},
			{
				Name:   "mnemonic",
				Usage:  "Generate a new BIP39 mnemonic",
				Action: generateMnemonic,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "words", Usage: "12 or 24", Value: 12},
				},
			},
			{
				Name:   "encrypt-seed",
				Usage:  "Encrypt the configured mnemonic into a seed file",
				Action: encryptSeed,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "seed file to create", Value: "seed.enc"},
				},
			},
			{
				Name:   "addresses",
				Usage:  "List derived receive addresses",
				Action: listAddresses,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Usage: "number of addresses (default: scan_depth)"},
				},
			},
			{
				Name:   "balance",
				Usage:  "Scan derived addresses for balances",
				Action: showBalance,
			},
			{
				Name:   "send",
				Usage:  "Send BSV to an address",
				Action: send,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Usage: "destination address (default: [Transaction] destination_address)"},
					&cli.StringFlag{Name: "amount", Usage: "amount in BSV (default: [Transaction] amount_to_send_bsv)"},
					&cli.Uint64Flag{Name: "fee-rate", Usage: "satoshis per byte (default: [Transaction] fee_per_byte)"},
					&cli.StringFlag{Name: "out-dir", Usage: "directory for signed transactions", Value: "transactions"},
					&cli.BoolFlag{Name: "dry-run", Usage: "sign and save without broadcasting"},
				},
			},
			{
				Name:   "rebroadcast",
				Usage:  "List unbroadcast transactions, or broadcast one",
				Action: rebroadcast,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "txid", Usage: "transaction to broadcast (default: list the outbox)"},
					&cli.StringFlag{Name: "out-dir", Usage: "directory used by send", Value: "transactions"},
				},
			},
			{
				Name:   "watch",
				Usage:  "Watch an address for incoming funds",
				Action: watchAddress,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Usage: "fast (balance polling) or full (SPV proofs)", Value: "full"},
					&cli.UintFlag{Name: "address-index", Usage: "derivation index of the watched address"},
					&cli.IntFlag{Name: "count", Usage: "watch this many consecutive addresses", Value: 1},
					&cli.StringFlag{Name: "expect", Usage: "stop once this many BSV have been received"},
				},
			},
			{
				Name:   "verify",
				Usage:  "Verify a transaction's inclusion with an SPV proof",
				Action: verifyTransaction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "txid", Usage: "transaction id", Required: true},
					&cli.UintFlag{Name: "height", Usage: "block height (default: look it up on the server)"},
					&cli.UintFlag{Name: "depth", Usage: "also check that this many following headers build on the block"},
				},
			},
		},
	}
}
