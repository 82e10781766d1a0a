// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads the wallet's config.ini. Every key can be overridden
// from the environment as SPVWALLET_<SECTION>_<KEY>, for example
// SPVWALLET_TRANSACTION_FEE_PER_BYTE.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bitfsorg/spvwallet-go/network"
	"github.com/bitfsorg/spvwallet-go/spv"
	"github.com/bitfsorg/spvwallet-go/wallet"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "SPVWALLET"

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "config.ini"

// Placeholders written by WriteDefault. They count as unset.
const (
	PlaceholderMnemonic    = "your twelve word mnemonic phrase goes here exactly as given"
	PlaceholderDestination = "1DestinationAddressGoesHere"
)

// Keys, as section.key.
const (
	KeyMnemonic = "credentials.mnemonic"
	KeyPasscode = "credentials.passcode"
	KeySeedFile = "credentials.seed_file"

	KeyDestination = "transaction.destination_address"
	KeyAmount      = "transaction.amount_to_send_bsv"
	KeyFeePerByte  = "transaction.fee_per_byte"

	KeyCheckInterval      = "spv.check_interval"
	KeyFullCheckInterval  = "spv.full_check_interval"
	KeyShowPeriodicChecks = "spv.show_periodic_checks"
	KeyHeaderDB           = "spv.header_db"
	KeyHeaderCacheTTL     = "spv.header_cache_ttl"
	KeyTrackReorgs        = "spv.track_reorgs"

	KeyScanDepth = "wallet.scan_depth"
	KeyNetwork   = "wallet.network"

	KeyServer          = "network.server"
	KeyPort            = "network.port"
	KeyTLS             = "network.tls"
	KeyInsecureTLS     = "network.insecure_skip_verify"
	KeyTimeout         = "network.timeout"
	KeyRateLimit       = "network.rate_limit"
	KeyNodeRPCURL      = "network.node_rpc_url"
	KeyNodeRPCUser     = "network.node_rpc_user"
	KeyNodeRPCPassword = "network.node_rpc_password"

	KeyLogLevel = "log.level"
)

// Config is the parsed configuration.
type Config struct {
	Credentials Credentials
	Transaction Transaction
	SPV         SPV
	Wallet      Wallet
	Network     Network
	Log         Log
}

// Credentials holds the seed material. Either Mnemonic or SeedFile is used.
type Credentials struct {
	Mnemonic string
	Passcode string // BIP39 passphrase
	SeedFile string // argon2 encrypted mnemonic
}

// Transaction holds the defaults of the send command.
type Transaction struct {
	DestinationAddress string
	AmountBSV          string
	FeePerByte         uint64
}

// SPV holds the watch settings.
type SPV struct {
	CheckInterval      time.Duration
	FullCheckInterval  time.Duration
	ShowPeriodicChecks bool
	HeaderDB           string
	HeaderCacheTTL     time.Duration
	TrackReorgs        bool
}

// Wallet holds the key chain settings.
type Wallet struct {
	ScanDepth int
	Network   string
}

// Network holds the indexing server and node endpoints.
type Network struct {
	Server             string
	Port               int
	TLS                bool
	InsecureSkipVerify bool
	Timeout            time.Duration
	RateLimit          int
	NodeRPCURL         string
	NodeRPCUser        string
	NodeRPCPassword    string
}

// Log holds the logger settings.
type Log struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyMnemonic, "")
	v.SetDefault(KeyPasscode, "")
	v.SetDefault(KeySeedFile, "")

	v.SetDefault(KeyDestination, "")
	v.SetDefault(KeyAmount, "0.001")
	v.SetDefault(KeyFeePerByte, 1)

	v.SetDefault(KeyCheckInterval, 3)
	v.SetDefault(KeyFullCheckInterval, 5)
	v.SetDefault(KeyShowPeriodicChecks, true)
	v.SetDefault(KeyHeaderDB, "")
	v.SetDefault(KeyHeaderCacheTTL, "10m")
	v.SetDefault(KeyTrackReorgs, false)

	v.SetDefault(KeyScanDepth, wallet.DefaultScanDepth)
	v.SetDefault(KeyNetwork, "mainnet")

	v.SetDefault(KeyServer, network.DefaultServer)
	v.SetDefault(KeyPort, network.DefaultPort)
	v.SetDefault(KeyTLS, true)
	v.SetDefault(KeyInsecureTLS, true)
	v.SetDefault(KeyTimeout, int(network.DefaultTimeout/time.Second))
	v.SetDefault(KeyRateLimit, network.DefaultRateLimit)
	v.SetDefault(KeyNodeRPCURL, "")
	v.SetDefault(KeyNodeRPCUser, "")
	v.SetDefault(KeyNodeRPCPassword, "")

	v.SetDefault(KeyLogLevel, "info")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

// Load reads path (an INI file) with environment overrides applied, then
// validates the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("ini")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, path, err)
		}
	}

	cfg := fromViper(v)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	seconds := func(key string) time.Duration {
		return time.Duration(v.GetInt(key)) * time.Second
	}
	return &Config{
		Credentials: Credentials{
			Mnemonic: strings.TrimSpace(v.GetString(KeyMnemonic)),
			Passcode: v.GetString(KeyPasscode),
			SeedFile: strings.TrimSpace(v.GetString(KeySeedFile)),
		},
		Transaction: Transaction{
			DestinationAddress: strings.TrimSpace(v.GetString(KeyDestination)),
			AmountBSV:          strings.TrimSpace(v.GetString(KeyAmount)),
			FeePerByte:         v.GetUint64(KeyFeePerByte),
		},
		SPV: SPV{
			CheckInterval:      seconds(KeyCheckInterval),
			FullCheckInterval:  seconds(KeyFullCheckInterval),
			ShowPeriodicChecks: v.GetBool(KeyShowPeriodicChecks),
			HeaderDB:           strings.TrimSpace(v.GetString(KeyHeaderDB)),
			HeaderCacheTTL:     v.GetDuration(KeyHeaderCacheTTL),
			TrackReorgs:        v.GetBool(KeyTrackReorgs),
		},
		Wallet: Wallet{
			ScanDepth: v.GetInt(KeyScanDepth),
			Network:   strings.ToLower(strings.TrimSpace(v.GetString(KeyNetwork))),
		},
		Network: Network{
			Server:             strings.TrimSpace(v.GetString(KeyServer)),
			Port:               v.GetInt(KeyPort),
			TLS:                v.GetBool(KeyTLS),
			InsecureSkipVerify: v.GetBool(KeyInsecureTLS),
			Timeout:            seconds(KeyTimeout),
			RateLimit:          v.GetInt(KeyRateLimit),
			NodeRPCURL:         strings.TrimSpace(v.GetString(KeyNodeRPCURL)),
			NodeRPCUser:        v.GetString(KeyNodeRPCUser),
			NodeRPCPassword:    v.GetString(KeyNodeRPCPassword),
		},
		Log: Log{
			Level: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		},
	}
}

// HasMnemonic reports whether a real mnemonic (not the placeholder) is set.
func (c *Config) HasMnemonic() bool {
	return c.Credentials.Mnemonic != "" && c.Credentials.Mnemonic != PlaceholderMnemonic
}

// SPVNetwork returns the chain selected by wallet.network.
func (c *Config) SPVNetwork() spv.Network {
	if c.Wallet.Network == "testnet" {
		return spv.Testnet
	}
	return spv.Mainnet
}

// AmountSatoshis parses amount_to_send_bsv.
func (c *Config) AmountSatoshis() (uint64, error) {
	sats, err := wallet.ParseBSV(c.Transaction.AmountBSV)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	return sats, nil
}

// Destination returns destination_address, or ErrMissingDestination while it
// is empty or the placeholder.
func (c *Config) Destination() (string, error) {
	d := c.Transaction.DestinationAddress
	if d == "" || d == PlaceholderDestination {
		return "", ErrMissingDestination
	}
	return d, nil
}

// ClientConfig returns the ElectrumX client settings.
func (c *Config) ClientConfig() network.ClientConfig {
	return network.ClientConfig{
		Server:             c.Network.Server,
		Port:               c.Network.Port,
		TLS:                c.Network.TLS,
		InsecureSkipVerify: c.Network.InsecureSkipVerify,
		Timeout:            c.Network.Timeout,
		RateLimit:          c.Network.RateLimit,
	}
}

// NodeRPCConfig returns the node broadcaster settings. The URL is empty when
// no node is configured.
func (c *Config) NodeRPCConfig() network.NodeRPCConfig {
	return network.NodeRPCConfig{
		URL:      c.Network.NodeRPCURL,
		User:     c.Network.NodeRPCUser,
		Password: c.Network.NodeRPCPassword,
		Timeout:  c.Network.Timeout,
	}
}

const defaultTemplate = `[Credentials]
# BIP39 mnemonic (12 or 24 words). Keep it secret.
mnemonic = ` + PlaceholderMnemonic + `

# Optional BIP39 passphrase
passcode =

# Optional argon2 encrypted mnemonic, used instead of mnemonic when set
seed_file =

[Transaction]
destination_address = ` + PlaceholderDestination + `

# Amount in BSV, for example 0.001
amount_to_send_bsv = 0.001

# Fee in satoshis per byte
fee_per_byte = 1

[SPV]
# Fast mode poll interval in seconds
check_interval = 3

# Full mode poll interval in seconds
full_check_interval = 5

show_periodic_checks = true

# Optional bbolt file for verified headers
header_db =

header_cache_ttl = 10m
track_reorgs = false

[Wallet]
# Addresses scanned at m/44'/0'/0'/i
scan_depth = 20
network = mainnet

[Network]
server = ` + network.DefaultServer + `
port = 50002
tls = true
insecure_skip_verify = true
timeout = 10
rate_limit = 10

# Optional bitcoind-style JSON-RPC endpoint used for broadcasting
node_rpc_url =
node_rpc_user =
node_rpc_password =

[Log]
level = info
`

// WriteDefault creates a commented config file at path holding placeholder
// credentials. It never overwrites an existing file.
func WriteDefault(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	if _, err := f.WriteString(defaultTemplate); err != nil {
		_ = f.Close()
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return f.Close()
}
