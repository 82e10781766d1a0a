// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/spvwallet-go/spv"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

func TestDefault(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"FeePerByte", cfg.Transaction.FeePerByte, uint64(1)},
		{"AmountBSV", cfg.Transaction.AmountBSV, "0.001"},
		{"CheckInterval", cfg.SPV.CheckInterval, 3 * time.Second},
		{"FullCheckInterval", cfg.SPV.FullCheckInterval, 5 * time.Second},
		{"ShowPeriodicChecks", cfg.SPV.ShowPeriodicChecks, true},
		{"HeaderCacheTTL", cfg.SPV.HeaderCacheTTL, 10 * time.Minute},
		{"TrackReorgs", cfg.SPV.TrackReorgs, false},
		{"ScanDepth", cfg.Wallet.ScanDepth, 20},
		{"Network", cfg.Wallet.Network, "mainnet"},
		{"Server", cfg.Network.Server, "electrumx.gorillapool.io"},
		{"Port", cfg.Network.Port, 50002},
		{"TLS", cfg.Network.TLS, true},
		{"Timeout", cfg.Network.Timeout, 10 * time.Second},
		{"RateLimit", cfg.Network.RateLimit, 10},
		{"LogLevel", cfg.Log.Level, "info"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}

	require.NoError(t, ValidateConfig(cfg))
	assert.False(t, cfg.HasMnemonic())
	assert.Equal(t, spv.Mainnet, cfg.SPVNetwork())
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoadINI(t *testing.T) {
	path := writeFile(t, `[Credentials]
mnemonic = abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about
passcode = hunter2

[Transaction]
destination_address = 1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH
amount_to_send_bsv = 0.0005
fee_per_byte = 2

[SPV]
check_interval = 4
full_check_interval = 12
show_periodic_checks = false
track_reorgs = true
header_cache_ttl = 90s

[Wallet]
scan_depth = 50
network = testnet

[Network]
server = localhost
port = 50001
tls = false
node_rpc_url = http://127.0.0.1:8332

[Log]
level = debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.HasMnemonic())
	assert.Equal(t, "hunter2", cfg.Credentials.Passcode)
	assert.Equal(t, uint64(2), cfg.Transaction.FeePerByte)
	sats, err := cfg.AmountSatoshis()
	require.NoError(t, err)
	assert.Equal(t, uint64(50000), sats)
	dest, err := cfg.Destination()
	require.NoError(t, err)
	assert.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", dest)

	assert.Equal(t, 4*time.Second, cfg.SPV.CheckInterval)
	assert.Equal(t, 12*time.Second, cfg.SPV.FullCheckInterval)
	assert.False(t, cfg.SPV.ShowPeriodicChecks)
	assert.True(t, cfg.SPV.TrackReorgs)
	assert.Equal(t, 90*time.Second, cfg.SPV.HeaderCacheTTL)

	assert.Equal(t, 50, cfg.Wallet.ScanDepth)
	assert.Equal(t, spv.Testnet, cfg.SPVNetwork())

	cc := cfg.ClientConfig()
	assert.Equal(t, "localhost", cc.Server)
	assert.Equal(t, 50001, cc.Port)
	assert.False(t, cc.TLS)
	assert.Equal(t, 10*time.Second, cc.Timeout)
	assert.Equal(t, "http://127.0.0.1:8332", cfg.NodeRPCConfig().URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "[Transaction]\nfee_per_byte = 2\n")
	t.Setenv("SPVWALLET_TRANSACTION_FEE_PER_BYTE", "5")
	t.Setenv("SPVWALLET_WALLET_SCAN_DEPTH", "7")
	t.Setenv("SPVWALLET_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cfg.Transaction.FeePerByte)
	assert.Equal(t, 7, cfg.Wallet.ScanDepth)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Wallet.ScanDepth)
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"network", "[Wallet]\nnetwork = litecoin\n", ErrInvalidNetwork},
		{"scan depth zero", "[Wallet]\nscan_depth = 0\n", ErrInvalidScanDepth},
		{"scan depth huge", "[Wallet]\nscan_depth = 1001\n", ErrInvalidScanDepth},
		{"fee rate", "[Transaction]\nfee_per_byte = 0\n", ErrInvalidFeeRate},
		{"amount", "[Transaction]\namount_to_send_bsv = 0.000000001\n", ErrInvalidAmount},
		{"amount text", "[Transaction]\namount_to_send_bsv = lots\n", ErrInvalidAmount},
		{"interval", "[SPV]\ncheck_interval = 0\n", ErrInvalidInterval},
		{"full shorter", "[SPV]\ncheck_interval = 10\nfull_check_interval = 5\n", ErrInvalidInterval},
		{"port", "[Network]\nport = 70000\n", ErrInvalidServer},
		{"server", "[Network]\nserver =\n", ErrInvalidServer},
		{"log level", "[Log]\nlevel = trace\n", ErrInvalidLogLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidateConfigNil(t *testing.T) {
	assert.ErrorIs(t, ValidateConfig(nil), ErrInvalidConfig)
}

func TestDestinationPlaceholder(t *testing.T) {
	cfg := Default()
	_, err := cfg.Destination()
	assert.ErrorIs(t, err, ErrMissingDestination)

	cfg.Transaction.DestinationAddress = PlaceholderDestination
	_, err = cfg.Destination()
	assert.ErrorIs(t, err, ErrMissingDestination)
}

// ---------------------------------------------------------------------------
// WriteDefault
// ---------------------------------------------------------------------------

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, WriteDefault(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.HasMnemonic(), "placeholder mnemonic counts as unset")
	assert.Equal(t, PlaceholderMnemonic, cfg.Credentials.Mnemonic)
	_, err = cfg.Destination()
	assert.ErrorIs(t, err, ErrMissingDestination)
	assert.Equal(t, Default().SPV, cfg.SPV)
	assert.Equal(t, Default().Network, cfg.Network)

	assert.ErrorIs(t, WriteDefault(path), ErrConfigExists)
}
