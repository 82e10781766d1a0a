// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\" or \"testnet\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrInvalidScanDepth indicates the scan depth is outside 1..MaxScanDepth.
	ErrInvalidScanDepth = errors.New("config: invalid scan depth")

	// ErrInvalidFeeRate indicates a zero fee rate.
	ErrInvalidFeeRate = errors.New("config: fee_per_byte must be at least 1")

	// ErrInvalidInterval indicates a non-positive or inconsistent SPV interval.
	ErrInvalidInterval = errors.New("config: invalid SPV interval")

	// ErrInvalidAmount indicates amount_to_send_bsv is not a valid BSV amount.
	ErrInvalidAmount = errors.New("config: invalid amount_to_send_bsv")

	// ErrInvalidServer indicates an unusable indexing server endpoint.
	ErrInvalidServer = errors.New("config: invalid server")

	// ErrMissingMnemonic indicates neither a mnemonic nor a seed file is configured.
	ErrMissingMnemonic = errors.New("config: mnemonic not configured")

	// ErrMissingDestination indicates the destination address still holds the placeholder.
	ErrMissingDestination = errors.New("config: destination_address not configured")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrConfigExists indicates WriteDefault would overwrite an existing file.
	ErrConfigExists = errors.New("config: configuration file already exists")
)
