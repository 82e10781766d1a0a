// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"strings"
)

// MaxScanDepth bounds wallet.scan_depth.
const MaxScanDepth = 1000

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid. Every
// error wraps ErrInvalidConfig.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return ErrInvalidConfig
	}
	if err := validate(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Wallet.Network != "mainnet" && cfg.Wallet.Network != "testnet" {
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, cfg.Wallet.Network)
	}

	if cfg.Wallet.ScanDepth < 1 || cfg.Wallet.ScanDepth > MaxScanDepth {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidScanDepth, cfg.Wallet.ScanDepth, MaxScanDepth)
	}

	if cfg.Transaction.FeePerByte == 0 {
		return ErrInvalidFeeRate
	}

	if cfg.Transaction.AmountBSV != "" {
		if _, err := cfg.AmountSatoshis(); err != nil {
			return err
		}
	}

	if cfg.SPV.CheckInterval <= 0 || cfg.SPV.FullCheckInterval <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidInterval)
	}
	if cfg.SPV.FullCheckInterval < cfg.SPV.CheckInterval {
		return fmt.Errorf("%w: full_check_interval %s is shorter than check_interval %s",
			ErrInvalidInterval, cfg.SPV.FullCheckInterval, cfg.SPV.CheckInterval)
	}
	if cfg.SPV.HeaderCacheTTL < 0 {
		return fmt.Errorf("%w: negative header_cache_ttl", ErrInvalidInterval)
	}

	if cfg.Network.Server == "" {
		return fmt.Errorf("%w: empty server", ErrInvalidServer)
	}
	if cfg.Network.Port < 1 || cfg.Network.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidServer, cfg.Network.Port)
	}
	if cfg.Network.Timeout <= 0 || cfg.Network.RateLimit < 0 {
		return fmt.Errorf("%w: timeout must be positive and rate_limit not negative", ErrInvalidServer)
	}

	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return ErrInvalidLogLevel
	}

	return nil
}
