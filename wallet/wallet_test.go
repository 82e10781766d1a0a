package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/spvwallet-go/network"
	"github.com/bitfsorg/spvwallet-go/spv"
)

const abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// fastKDF keeps seed file tests quick.
var fastKDF = KDFParams{Time: 1, Memory: 1024, Threads: 1}

func testKeyChain(t *testing.T, net spv.Network) *KeyChain {
	t.Helper()
	seed, err := SeedFromMnemonic(abandonMnemonic, "")
	require.NoError(t, err)
	kc, err := NewKeyChain(seed, net)
	require.NoError(t, err)
	return kc
}

// --- Mnemonic tests ---

func TestNewMnemonic(t *testing.T) {
	for bits, words := range map[int]int{Mnemonic12Words: 12, Mnemonic24Words: 24} {
		m, err := NewMnemonic(bits)
		require.NoError(t, err)
		assert.Len(t, strings.Fields(m), words)
		assert.True(t, ValidateMnemonic(m))
	}

	_, err := NewMnemonic(192)
	assert.ErrorIs(t, err, ErrInvalidEntropy)

	m1, _ := NewMnemonic(Mnemonic12Words)
	m2, _ := NewMnemonic(Mnemonic12Words)
	assert.NotEqual(t, m1, m2)
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"valid 12-word", abandonMnemonic, true},
		{"extra whitespace and case", "  Abandon abandon abandon abandon abandon abandon\tabandon abandon abandon abandon abandon ABOUT ", true},
		{"bad checksum", strings.Replace(abandonMnemonic, "about", "abandon", 1), false},
		{"invalid words", "foo bar baz qux quux corge grault garply waldo fred plugh xyzzy", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateMnemonic(tt.mnemonic))
		})
	}
}

func TestSeedFromMnemonic(t *testing.T) {
	seed, err := SeedFromMnemonic(abandonMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t,
		"5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4",
		hex.EncodeToString(seed))

	withPass, err := SeedFromMnemonic(abandonMnemonic, "TREZOR")
	require.NoError(t, err)
	assert.NotEqual(t, seed, withPass)

	_, err = SeedFromMnemonic("not a mnemonic", "")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

// --- Seed file tests ---

func TestEncryptDecryptMnemonic(t *testing.T) {
	sealed, err := EncryptMnemonicWithParams(abandonMnemonic, "correct horse", fastKDF)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "abandon")

	got, err := DecryptMnemonic(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, abandonMnemonic, got)

	_, err = DecryptMnemonic(sealed, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptMnemonicTampered(t *testing.T) {
	sealed, err := EncryptMnemonicWithParams(abandonMnemonic, "pw", fastKDF)
	require.NoError(t, err)

	// Flipping a header byte breaks authentication.
	salted := append([]byte(nil), sealed...)
	salted[20] ^= 0x01
	_, err = DecryptMnemonic(salted, "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	body := append([]byte(nil), sealed...)
	body[len(body)-1] ^= 0x80
	_, err = DecryptMnemonic(body, "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = DecryptMnemonic([]byte("short"), "pw")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	wrongVersion := append([]byte(nil), sealed...)
	wrongVersion[4] = 9
	_, err = DecryptMnemonic(wrongVersion, "pw")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestEncryptMnemonicRejectsInvalid(t *testing.T) {
	_, err := EncryptMnemonicWithParams("nope", "pw", fastKDF)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)

	_, err = EncryptMnemonicWithParams(abandonMnemonic, "pw", KDFParams{})
	assert.Error(t, err)
}

// --- Key chain tests ---

func TestKeyChainVectors(t *testing.T) {
	kc := testKeyChain(t, spv.Mainnet)

	tests := []struct {
		index      uint32
		address    string
		pubKey     string
		pubKeyHash string
		scriptHash string
	}{
		{0, "13KE6TffArLh4fVM6uoQzvsYq5vwetJcVM",
			"0386b865b52b753d0a84d09bc20063fab5d8453ec33c215d4019a5801c9c6438b9",
			"1962ab580d2d071c5d8585e3a75a591564c86fe9",
			"f0806f8b133985b9b36ee757893213754be5625bcf9d5c512611b41d549c5f36"},
		{1, "1DodQ3VxAyp2mF2CsFVxoVeBmZNTAky2yV",
			"02460c854614b92c993133c2d026badcd00c8a4c7b75f2cbeb18fd2859e0242e43",
			"8c7306cde3c21bdf5b07710e033f36cc85217ae9",
			"7e1869d751ffdb3b0575235600eb4269e8392b0494089b9878a5156bdc6f813b"},
	}
	for _, tt := range tests {
		kp, err := kc.DeriveKey(tt.index)
		require.NoError(t, err)
		assert.Equal(t, tt.address, kp.Address.Address)
		assert.Equal(t, tt.pubKey, hex.EncodeToString(kp.PublicKey.Compressed()))
		assert.Equal(t, tt.pubKeyHash, hex.EncodeToString(kp.Address.PubKeyHash[:]))
		assert.Equal(t, tt.scriptHash, kp.Address.ScriptHash())
		assert.Equal(t, "76a914"+tt.pubKeyHash+"88ac", hex.EncodeToString(kp.Address.ScriptPubKey))
		assert.Equal(t, tt.index, kp.Address.Index)
	}
}

func TestKeyChainTestnetAddress(t *testing.T) {
	kc := testKeyChain(t, spv.Testnet)
	addr, err := kc.Address(0)
	require.NoError(t, err)
	assert.Equal(t, "mhqBPWkdysmwqmxxpUmnpr5sh5XeXAofbL", addr.Address)
	assert.Equal(t, "f0806f8b133985b9b36ee757893213754be5625bcf9d5c512611b41d549c5f36", addr.ScriptHash())
}

func TestKeyChainPrivateKeyLookup(t *testing.T) {
	kc := testKeyChain(t, spv.Mainnet)

	kp, err := kc.DeriveKey(3)
	require.NoError(t, err)

	priv, err := kc.PrivateKey(kp.Address.PubKeyHash)
	require.NoError(t, err)
	assert.Equal(t, kp.PrivateKey.Serialize(), priv.Serialize())

	_, err = kc.PrivateKey([20]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = kc.DeriveKey(MaxAddressIndex + 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = NewKeyChain(nil, spv.Mainnet)
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestScriptFromAddress(t *testing.T) {
	spk, err := ScriptFromAddress("13KE6TffArLh4fVM6uoQzvsYq5vwetJcVM")
	require.NoError(t, err)
	assert.Equal(t, "76a9141962ab580d2d071c5d8585e3a75a591564c86fe988ac", hex.EncodeToString(spk))

	_, err = ScriptFromAddress("13KE6TffArLh4fVM6uoQzvsYq5vwetJcVN")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

// --- Amount tests ---

func TestFormatBSV(t *testing.T) {
	assert.Equal(t, "0.00000000", FormatBSV(0))
	assert.Equal(t, "0.00000546", FormatBSV(546))
	assert.Equal(t, "1.00000000", FormatBSV(SatoshisPerBSV))
	assert.Equal(t, "21000000.00000000", FormatBSV(21_000_000*SatoshisPerBSV))
}

func TestParseBSV(t *testing.T) {
	tests := []struct {
		in   string
		sats uint64
		err  bool
	}{
		{"0.0005", 50000, false},
		{"1", SatoshisPerBSV, false},
		{"0.00000001", 1, false},
		{"0.000000001", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBSV(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, ErrInvalidAmount, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.sats, got, tt.in)
	}
}

// --- Scanner tests ---

func TestScannerFindsFundedAddresses(t *testing.T) {
	kc := testKeyChain(t, spv.Mainnet)
	addr2, err := kc.Address(2)
	require.NoError(t, err)
	addr5, err := kc.Address(5)
	require.NoError(t, err)

	src := &network.MockClient{
		GetBalanceFn: func(_ context.Context, sh string) (*network.Balance, error) {
			switch sh {
			case addr2.ScriptHash():
				return &network.Balance{Confirmed: 100000}, nil
			case addr5.ScriptHash():
				return &network.Balance{Confirmed: 0, Unconfirmed: 2500}, nil
			}
			return &network.Balance{}, nil
		},
		ListUnspentFn: func(_ context.Context, sh string) ([]*network.Unspent, error) {
			if sh == addr2.ScriptHash() {
				return []*network.Unspent{{TxHash: strings.Repeat("ab", 32), TxPos: 0, Value: 100000, Height: 800000}}, nil
			}
			return nil, nil
		},
		TipHeightFn: func(context.Context) (uint32, error) { return 800009, nil },
	}

	res, err := NewScanner(kc, src, 8, nil).Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Addresses, 8)
	for i, a := range res.Addresses {
		assert.Equal(t, uint32(i), a.Address.Index) //nolint:gosec
	}
	assert.Equal(t, uint64(102500), res.Total)
	assert.Len(t, res.Funded(), 2)
	assert.Equal(t, addr2.Address, res.ChangeAddress().Address)
	assert.Equal(t, uint32(800009), res.TipHeight)
}

func TestScannerFallbackChangeAddress(t *testing.T) {
	kc := testKeyChain(t, spv.Mainnet)
	src := &network.MockClient{
		GetBalanceFn:  func(context.Context, string) (*network.Balance, error) { return &network.Balance{}, nil },
		ListUnspentFn: func(context.Context, string) ([]*network.Unspent, error) { return nil, nil },
	}

	res, err := NewScanner(kc, src, 0, nil).Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Addresses, DefaultScanDepth)
	assert.Zero(t, res.Total)
	assert.Zero(t, res.TipHeight)
	assert.Equal(t, uint32(0), res.ChangeAddress().Index)
}

func TestScannerAbortsOnError(t *testing.T) {
	kc := testKeyChain(t, spv.Mainnet)
	var calls atomic.Int32
	src := &network.MockClient{
		GetBalanceFn: func(context.Context, string) (*network.Balance, error) {
			if calls.Add(1) == 3 {
				return nil, network.ErrConnectionFailed
			}
			return &network.Balance{}, nil
		},
		ListUnspentFn: func(context.Context, string) ([]*network.Unspent, error) { return nil, nil },
	}

	_, err := NewScanner(kc, src, 10, nil).Scan(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrConnectionFailed))
}
