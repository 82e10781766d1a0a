package tx

import (
	"bytes"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	sighash "github.com/bsv-blockchain/go-sdk/transaction/sighash"

	"github.com/bitfsorg/spvwallet-go/spv"
)

// SigHashType is the sighash flag appended to every signature.
const SigHashType = sighash.AllForkID

// KeyLookup resolves the private key owning a P2PKH public key hash.
type KeyLookup interface {
	PrivateKey(pubKeyHash [20]byte) (*ec.PrivateKey, error)
}

// Sign produces the finalized transaction for d. Each input is signed over
// its FORKID preimage with a low-S, strictly DER-encoded signature that is
// verified before it is embedded. The draft itself is not modified.
func Sign(d *Draft, keys KeyLookup) (*FinalizedTx, error) {
	if keys == nil {
		return nil, fmt.Errorf("%w: key lookup", ErrNilParam)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	sdkTx, err := d.unsignedTx()
	if err != nil {
		return nil, err
	}

	for i, in := range d.Inputs {
		pkh := in.UTXO.Address.PubKeyHash
		priv, err := keys.PrivateKey(pkh)
		if err != nil {
			return nil, fmt.Errorf("%w: input %d (%s): %w", ErrUnknownKey, i, in.UTXO.Outpoint(), err)
		}
		if priv == nil {
			return nil, fmt.Errorf("%w: input %d (%s)", ErrUnknownKey, i, in.UTXO.Outpoint())
		}
		pub := priv.PubKey().Compressed()
		if !bytes.Equal(spv.Hash160(pub), pkh[:]) {
			return nil, fmt.Errorf("%w: input %d: key does not match %x", ErrUnknownKey, i, pkh)
		}

		unlock, err := signInput(sdkTx, i, priv, pub)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		sdkTx.Inputs[i].UnlockingScript = unlock
	}

	for i, in := range d.Inputs {
		if err := VerifyInput(sdkTx, i, in.UTXO.Value, in.UTXO.Address.ScriptPubKey); err != nil {
			return nil, err
		}
	}

	return newFinalizedTx(sdkTx, d), nil
}

// unsignedTx converts the draft to a go-sdk transaction with source outputs
// attached for sighash computation.
func (d *Draft) unsignedTx() (*transaction.Transaction, error) {
	sdkTx := transaction.NewTransaction()
	sdkTx.Version = d.Version
	sdkTx.LockTime = d.LockTime

	for i, in := range d.Inputs {
		txid, err := chainhash.NewHash(in.UTXO.TxID[:])
		if err != nil {
			return nil, fmt.Errorf("%w: input %d: %w", ErrMalformedDraft, i, err)
		}
		sdkTx.AddInput(&transaction.TransactionInput{
			SourceTXID:       txid,
			SourceTxOutIndex: in.UTXO.Vout,
			SequenceNumber:   in.Sequence,
		})
		sdkTx.Inputs[i].SetSourceTxOutput(&transaction.TransactionOutput{
			Satoshis:      in.UTXO.Value,
			LockingScript: script.NewFromBytes(in.UTXO.Address.ScriptPubKey),
		})
	}
	for _, out := range d.Outputs {
		sdkTx.AddOutput(&transaction.TransactionOutput{
			Satoshis:      out.Value,
			LockingScript: script.NewFromBytes(out.LockingScript),
		})
	}
	return sdkTx, nil
}

func signInput(sdkTx *transaction.Transaction, i int, priv *ec.PrivateKey, pub []byte) (*script.Script, error) {
	digest, err := sdkTx.CalcInputSignatureHash(uint32(i), SigHashType) //nolint:gosec // input count is small
	if err != nil {
		return nil, fmt.Errorf("%w: sighash: %w", ErrMalformedDraft, err)
	}

	sig, err := priv.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	normalizeLowS(sig)

	der := sig.Serialize()
	if !IsCanonicalSignature(der) {
		return nil, fmt.Errorf("%w: %x", ErrNonCanonicalSignature, der)
	}
	if !sig.Verify(digest, priv.PubKey()) {
		return nil, ErrSignatureInvalid
	}

	unlock := &script.Script{}
	if err := unlock.AppendPushData(append(der, byte(SigHashType))); err != nil {
		return nil, fmt.Errorf("push sig: %w", err)
	}
	if err := unlock.AppendPushData(pub); err != nil {
		return nil, fmt.Errorf("push pubkey: %w", err)
	}
	return unlock, nil
}

// VerifyInput checks input i of a signed transaction against the P2PKH
// output it spends: the pushed key must hash to the locking script's key
// hash, and the signature must be canonical and valid over the FORKID
// preimage committing to prevValue and prevScript.
func VerifyInput(sdkTx *transaction.Transaction, i int, prevValue uint64, prevScript []byte) error {
	if sdkTx == nil {
		return fmt.Errorf("%w: transaction", ErrNilParam)
	}
	if i < 0 || i >= len(sdkTx.Inputs) {
		return fmt.Errorf("%w: input %d out of range", ErrMalformedDraft, i)
	}
	wantHash, ok := p2pkhHash(prevScript)
	if !ok {
		return fmt.Errorf("%w: input %d spends a non-P2PKH output", ErrMalformedDraft, i)
	}

	in := sdkTx.Inputs[i]
	if in.UnlockingScript == nil {
		return fmt.Errorf("%w: input %d is unsigned", ErrSignatureInvalid, i)
	}
	sigWithType, pubBytes, ok := splitUnlocking(*in.UnlockingScript)
	if !ok {
		return fmt.Errorf("%w: input %d: unlocking script is not <sig> <pubkey>", ErrSignatureInvalid, i)
	}
	if sigWithType[len(sigWithType)-1] != byte(SigHashType) {
		return fmt.Errorf("%w: input %d: sighash type %#x", ErrSignatureInvalid, i, sigWithType[len(sigWithType)-1])
	}
	der := sigWithType[:len(sigWithType)-1]
	if !IsCanonicalSignature(der) {
		return fmt.Errorf("%w: input %d", ErrNonCanonicalSignature, i)
	}
	if !bytes.Equal(spv.Hash160(pubBytes), wantHash) {
		return fmt.Errorf("%w: input %d: public key does not match locking script", ErrSignatureInvalid, i)
	}

	pub, err := ec.PublicKeyFromBytes(pubBytes)
	if err != nil {
		return fmt.Errorf("%w: input %d: %w", ErrSignatureInvalid, i, err)
	}

	in.SetSourceTxOutput(&transaction.TransactionOutput{
		Satoshis:      prevValue,
		LockingScript: script.NewFromBytes(prevScript),
	})
	digest, err := sdkTx.CalcInputSignatureHash(uint32(i), SigHashType) //nolint:gosec // bounds checked above
	if err != nil {
		return fmt.Errorf("%w: input %d sighash: %w", ErrMalformedDraft, i, err)
	}

	r, s, _ := parseStrictDER(der)
	sig := &ec.Signature{R: r, S: s}
	if !sig.Verify(digest, pub) {
		return fmt.Errorf("%w: input %d", ErrSignatureInvalid, i)
	}
	return nil
}

// p2pkhHash extracts the key hash of OP_DUP OP_HASH160 <20> OP_EQUALVERIFY OP_CHECKSIG.
func p2pkhHash(s []byte) ([]byte, bool) {
	if len(s) != 25 || s[0] != script.OpDUP || s[1] != script.OpHASH160 || s[2] != 0x14 ||
		s[23] != script.OpEQUALVERIFY || s[24] != script.OpCHECKSIG {
		return nil, false
	}
	return s[3:23], true
}

// splitUnlocking parses two direct pushes.
func splitUnlocking(s []byte) (sig, pub []byte, ok bool) {
	sig, rest, ok := directPush(s)
	if !ok || len(sig) < 9 {
		return nil, nil, false
	}
	pub, rest, ok = directPush(rest)
	if !ok || len(rest) != 0 || len(pub) != 33 {
		return nil, nil, false
	}
	return sig, pub, true
}

func directPush(s []byte) (data, rest []byte, ok bool) {
	if len(s) == 0 || s[0] == 0 || s[0] >= script.OpPUSHDATA1 {
		return nil, nil, false
	}
	n := int(s[0])
	if len(s) < 1+n {
		return nil, nil, false
	}
	return s[1 : 1+n], s[1+n:], true
}
