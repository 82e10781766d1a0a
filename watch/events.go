package watch

import "fmt"

// Event is emitted by a watcher. The concrete types are BalanceChanged,
// TransactionConfirmed, TransactionRejected and TransactionOrphaned.
type Event interface {
	// Watched returns the scripthash of the watch that produced the event.
	Watched() string
	String() string
	event()
}

// BalanceChanged reports a server-asserted balance change (fast mode).
type BalanceChanged struct {
	ScriptHash string
	Delta      int64
	NewBalance uint64
}

// TransactionConfirmed reports a transaction proven to be in a block whose
// header carries valid proof of work (full mode).
type TransactionConfirmed struct {
	ScriptHash  string
	TxID        string
	BlockHeight uint32
	BlockHash   string
	MerkleDepth uint32
}

// TransactionRejected reports a transaction whose proof failed verification.
// Its funds must not be treated as received.
type TransactionRejected struct {
	ScriptHash  string
	TxID        string
	BlockHeight uint32
	Reason      string
	Err         error
}

// TransactionOrphaned reports that the block of a previously confirmed
// transaction is no longer on the server's chain.
type TransactionOrphaned struct {
	ScriptHash  string
	TxID        string
	BlockHeight uint32
	BlockHash   string
}

func (BalanceChanged) event()       {}
func (TransactionConfirmed) event() {}
func (TransactionRejected) event()  {}
func (TransactionOrphaned) event()  {}

func (e BalanceChanged) Watched() string       { return e.ScriptHash }
func (e TransactionConfirmed) Watched() string { return e.ScriptHash }
func (e TransactionRejected) Watched() string  { return e.ScriptHash }
func (e TransactionOrphaned) Watched() string  { return e.ScriptHash }

func (e BalanceChanged) String() string {
	return fmt.Sprintf("balance changed by %+d to %d sat", e.Delta, e.NewBalance)
}

func (e TransactionConfirmed) String() string {
	return fmt.Sprintf("tx %s confirmed at height %d (merkle depth %d)", e.TxID, e.BlockHeight, e.MerkleDepth)
}

func (e TransactionRejected) String() string {
	return fmt.Sprintf("tx %s rejected: %s", e.TxID, e.Reason)
}

func (e TransactionOrphaned) String() string {
	return fmt.Sprintf("tx %s orphaned: block %s at height %d left the chain", e.TxID, e.BlockHash, e.BlockHeight)
}
