// Package txstore keeps signed transactions on disk until they are broadcast,
// so a payment whose broadcast failed can be sent again.
package txstore

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bsv-blockchain/go-sdk/chainhash"

	"github.com/bitfsorg/spvwallet-go/spv"
)

const fileExt = ".hex"

// Store keeps raw transactions indexed by txid.
type Store interface {
	// Put stores raw under txid. raw must double-hash to txid.
	Put(txid chainhash.Hash, raw []byte) error

	// Get returns the raw transaction stored under txid.
	Get(txid chainhash.Hash) ([]byte, error)

	// Has reports whether txid is stored.
	Has(txid chainhash.Hash) (bool, error)

	// Delete removes txid from the store.
	Delete(txid chainhash.Hash) error

	// List returns every stored txid in display-hex order.
	List() ([]chainhash.Hash, error)
}

// FileStore implements Store on the local filesystem.
// Files are stored at: {baseDir}/{txid[:2]}/{txid}.hex with txid in display hex,
// one hex-encoded transaction per file.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates the store directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// TxIDToPath returns the file that holds txid under baseDir.
func TxIDToPath(baseDir string, txid chainhash.Hash) string {
	name := spv.DisplayHex(txid)
	return filepath.Join(baseDir, name[:2], name+fileExt)
}

// Put stores raw under txid, overwriting any previous copy.
func (fs *FileStore) Put(txid chainhash.Hash, raw []byte) error {
	if len(raw) == 0 {
		return ErrEmptyContent
	}
	if spv.DoubleHash(raw) != txid {
		return ErrTxIDMismatch
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := TxIDToPath(fs.baseDir, txid)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	data := append([]byte(hex.EncodeToString(raw)), '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Get reads txid back and checks that the file still hashes to it.
func (fs *FileStore) Get(txid chainhash.Hash) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(TxIDToPath(fs.baseDir, txid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	raw, err := hex.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil || len(raw) == 0 || spv.DoubleHash(raw) != txid {
		return nil, ErrCorrupt
	}
	return raw, nil
}

// Has reports whether txid is stored.
func (fs *FileStore) Has(txid chainhash.Hash) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(TxIDToPath(fs.baseDir, txid))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return true, nil
}

// Delete removes txid. Deleting a missing txid returns ErrNotFound.
func (fs *FileStore) Delete(txid chainhash.Hash) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(TxIDToPath(fs.baseDir, txid)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// List scans the shard directories. Files that are not named after a txid
// are skipped.
func (fs *FileStore) List() ([]chainhash.Hash, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name, ok := strings.CutSuffix(f.Name(), fileExt)
			if f.IsDir() || !ok || !strings.HasPrefix(name, entry.Name()) {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)

	result := make([]chainhash.Hash, 0, len(names))
	for _, name := range names {
		txid, err := spv.HashFromDisplayHex(name)
		if err != nil {
			continue
		}
		result = append(result, txid)
	}
	return result, nil
}
