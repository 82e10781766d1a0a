package spv

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketHeaders = []byte("headers_by_height")

// BoltHeaderStore persists verified headers in a bbolt database. Keys are
// 4-byte big-endian heights so cursor order is height order; values are the
// 80-byte serialized headers.
type BoltHeaderStore struct {
	db     *bbolt.DB
	bucket []byte
}

// Compile-time interface check.
var _ HeaderStore = (*BoltHeaderStore)(nil)

// OpenBoltHeaderStore opens or creates the database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltHeaderStore(dbPath string) (*BoltHeaderStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("spv: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("spv: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketHeaders)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("spv: create bucket %q: %w", bucketHeaders, err)
	}

	return &BoltHeaderStore{db: db, bucket: bucketHeaders}, nil
}

// Scope returns a store on the same database whose headers live in their own
// bucket, so several watches can share one file without seeing each other's
// entries. Closing any scope closes the database.
func (s *BoltHeaderStore) Scope(name string) (*BoltHeaderStore, error) {
	if name == "" {
		return s, nil
	}
	bucket := []byte(string(bucketHeaders) + "/" + name)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("spv: create bucket %q: %w", bucket, err)
	}
	return &BoltHeaderStore{db: s.db, bucket: bucket}, nil
}

// Close closes the underlying database.
func (s *BoltHeaderStore) Close() error { return s.db.Close() }

func heightKey(h uint32) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, h)
	return k
}

// PutHeader stores a header at height, replacing any previous entry.
func (s *BoltHeaderStore) PutHeader(height uint32, header *BlockHeader) error {
	if header == nil {
		return fmt.Errorf("%w: header", ErrNilParam)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(s.bucket).Put(heightKey(height), header.Serialize()); err != nil {
			return fmt.Errorf("spv: put header %d: %w", height, err)
		}
		return nil
	})
}

// GetHeaderByHeight retrieves a header by block height.
func (s *BoltHeaderStore) GetHeaderByHeight(height uint32) (*BlockHeader, error) {
	var header *BlockHeader
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(s.bucket).Get(heightKey(height))
		if data == nil {
			return ErrHeaderNotFound
		}
		h, err := ParseHeader(data)
		if err != nil {
			return fmt.Errorf("spv: decode header %d: %w", height, err)
		}
		header = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// DeleteHeader removes the header at height.
func (s *BoltHeaderStore) DeleteHeader(height uint32) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(heightKey(height))
	})
}

// Tip returns the header with the greatest height.
func (s *BoltHeaderStore) Tip() (uint32, *BlockHeader, error) {
	var (
		height uint32
		header *BlockHeader
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(s.bucket).Cursor().Last()
		if k == nil {
			return ErrHeaderNotFound
		}
		h, err := ParseHeader(v)
		if err != nil {
			return fmt.Errorf("spv: decode tip header: %w", err)
		}
		height = binary.BigEndian.Uint32(k)
		header = h
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return height, header, nil
}

// Count returns the number of stored headers.
func (s *BoltHeaderStore) Count() (int, error) {
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}
