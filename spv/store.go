package spv

import (
	"fmt"
	"sync"
)

// HeaderStore remembers headers that have been verified, by height.
// Storing a header at an occupied height replaces the previous one.
type HeaderStore interface {
	// PutHeader stores a header at the given height.
	PutHeader(height uint32, header *BlockHeader) error

	// GetHeaderByHeight retrieves the header stored at height.
	GetHeaderByHeight(height uint32) (*BlockHeader, error)

	// DeleteHeader removes the header at height. Missing heights are not an error.
	DeleteHeader(height uint32) error

	// Tip returns the stored header with the greatest height.
	Tip() (uint32, *BlockHeader, error)

	// Count returns the number of stored headers.
	Count() (int, error)
}

// MemHeaderStore is an in-memory HeaderStore.
type MemHeaderStore struct {
	mu       sync.RWMutex
	byHeight map[uint32]BlockHeader
}

// Compile-time interface check.
var _ HeaderStore = (*MemHeaderStore)(nil)

// NewMemHeaderStore creates a new in-memory header store.
func NewMemHeaderStore() *MemHeaderStore {
	return &MemHeaderStore{byHeight: make(map[uint32]BlockHeader)}
}

// PutHeader stores a copy of header at height.
func (s *MemHeaderStore) PutHeader(height uint32, header *BlockHeader) error {
	if header == nil {
		return fmt.Errorf("%w: header", ErrNilParam)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHeight[height] = *header
	return nil
}

// GetHeaderByHeight retrieves a header by block height.
func (s *MemHeaderStore) GetHeaderByHeight(height uint32) (*BlockHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.byHeight[height]
	if !ok {
		return nil, ErrHeaderNotFound
	}
	return &h, nil
}

// DeleteHeader removes the header at height.
func (s *MemHeaderStore) DeleteHeader(height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byHeight, height)
	return nil
}

// Tip returns the header with the greatest height.
func (s *MemHeaderStore) Tip() (uint32, *BlockHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.byHeight) == 0 {
		return 0, nil, ErrHeaderNotFound
	}
	var tip uint32
	for height := range s.byHeight {
		if height > tip {
			tip = height
		}
	}
	h := s.byHeight[tip]
	return tip, &h, nil
}

// Count returns the number of stored headers.
func (s *MemHeaderStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHeight), nil
}
