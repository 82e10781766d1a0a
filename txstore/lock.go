package txstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked indicates another process holds the spend lock.
var ErrLocked = errors.New("txstore: another send is in progress")

const lockName = "send.lock"

// SpendLock serializes payments across processes sharing one output
// directory. Two concurrent sends would otherwise select the same coins.
type SpendLock struct {
	f *os.File
}

// TryLock takes the spend lock in dir without blocking.
func TryLock(dir string) (*SpendLock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	f, err := tryLock(filepath.Join(dir, lockName))
	if err != nil {
		return nil, err
	}
	return &SpendLock{f: f}, nil
}

// Release unlocks. It is safe to call more than once.
func (l *SpendLock) Release() {
	if l == nil {
		return
	}
	releaseLock(l.f)
	l.f = nil
}
