//go:build windows

package txstore

import (
	"fmt"
	"os"
)

// Windows has no flock; the lock file is opened but concurrent sends are
// not excluded.
func tryLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
}
