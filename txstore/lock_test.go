//go:build unix

package txstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpendLock_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	l, err := TryLock(dir)
	require.NoError(t, err)
	defer l.Release()

	_, err = os.Stat(filepath.Join(dir, lockName))
	assert.NoError(t, err)
}

func TestSpendLock_Exclusive(t *testing.T) {
	dir := t.TempDir()

	l1, err := TryLock(dir)
	require.NoError(t, err)
	defer l1.Release()

	l2, err := TryLock(dir)
	assert.ErrorIs(t, err, ErrLocked)
	assert.Nil(t, l2)
}

func TestSpendLock_ReleaseThenReacquire(t *testing.T) {
	dir := t.TempDir()

	l1, err := TryLock(dir)
	require.NoError(t, err)
	l1.Release()
	l1.Release()

	l2, err := TryLock(dir)
	require.NoError(t, err)
	l2.Release()

	var nilLock *SpendLock
	nilLock.Release()
}
