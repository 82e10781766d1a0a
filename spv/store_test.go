package spv

import (
	"path/filepath"
	"testing"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]HeaderStore {
	t.Helper()
	bolt, err := OpenBoltHeaderStore(filepath.Join(t.TempDir(), "nested", "headers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	return map[string]HeaderStore{
		"mem":  NewMemHeaderStore(),
		"bolt": bolt,
	}
}

func TestHeaderStores(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetHeaderByHeight(10)
			assert.ErrorIs(t, err, ErrHeaderNotFound)
			_, _, err = store.Tip()
			assert.ErrorIs(t, err, ErrHeaderNotFound)

			a := mineRegtestHeader(t, chainhash.Hash{}, DoubleHash([]byte("a")))
			b := mineRegtestHeader(t, a.Hash(), DoubleHash([]byte("b")))

			require.NoError(t, store.PutHeader(10, a))
			require.NoError(t, store.PutHeader(11, b))

			got, err := store.GetHeaderByHeight(10)
			require.NoError(t, err)
			assert.Equal(t, a.Hash(), got.Hash())

			height, tip, err := store.Tip()
			require.NoError(t, err)
			assert.Equal(t, uint32(11), height)
			assert.Equal(t, b.Hash(), tip.Hash())

			// Replacing a height models a reorganisation.
			c := mineRegtestHeader(t, a.Hash(), DoubleHash([]byte("c")))
			require.NoError(t, store.PutHeader(11, c))
			got, err = store.GetHeaderByHeight(11)
			require.NoError(t, err)
			assert.Equal(t, c.Hash(), got.Hash())

			count, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 2, count)

			require.NoError(t, store.DeleteHeader(11))
			require.NoError(t, store.DeleteHeader(99))
			_, err = store.GetHeaderByHeight(11)
			assert.ErrorIs(t, err, ErrHeaderNotFound)

			assert.ErrorIs(t, store.PutHeader(12, nil), ErrNilParam)
		})
	}
}

func TestBoltHeaderStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headers.db")
	h := mineRegtestHeader(t, chainhash.Hash{}, DoubleHash([]byte("persist")))

	store, err := OpenBoltHeaderStore(path)
	require.NoError(t, err)
	require.NoError(t, store.PutHeader(700000, h))
	require.NoError(t, store.Close())

	store, err = OpenBoltHeaderStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetHeaderByHeight(700000)
	require.NoError(t, err)
	assert.Equal(t, h.Serialize(), got.Serialize())
}

func TestBoltHeaderStoreScopes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headers.db")
	h := mineRegtestHeader(t, chainhash.Hash{}, DoubleHash([]byte("scoped")))

	root, err := OpenBoltHeaderStore(path)
	require.NoError(t, err)
	a, err := root.Scope("aaaa")
	require.NoError(t, err)
	b, err := root.Scope("bbbb")
	require.NoError(t, err)

	require.NoError(t, a.PutHeader(700000, h))
	_, err = b.GetHeaderByHeight(700000)
	assert.ErrorIs(t, err, ErrHeaderNotFound)
	_, err = root.GetHeaderByHeight(700000)
	assert.ErrorIs(t, err, ErrHeaderNotFound)

	require.NoError(t, b.PutHeader(700001, h))
	require.NoError(t, b.DeleteHeader(700000))
	count, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	same, err := root.Scope("")
	require.NoError(t, err)
	assert.Same(t, root, same)
	require.NoError(t, root.Close())

	root, err = OpenBoltHeaderStore(path)
	require.NoError(t, err)
	defer root.Close()
	a, err = root.Scope("aaaa")
	require.NoError(t, err)
	got, err := a.GetHeaderByHeight(700000)
	require.NoError(t, err)
	assert.Equal(t, h.Serialize(), got.Serialize())
}
