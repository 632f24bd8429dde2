package memory

import (
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomEmbedding(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func populatedStore(t *testing.T, dim, count int) (*Store, [][]float32) {
	t.Helper()
	store, err := NewStore(dim, max(count, 1))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(int64(count)))
	embeddings := make([][]float32, count)
	for i := range embeddings {
		embeddings[i] = randomEmbedding(rng, dim)
		label, err := store.Add(embeddings[i], fmt.Sprintf("memory %d", i))
		require.NoError(t, err)
		require.Equal(t, uint64(i), label)
	}
	return store, embeddings
}

func TestStoreQueryNearest(t *testing.T) {
	store, err := NewStore(4, 10)
	require.NoError(t, err)

	_, err = store.Add([]float32{0, 0, 0, 1}, "a")
	require.NoError(t, err)
	_, err = store.Add([]float32{0, 0, 1, 0}, "b")
	require.NoError(t, err)
	_, err = store.Add([]float32{1, 0, 0, 0}, "c")
	require.NoError(t, err)

	text, ok, err := store.QueryNearest([]float32{0, 0, 0, 0.9})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", text)
	assert.Equal(t, 3, store.Count())
	assert.Equal(t, []string{"a", "b", "c"}, store.Texts())

	matches, err := store.QueryKNearest([]float32{0.9, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, Match{Label: 2, Text: "c", Distance: matches[0].Distance}, matches[0])
	assert.InDelta(t, 0.1, matches[0].Distance, 1e-6)
}

func TestStoreEmpty(t *testing.T) {
	store, err := NewStore(4, 10)
	require.NoError(t, err)

	text, ok, err := store.QueryNearest([]float32{1, 2, 3, 4})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, text)

	// emptiness wins over a malformed query
	_, ok, err = store.QueryNearest([]float32{1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreAddFailures(t *testing.T) {
	store, err := NewStore(4, 2)
	require.NoError(t, err)

	_, err = store.Add([]float32{1, 0, 0}, "short")
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Zero(t, store.Count())
	assert.Empty(t, store.Texts())

	_, err = store.Add([]float32{1, 0, 0, 0}, "first")
	require.NoError(t, err)
	_, err = store.Add([]float32{0, 1, 0, 0}, "second")
	require.NoError(t, err)

	_, err = store.Add([]float32{0, 0, 1, 0}, "third")
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 2, store.Count())
	assert.Equal(t, []string{"first", "second"}, store.Texts())

	for q, want := range map[string][]float32{"first": {1, 0, 0, 0}, "second": {0, 1, 0, 0}} {
		text, ok, err := store.QueryNearest(want)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, q, text)
	}

	_, _, err = store.QueryNearest([]float32{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNewStoreConfiguration(t *testing.T) {
	_, err := NewStore(0, 10)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewStore(4, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestStoreSelfRetrieval(t *testing.T) {
	store, embeddings := populatedStore(t, 16, 300)
	for i, e := range embeddings {
		text, ok, err := store.QueryNearest(e)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("memory %d", i), text)
	}
}

func TestStoreSplitPersistence(t *testing.T) {
	store, embeddings := populatedStore(t, 8, 20)
	path := filepath.Join(t.TempDir(), "workspace.index")
	require.NoError(t, store.SaveIndex(path))

	t.Run("matching texts", func(t *testing.T) {
		loaded, err := NewStore(8, 20)
		require.NoError(t, err)
		require.NoError(t, loaded.LoadIndex(path, store.Texts()))
		assert.True(t, loaded.Consistent())

		text, ok, err := loaded.QueryNearest(embeddings[7])
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "memory 7", text)
	})

	t.Run("fewer texts than records", func(t *testing.T) {
		loaded, err := NewStore(8, 30)
		require.NoError(t, err)
		err = loaded.LoadIndex(path, store.Texts()[:15])
		require.ErrorIs(t, err, ErrInconsistentState)
		assert.False(t, loaded.Consistent())

		text, ok, err := loaded.QueryNearest(embeddings[18])
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, text)

		_, err = loaded.Add(embeddings[0], "blocked")
		require.ErrorIs(t, err, ErrInconsistentState)
		_, err = loaded.WriteTo(io.Discard)
		require.ErrorIs(t, err, ErrInconsistentState)

		require.NoError(t, loaded.Reconcile())
		assert.True(t, loaded.Consistent())
		assert.Equal(t, 15, loaded.Count())

		label, err := loaded.Add(embeddings[18], "new")
		require.NoError(t, err)
		assert.Equal(t, uint64(15), label)
		text, _, err = loaded.QueryNearest(embeddings[18])
		require.NoError(t, err)
		assert.Equal(t, "new", text)
	})

	t.Run("more texts than records", func(t *testing.T) {
		loaded, err := NewStore(8, 30)
		require.NoError(t, err)
		texts := append(store.Texts(), "orphan")
		err = loaded.LoadIndex(path, texts)
		require.ErrorIs(t, err, ErrInconsistentState)

		require.NoError(t, loaded.Reconcile())
		assert.Equal(t, 20, loaded.Count())
		assert.Len(t, loaded.Texts(), 20)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		loaded, err := NewStore(4, 20)
		require.NoError(t, err)
		err = loaded.LoadIndex(path, store.Texts())
		require.ErrorIs(t, err, ErrCorruptIndexFile)
		assert.Zero(t, loaded.Count())
	})
}

func TestStoreRebuild(t *testing.T) {
	store, embeddings := populatedStore(t, 8, 10)

	err := store.Rebuild(5)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 10, store.Capacity())

	require.NoError(t, store.Rebuild(50))
	assert.Equal(t, 50, store.Capacity())
	assert.Equal(t, 10, store.Count())

	for i, e := range embeddings {
		text, _, err := store.QueryNearest(e)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("memory %d", i), text)
	}
	label, err := store.Add(embeddings[0], "after rebuild")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), label)
}

func TestStoreImplementsVectorstore(t *testing.T) {
	var vs Vectorstore
	store, err := NewStore(2, 4)
	require.NoError(t, err)
	vs = store

	require.NoError(t, vs.Store([]float32{0, 1}, "up"))
	require.NoError(t, vs.Store([]float32{1, 0}, "right"))
	texts, err := vs.FindNearest([]float32{0.1, 0.9}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"up", "right"}, texts)
}
