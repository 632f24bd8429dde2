package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	testCases := []struct {
		name  string
		store func(t *testing.T) Store
	}{
		{name: "local", store: func(t *testing.T) Store { return NewLocalStore(t.TempDir()) }},
		{name: "memory", store: func(t *testing.T) Store { return NewMemoryStore() }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := tc.store(t)

			_, err := store.Get(ctx, "memory/a.snapshot")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "memory/a.snapshot", []byte("first")))
			require.NoError(t, store.Put(ctx, "memory/a.snapshot", []byte("second")))
			require.NoError(t, store.Put(ctx, "memory/b.snapshot", []byte("other")))
			require.NoError(t, store.Put(ctx, "workspaces.json", []byte("{}")))

			data, err := store.Get(ctx, "memory/a.snapshot")
			require.NoError(t, err)
			assert.Equal(t, "second", string(data))

			names, err := store.List(ctx, "memory/")
			require.NoError(t, err)
			assert.Equal(t, []string{"memory/a.snapshot", "memory/b.snapshot"}, names)

			require.NoError(t, store.Delete(ctx, "memory/a.snapshot"))
			require.NoError(t, store.Delete(ctx, "memory/a.snapshot"))
			_, err = store.Get(ctx, "memory/a.snapshot")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLocalStoreRejectsEscapingNames(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	for _, name := range []string{"../outside", "", "/etc/passwd", ".."} {
		err := store.Put(context.Background(), name, []byte("x"))
		assert.Error(t, err, name)
	}
}

func TestLocalStoreListMissingRoot(t *testing.T) {
	store := NewLocalStore(t.TempDir() + "/missing")
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
