package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "docs/a.pdf", []byte("one")))
	require.NoError(t, store.Write(ctx, "docs/a.pdf", []byte("two")))

	data, err := store.Read(ctx, "docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	require.NoError(t, store.Delete(ctx, "docs/a.pdf"))
	require.NoError(t, store.Delete(ctx, "docs/a.pdf"))

	_, err = store.Read(ctx, "docs/a.pdf")
	assert.True(t, errors.Is(err, ErrBlobNotFound))
}

func TestLocalStorageKeepsKeysInsideBaseDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	assert.Equal(t, store.Path("x.pdf"), store.Path("../../x.pdf"))
}

func TestOriginalKey(t *testing.T) {
	assert.Equal(t, "docs/abc-original.pdf", OriginalKey("docs/abc.pdf"))
	assert.Equal(t, "abc-original.pdf", OriginalKey("abc.PDF"))
	assert.Equal(t, "blob-original", OriginalKey("blob"))
}
