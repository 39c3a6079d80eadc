package blockstore

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	bs, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("arbitrary ciphertext")
	c, err := bs.Put(ctx, data, cid.Raw)
	require.NoError(t, err)
	assert.True(t, c.Defined())

	got, err := bs.Get(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPutIsIdempotent(t *testing.T) {
	bs, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("same content")
	c1, err := bs.Put(ctx, data, cid.Raw)
	require.NoError(t, err)
	c2, err := bs.Put(ctx, data, cid.Raw)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	bs, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	missing, err := Open(t.TempDir())
	require.NoError(t, err)
	c, err := missing.Put(ctx, []byte("elsewhere"), cid.Raw)
	require.NoError(t, err)

	_, err = bs.Get(ctx, c)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDifferentContentDifferentCID(t *testing.T) {
	bs, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a, err := bs.Put(ctx, []byte("a"), cid.Raw)
	require.NoError(t, err)
	b, err := bs.Put(ctx, []byte("b"), cid.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHas(t *testing.T) {
	bs, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	c, err := bs.Put(ctx, []byte("present"), cid.Raw)
	require.NoError(t, err)
	assert.True(t, bs.Has(c))

	other, err := bs.Put(ctx, []byte("not present here"), cid.Raw)
	require.NoError(t, err)
	missing, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.False(t, missing.Has(other))
}
