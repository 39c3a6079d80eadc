package forest

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricedesre/docstore/blockstore"
	"github.com/fabricedesre/docstore/cryptutil"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	bs, err := blockstore.Open(t.TempDir())
	require.NoError(t, err)
	key, err := cryptutil.NewAccessKey(cryptutil.RandReader())
	require.NoError(t, err)
	tree, err := New(context.Background(), bs, key, cryptutil.RandReader())
	require.NoError(t, err)
	return tree
}

func TestCreateAndReadFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	content := []byte("abcdef0123456789")
	require.NoError(t, tree.CreateFile(ctx, []string{".resources", "small"}, bytes.NewReader(content)))

	got, err := tree.ReadFile(ctx, []string{".resources", "small"})
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCreateFileEmptyContent(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	require.NoError(t, tree.CreateFile(ctx, []string{"empty"}, bytes.NewReader(nil)))
	got, err := tree.ReadFile(ctx, []string{"empty"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateFileRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	require.NoError(t, tree.CreateFile(ctx, []string{"a"}, bytes.NewReader([]byte("x"))))
	err := tree.CreateFile(ctx, []string{"a"}, bytes.NewReader([]byte("y")))
	assert.ErrorIs(t, err, ErrExists)
}

func TestReadMissingFileFails(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	_, err := tree.ReadFile(ctx, []string{"nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteFileReplacesContent(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	require.NoError(t, tree.CreateFile(ctx, []string{"doc"}, bytes.NewReader([]byte("original"))))
	require.NoError(t, tree.WriteFile(ctx, []string{"doc"}, bytes.NewReader([]byte("updated content"))))

	got, err := tree.ReadFile(ctx, []string{"doc"})
	require.NoError(t, err)
	assert.Equal(t, []byte("updated content"), got)
}

func TestMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	require.NoError(t, tree.CreateFile(ctx, []string{"doc"}, bytes.NewReader([]byte("x"))))
	require.NoError(t, tree.SetMetadata(ctx, []string{"doc"}, "res_meta", []byte{0x01, 0x02}))

	val, ok, err := tree.GetMetadata(ctx, []string{"doc"}, "res_meta")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02}, val)

	_, ok, err = tree.GetMetadata(ctx, []string{"doc"}, "missing_key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tree.RemoveMetadata(ctx, []string{"doc"}, "res_meta"))
	_, ok, err = tree.GetMetadata(ctx, []string{"doc"}, "res_meta")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureDirAndList(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	require.NoError(t, tree.EnsureDir(ctx, []string{".resources"}))
	require.NoError(t, tree.EnsureDir(ctx, []string{".index"}))
	require.NoError(t, tree.CreateFile(ctx, []string{".resources", "a"}, bytes.NewReader([]byte("a"))))
	require.NoError(t, tree.CreateFile(ctx, []string{".resources", "b"}, bytes.NewReader([]byte("b"))))

	names, err := tree.List(ctx, []string{".resources"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	top, err := tree.List(ctx, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{".resources", ".index"}, top)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	require.NoError(t, tree.CreateFile(ctx, []string{"doc"}, bytes.NewReader([]byte("x"))))
	require.NoError(t, tree.Remove(ctx, []string{"doc"}))
	assert.False(t, tree.Exists(ctx, []string{"doc"}))

	err := tree.Remove(ctx, []string{"doc"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenFileStreamsInOrder(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)

	content := bytes.Repeat([]byte("0123456789"), DefaultChunkSize/5)
	require.NoError(t, tree.CreateFile(ctx, []string{"big"}, bytes.NewReader(content)))

	r, err := tree.OpenFile(ctx, []string{"big"})
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadReopensExistingForest(t *testing.T) {
	ctx := context.Background()
	bs, err := blockstore.Open(t.TempDir())
	require.NoError(t, err)
	key, err := cryptutil.NewAccessKey(cryptutil.RandReader())
	require.NoError(t, err)

	tree, err := New(ctx, bs, key, cryptutil.RandReader())
	require.NoError(t, err)
	require.NoError(t, tree.CreateFile(ctx, []string{"doc"}, bytes.NewReader([]byte("persisted"))))
	root := tree.Root()

	reopened := Load(bs, key, cryptutil.RandReader(), root)
	got, err := reopened.ReadFile(ctx, []string{"doc"})
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}
