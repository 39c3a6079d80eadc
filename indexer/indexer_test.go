package indexer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricedesre/docstore/resource"
)

func openTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func mustID(t *testing.T, components ...string) resource.Id {
	t.Helper()
	id, err := resource.NewId(components...)
	require.NoError(t, err)
	return id
}

func TestAddResourceAndSearch(t *testing.T) {
	ix := openTestIndexer(t)
	id := mustID(t, "small file")

	require.NoError(t, ix.AddResource(id))
	require.NoError(t, ix.AddText(id, resource.DefaultVariant, "a small file with content"))

	hits, err := ix.Search("small")
	require.NoError(t, err)
	assert.Equal(t, []resource.Id{id}, hits)

	hits, err = ix.Search("big")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchIsDiacriticAndCaseInsensitive(t *testing.T) {
	ix := openTestIndexer(t)
	id := mustID(t, "contact")

	require.NoError(t, ix.AddResource(id))
	require.NoError(t, ix.AddText(id, resource.DefaultVariant, "Café DUPONT"))

	hits, err := ix.Search("cafe dupont")
	require.NoError(t, err)
	assert.Equal(t, []resource.Id{id}, hits)

	hits, err = ix.Search("CAFE")
	require.NoError(t, err)
	assert.Equal(t, []resource.Id{id}, hits)
}

func TestDeleteResourceRemovesSearchHits(t *testing.T) {
	ix := openTestIndexer(t)
	id := mustID(t, "contact")

	require.NoError(t, ix.AddResource(id))
	require.NoError(t, ix.AddText(id, resource.DefaultVariant, "dupont"))
	require.NoError(t, ix.AddTag(id, "friend"))

	hits, err := ix.Search("dupont")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	require.NoError(t, ix.DeleteResource(id))

	hits, err = ix.Search("dupont")
	require.NoError(t, err)
	assert.Empty(t, hits)

	has, err := ix.HasResource(id)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDeleteVariantRemovesOnlyThatVariant(t *testing.T) {
	ix := openTestIndexer(t)
	id := mustID(t, "doc")

	require.NoError(t, ix.AddResource(id))
	require.NoError(t, ix.AddText(id, resource.DefaultVariant, "abcdef0123456789"))
	require.NoError(t, ix.AddText(id, "reverse", "9876543210fedcba"))

	require.NoError(t, ix.DeleteVariant(id, resource.DefaultVariant))

	hits, err := ix.Search("abcdef")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = ix.Search("fedcba")
	require.NoError(t, err)
	assert.Equal(t, []resource.Id{id}, hits)
}

func TestTagsRoundTrip(t *testing.T) {
	ix := openTestIndexer(t)
	id := mustID(t, "doc")

	require.NoError(t, ix.AddResource(id))
	require.NoError(t, ix.AddTag(id, "tag_1"))
	require.NoError(t, ix.AddTag(id, "tag_2"))

	tags, err := ix.Tags(id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tag_1", "tag_2"}, tags)

	require.NoError(t, ix.RemoveTag(id, "tag_1"))
	tags, err = ix.Tags(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"tag_2"}, tags)
}

func TestDirtyFlag(t *testing.T) {
	ix := openTestIndexer(t)
	assert.False(t, ix.Dirty())

	require.NoError(t, ix.AddResource(mustID(t, "doc")))
	assert.True(t, ix.Dirty())

	ix.ClearDirty()
	assert.False(t, ix.Dirty())
}

func TestReopenPreservesSchemaAndData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.sqlite")

	ix, err := Open(path)
	require.NoError(t, err)
	id := mustID(t, "doc")
	require.NoError(t, ix.AddResource(id))
	require.NoError(t, ix.AddText(id, resource.DefaultVariant, "hello world"))
	require.NoError(t, ix.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	hits, err := reopened.Search("hello")
	require.NoError(t, err)
	assert.Equal(t, []resource.Id{id}, hits)
}
