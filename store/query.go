package store

import (
	"context"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/fabricedesre/docstore/resource"
)

// ResourceEntry pairs a resource id with its metadata, the shape ls and
// search both return.
type ResourceEntry struct {
	Id       resource.Id
	Metadata *resource.Metadata
}

// GetMetadata implements get_metadata.
func (s *ResourceStore) GetMetadata(ctx context.Context, id resource.Id) (*resource.Metadata, error) {
	return s.readResourceMetadata(ctx, resourcePath(id))
}

// Ls implements ls(dir): for each child of dir (relative to /.resources),
// deserialize its "res_meta". Missing metadata is a tree-corruption error.
func (s *ResourceStore) Ls(ctx context.Context, dir resource.Id) ([]ResourceEntry, error) {
	path := resourcePath(dir)
	names, err := s.forest.List(ctx, path)
	if err != nil {
		return nil, newError(KindTree, "ls", err)
	}

	entries := make([]ResourceEntry, 0, len(names))
	for _, name := range names {
		childID := append(append(resource.Id{}, dir...), name)
		meta, err := s.readResourceMetadata(ctx, append(append([]string{}, path...), name))
		if err != nil {
			return nil, err
		}
		entries = append(entries, ResourceEntry{Id: childID, Metadata: meta})
	}
	return entries, nil
}

// GetVariantVec implements get_variant_vec: loads an entire variant's
// content into memory.
func (s *ResourceStore) GetVariantVec(ctx context.Context, id resource.Id, name string) ([]byte, error) {
	path := resourcePath(id)
	if name == resource.DefaultVariant {
		if !s.forest.Exists(ctx, path) {
			return nil, newError(KindNoSuchResource, "get_variant_vec", fmt.Errorf("%q", id))
		}
		data, err := s.forest.ReadFile(ctx, path)
		if err != nil {
			return nil, newError(KindTree, "get_variant_vec", err)
		}
		return data, nil
	}

	contentCID, err := s.resolveVariantContent(ctx, id, name)
	if err != nil {
		return nil, err
	}
	data, err := s.forest.ReadContent(ctx, contentCID)
	if err != nil {
		return nil, newError(KindNoVariantContent, "get_variant_vec", err)
	}
	return data, nil
}

// GetVariant implements get_variant: the streaming counterpart of
// GetVariantVec, for large content.
func (s *ResourceStore) GetVariant(ctx context.Context, id resource.Id, name string) (io.Reader, error) {
	path := resourcePath(id)
	if name == resource.DefaultVariant {
		if !s.forest.Exists(ctx, path) {
			return nil, newError(KindNoSuchResource, "get_variant", fmt.Errorf("%q", id))
		}
		r, err := s.forest.OpenFile(ctx, path)
		if err != nil {
			return nil, newError(KindTree, "get_variant", err)
		}
		return r, nil
	}

	contentCID, err := s.resolveVariantContent(ctx, id, name)
	if err != nil {
		return nil, err
	}
	r, err := s.forest.OpenContent(ctx, contentCID)
	if err != nil {
		return nil, newError(KindNoVariantContent, "get_variant", err)
	}
	return r, nil
}

func (s *ResourceStore) resolveVariantContent(ctx context.Context, id resource.Id, name string) (cid.Cid, error) {
	path := resourcePath(id)
	meta, err := s.readResourceMetadata(ctx, path)
	if err != nil {
		return cid.Undef, err
	}
	if !meta.HasVariant(name) {
		return cid.Undef, newError(KindNoSuchVariant, "resolve_variant", fmt.Errorf("no variant %q for %q", name, id))
	}
	ref, ok, err := s.forest.GetMetadata(ctx, path, resource.VariantContentKey(name))
	if err != nil {
		return cid.Undef, newError(KindTree, "resolve_variant", err)
	}
	if !ok {
		return cid.Undef, newError(KindNoVariantContent, "resolve_variant", fmt.Errorf("no content reference for %q/%q", id, name))
	}
	c, err := cid.Cast(ref)
	if err != nil {
		return cid.Undef, newError(KindSerialization, "resolve_variant", err)
	}
	return c, nil
}

// Search implements search: asks the indexer, then resolves metadata for
// each hit.
func (s *ResourceStore) Search(ctx context.Context, text string) ([]ResourceEntry, error) {
	ids, err := s.indexer.Search(text)
	if err != nil {
		return nil, newError(KindIndex, "search", err)
	}

	entries := make([]ResourceEntry, 0, len(ids))
	for _, id := range ids {
		meta, err := s.readResourceMetadata(ctx, resourcePath(id))
		if err != nil {
			return nil, err
		}
		entries = append(entries, ResourceEntry{Id: id, Metadata: meta})
	}
	return entries, nil
}
