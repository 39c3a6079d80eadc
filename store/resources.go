package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/fabricedesre/docstore/extractors"
	"github.com/fabricedesre/docstore/resource"
	"github.com/fabricedesre/docstore/transformers"
)

// CreateResource implements spec.md §4.5's create_resource: path must not
// already exist under /.resources.
func (s *ResourceStore) CreateResource(ctx context.Context, id resource.Id, desc string, defaultMeta resource.VariantMetadata, tags []string, content io.Reader) error {
	path := resourcePath(id)
	if s.forest.Exists(ctx, path) {
		return newError(KindTree, "create_resource", fmt.Errorf("%q already exists", id))
	}

	seeker, err := toSeeker(content)
	if err != nil {
		return newError(KindIO, "create_resource", err)
	}

	extractedText, err := extractContent(seeker, defaultMeta.MimeType)
	if err != nil {
		return newError(KindIO, "create_resource", err)
	}

	if err := s.indexer.AddResource(id); err != nil {
		return newError(KindIndex, "create_resource", err)
	}
	if err := s.indexer.AddText(id, resource.DefaultVariant, desc); err != nil {
		return newError(KindIndex, "create_resource", err)
	}
	if extractedText != "" {
		if err := s.indexer.AddText(id, resource.DefaultVariant, extractedText); err != nil {
			return newError(KindIndex, "create_resource", err)
		}
	}
	for _, tag := range tags {
		if err := s.indexer.AddTag(id, tag); err != nil {
			return newError(KindIndex, "create_resource", err)
		}
	}

	if err := rewind(seeker); err != nil {
		return newError(KindIO, "create_resource", err)
	}
	if err := s.forest.CreateFile(ctx, path, seeker); err != nil {
		return newError(KindTree, "create_resource", err)
	}

	meta := resource.NewMetadata(desc, defaultMeta, tags)
	if err := s.writeResourceMetadata(ctx, path, meta); err != nil {
		return err
	}

	if err := s.saveState(ctx); err != nil {
		return err
	}

	if err := rewind(seeker); err != nil {
		return newError(KindIO, "create_resource", err)
	}
	return s.runTransformers(ctx, id, transformers.VariantChange{Kind: transformers.Created, Meta: defaultMeta}, seeker)
}

// AddVariant implements add_variant: path must exist, name must not be
// "default".
func (s *ResourceStore) AddVariant(ctx context.Context, id resource.Id, name string, meta resource.VariantMetadata, content io.Reader) error {
	if name == resource.DefaultVariant {
		return newError(KindInvalidVariant, "add_variant", fmt.Errorf("cannot add the %q variant", resource.DefaultVariant))
	}
	path := resourcePath(id)
	resMeta, err := s.readResourceMetadata(ctx, path)
	if err != nil {
		return err
	}

	seeker, err := toSeeker(content)
	if err != nil {
		return newError(KindIO, "add_variant", err)
	}

	text, err := extractContent(seeker, meta.MimeType)
	if err != nil {
		return newError(KindIO, "add_variant", err)
	}
	if text != "" {
		if err := s.indexer.AddText(id, name, text); err != nil {
			return newError(KindIndex, "add_variant", err)
		}
	}

	if err := rewind(seeker); err != nil {
		return newError(KindIO, "add_variant", err)
	}
	contentCID, err := s.forest.PutContent(ctx, seeker)
	if err != nil {
		return newError(KindTree, "add_variant", err)
	}
	if err := s.forest.SetMetadata(ctx, path, resource.VariantContentKey(name), contentCID.Bytes()); err != nil {
		return newError(KindTree, "add_variant", err)
	}

	resMeta.AddVariant(name, meta)
	if err := s.writeResourceMetadata(ctx, path, resMeta); err != nil {
		return err
	}

	return s.saveState(ctx)
}

// UpdateVariant implements update_variant: replaces the main file content
// when name is "default", or a named variant's content object otherwise.
func (s *ResourceStore) UpdateVariant(ctx context.Context, id resource.Id, name string, meta resource.VariantMetadata, content io.Reader) error {
	path := resourcePath(id)
	resMeta, err := s.readResourceMetadata(ctx, path)
	if err != nil {
		return err
	}
	if name != resource.DefaultVariant && !resMeta.HasVariant(name) {
		return newError(KindNoSuchVariant, "update_variant", fmt.Errorf("no variant %q for %q", name, id))
	}

	seeker, err := toSeeker(content)
	if err != nil {
		return newError(KindIO, "update_variant", err)
	}

	if err := s.indexer.DeleteVariant(id, name); err != nil {
		return newError(KindIndex, "update_variant", err)
	}
	text, err := extractContent(seeker, meta.MimeType)
	if err != nil {
		return newError(KindIO, "update_variant", err)
	}
	if text != "" {
		if err := s.indexer.AddText(id, name, text); err != nil {
			return newError(KindIndex, "update_variant", err)
		}
	}

	if name == resource.DefaultVariant {
		if err := s.forest.WriteFile(ctx, path, seeker); err != nil {
			return newError(KindTree, "update_variant", err)
		}
	} else {
		contentCID, err := s.forest.PutContent(ctx, seeker)
		if err != nil {
			return newError(KindTree, "update_variant", err)
		}
		if err := s.forest.SetMetadata(ctx, path, resource.VariantContentKey(name), contentCID.Bytes()); err != nil {
			return newError(KindTree, "update_variant", err)
		}
	}

	resMeta.AddVariant(name, meta)
	if err := s.writeResourceMetadata(ctx, path, resMeta); err != nil {
		return err
	}

	if err := s.saveState(ctx); err != nil {
		return err
	}

	if name != resource.DefaultVariant {
		return nil
	}
	if err := rewind(seeker); err != nil {
		return newError(KindIO, "update_variant", err)
	}
	return s.runTransformers(ctx, id, transformers.VariantChange{Kind: transformers.Updated, Meta: meta}, seeker)
}

// DeleteVariant implements delete_variant: name must not be "default".
func (s *ResourceStore) DeleteVariant(ctx context.Context, id resource.Id, name string) error {
	if name == resource.DefaultVariant {
		return newError(KindInvalidVariant, "delete_variant", fmt.Errorf("cannot delete the %q variant", resource.DefaultVariant))
	}
	path := resourcePath(id)
	resMeta, err := s.readResourceMetadata(ctx, path)
	if err != nil {
		return err
	}
	if !resMeta.RemoveVariant(name) {
		return newError(KindNoSuchVariant, "delete_variant", fmt.Errorf("no variant %q for %q", name, id))
	}

	if err := s.indexer.DeleteVariant(id, name); err != nil {
		return newError(KindIndex, "delete_variant", err)
	}
	if err := s.forest.RemoveMetadata(ctx, path, resource.VariantContentKey(name)); err != nil {
		return newError(KindTree, "delete_variant", err)
	}
	if err := s.writeResourceMetadata(ctx, path, resMeta); err != nil {
		return err
	}
	return s.saveState(ctx)
}

// DeleteResource implements delete_resource.
func (s *ResourceStore) DeleteResource(ctx context.Context, id resource.Id) error {
	path := resourcePath(id)
	if !s.forest.Exists(ctx, path) {
		return newError(KindNoSuchResource, "delete_resource", fmt.Errorf("%q", id))
	}
	if err := s.forest.Remove(ctx, path); err != nil {
		return newError(KindTree, "delete_resource", err)
	}
	if err := s.indexer.DeleteResource(id); err != nil {
		return newError(KindIndex, "delete_resource", err)
	}
	return s.saveState(ctx)
}

// AddTag implements add_tag.
func (s *ResourceStore) AddTag(ctx context.Context, id resource.Id, tag string) error {
	path := resourcePath(id)
	meta, err := s.readResourceMetadata(ctx, path)
	if err != nil {
		return err
	}
	meta.AddTag(tag)
	if err := s.indexer.AddTag(id, tag); err != nil {
		return newError(KindIndex, "add_tag", err)
	}
	if err := s.writeResourceMetadata(ctx, path, meta); err != nil {
		return err
	}
	return s.saveState(ctx)
}

// RemoveTag implements remove_tag.
func (s *ResourceStore) RemoveTag(ctx context.Context, id resource.Id, tag string) error {
	path := resourcePath(id)
	meta, err := s.readResourceMetadata(ctx, path)
	if err != nil {
		return err
	}
	meta.RemoveTag(tag)
	if err := s.indexer.RemoveTag(id, tag); err != nil {
		return newError(KindIndex, "remove_tag", err)
	}
	if err := s.writeResourceMetadata(ctx, path, meta); err != nil {
		return err
	}
	return s.saveState(ctx)
}

func (s *ResourceStore) writeResourceMetadata(ctx context.Context, path []string, meta *resource.Metadata) error {
	data, err := resource.EncodeMetadata(meta)
	if err != nil {
		return newError(KindSerialization, "write_metadata", err)
	}
	if err := s.forest.SetMetadata(ctx, path, resMetaKey, data); err != nil {
		return newError(KindTree, "write_metadata", err)
	}
	return nil
}

func (s *ResourceStore) readResourceMetadata(ctx context.Context, path []string) (*resource.Metadata, error) {
	if !s.forest.Exists(ctx, path) {
		return nil, newError(KindNoSuchResource, "read_metadata", fmt.Errorf("%v", path))
	}
	data, ok, err := s.forest.GetMetadata(ctx, path, resMetaKey)
	if err != nil {
		return nil, newError(KindTree, "read_metadata", err)
	}
	if !ok {
		return nil, newError(KindNoResourceMetadata, "read_metadata", fmt.Errorf("%v", path))
	}
	meta, err := resource.DecodeMetadata(data)
	if err != nil {
		return nil, newError(KindSerialization, "read_metadata", err)
	}
	return meta, nil
}

// extractContent runs the extractor registered for mimeType (if any)
// against r, leaving r rewound to 0 afterward, per spec.md §4.3.
func extractContent(r io.ReadSeeker, mimeType string) (string, error) {
	ex, ok := extractors.Lookup(mimeType)
	if !ok {
		return "", nil
	}
	text, err := ex(r)
	if err != nil {
		return "", err
	}
	if err := rewind(r); err != nil {
		return "", err
	}
	return text, nil
}

// runTransformers runs every registered transformer against a
// default-variant change and applies the resulting instructions as
// ordinary mutations, per spec.md §9's message-passing design.
func (s *ResourceStore) runTransformers(ctx context.Context, id resource.Id, change transformers.VariantChange, content io.ReadSeeker) error {
	for _, result := range transformers.Run(ctx, change, content) {
		switch result.Kind {
		case transformers.ResultDelete:
			if err := s.DeleteVariant(ctx, id, result.DeleteName); err != nil {
				return err
			}
		case transformers.ResultCreate:
			if err := s.AddVariant(ctx, id, result.Variant.Name, result.Variant.Meta, bytes.NewReader(result.Variant.Content)); err != nil {
				return err
			}
		case transformers.ResultUpdate:
			if err := s.UpdateVariant(ctx, id, result.Variant.Name, result.Variant.Meta, bytes.NewReader(result.Variant.Content)); err != nil {
				return err
			}
		}
	}
	return nil
}

const resMetaKey = "res_meta"
