package resource

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// EncodeMetadata serializes a Metadata record to dag-cbor bytes, following
// the manual map-assembly idiom the teacher uses in
// repository.BlobStore.metadataToNode and repository.buildCommitNode.
func EncodeMetadata(m *Metadata) ([]byte, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(3)
	if err != nil {
		return nil, err
	}

	if err := assembleString(ma, "desc", m.Desc); err != nil {
		return nil, err
	}

	variantsEntry, err := ma.AssembleEntry("variants")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.Variants))
	for name := range m.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	vma, err := variantsEntry.BeginMap(int64(len(names)))
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		v := m.Variants[name]
		entry, err := vma.AssembleEntry(name)
		if err != nil {
			return nil, err
		}
		vvma, err := entry.BeginMap(2)
		if err != nil {
			return nil, err
		}
		if err := assembleUint(vvma, "size", v.Size); err != nil {
			return nil, err
		}
		if err := assembleString(vvma, "mimeType", v.MimeType); err != nil {
			return nil, err
		}
		if err := vvma.Finish(); err != nil {
			return nil, err
		}
	}
	if err := vma.Finish(); err != nil {
		return nil, err
	}

	tagsEntry, err := ma.AssembleEntry("tags")
	if err != nil {
		return nil, err
	}
	tags := m.TagSet()
	sort.Strings(tags)
	tla, err := tagsEntry.BeginList(int64(len(tags)))
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if err := tla.AssembleValue().AssignString(t); err != nil {
			return nil, err
		}
	}
	if err := tla.Finish(); err != nil {
		return nil, err
	}

	if err := ma.Finish(); err != nil {
		return nil, err
	}

	node := builder.Build()
	var buf bytes.Buffer
	if err := dagcbor.Encode(node, &buf); err != nil {
		return nil, fmt.Errorf("resource: encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMetadata is the inverse of EncodeMetadata.
func DecodeMetadata(data []byte) (*Metadata, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	if err := dagcbor.Decode(builder, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("resource: decode metadata: %w", err)
	}
	node := builder.Build()

	descNode, err := node.LookupByString("desc")
	if err != nil {
		return nil, fmt.Errorf("resource: metadata missing desc: %w", err)
	}
	desc, err := descNode.AsString()
	if err != nil {
		return nil, err
	}

	variantsNode, err := node.LookupByString("variants")
	if err != nil {
		return nil, fmt.Errorf("resource: metadata missing variants: %w", err)
	}
	variants := make(map[string]VariantMetadata)
	it := variantsNode.MapIterator()
	for !it.Done() {
		keyNode, valNode, err := it.Next()
		if err != nil {
			return nil, err
		}
		name, err := keyNode.AsString()
		if err != nil {
			return nil, err
		}
		sizeNode, err := valNode.LookupByString("size")
		if err != nil {
			return nil, err
		}
		size, err := sizeNode.AsInt()
		if err != nil {
			return nil, err
		}
		mimeNode, err := valNode.LookupByString("mimeType")
		if err != nil {
			return nil, err
		}
		mime, err := mimeNode.AsString()
		if err != nil {
			return nil, err
		}
		variants[name] = VariantMetadata{Size: uint64(size), MimeType: mime}
	}

	tagsNode, err := node.LookupByString("tags")
	if err != nil {
		return nil, fmt.Errorf("resource: metadata missing tags: %w", err)
	}
	tags := make(map[string]struct{})
	tit := tagsNode.ListIterator()
	for !tit.Done() {
		_, valNode, err := tit.Next()
		if err != nil {
			return nil, err
		}
		tag, err := valNode.AsString()
		if err != nil {
			return nil, err
		}
		tags[tag] = struct{}{}
	}

	return &Metadata{Desc: desc, Variants: variants, Tags: tags}, nil
}

func assembleString(ma datamodel.MapAssembler, key, value string) error {
	entry, err := ma.AssembleEntry(key)
	if err != nil {
		return err
	}
	return entry.AssignString(value)
}

func assembleUint(ma datamodel.MapAssembler, key string, value uint64) error {
	entry, err := ma.AssembleEntry(key)
	if err != nil {
		return err
	}
	return entry.AssignInt(int64(value))
}
