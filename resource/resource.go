// Package resource defines the data model shared by every layer of the
// store: resource identities, per-variant metadata, and the metadata
// blob attached to each resource's inode.
package resource

import (
	"fmt"
	"strings"
)

// Id is a path: an ordered, non-empty sequence of non-empty components.
// Its canonical string form is the components joined by "/".
type Id []string

// ParseId splits a canonical path string into its components. It is the
// inverse of Id.String for inputs whose components contain no "/" — the
// same precondition spec.md places on the conversion.
func ParseId(s string) (Id, error) {
	if s == "" {
		return nil, fmt.Errorf("resource: empty id")
	}
	parts := strings.Split(s, "/")
	return NewId(parts...)
}

// NewId builds an Id from path components, rejecting empty ones.
func NewId(components ...string) (Id, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("resource: id has no components")
	}
	for _, c := range components {
		if c == "" {
			return nil, fmt.Errorf("resource: id has an empty component")
		}
	}
	out := make(Id, len(components))
	copy(out, components)
	return out, nil
}

// String renders the canonical "/"-joined form.
func (id Id) String() string {
	return strings.Join(id, "/")
}

// VariantMetadata describes one named byte stream attached to a resource.
// It is immutable after creation except through an explicit mutator.
type VariantMetadata struct {
	Size     uint64 `json:"size"`
	MimeType string `json:"mimeType"`
}

// NewVariantMetadata is the usual constructor; kept as a function (rather
// than requiring callers to build the struct literal) so future fields
// default sanely.
func NewVariantMetadata(size uint64, mimeType string) VariantMetadata {
	return VariantMetadata{Size: size, MimeType: mimeType}
}

// DefaultVariant is the name of the variant every resource is created with
// and can never delete.
const DefaultVariant = "default"

// Metadata is the full metadata record attached to a resource's inode
// under the reserved key "res_meta".
type Metadata struct {
	Desc     string                     `json:"desc"`
	Variants map[string]VariantMetadata `json:"variants"`
	Tags     map[string]struct{}        `json:"tags"`
}

// NewMetadata builds a Metadata with the mandatory "default" variant
// already present.
func NewMetadata(desc string, defaultVariant VariantMetadata, tags []string) *Metadata {
	m := &Metadata{
		Desc:     desc,
		Variants: map[string]VariantMetadata{DefaultVariant: defaultVariant},
		Tags:     make(map[string]struct{}, len(tags)),
	}
	for _, t := range tags {
		m.Tags[t] = struct{}{}
	}
	return m
}

// HasVariant reports whether name is present in Variants.
func (m *Metadata) HasVariant(name string) bool {
	_, ok := m.Variants[name]
	return ok
}

// AddVariant inserts or replaces a variant entry. It does not enforce the
// "default" name restriction — callers (store.ResourceStore) do that, since
// the restriction is about which operations may call this, not about the
// data structure itself.
func (m *Metadata) AddVariant(name string, meta VariantMetadata) {
	if m.Variants == nil {
		m.Variants = make(map[string]VariantMetadata)
	}
	m.Variants[name] = meta
}

// RemoveVariant deletes a variant entry, reporting whether it was present.
func (m *Metadata) RemoveVariant(name string) bool {
	if _, ok := m.Variants[name]; !ok {
		return false
	}
	delete(m.Variants, name)
	return true
}

// TagSet returns the tags as a sorted-free slice (order is not meaningful,
// per spec.md's data model).
func (m *Metadata) TagSet() []string {
	out := make([]string, 0, len(m.Tags))
	for t := range m.Tags {
		out = append(out, t)
	}
	return out
}

// AddTag inserts a tag, idempotently.
func (m *Metadata) AddTag(tag string) {
	if m.Tags == nil {
		m.Tags = make(map[string]struct{})
	}
	m.Tags[tag] = struct{}{}
}

// RemoveTag deletes a tag, reporting whether it was present.
func (m *Metadata) RemoveTag(tag string) bool {
	if _, ok := m.Tags[tag]; !ok {
		return false
	}
	delete(m.Tags, tag)
	return true
}

// VariantContentKey is the inode metadata key under which a non-default
// variant's streaming content reference is stored. The original
// implementation used two different keys inconsistently ("{name}_variant"
// on write, "variant_{name}" on read); we settle on the write-path form
// and use it everywhere.
func VariantContentKey(variant string) string {
	return variant + "_variant"
}
