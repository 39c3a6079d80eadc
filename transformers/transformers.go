// Package transformers implements the MIME-typed derived-variant
// machinery described in spec.md §4.4 (component C4): reactions to a
// default-variant change that emit new, updated, or deleted variants
// (e.g. thumbnails for images).
package transformers

import (
	"context"
	"io"
	"log"

	"github.com/fabricedesre/docstore/resource"
)

// ChangeKind classifies what happened to the default variant.
type ChangeKind int

const (
	Created ChangeKind = iota
	Updated
	Deleted
)

// VariantChange describes the default-variant mutation a transformer
// reacts to.
type VariantChange struct {
	Kind ChangeKind
	Meta resource.VariantMetadata
}

// TransformedVariant is the payload of a Create or Update result.
type TransformedVariant struct {
	Name    string
	Meta    resource.VariantMetadata
	Content []byte
}

// ResultKind discriminates the three shapes a TransformerResult can take.
type ResultKind int

const (
	ResultDelete ResultKind = iota
	ResultCreate
	ResultUpdate
)

// TransformerResult is one instruction the coordinator re-enters as an
// ordinary add_variant / update_variant / delete_variant call, per the
// message-passing design in spec.md §9 ("Transformer recursion").
type TransformerResult struct {
	Kind       ResultKind
	DeleteName string // set when Kind == ResultDelete
	Variant    TransformedVariant
}

// Transformer inspects a default-variant change and the (seekable)
// content stream, and returns zero or more derived-variant instructions.
// Implementations must seek content to 0 before reading and after
// reading, per spec.md §4.4.
type Transformer func(ctx context.Context, change VariantChange, content io.ReadSeeker) ([]TransformerResult, error)

// registry lists every built-in transformer. All of them run on every
// default-variant change; each decides for itself whether it applies.
var registry = []Transformer{
	ThumbnailTransformer,
}

// Run invokes every registered transformer and concatenates their
// results, defensively dropping any result that targets the "default"
// variant name (spec.md §4.4: "the coordinator filters out such results
// defensively").
func Run(ctx context.Context, change VariantChange, content io.ReadSeeker) []TransformerResult {
	var results []TransformerResult
	for _, transform := range registry {
		out, err := transform(ctx, change, content)
		if err != nil {
			log.Printf("transformers: transformer failed, skipping: %v", err)
			continue
		}
		for _, r := range out {
			if r.Kind == ResultDelete && r.DeleteName == resource.DefaultVariant {
				continue
			}
			if r.Kind != ResultDelete && r.Variant.Name == resource.DefaultVariant {
				continue
			}
			results = append(results, r)
		}
	}
	return results
}
