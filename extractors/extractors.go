// Package extractors implements the MIME-typed text extraction described
// in spec.md §4.3 (component C3): static dispatch from a variant's MIME
// type to a function that reads its entire content stream and returns an
// indexable text blob.
package extractors

import "io"

// Extractor reads r to completion and returns the text to index. It may
// only move the stream forward; rewinding afterward is the caller's
// responsibility (the indexer's add_variant path does this).
type Extractor func(r io.Reader) (string, error)

// registry is the static MIME → Extractor dispatch table. It is built at
// init time rather than exposed for runtime registration, mirroring the
// "Places is one instance; more can be registered similarly" note in
// spec.md §4.3: new MIME types are added here, in source, not dynamically.
var registry = map[string]Extractor{
	"text/plain":              extractPlainText,
	"application/x-places+json": extractPlaces,
}

// Lookup returns the extractor registered for mimeType, if any. Unknown
// MIME types have no extractor: the caller still records the resource
// row, it just carries no FTS content for that variant.
func Lookup(mimeType string) (Extractor, bool) {
	ex, ok := registry[mimeType]
	return ex, ok
}
