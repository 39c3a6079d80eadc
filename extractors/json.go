package extractors

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// FieldTransform turns one field's raw JSON value into zero or more
// strings to fold into the indexed text. A nil transform for a field uses
// defaultFieldStrings.
type FieldTransform func(value interface{}) []string

// NewFlatJSONExtractor builds an Extractor that parses its input as a
// single flat JSON object and concatenates the string content of the
// named fields. Per spec.md §4.3: "Generic flat-JSON extractor:
// configurable list of fields, optional per-field transform function
// returning a list of strings. Places is one instance; more can be
// registered similarly."
func NewFlatJSONExtractor(fields []string, transforms map[string]FieldTransform) Extractor {
	return func(r io.Reader) (string, error) {
		var doc map[string]interface{}
		dec := json.NewDecoder(r)
		if err := dec.Decode(&doc); err != nil {
			return "", fmt.Errorf("extractors: decode JSON: %w", err)
		}

		var parts []string
		for _, field := range fields {
			value, ok := doc[field]
			if !ok {
				continue
			}
			transform := transforms[field]
			if transform == nil {
				transform = defaultFieldStrings
			}
			parts = append(parts, transform(value)...)
		}
		return strings.Join(parts, " "), nil
	}
}

// defaultFieldStrings extracts a string value verbatim, or the string
// elements of an array value, per spec.md §4.3 ("string-array elements
// are included").
func defaultFieldStrings(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []interface{}:
		var out []string
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// extractPlaces is the built-in application/x-places+json extractor: it
// indexes the "url" and "title" fields of a bookmark/history record.
var extractPlaces = NewFlatJSONExtractor([]string{"url", "title"}, nil)
