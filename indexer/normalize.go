package indexer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticFold strips combining marks after decomposing to NFD, replacing
// the Rust indexer's `secular::lower_lay_string`. The trigram tokenizer has
// no notion of accents, so both inserted and searched text must be folded
// the same way for substring matches to behave as users expect.
var diacriticFold = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// normalize lowercases text and strips diacritics, matching both the
// insert path (AddText) and the search path (Search).
func normalize(text string) string {
	folded, _, err := transform.String(diacriticFold, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}
