package extractors

import (
	"fmt"
	"io"
)

// extractPlainText reads the whole stream and returns it as UTF-8 text
// verbatim — text/plain needs no further parsing.
func extractPlainText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("extractors: read text/plain content: %w", err)
	}
	return string(data), nil
}
