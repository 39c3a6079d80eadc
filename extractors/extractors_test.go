package extractors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupUnknownMime(t *testing.T) {
	_, ok := Lookup("application/octet-stream")
	assert.False(t, ok)
}

func TestPlainTextExtractor(t *testing.T) {
	ex, ok := Lookup("text/plain")
	require.True(t, ok)

	text, err := ex(strings.NewReader("hello, world"))
	require.NoError(t, err)
	assert.Equal(t, "hello, world", text)
}

func TestPlacesExtractor(t *testing.T) {
	ex, ok := Lookup("application/x-places+json")
	require.True(t, ok)

	text, err := ex(strings.NewReader(`{"url":"https://example.com","title":"hello"}`))
	require.NoError(t, err)
	assert.Contains(t, text, "https://example.com")
	assert.Contains(t, text, "hello")
}

func TestPlacesExtractorIgnoresUnknownFields(t *testing.T) {
	ex, _ := Lookup("application/x-places+json")
	text, err := ex(strings.NewReader(`{"title":"only title","visitCount":4}`))
	require.NoError(t, err)
	assert.Equal(t, "only title", text)
}

func TestFlatJSONExtractorWithArrayField(t *testing.T) {
	ex := NewFlatJSONExtractor([]string{"keywords"}, nil)
	text, err := ex(strings.NewReader(`{"keywords":["alpha","beta"]}`))
	require.NoError(t, err)
	assert.Equal(t, "alpha beta", text)
}

func TestFlatJSONExtractorCustomTransform(t *testing.T) {
	ex := NewFlatJSONExtractor([]string{"count"}, map[string]FieldTransform{
		"count": func(value interface{}) []string {
			return []string{"seen"}
		},
	})
	text, err := ex(strings.NewReader(`{"count":3}`))
	require.NoError(t, err)
	assert.Equal(t, "seen", text)
}
