package transformers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricedesre/docstore/resource"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnailerIgnoresNonImageMime(t *testing.T) {
	change := VariantChange{Kind: Created, Meta: resource.NewVariantMetadata(10, "text/plain")}
	results, err := ThumbnailTransformer(context.Background(), change, bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestThumbnailerCreatesThumbnailForImage(t *testing.T) {
	png := encodeTestPNG(t, 400, 200)
	change := VariantChange{Kind: Created, Meta: resource.NewVariantMetadata(uint64(len(png)), "image/png")}

	results, err := ThumbnailTransformer(context.Background(), change, bytes.NewReader(png))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, ResultCreate, r.Kind)
	assert.Equal(t, ThumbnailVariantName, r.Variant.Name)
	assert.Equal(t, "image/jpeg", r.Variant.Meta.MimeType)
	assert.NotEmpty(t, r.Variant.Content)

	decoded, _, err := image.Decode(bytes.NewReader(r.Variant.Content))
	require.NoError(t, err)
	bounds := decoded.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), defaultMaxDimension)
	assert.LessOrEqual(t, bounds.Dy(), defaultMaxDimension)
}

func TestThumbnailerDeletedEmitsDelete(t *testing.T) {
	change := VariantChange{Kind: Deleted, Meta: resource.NewVariantMetadata(0, "image/png")}
	results, err := ThumbnailTransformer(context.Background(), change, bytes.NewReader(nil))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultDelete, results[0].Kind)
	assert.Equal(t, ThumbnailVariantName, results[0].DeleteName)
}

func TestThumbnailerSwallowsDecodeFailures(t *testing.T) {
	change := VariantChange{Kind: Created, Meta: resource.NewVariantMetadata(3, "image/png")}
	results, err := ThumbnailTransformer(context.Background(), change, bytes.NewReader([]byte("bad")))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunReturnsNothingForNonImageChange(t *testing.T) {
	change := VariantChange{Kind: Created, Meta: resource.NewVariantMetadata(0, "text/plain")}
	results := Run(context.Background(), change, bytes.NewReader(nil))
	assert.Empty(t, results)
}
