package transformers

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"strings"

	"golang.org/x/image/draw"

	"github.com/fabricedesre/docstore/resource"
)

// ThumbnailVariantName is the reserved variant name the thumbnailer
// writes and deletes.
const ThumbnailVariantName = "thumbnail"

// defaultMaxDimension bounds both sides of a generated thumbnail, per
// spec.md §4.4 ("default 128 on both sides, aspect preserved").
const defaultMaxDimension = 128

// thumbnailJPEGQuality matches the teacher corpus's convention of naming
// magic encoder parameters as constants rather than inlining them.
const thumbnailJPEGQuality = 90

// ThumbnailTransformer activates only for image/* default variants. It
// produces a JPEG thumbnail bounded by defaultMaxDimension on Created and
// Updated changes, and removes the thumbnail variant on Deleted.
func ThumbnailTransformer(ctx context.Context, change VariantChange, content io.ReadSeeker) ([]TransformerResult, error) {
	if !strings.HasPrefix(change.Meta.MimeType, "image/") {
		return nil, nil
	}

	if change.Kind == Deleted {
		return []TransformerResult{{Kind: ResultDelete, DeleteName: ThumbnailVariantName}}, nil
	}

	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	defer content.Seek(0, io.SeekStart)

	img, _, err := image.Decode(content)
	if err != nil {
		// Decoding failures are logged and swallowed: spec.md §4.4 says a
		// bad or unsupported image must not fail the parent mutation.
		log.Printf("transformers: thumbnailer: decode image: %v", err)
		return nil, nil
	}

	thumb := resizeToFit(img, defaultMaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		log.Printf("transformers: thumbnailer: encode jpeg: %v", err)
		return nil, nil
	}

	variant := TransformedVariant{
		Name: ThumbnailVariantName,
		Meta: resource.NewVariantMetadata(uint64(buf.Len()), "image/jpeg"),
		Content: buf.Bytes(),
	}

	if change.Kind == Created {
		return []TransformerResult{{Kind: ResultCreate, Variant: variant}}, nil
	}
	return []TransformerResult{{Kind: ResultUpdate, Variant: variant}}, nil
}

// resizeToFit scales img so its longest side is at most maxDim, preserving
// aspect ratio, using a Catmull-Rom resampler for decent quality at small
// target sizes.
func resizeToFit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return img
	}

	scale := 1.0
	if w > h {
		scale = float64(maxDim) / float64(w)
	} else {
		scale = float64(maxDim) / float64(h)
	}
	if scale > 1 {
		scale = 1
	}

	newW := maxInt(1, int(float64(w)*scale))
	newH := maxInt(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

