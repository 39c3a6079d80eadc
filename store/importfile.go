package store

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fabricedesre/docstore/resource"
)

// ImportFile implements import_file: opens a local file, guesses its MIME
// type from its extension, and creates a resource named after its base
// name with the file's own content as the "default" variant.
func (s *ResourceStore) ImportFile(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return newError(KindIO, "import_file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return newError(KindIO, "import_file", err)
	}

	mimeType := guessMimeType(localPath)
	id, err := resource.NewId(filepath.Base(localPath))
	if err != nil {
		return newError(KindIO, "import_file", err)
	}

	meta := resource.NewVariantMetadata(uint64(info.Size()), mimeType)
	return s.CreateResource(ctx, id, localPath, meta, nil, f)
}

func guessMimeType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return stripParams(t)
	}
	return "application/octet-stream"
}

// stripParams drops a "; charset=..." suffix some mime.TypeByExtension
// results carry, since VariantMetadata stores a bare MIME type.
func stripParams(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		return strings.TrimSpace(t[:i])
	}
	return t
}
