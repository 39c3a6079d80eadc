package forest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	chunker "github.com/ipfs/boxo/chunker"
	"github.com/ipfs/go-cid"

	"github.com/fabricedesre/docstore/cryptutil"
)

// DefaultChunkSize bounds the plaintext size of one content chunk before it
// is sealed and written as its own block, following the teacher's
// blockstore.DefaultChunkSize (256 KiB).
const DefaultChunkSize = 262144

// writeChunks splits r into DefaultChunkSize plaintext chunks, seals each
// under the content subkey, and stores the ciphertext as a raw block. It
// returns the ordered chunk CIDs that make up the file's content.
func (t *Tree) writeChunks(ctx context.Context, r io.Reader) ([]cid.Cid, error) {
	subkey, err := t.key.Subkey(contentPurpose)
	if err != nil {
		return nil, err
	}

	split := chunker.NewSizeSplitter(r, DefaultChunkSize)
	var chunks []cid.Cid
	for {
		plain, err := split.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("forest: split content: %w", err)
		}
		sealed, err := cryptutil.Seal(t.rng, subkey, plain)
		if err != nil {
			return nil, err
		}
		c, err := t.bs.Put(ctx, sealed, cid.Raw)
		if err != nil {
			return nil, fmt.Errorf("forest: store chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// readChunks decrypts and concatenates every chunk in order into a single
// buffer. Used by the in-memory ReadFile path.
func (t *Tree) readChunks(ctx context.Context, chunks []cid.Cid) ([]byte, error) {
	subkey, err := t.key.Subkey(contentPurpose)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, c := range chunks {
		sealed, err := t.bs.Get(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("forest: read chunk: %w", err)
		}
		plain, err := cryptutil.Open(subkey, sealed)
		if err != nil {
			return nil, fmt.Errorf("forest: decrypt chunk: %w", err)
		}
		buf.Write(plain)
	}
	return buf.Bytes(), nil
}

// chunkReader lazily decrypts chunks on demand so large files can stream
// out without being buffered whole in memory.
type chunkReader struct {
	ctx    context.Context
	t      *Tree
	subkey []byte
	chunks []cid.Cid
	idx    int
	cur    *bytes.Reader
}

func (t *Tree) openChunkReader(ctx context.Context, chunks []cid.Cid) (io.Reader, error) {
	subkey, err := t.key.Subkey(contentPurpose)
	if err != nil {
		return nil, err
	}
	return &chunkReader{ctx: ctx, t: t, subkey: subkey, chunks: chunks}, nil
}

func (cr *chunkReader) Read(p []byte) (int, error) {
	for {
		if cr.cur != nil {
			n, err := cr.cur.Read(p)
			if n > 0 {
				return n, nil
			}
			if err != nil && err != io.EOF {
				return 0, err
			}
			cr.cur = nil
		}
		if cr.idx >= len(cr.chunks) {
			return 0, io.EOF
		}
		sealed, err := cr.t.bs.Get(cr.ctx, cr.chunks[cr.idx])
		if err != nil {
			return 0, fmt.Errorf("forest: read chunk: %w", err)
		}
		plain, err := cryptutil.Open(cr.subkey, sealed)
		if err != nil {
			return 0, fmt.Errorf("forest: decrypt chunk: %w", err)
		}
		cr.idx++
		cr.cur = bytes.NewReader(plain)
	}
}
