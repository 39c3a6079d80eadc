package store

import (
	"bytes"
	"fmt"
	"io"
)

// toSeeker satisfies the rewindable-stream contract of spec.md §5: the
// extractor, the tree writer, and the transformers all need to read the
// same content from offset 0. If the caller's reader is already seekable
// we use it as-is; otherwise we buffer it into memory once, per the
// simpler of the two options spec.md §9 calls out ("the latter is
// simpler; the former is more efficient for large inputs").
func toSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("store: buffer content: %w", err)
	}
	return bytes.NewReader(data), nil
}

func rewind(rs io.ReadSeeker) error {
	_, err := rs.Seek(0, io.SeekStart)
	return err
}
