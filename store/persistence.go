package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/fabricedesre/docstore/cryptutil"
)

const (
	forestCIDFileName = "forest.cid"
	accessKeyFileName = "access.key"
)

// encodeCBORBytes wraps a byte slice as a single dag-cbor byte-string
// node, the smallest honest encoding of "cbor-encoded CID" / "cbor-encoded
// access key" from spec.md §6.
func encodeCBORBytes(b []byte) ([]byte, error) {
	builder := basicnode.Prototype.Bytes.NewBuilder()
	if err := builder.AssignBytes(b); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := dagcbor.Encode(builder.Build(), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCBORBytes(data []byte) ([]byte, error) {
	builder := basicnode.Prototype.Bytes.NewBuilder()
	if err := dagcbor.Decode(builder, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return builder.Build().AsBytes()
}

// writeFileAtomic writes data to path via a temp file + rename, so a
// crash mid-write never leaves a torn forest.cid or access.key behind —
// the same discipline as the teacher's fileHeadStorage.SaveHead. The temp
// name carries a random suffix so two writers never collide on it.
func writeFileAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("store: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: commit %q: %w", path, err)
	}
	return nil
}

func (s *ResourceStore) forestCIDPath() string {
	return filepath.Join(s.rootDir, forestCIDFileName)
}

func (s *ResourceStore) accessKeyPath() string {
	return filepath.Join(s.rootDir, accessKeyFileName)
}

func loadForestCID(path string) (cid.Cid, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cid.Undef, false
	}
	raw, err := decodeCBORBytes(data)
	if err != nil {
		return cid.Undef, false
	}
	c, err := cid.Cast(raw)
	if err != nil {
		return cid.Undef, false
	}
	return c, true
}

func saveForestCID(path string, c cid.Cid) error {
	data, err := encodeCBORBytes(c.Bytes())
	if err != nil {
		return fmt.Errorf("store: encode forest cid: %w", err)
	}
	return writeFileAtomic(path, data)
}

func loadAccessKey(path string) (cryptutil.AccessKey, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cryptutil.AccessKey{}, false
	}
	raw, err := decodeCBORBytes(data)
	if err != nil || len(raw) != cryptutil.KeySize {
		return cryptutil.AccessKey{}, false
	}
	var key cryptutil.AccessKey
	copy(key[:], raw)
	return key, true
}

func saveAccessKey(path string, key cryptutil.AccessKey) error {
	data, err := encodeCBORBytes(key[:])
	if err != nil {
		return fmt.Errorf("store: encode access key: %w", err)
	}
	return writeFileAtomic(path, data)
}
