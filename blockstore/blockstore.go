// Package blockstore implements the content-addressed ciphertext block
// store described in spec.md §4.1 (component C1). It is treated as an
// external dependency by the rest of the system in the original design;
// here it is a small, self-contained adapter so the module has no runtime
// dependency on a separate service.
package blockstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"lukechampine.com/blake3"
)

// ErrNotFound is returned when a CID has no corresponding block on disk.
var ErrNotFound = errors.New("blockstore: block not found")

// defaultCacheSize bounds the in-memory LRU read cache, following the
// teacher's blockstore.blockstore cache sizing.
const defaultCacheSize = 1024

// BlockStore persists opaque content-addressed blocks to the filesystem.
// It has no notion of what the blocks contain — the forest layer is
// responsible for encrypting payloads before Put and decrypting after Get;
// the CID this store computes is always over the bytes it is handed, i.e.
// over ciphertext once the forest is in the loop.
type BlockStore struct {
	root  string
	mu    sync.Mutex
	cache *lru.Cache[string, []byte]
}

// Open creates the block store root directory if it does not exist and
// returns a ready BlockStore.
func Open(root string) (*BlockStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blockstore: create root %q: %w", root, err)
	}
	cache, err := lru.New[string, []byte](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("blockstore: init cache: %w", err)
	}
	return &BlockStore{root: root, cache: cache}, nil
}

// computeCID hashes data with BLAKE3 and wraps it as a CIDv1 with the given
// codec, mirroring the teacher's DefaultLP (CIDv1 + BLAKE3) choice in
// blockstore.DefaultLP.
func computeCID(data []byte, codec uint64) (cid.Cid, error) {
	sum := blake3.Sum256(data)
	hash, err := mh.Encode(sum[:], mh.BLAKE3)
	if err != nil {
		return cid.Undef, fmt.Errorf("blockstore: encode multihash: %w", err)
	}
	return cid.NewCidV1(codec, hash), nil
}

func (bs *BlockStore) pathFor(c cid.Cid) string {
	return filepath.Join(bs.root, c.String())
}

// Put computes CID = hash(data, codec) and writes data to
// <root>/<cid-string> if it is not already present. It is idempotent:
// duplicate writes coalesce onto the same filename.
func (bs *BlockStore) Put(ctx context.Context, data []byte, codec uint64) (cid.Cid, error) {
	select {
	case <-ctx.Done():
		return cid.Undef, ctx.Err()
	default:
	}

	c, err := computeCID(data, codec)
	if err != nil {
		return cid.Undef, err
	}

	path := bs.pathFor(c)
	if _, err := os.Stat(path); err == nil {
		bs.cachePut(c, data)
		return c, nil
	} else if !os.IsNotExist(err) {
		return cid.Undef, fmt.Errorf("blockstore: stat %q: %w", path, err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return cid.Undef, fmt.Errorf("blockstore: write block: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cid.Undef, fmt.Errorf("blockstore: commit block: %w", err)
	}

	bs.cachePut(c, data)
	return c, nil
}

// Get retrieves block content by CID.
func (bs *BlockStore) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if data, ok := bs.cacheGet(c); ok {
		return data, nil
	}

	data, err := os.ReadFile(bs.pathFor(c))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, c)
		}
		return nil, fmt.Errorf("blockstore: read block %s: %w", c, err)
	}
	bs.cachePut(c, data)
	return data, nil
}

// Has reports whether a block exists without reading its content.
func (bs *BlockStore) Has(c cid.Cid) bool {
	if _, ok := bs.cacheGet(c); ok {
		return true
	}
	_, err := os.Stat(bs.pathFor(c))
	return err == nil
}

// GetBlock wraps fetched bytes with their CID, matching the shape of
// go-block-format's blocks.Block so callers that want the pair don't have
// to recompute the hash.
func (bs *BlockStore) GetBlock(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	data, err := bs.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	return blocks.NewBlockWithCid(data, c)
}

func (bs *BlockStore) cachePut(c cid.Cid, data []byte) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.cache.Add(c.String(), data)
}

func (bs *BlockStore) cacheGet(c cid.Cid) ([]byte, bool) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.cache.Get(c.String())
}

// Close is a no-op. There is nothing to flush: every Put is already
// durable on disk.
func (bs *BlockStore) Close() error {
	return nil
}
