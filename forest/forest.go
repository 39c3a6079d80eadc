// Package forest implements the private, encrypted directory-tree overlay
// described in spec.md §1(2) and §9: a filesystem-like tree of inodes,
// each carrying arbitrary key/value metadata and (for files) chunked
// streaming content, stored as encrypted blocks in a blockstore.BlockStore.
//
// Every inode is dagcbor-encoded, sealed under a key derived from the
// tree's AccessKey, and written as one ciphertext block; its CID is the
// hash of that ciphertext, per spec.md §1. A directory inode's children
// map therefore holds pointers to *sealed* blocks, never plaintext.
//
// This mirrors, in idiomatic Go, the shared-mutable-ownership discipline
// spec.md §9 calls out for the underlying tree library: each mutation
// loads the root by access key, walks down through fresh copies of the
// inodes on the path, and re-stores the whole chain bottom-up before the
// new root CID is returned — there are never two live mutable references
// to the same directory across a suspension point.
package forest

import (
	"context"
	"io"
	"sort"

	"github.com/ipfs/go-cid"

	"github.com/fabricedesre/docstore/blockstore"
	"github.com/fabricedesre/docstore/cryptutil"
)

const (
	inodePurpose   = "forest/inode"
	contentPurpose = "forest/content"
)

// Tree is a handle onto one encrypted forest. It owns no filesystem state
// of its own beyond the in-memory root CID; persistence of that CID across
// restarts is the caller's responsibility (store.ResourceStore writes it
// to rootDir/forest.cid).
type Tree struct {
	bs  *blockstore.BlockStore
	key cryptutil.AccessKey
	rng io.Reader

	root cid.Cid
}

// New creates a brand-new, empty forest (a single empty root directory)
// and returns a Tree positioned at it.
func New(ctx context.Context, bs *blockstore.BlockStore, key cryptutil.AccessKey, rng io.Reader) (*Tree, error) {
	t := &Tree{bs: bs, key: key, rng: rng}
	root, err := t.storeInode(ctx, newDirInode())
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

// Load opens an existing forest at a previously persisted root CID.
func Load(bs *blockstore.BlockStore, key cryptutil.AccessKey, rng io.Reader, root cid.Cid) *Tree {
	return &Tree{bs: bs, key: key, rng: rng, root: root}
}

// Root returns the current root CID. Callers persist this after every
// mutation; every successful call that changes the tree gives it a new
// value.
func (t *Tree) Root() cid.Cid {
	return t.root
}

func (t *Tree) loadInode(ctx context.Context, c cid.Cid) (*inode, error) {
	subkey, err := t.key.Subkey(inodePurpose)
	if err != nil {
		return nil, err
	}
	sealed, err := t.bs.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	plain, err := cryptutil.Open(subkey, sealed)
	if err != nil {
		return nil, err
	}
	return decodeInode(plain)
}

func (t *Tree) storeInode(ctx context.Context, nd *inode) (cid.Cid, error) {
	subkey, err := t.key.Subkey(inodePurpose)
	if err != nil {
		return cid.Undef, err
	}
	plain, err := encodeInode(nd)
	if err != nil {
		return cid.Undef, err
	}
	sealed, err := cryptutil.Seal(t.rng, subkey, plain)
	if err != nil {
		return cid.Undef, err
	}
	return t.bs.Put(ctx, sealed, cid.Raw)
}

// Exists reports whether path resolves to any inode.
func (t *Tree) Exists(ctx context.Context, path []string) bool {
	_, _, err := t.lookup(ctx, path)
	return err == nil
}

// IsDir reports whether path resolves to a directory inode.
func (t *Tree) IsDir(ctx context.Context, path []string) (bool, error) {
	nd, _, err := t.lookup(ctx, path)
	if err != nil {
		return false, err
	}
	return nd.Kind == kindDir, nil
}

func (t *Tree) lookup(ctx context.Context, path []string) (*inode, cid.Cid, error) {
	cur := t.root
	for i, name := range path {
		nd, err := t.loadInode(ctx, cur)
		if err != nil {
			return nil, cid.Undef, err
		}
		if nd.Kind != kindDir {
			return nil, cid.Undef, ErrNotADirectory
		}
		child, ok := nd.Children[name]
		if !ok {
			return nil, cid.Undef, ErrNotFound
		}
		cur = child
		_ = i
	}
	nd, err := t.loadInode(ctx, cur)
	if err != nil {
		return nil, cid.Undef, err
	}
	return nd, cur, nil
}

// List returns the sorted names of children under the directory at path.
func (t *Tree) List(ctx context.Context, path []string) ([]string, error) {
	nd, _, err := t.lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if nd.Kind != kindDir {
		return nil, ErrNotADirectory
	}
	names := make([]string, 0, len(nd.Children))
	for name := range nd.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// EnsureDir creates every missing directory along path, leaving existing
// ones untouched, and advances the tree's root.
func (t *Tree) EnsureDir(ctx context.Context, path []string) error {
	newRoot, _, err := t.ensureDir(ctx, t.root, path)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func (t *Tree) ensureDir(ctx context.Context, dirCID cid.Cid, path []string) (cid.Cid, bool, error) {
	if len(path) == 0 {
		return dirCID, false, nil
	}
	dir, err := t.loadInode(ctx, dirCID)
	if err != nil {
		return cid.Undef, false, err
	}
	if dir.Kind != kindDir {
		return cid.Undef, false, ErrNotADirectory
	}

	head, rest := path[0], path[1:]
	childCID, existed := dir.Children[head]
	if !existed {
		child := newDirInode()
		childCID, err = t.storeInode(ctx, child)
		if err != nil {
			return cid.Undef, false, err
		}
	}

	newChildCID, childChanged, err := t.ensureDir(ctx, childCID, rest)
	if err != nil {
		return cid.Undef, false, err
	}
	if existed && !childChanged {
		return dirCID, false, nil
	}

	dir.Children[head] = newChildCID
	newDirCID, err := t.storeInode(ctx, dir)
	if err != nil {
		return cid.Undef, false, err
	}
	return newDirCID, true, nil
}

// rewriteAt loads the inode at path, lets edit mutate it in place, and
// re-stores it and every ancestor directory back to the root.
func (t *Tree) rewriteAt(ctx context.Context, path []string, edit func(nd *inode) error) error {
	newRoot, err := t.rewrite(ctx, t.root, path, edit)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func (t *Tree) rewrite(ctx context.Context, nodeCID cid.Cid, path []string, edit func(nd *inode) error) (cid.Cid, error) {
	nd, err := t.loadInode(ctx, nodeCID)
	if err != nil {
		return cid.Undef, err
	}
	if len(path) == 0 {
		if err := edit(nd); err != nil {
			return cid.Undef, err
		}
		return t.storeInode(ctx, nd)
	}
	if nd.Kind != kindDir {
		return cid.Undef, ErrNotADirectory
	}
	head, rest := path[0], path[1:]
	childCID, ok := nd.Children[head]
	if !ok {
		return cid.Undef, ErrNotFound
	}
	newChildCID, err := t.rewrite(ctx, childCID, rest, edit)
	if err != nil {
		return cid.Undef, err
	}
	nd.Children[head] = newChildCID
	return t.storeInode(ctx, nd)
}

// rewriteParent resolves the parent directory of path (creating
// intermediate directories along the way when ensureDirs is true) and
// lets edit mutate the parent's children map for the final path
// component.
func (t *Tree) rewriteParent(ctx context.Context, path []string, ensureDirs bool, edit func(parent *inode, name string) error) error {
	if len(path) == 0 {
		return ErrNotFound
	}
	newRoot, err := t.rewriteParentRec(ctx, t.root, path[:len(path)-1], path[len(path)-1], ensureDirs, edit)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func (t *Tree) rewriteParentRec(ctx context.Context, dirCID cid.Cid, remaining []string, name string, ensureDirs bool, edit func(parent *inode, name string) error) (cid.Cid, error) {
	dir, err := t.loadInode(ctx, dirCID)
	if err != nil {
		return cid.Undef, err
	}
	if dir.Kind != kindDir {
		return cid.Undef, ErrNotADirectory
	}

	if len(remaining) == 0 {
		if err := edit(dir, name); err != nil {
			return cid.Undef, err
		}
		return t.storeInode(ctx, dir)
	}

	head, rest := remaining[0], remaining[1:]
	childCID, ok := dir.Children[head]
	if !ok {
		if !ensureDirs {
			return cid.Undef, ErrNotFound
		}
		childCID, err = t.storeInode(ctx, newDirInode())
		if err != nil {
			return cid.Undef, err
		}
	}

	newChildCID, err := t.rewriteParentRec(ctx, childCID, rest, name, ensureDirs, edit)
	if err != nil {
		return cid.Undef, err
	}
	dir.Children[head] = newChildCID
	return t.storeInode(ctx, dir)
}

// CreateFile writes a new file inode at path with content read from r.
// path must not already exist. Its parent directories are created if
// missing.
func (t *Tree) CreateFile(ctx context.Context, path []string, r io.Reader) error {
	chunks, err := t.writeChunks(ctx, r)
	if err != nil {
		return err
	}
	file := newFileInode()
	file.Chunks = chunks
	fileCID, err := t.storeInode(ctx, file)
	if err != nil {
		return err
	}
	return t.rewriteParent(ctx, path, true, func(parent *inode, name string) error {
		if _, exists := parent.Children[name]; exists {
			return ErrExists
		}
		parent.Children[name] = fileCID
		return nil
	})
}

// WriteFile replaces the content chunks of an existing file inode.
func (t *Tree) WriteFile(ctx context.Context, path []string, r io.Reader) error {
	chunks, err := t.writeChunks(ctx, r)
	if err != nil {
		return err
	}
	return t.rewriteAt(ctx, path, func(nd *inode) error {
		if nd.Kind != kindFile {
			return ErrNotAFile
		}
		nd.Chunks = chunks
		return nil
	})
}

// ReadFile loads an entire file's content into memory.
func (t *Tree) ReadFile(ctx context.Context, path []string) ([]byte, error) {
	nd, _, err := t.lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if nd.Kind != kindFile {
		return nil, ErrNotAFile
	}
	return t.readChunks(ctx, nd.Chunks)
}

// OpenFile returns a lazily-decrypting reader over a file's content,
// suitable for streaming large variants out without buffering them whole.
func (t *Tree) OpenFile(ctx context.Context, path []string) (io.Reader, error) {
	nd, _, err := t.lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if nd.Kind != kindFile {
		return nil, ErrNotAFile
	}
	return t.openChunkReader(ctx, nd.Chunks)
}

// SetMetadata attaches an arbitrary key/value pair to the inode at path
// (typically a file's "res_meta" or "{variant}_variant" entry).
func (t *Tree) SetMetadata(ctx context.Context, path []string, key string, value []byte) error {
	return t.rewriteAt(ctx, path, func(nd *inode) error {
		if nd.Metadata == nil {
			nd.Metadata = map[string][]byte{}
		}
		nd.Metadata[key] = value
		return nil
	})
}

// GetMetadata reads a metadata value previously set with SetMetadata.
func (t *Tree) GetMetadata(ctx context.Context, path []string, key string) ([]byte, bool, error) {
	nd, _, err := t.lookup(ctx, path)
	if err != nil {
		return nil, false, err
	}
	val, ok := nd.Metadata[key]
	return val, ok, nil
}

// RemoveMetadata deletes a metadata key from the inode at path, if present.
func (t *Tree) RemoveMetadata(ctx context.Context, path []string, key string) error {
	return t.rewriteAt(ctx, path, func(nd *inode) error {
		delete(nd.Metadata, key)
		return nil
	})
}

// Remove deletes the child at path: a file, or a directory together with
// its whole subtree, which is simply dropped since nothing else
// references it.
func (t *Tree) Remove(ctx context.Context, path []string) error {
	return t.rewriteParent(ctx, path, false, func(parent *inode, name string) error {
		if _, ok := parent.Children[name]; !ok {
			return ErrNotFound
		}
		delete(parent.Children, name)
		return nil
	})
}

// PutContent writes a standalone file inode holding r's content and
// returns its CID directly, without attaching it under any directory
// path. This is how non-default variant content is stored: the owning
// resource's inode keeps only a reference (the CID bytes) to this block,
// under the "{variant}_variant" metadata key, per spec.md §3 invariant 2.
func (t *Tree) PutContent(ctx context.Context, r io.Reader) (cid.Cid, error) {
	chunks, err := t.writeChunks(ctx, r)
	if err != nil {
		return cid.Undef, err
	}
	file := newFileInode()
	file.Chunks = chunks
	return t.storeInode(ctx, file)
}

// ReadContent loads the entire content of a standalone file inode
// previously returned by PutContent.
func (t *Tree) ReadContent(ctx context.Context, c cid.Cid) ([]byte, error) {
	nd, err := t.loadInode(ctx, c)
	if err != nil {
		return nil, err
	}
	if nd.Kind != kindFile {
		return nil, ErrNotAFile
	}
	return t.readChunks(ctx, nd.Chunks)
}

// OpenContent streams the content of a standalone file inode previously
// returned by PutContent.
func (t *Tree) OpenContent(ctx context.Context, c cid.Cid) (io.Reader, error) {
	nd, err := t.loadInode(ctx, c)
	if err != nil {
		return nil, err
	}
	if nd.Kind != kindFile {
		return nil, ErrNotAFile
	}
	return t.openChunkReader(ctx, nd.Chunks)
}
