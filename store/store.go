// Package store implements the ResourceStore coordinator described in
// spec.md §4.5 (component C5): the core that keeps the encrypted
// directory-tree overlay, the relational index, and the block store it
// all sits on consistent across every mutating operation.
package store

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fabricedesre/docstore/blockstore"
	"github.com/fabricedesre/docstore/cryptutil"
	"github.com/fabricedesre/docstore/forest"
	"github.com/fabricedesre/docstore/indexer"
	"github.com/fabricedesre/docstore/resource"
)

var resourcesDir = []string{".resources"}
var indexDir = []string{".index"}
var indexSnapshotPath = []string{".index", "index.sqlite"}

// ResourceStore is the coordinator. It owns every persistent collaborator
// and is not safe for concurrent use — spec.md §5 requires callers to
// serialize their own calls.
type ResourceStore struct {
	forest     *forest.Tree
	blockStore *blockstore.BlockStore
	accessKey  cryptutil.AccessKey
	rootDir    string
	indexer    *indexer.Indexer
	opts       Options
}

// New opens (creating if necessary) the resource store rooted at rootDir.
func New(ctx context.Context, rootDir string, opts Options) (*ResourceStore, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, newError(KindIO, "open", fmt.Errorf("create root dir %q: %w", rootDir, err))
	}

	bs, err := blockstore.Open(filepath.Join(rootDir, opts.BlockStoreDirName))
	if err != nil {
		return nil, newError(KindIO, "open", err)
	}

	idx, err := indexer.Open(filepath.Join(rootDir, opts.IndexFileName))
	if err != nil {
		return nil, newError(KindIndex, "open", err)
	}

	s := &ResourceStore{
		blockStore: bs,
		rootDir:    rootDir,
		indexer:    idx,
		opts:       opts,
	}

	key, keyOK := loadAccessKey(s.accessKeyPath())
	rootCID, cidOK := loadForestCID(s.forestCIDPath())

	if keyOK && cidOK {
		s.accessKey = key
		s.forest = forest.Load(bs, key, rand.Reader, rootCID)
	} else {
		newKey, err := cryptutil.NewAccessKey(rand.Reader)
		if err != nil {
			idx.Close()
			return nil, newError(KindSerialization, "open", err)
		}
		tree, err := forest.New(ctx, bs, newKey, rand.Reader)
		if err != nil {
			idx.Close()
			return nil, newError(KindTree, "open", err)
		}
		if err := saveAccessKey(s.accessKeyPath(), newKey); err != nil {
			idx.Close()
			return nil, newError(KindIO, "open", err)
		}
		s.accessKey = newKey
		s.forest = tree
		if err := saveForestCID(s.forestCIDPath(), tree.Root()); err != nil {
			idx.Close()
			return nil, newError(KindIO, "open", err)
		}
	}

	if err := s.forest.EnsureDir(ctx, resourcesDir); err != nil {
		idx.Close()
		return nil, newError(KindTree, "open", err)
	}
	if err := s.forest.EnsureDir(ctx, indexDir); err != nil {
		idx.Close()
		return nil, newError(KindTree, "open", err)
	}
	if err := s.commitForest(); err != nil {
		idx.Close()
		return nil, err
	}

	if err := s.integritySweep(ctx); err != nil {
		idx.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the indexer's sqlite connection. The block store and
// forest hold no runtime resources beyond what the OS already reclaims.
func (s *ResourceStore) Close() error {
	return s.indexer.Close()
}

// resourcePath maps a caller-supplied resource path onto its location
// under the reserved /.resources directory, per spec.md §3.
func resourcePath(id resource.Id) []string {
	path := make([]string, 0, len(id)+1)
	path = append(path, resourcesDir...)
	path = append(path, id...)
	return path
}

// commitForest persists the current forest root to disk. It is the last
// step of save_state, per spec.md §4.5: a failure earlier in a mutation
// leaves forest.cid untouched and reopening lands on the pre-mutation
// root.
func (s *ResourceStore) commitForest() error {
	if err := saveForestCID(s.forestCIDPath(), s.forest.Root()); err != nil {
		return newError(KindIO, "commit", err)
	}
	return nil
}

// saveState implements spec.md §4.5's commit discipline: snapshot the
// live index into the encrypted tree if dirty, then persist the new
// forest root.
func (s *ResourceStore) saveState(ctx context.Context) error {
	if s.indexer.Dirty() {
		data, err := os.ReadFile(filepath.Join(s.rootDir, s.opts.IndexFileName))
		if err != nil {
			return newError(KindIO, "save_state", fmt.Errorf("read live index: %w", err))
		}
		if s.forest.Exists(ctx, indexSnapshotPath) {
			if err := s.forest.WriteFile(ctx, indexSnapshotPath, bytes.NewReader(data)); err != nil {
				return newError(KindTree, "save_state", err)
			}
		} else {
			if err := s.forest.CreateFile(ctx, indexSnapshotPath, bytes.NewReader(data)); err != nil {
				return newError(KindTree, "save_state", err)
			}
		}
		s.indexer.ClearDirty()
	}
	return s.commitForest()
}

// integritySweep reconciles the indexer's row set against the tree at
// open time, per spec.md §9: "A conservative implementation should run
// an integrity sweep at open that reconciles the indexer's row set
// against the tree." The documented failure mode is the indexer running
// ahead of the tree (every mutation updates it before the new root is
// committed), so the
// sweep only removes indexer rows with no corresponding tree resource;
// it never invents tree resources the indexer doesn't know about.
func (s *ResourceStore) integritySweep(ctx context.Context) error {
	treeIDs := map[string]bool{}
	if err := s.walkResources(ctx, resourcesDir, nil, func(id resource.Id) {
		treeIDs[id.String()] = true
	}); err != nil {
		return newError(KindTree, "integrity_sweep", err)
	}

	indexIDs, err := s.indexer.ResourceIds()
	if err != nil {
		return newError(KindIndex, "integrity_sweep", err)
	}

	for _, id := range indexIDs {
		if !treeIDs[id.String()] {
			if err := s.indexer.DeleteResource(id); err != nil {
				return newError(KindIndex, "integrity_sweep", err)
			}
		}
	}
	return nil
}

// walkResources recursively visits every leaf file under dir (relative to
// the forest root), invoking visit with the resource id reconstructed
// from prefix plus the walked path.
func (s *ResourceStore) walkResources(ctx context.Context, dir []string, prefix []string, visit func(resource.Id)) error {
	names, err := s.forest.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		childPath := append(append([]string{}, dir...), name)
		childPrefix := append(append([]string{}, prefix...), name)
		isDir, err := s.forest.IsDir(ctx, childPath)
		if err != nil {
			return err
		}
		if isDir {
			if err := s.walkResources(ctx, childPath, childPrefix, visit); err != nil {
				return err
			}
			continue
		}
		id, err := resource.NewId(childPrefix...)
		if err != nil {
			return err
		}
		visit(id)
	}
	return nil
}
