package forest

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

type kind string

const (
	kindDir  kind = "dir"
	kindFile kind = "file"
)

// inode is the plaintext shape of one forest node. It is dagcbor-encoded
// and the resulting bytes are sealed before ever touching the block store,
// mirroring the way the teacher's commit nodes are built by hand with
// basicnode rather than through a generated schema (see
// repository.buildCommitNode / parseCommit).
type inode struct {
	Kind     kind
	Children map[string]cid.Cid   // dir only
	Metadata map[string][]byte    // file only: e.g. "res_meta", "{variant}_variant"
	Chunks   []cid.Cid            // file only: ordered content chunk CIDs
}

func newDirInode() *inode {
	return &inode{Kind: kindDir, Children: map[string]cid.Cid{}}
}

func newFileInode() *inode {
	return &inode{Kind: kindFile, Metadata: map[string][]byte{}}
}

func encodeInode(nd *inode) ([]byte, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(4)
	if err != nil {
		return nil, err
	}

	entry, err := ma.AssembleEntry("kind")
	if err != nil {
		return nil, err
	}
	if err := entry.AssignString(string(nd.Kind)); err != nil {
		return nil, err
	}

	childNames := make([]string, 0, len(nd.Children))
	for name := range nd.Children {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)

	entry, err = ma.AssembleEntry("children")
	if err != nil {
		return nil, err
	}
	cma, err := entry.BeginMap(int64(len(childNames)))
	if err != nil {
		return nil, err
	}
	for _, name := range childNames {
		ce, err := cma.AssembleEntry(name)
		if err != nil {
			return nil, err
		}
		if err := ce.AssignString(nd.Children[name].String()); err != nil {
			return nil, err
		}
	}
	if err := cma.Finish(); err != nil {
		return nil, err
	}

	metaKeys := make([]string, 0, len(nd.Metadata))
	for k := range nd.Metadata {
		metaKeys = append(metaKeys, k)
	}
	sort.Strings(metaKeys)

	entry, err = ma.AssembleEntry("metadata")
	if err != nil {
		return nil, err
	}
	mma, err := entry.BeginMap(int64(len(metaKeys)))
	if err != nil {
		return nil, err
	}
	for _, k := range metaKeys {
		me, err := mma.AssembleEntry(k)
		if err != nil {
			return nil, err
		}
		if err := me.AssignBytes(nd.Metadata[k]); err != nil {
			return nil, err
		}
	}
	if err := mma.Finish(); err != nil {
		return nil, err
	}

	entry, err = ma.AssembleEntry("chunks")
	if err != nil {
		return nil, err
	}
	la, err := entry.BeginList(int64(len(nd.Chunks)))
	if err != nil {
		return nil, err
	}
	for _, c := range nd.Chunks {
		if err := la.AssembleValue().AssignString(c.String()); err != nil {
			return nil, err
		}
	}
	if err := la.Finish(); err != nil {
		return nil, err
	}

	if err := ma.Finish(); err != nil {
		return nil, err
	}

	node := builder.Build()
	var buf bytes.Buffer
	if err := dagcbor.Encode(node, &buf); err != nil {
		return nil, fmt.Errorf("forest: encode inode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeInode(data []byte) (*inode, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	if err := dagcbor.Decode(builder, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("forest: decode inode: %w", err)
	}
	node := builder.Build()

	kindNode, err := node.LookupByString("kind")
	if err != nil {
		return nil, fmt.Errorf("forest: inode missing kind: %w", err)
	}
	kindStr, err := kindNode.AsString()
	if err != nil {
		return nil, err
	}

	nd := &inode{
		Kind:     kind(kindStr),
		Children: map[string]cid.Cid{},
		Metadata: map[string][]byte{},
	}

	childrenNode, err := node.LookupByString("children")
	if err != nil {
		return nil, fmt.Errorf("forest: inode missing children: %w", err)
	}
	if childrenNode.Length() > 0 {
		it := childrenNode.MapIterator()
		for !it.Done() {
			kNode, vNode, err := it.Next()
			if err != nil {
				return nil, err
			}
			name, err := kNode.AsString()
			if err != nil {
				return nil, err
			}
			cidStr, err := vNode.AsString()
			if err != nil {
				return nil, err
			}
			c, err := cid.Decode(cidStr)
			if err != nil {
				return nil, fmt.Errorf("forest: decode child cid: %w", err)
			}
			nd.Children[name] = c
		}
	}

	metaNode, err := node.LookupByString("metadata")
	if err != nil {
		return nil, fmt.Errorf("forest: inode missing metadata: %w", err)
	}
	if metaNode.Length() > 0 {
		it := metaNode.MapIterator()
		for !it.Done() {
			kNode, vNode, err := it.Next()
			if err != nil {
				return nil, err
			}
			key, err := kNode.AsString()
			if err != nil {
				return nil, err
			}
			val, err := vNode.AsBytes()
			if err != nil {
				return nil, err
			}
			nd.Metadata[key] = val
		}
	}

	chunksNode, err := node.LookupByString("chunks")
	if err != nil {
		return nil, fmt.Errorf("forest: inode missing chunks: %w", err)
	}
	if chunksNode.Length() > 0 {
		it := chunksNode.ListIterator()
		for !it.Done() {
			_, vNode, err := it.Next()
			if err != nil {
				return nil, err
			}
			cidStr, err := vNode.AsString()
			if err != nil {
				return nil, err
			}
			c, err := cid.Decode(cidStr)
			if err != nil {
				return nil, fmt.Errorf("forest: decode chunk cid: %w", err)
			}
			nd.Chunks = append(nd.Chunks, c)
		}
	}

	return nd, nil
}
