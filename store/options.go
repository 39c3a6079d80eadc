package store

// Options carries the small set of knobs a ResourceStore's on-disk layout
// needs. Most callers want DefaultOptions(); the fields exist mainly so
// tests can point multiple stores at distinguishable sqlite/blockstore
// names under the same rootDir.
type Options struct {
	// BlockStoreDirName is the subdirectory of rootDir holding C1's files.
	BlockStoreDirName string
	// IndexFileName is the live relational index filename under rootDir.
	IndexFileName string
}

// DefaultOptions returns the on-disk layout described in spec.md §4.5.
func DefaultOptions() Options {
	return Options{
		BlockStoreDirName: "blockstore",
		IndexFileName:     "index.sqlite",
	}
}

func (o Options) withDefaults() Options {
	if o.BlockStoreDirName == "" {
		o.BlockStoreDirName = "blockstore"
	}
	if o.IndexFileName == "" {
		o.IndexFileName = "index.sqlite"
	}
	return o
}
