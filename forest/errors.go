package forest

import "errors"

// ErrNotFound is returned when a path does not resolve to any inode.
var ErrNotFound = errors.New("forest: no such path")

// ErrExists is returned when a create operation targets a path that
// already has a child under that name.
var ErrExists = errors.New("forest: path already exists")

// ErrNotADirectory is returned when a path traverses through a file inode.
var ErrNotADirectory = errors.New("forest: not a directory")

// ErrNotAFile is returned when a file-only operation targets a directory.
var ErrNotAFile = errors.New("forest: not a file")
