package testutils

import (
	"github.com/mandelsoft/vfs/pkg/layerfs"
	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/projectionfs"
	"github.com/mandelsoft/vfs/pkg/readonlyfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
)

// TestFileSystem provides a filesystem with the content of the given
// directory as root. Unless readonly, modifications are kept in
// memory and never reach the original directory.
func TestFileSystem(path string, readonly bool) (vfs.FileSystem, error) {
	base, err := projectionfs.New(osfs.OsFs, path)
	if err != nil {
		return nil, err
	}
	if readonly {
		return readonlyfs.New(base), nil
	}
	return layerfs.New(memoryfs.New(), base), nil
}
