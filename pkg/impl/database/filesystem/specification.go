package filesystem

import (
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/mandelsoft/concerns/pkg/database"
	"github.com/mandelsoft/concerns/pkg/utils"
)

type Specification struct {
	Path       string
	FileSystem vfs.FileSystem
}

var _ database.Specification = (*Specification)(nil)

func NewSpecification(path string, fss ...vfs.FileSystem) *Specification {
	return &Specification{
		Path:       path,
		FileSystem: utils.OptionalDefaulted[vfs.FileSystem](osfs.New(), fss...),
	}
}

func (s *Specification) Create() (database.Database, error) {
	return New(s.Path, s.FileSystem)
}
