package filesystem

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"sigs.k8s.io/yaml"

	"github.com/mandelsoft/concerns/pkg/database"
	"github.com/mandelsoft/concerns/pkg/utils"
)

var log = logging.DynamicLogger(logging.DefaultContext(), database.REALM)

// Database persists the concern table and the association table in a
// filesystem. Every concern is stored in its own file, its association
// rows in a file of the same name in a separate directory.
//
// Files are written to temporary files first and renamed afterwards.
// A change is applied in two steps: all new content is staged, then
// it is renamed in place and deleted concerns are removed. A change
// failing in the staging step leaves the database untouched.
type Database struct {
	lock sync.Mutex
	path string
	fs   vfs.FileSystem
}

var _ database.Database = (*Database)(nil)

func New(path string, fss ...vfs.FileSystem) (*Database, error) {
	fs := utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...)

	for _, d := range []string{ConcernDir, RelatedDir} {
		if ok, err := vfs.DirExists(fs, filepath.Join(path, d)); err == nil && ok {
			continue
		}
		err := fs.MkdirAll(filepath.Join(path, d), 0o0700)
		if err != nil && !errors.Is(err, vfs.ErrExist) {
			return nil, err
		}
	}
	return &Database{path: path, fs: fs}, nil
}

func (d *Database) Path(path string) string {
	return filepath.Join(d.path, path)
}

func (d *Database) ListConcernIds() ([]string, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.list(ConcernDir)
}

func (d *Database) list(table string) ([]string, error) {
	list, err := vfs.ReadDir(d.fs, d.Path(table))
	if err != nil {
		if errors.Is(err, vfs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range list {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), fileSuffix))
	}
	slices.Sort(ids)
	return ids, nil
}

func (d *Database) Load() (*database.Content, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	ids, err := d.list(ConcernDir)
	if err != nil {
		return nil, err
	}
	content := &database.Content{}
	for _, id := range ids {
		var r database.ConcernRecord
		if err := d.read(Path(ConcernDir, id), &r); err != nil {
			return nil, err
		}
		if r.Id != id {
			return nil, fmt.Errorf("%w: %s does not contain concern %s", database.ErrCorrupted, Path(ConcernDir, id), id)
		}
		content.Concerns = append(content.Concerns, r)

		var rel []database.Relation
		err := d.read(Path(RelatedDir, id), &rel)
		if err != nil && !errors.Is(err, database.ErrNotExist) {
			return nil, err
		}
		for _, e := range rel {
			if e.Concern != id {
				return nil, fmt.Errorf("%w: %s contains relation for concern %s", database.ErrCorrupted, Path(RelatedDir, id), e.Concern)
			}
		}
		content.Relations = append(content.Relations, rel...)
	}
	log.Debug("loaded {{count}} concerns", "count", len(content.Concerns))
	return content, nil
}

func (d *Database) read(path string, obj any) error {
	data, err := vfs.ReadFile(d.fs, d.Path(path))
	if err != nil {
		if errors.Is(err, vfs.ErrNotExist) {
			return fmt.Errorf("%w: %s", database.ErrNotExist, path)
		}
		return err
	}
	if err := yaml.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("%w: %s: %s", database.ErrCorrupted, path, err)
	}
	return nil
}

type staged struct {
	temp, final string
}

func (d *Database) Apply(c *database.Change) error {
	if c.IsEmpty() {
		return nil
	}
	d.lock.Lock()
	defer d.lock.Unlock()

	related := map[string][]database.Relation{}
	for _, r := range c.Relations {
		related[r.Concern] = append(related[r.Concern], r)
	}

	var files []staged
	cleanup := func() {
		for _, f := range files {
			d.fs.Remove(f.temp)
		}
	}
	stage := func(table, id string, obj any) error {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		f := staged{
			temp:  d.Path(filepath.Join(table, tempPrefix+id+fileSuffix)),
			final: d.Path(Path(table, id)),
		}
		if err := vfs.WriteFile(d.fs, f.temp, data, 0o600); err != nil {
			return err
		}
		files = append(files, f)
		return nil
	}

	for _, r := range c.Set {
		if !CheckId(r.Id) {
			cleanup()
			return fmt.Errorf("invalid concern id %q", r.Id)
		}
		if err := stage(ConcernDir, r.Id, r); err != nil {
			cleanup()
			return err
		}
		rel := related[r.Id]
		if rel == nil {
			rel = []database.Relation{}
		}
		if err := stage(RelatedDir, r.Id, rel); err != nil {
			cleanup()
			return err
		}
	}

	for _, f := range files {
		if err := d.fs.Rename(f.temp, f.final); err != nil {
			return err
		}
	}
	for _, id := range c.Deleted {
		if !CheckId(id) {
			continue
		}
		for _, table := range []string{RelatedDir, ConcernDir} {
			err := d.fs.Remove(d.Path(Path(table, id)))
			if err != nil && !errors.Is(err, vfs.ErrNotExist) {
				return err
			}
		}
	}
	log.Debug("applied change: {{set}} set, {{deleted}} deleted", "set", len(c.Set), "deleted", len(c.Deleted))
	return nil
}
