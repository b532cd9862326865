package server

import (
	"net/http"
	"strings"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/projectionfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
)

// DirectoryHandler serves the files of a filesystem read-only,
// for example the records of a concern database.
type DirectoryHandler struct {
	fs      vfs.FileSystem
	prefix  string
	handler http.Handler
	log     logging.Logger
}

var _ http.Handler = (*DirectoryHandler)(nil)

func NewDirectoryHandlerFor(path, prefix string) (*DirectoryHandler, error) {
	fs, err := projectionfs.New(osfs.OsFs, path)
	if err != nil {
		return nil, err
	}
	return NewDirectoryHandler(fs, prefix), nil
}

func NewDirectoryHandler(fs vfs.FileSystem, prefix string) *DirectoryHandler {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &DirectoryHandler{
		fs:      fs,
		prefix:  prefix,
		handler: http.StripPrefix(prefix, http.FileServerFS(vfs.AsIoFS(fs))),
		log:     logging.DefaultContext().Logger(REALM),
	}
}

func (d *DirectoryHandler) RegisterHandler(srv *Server) {
	d.log = srv.log
	srv.Handle(d.prefix, d)
}

func (d *DirectoryHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	d.log.Debug("{{method}} serving {{url}}", "method", req.Method, "url", req.URL)
	d.handler.ServeHTTP(w, req)
}
