// Package access provides the HTTP surface of the concern engine:
// reading concerns and the manual removal of flags.
package access

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mandelsoft/logging"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/engine"
	"github.com/mandelsoft/concerns/pkg/model"
	"github.com/mandelsoft/concerns/pkg/server"
)

var REALM = logging.DefineRealm("concerns/access", "http access to concerns")

// HeaderUser carries the user requesting a concern removal.
const HeaderUser = "X-User"

// Engine is the part of the engine used by the access handler.
type Engine interface {
	Snapshot() *engine.Snapshot
	RemoveConcern(ctx context.Context, user string, id string) error
}

var _ Engine = (*engine.Engine)(nil)

// Concern is the wire shape of a concern together with the objects
// it appears on.
type Concern struct {
	concern.Record
	Related []model.ObjectId `json:"related"`
}

type Concerns struct {
	Items []Concern `json:"items"`
}

// ObjectConcerns describes the concerns appearing on an object.
type ObjectConcerns struct {
	Object   model.ObjectId   `json:"object"`
	Ready    bool             `json:"ready"`
	Concerns []concern.Record `json:"concerns"`
}

type Error struct {
	Error    string   `json:"error"`
	Blocking []string `json:"blocking,omitempty"`
}

type ConcernAccess struct {
	engine Engine
	prefix string
	log    logging.Logger
}

func New(lctx logging.Context, e Engine, prefix string) *ConcernAccess {
	if lctx == nil {
		lctx = logging.DefaultContext()
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ConcernAccess{
		engine: e,
		prefix: prefix,
		log:    lctx.Logger(REALM),
	}
}

func (a *ConcernAccess) RegisterHandler(srv *server.Server) {
	srv.Handle(a.prefix, a)
}

func (a *ConcernAccess) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var data any
	status := http.StatusOK

	path := strings.Trim(strings.TrimPrefix(req.URL.Path, a.prefix), "/")
	var comps []string
	if path != "" {
		comps = strings.Split(path, "/")
	}
	a.log.Debug("{{method}} {{path}}", "method", req.Method, "path", path)

	switch req.Method {
	case http.MethodGet:
		switch len(comps) {
		case 0:
			data = a.list()
		case 1:
			data, status = a.get(comps[0])
		case 2:
			data, status = a.object(comps[0], comps[1])
		default:
			data, status = &Error{Error: "invalid path"}, http.StatusBadRequest
		}
	case http.MethodDelete:
		if len(comps) != 1 {
			data, status = &Error{Error: "concern id required"}, http.StatusBadRequest
			break
		}
		user := req.Header.Get(HeaderUser)
		err := a.engine.RemoveConcern(req.Context(), user, comps[0])
		if err != nil {
			data, status = errorResponse(err)
			a.log.Info("removal of concern {{concern}} by {{user}} refused", "concern", comps[0], "user", user, "error", err)
		} else {
			a.log.Info("concern {{concern}} removed by {{user}}", "concern", comps[0], "user", user)
		}
	default:
		status = http.StatusMethodNotAllowed
	}

	var body []byte
	if data != nil {
		var err error
		body, err = json.Marshal(data)
		if err != nil {
			body, _ = json.Marshal(&Error{Error: err.Error()})
			status = http.StatusInternalServerError
		}
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if body != nil {
		w.Write(body)
	}
}

func (a *ConcernAccess) list() *Concerns {
	list := &Concerns{Items: []Concern{}}
	for _, c := range a.engine.Snapshot().Concerns().All() {
		list.Items = append(list.Items, concernOf(c))
	}
	return list
}

func (a *ConcernAccess) get(id string) (any, int) {
	c := a.engine.Snapshot().Concerns().Get(id)
	if c == nil {
		return &Error{Error: concern.ErrConcernNotFound.Error() + ": " + id}, http.StatusNotFound
	}
	return concernOf(c), http.StatusOK
}

func (a *ConcernAccess) object(kind, id string) (any, int) {
	k, err := model.ParseKind(kind)
	if err != nil {
		return &Error{Error: err.Error()}, http.StatusBadRequest
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return &Error{Error: "invalid object id " + id}, http.StatusBadRequest
	}
	oid := model.NewObjectId(k, n)

	s := a.engine.Snapshot()
	if s.Object(oid) == nil {
		return &Error{Error: "object " + oid.String() + " not found"}, http.StatusNotFound
	}
	records := concern.Records(s.ConcernsOf(oid))
	if records == nil {
		records = []concern.Record{}
	}
	return &ObjectConcerns{
		Object:   oid,
		Ready:    s.IsReady(oid),
		Concerns: records,
	}, http.StatusOK
}

func concernOf(c *concern.Item) Concern {
	return Concern{
		Record:  c.Record(),
		Related: c.RelatedObjects(),
	}
}

// errorResponse maps engine errors to HTTP status codes.
func errorResponse(err error) (*Error, int) {
	e := &Error{Error: err.Error()}
	if b, ok := engine.IsBlocked(err); ok {
		for _, c := range b.Concerns {
			e.Blocking = append(e.Blocking, c.Id)
		}
		return e, http.StatusConflict
	}
	switch {
	case errors.Is(err, engine.ErrNotAuthorized):
		return e, http.StatusForbidden
	case errors.Is(err, concern.ErrConcernNotFound):
		return e, http.StatusNotFound
	case errors.Is(err, engine.ErrNotRemovable):
		return e, http.StatusBadRequest
	}
	return e, http.StatusInternalServerError
}
