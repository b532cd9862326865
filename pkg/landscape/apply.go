package landscape

import (
	"context"
	"fmt"
	"strings"

	"github.com/mandelsoft/logging"

	"github.com/mandelsoft/concerns/pkg/engine"
	"github.com/mandelsoft/concerns/pkg/model"
)

// Index maps the names used in a landscape to the ids of the created
// objects. Services are named <cluster>/<service>, components
// <cluster>/<service>/<component>.
type Index struct {
	ids   map[model.Kind]map[string]model.ObjectId
	names map[model.ObjectId]string
}

func newIndex() *Index {
	return &Index{
		ids:   map[model.Kind]map[string]model.ObjectId{},
		names: map[model.ObjectId]string{},
	}
}

func (i *Index) add(id model.ObjectId, name string) {
	m := i.ids[id.Kind]
	if m == nil {
		m = map[string]model.ObjectId{}
		i.ids[id.Kind] = m
	}
	m[name] = id
	i.names[id] = name
}

// Lookup provides the id of a named object or the zero id.
func (i *Index) Lookup(kind model.Kind, name string) model.ObjectId {
	return i.ids[kind][name]
}

func (i *Index) Cluster(name string) model.ObjectId {
	return i.Lookup(model.KindCluster, name)
}

func (i *Index) Service(cluster, service string) model.ObjectId {
	return i.Lookup(model.KindService, cluster+"/"+service)
}

func (i *Index) Component(cluster, service, component string) model.ObjectId {
	return i.Lookup(model.KindComponent, cluster+"/"+service+"/"+component)
}

func (i *Index) Provider(name string) model.ObjectId {
	return i.Lookup(model.KindProvider, name)
}

func (i *Index) Host(name string) model.ObjectId {
	return i.Lookup(model.KindHost, name)
}

// Name provides the landscape name of an object.
func (i *Index) Name(id model.ObjectId) string {
	return i.names[id]
}

// Apply creates the objects of the landscape using the events of the
// given engine.
func (l *Landscape) Apply(ctx context.Context, e *engine.Engine, lctx ...logging.Context) (*Index, error) {
	log := logging.DefaultContext()
	if len(lctx) > 0 && lctx[0] != nil {
		log = lctx[0]
	}
	a := &applier{
		ctx:    ctx,
		engine: e,
		index:  newIndex(),
		log:    log.Logger(REALM),
	}
	if err := a.apply(l); err != nil {
		return nil, err
	}
	return a.index, nil
}

type applier struct {
	ctx    context.Context
	engine *engine.Engine
	index  *Index
	log    logging.Logger

	states []state
}

type state struct {
	id  model.ObjectId
	obj *Object
}

func (a *applier) apply(l *Landscape) error {
	for i := range l.Providers {
		if err := a.provider(l, &l.Providers[i]); err != nil {
			return err
		}
	}
	for i := range l.Clusters {
		if err := a.cluster(l, &l.Clusters[i]); err != nil {
			return err
		}
	}
	for _, c := range l.Clusters {
		if err := a.imports(a.index.Cluster(c.Name), c.Imports); err != nil {
			return fmt.Errorf("cluster %q: %w", c.Name, err)
		}
		for _, s := range c.Services {
			if err := a.imports(a.index.Service(c.Name, s.Name), s.Imports); err != nil {
				return fmt.Errorf("service %q: %w", s.Name, err)
			}
		}
	}
	for _, s := range a.states {
		if s.obj.MaintenanceMode != "" {
			if err := a.engine.SetMaintenanceMode(a.ctx, s.id, s.obj.MaintenanceMode); err != nil {
				return err
			}
		}
		if s.obj.State != "" {
			if err := a.engine.SetState(a.ctx, s.id, s.obj.State); err != nil {
				return err
			}
		}
	}
	return nil
}

// object configures a created object. State changes are deferred.
func (a *applier) object(id model.ObjectId, name string, o *Object) error {
	a.index.add(id, name)
	a.log.Debug("created {{object}} as {{id}}", "object", name, "id", id.String())
	if len(o.Config) > 0 || len(o.Attr) > 0 || len(o.Meta) > 0 {
		if err := a.engine.SaveConfig(a.ctx, id, o.config()); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	a.states = append(a.states, state{id, o})
	return nil
}

func (a *applier) provider(l *Landscape, p *Provider) error {
	b := l.Bundle(p.Bundle)
	id, err := a.engine.CreateProvider(a.ctx, b.Provider, p.Name)
	if err != nil {
		return fmt.Errorf("provider %q: %w", p.Name, err)
	}
	if err := a.object(id, p.Name, &p.Object); err != nil {
		return err
	}
	for i := range p.Hosts {
		h := &p.Hosts[i]
		hid, err := a.engine.CreateHost(a.ctx, id, h.Name)
		if err != nil {
			return fmt.Errorf("host %q: %w", h.Name, err)
		}
		if err := a.object(hid, h.Name, h); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) cluster(l *Landscape, c *Cluster) error {
	b := l.Bundle(c.Bundle)
	id, err := a.engine.CreateCluster(a.ctx, b.Cluster, c.Name)
	if err != nil {
		return fmt.Errorf("cluster %q: %w", c.Name, err)
	}
	if err := a.object(id, c.Name, &c.Object); err != nil {
		return err
	}

	for i := range c.Services {
		s := &c.Services[i]
		sid, err := a.engine.AddService(a.ctx, id, s.Name)
		if err != nil {
			return fmt.Errorf("cluster %q: service %q: %w", c.Name, s.Name, err)
		}
		name := c.Name + "/" + s.Name
		if err := a.object(sid, name, &s.Object); err != nil {
			return err
		}
		g := a.engine.Snapshot().Graph()
		for _, cid := range g.ServiceComponents(sid) {
			comp := g.Get(cid)
			a.index.add(cid, name+"/"+comp.Name)
		}
		for j := range s.Components {
			comp := &s.Components[j]
			if err := a.object(g.FindComponent(sid, comp.Name), name+"/"+comp.Name, comp); err != nil {
				return err
			}
		}
	}

	for _, h := range c.Hosts {
		if err := a.engine.MoveHost(a.ctx, a.index.Host(h), id); err != nil {
			return fmt.Errorf("cluster %q: host %q: %w", c.Name, h, err)
		}
	}

	if len(c.Mapping) > 0 {
		var entries []model.HostComponent
		for _, m := range c.Mapping {
			svc, comp, _ := splitComponent(m.Component)
			hc := model.HostComponent{
				Host:      a.index.Host(m.Host),
				Component: a.index.Component(c.Name, svc, comp),
			}
			if hc.Host.IsZero() || hc.Component.IsZero() {
				return fmt.Errorf("cluster %q: invalid mapping %s -> %s", c.Name, m.Host, m.Component)
			}
			entries = append(entries, hc)
		}
		if err := a.engine.SetMapping(a.ctx, id, entries); err != nil {
			return fmt.Errorf("cluster %q: %w", c.Name, err)
		}
	}
	return nil
}

func (a *applier) imports(target model.ObjectId, imports []Import) error {
	if len(imports) == 0 {
		return nil
	}
	var bindings []model.ImportBinding
	for _, i := range imports {
		var src model.ObjectId
		if strings.Contains(i.Source, "/") {
			src = a.index.Lookup(model.KindService, i.Source)
		} else {
			src = a.index.Cluster(i.Source)
		}
		if src.IsZero() {
			return fmt.Errorf("unknown import source %q", i.Source)
		}
		bindings = append(bindings, model.ImportBinding{Import: i.Import, Source: src})
	}
	return a.engine.SaveImports(a.ctx, target, bindings)
}
