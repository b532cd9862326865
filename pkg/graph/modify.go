package graph

import (
	"fmt"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/model"
)

func (g *Graph) newId(kind model.Kind) ObjectId {
	g.nextId[kind]++
	return model.NewObjectId(kind, g.nextId[kind])
}

func (g *Graph) add(o *model.Object) *model.Object {
	if o.State == "" {
		o.State = model.StateCreated
	}
	if model.SupportsMaintenanceMode(o.Id.Kind) && o.MaintenanceMode == "" {
		o.MaintenanceMode = model.MaintenanceModeOff
	}
	if o.Config.IsEmpty() && o.Prototype != nil {
		o.Config = o.Prototype.DefaultConfig()
	}
	g.objects[o.Id] = o
	if !o.Owner.IsZero() {
		assure(g.children, o.Owner).Insert(o.Id)
	}
	return o
}

// modify replaces the object by a modified copy.
func (g *Graph) modify(id ObjectId, mod func(o *model.Object)) error {
	o := g.objects[id]
	if o == nil {
		return unknownObject(id)
	}
	n := o.Copy()
	mod(n)
	g.objects[id] = n
	return nil
}

func (g *Graph) expect(id ObjectId, kinds ...model.Kind) (*model.Object, error) {
	o := g.objects[id]
	if o == nil {
		return nil, unknownObject(id)
	}
	if len(kinds) > 0 && !slices.Contains(kinds, id.Kind) {
		return nil, invalidState(id, "unexpected object kind")
	}
	return o, nil
}

func expectPrototype(p *model.Prototype, kind model.Kind) error {
	if p == nil {
		return fmt.Errorf("%w: no %s prototype", ErrInvalidState, kind)
	}
	if p.Kind != kind {
		return fmt.Errorf("%w: %s is no %s prototype", ErrInvalidState, p, kind)
	}
	if p.Bundle() == nil {
		return fmt.Errorf("%w: %s: bundle not completed", ErrInvalidState, p)
	}
	return nil
}

func (g *Graph) AddCluster(proto *model.Prototype, name string) (*model.Object, error) {
	if err := expectPrototype(proto, model.KindCluster); err != nil {
		return nil, err
	}
	return g.add(&model.Object{Id: g.newId(model.KindCluster), Name: name, Prototype: proto}), nil
}

func (g *Graph) AddProvider(proto *model.Prototype, name string) (*model.Object, error) {
	if err := expectPrototype(proto, model.KindProvider); err != nil {
		return nil, err
	}
	return g.add(&model.Object{Id: g.newId(model.KindProvider), Name: name, Prototype: proto}), nil
}

// AddHost creates a host of the given provider using the host
// prototype of the provider bundle.
func (g *Graph) AddHost(provider ObjectId, name string) (*model.Object, error) {
	p, err := g.expect(provider, model.KindProvider)
	if err != nil {
		return nil, err
	}
	proto := p.Prototype.Bundle().Host
	if err := expectPrototype(proto, model.KindHost); err != nil {
		return nil, err
	}
	return g.add(&model.Object{Id: g.newId(model.KindHost), Name: name, Prototype: proto, Owner: provider}), nil
}

// AddService adds the service with the given prototype name
// to a cluster together with all its components.
func (g *Graph) AddService(cluster ObjectId, prototype string) (*model.Object, error) {
	c, err := g.expect(cluster, model.KindCluster)
	if err != nil {
		return nil, err
	}
	proto := c.Prototype.Bundle().Service(prototype)
	if proto == nil {
		return nil, invalidState(cluster, "unknown service prototype %q", prototype)
	}
	if !g.FindService(cluster, prototype).IsZero() {
		return nil, fmt.Errorf("%w: service %q in %s", ErrAlreadyExists, prototype, cluster)
	}
	s := g.add(&model.Object{Id: g.newId(model.KindService), Name: proto.Name, Prototype: proto, Owner: cluster, Cluster: cluster})
	for _, cp := range proto.Components {
		g.add(&model.Object{Id: g.newId(model.KindComponent), Name: cp.Name, Prototype: cp, Owner: s.Id, Cluster: cluster})
	}
	return s, nil
}

// SetMapping replaces the host-component mapping of a cluster.
// All hosts must be members and all components must belong to the cluster.
func (g *Graph) SetMapping(cluster ObjectId, entries []model.HostComponent) error {
	if _, err := g.expect(cluster, model.KindCluster); err != nil {
		return err
	}
	m := sets.New[model.HostComponent]()
	for _, e := range entries {
		if e.Host.Kind != model.KindHost || e.Component.Kind != model.KindComponent {
			return fmt.Errorf("%w: invalid entry %s", ErrMappingConflict, e)
		}
		h := g.objects[e.Host]
		if h == nil || h.Cluster != cluster {
			return fmt.Errorf("%w: host %s is not a member of %s", ErrMappingConflict, e.Host, cluster)
		}
		c := g.objects[e.Component]
		if c == nil || c.Cluster != cluster {
			return fmt.Errorf("%w: component %s does not belong to %s", ErrMappingConflict, e.Component, cluster)
		}
		m.Insert(e)
	}
	if len(m) == 0 {
		delete(g.mapping, cluster)
	} else {
		g.mapping[cluster] = m
	}
	return nil
}

// MoveHost changes the cluster membership of a host. A zero cluster
// removes the host from its cluster. Leaving a cluster clears the
// mapping entries of the host.
func (g *Graph) MoveHost(host ObjectId, cluster ObjectId) error {
	h, err := g.expect(host, model.KindHost)
	if err != nil {
		return err
	}
	if !cluster.IsZero() {
		if _, err := g.expect(cluster, model.KindCluster); err != nil {
			return err
		}
	}
	if h.Cluster == cluster {
		return nil
	}
	if !h.Cluster.IsZero() {
		g.clearHostMapping(h.Cluster, host)
		if m := g.members[h.Cluster]; m != nil {
			m.Delete(host)
			if len(m) == 0 {
				delete(g.members, h.Cluster)
			}
		}
	}
	if !cluster.IsZero() {
		assure(g.members, cluster).Insert(host)
	}
	return g.modify(host, func(o *model.Object) { o.Cluster = cluster })
}

func (g *Graph) clearHostMapping(cluster, host ObjectId) {
	g.filterMapping(cluster, func(hc model.HostComponent) bool { return hc.Host != host })
}

func (g *Graph) filterMapping(cluster ObjectId, keep func(hc model.HostComponent) bool) {
	m := g.mapping[cluster]
	for hc := range m {
		if !keep(hc) {
			m.Delete(hc)
		}
	}
	if m != nil && len(m) == 0 {
		delete(g.mapping, cluster)
	}
}

func (g *Graph) SetState(id ObjectId, state string) error {
	if state == "" {
		return invalidState(id, "empty state")
	}
	return g.modify(id, func(o *model.Object) { o.State = state })
}

func (g *Graph) SetMaintenanceMode(id ObjectId, mm model.MaintenanceMode) error {
	if !model.SupportsMaintenanceMode(id.Kind) {
		if _, err := g.expect(id); err != nil {
			return err
		}
		return invalidState(id, "maintenance mode not supported")
	}
	if _, err := model.ParseMaintenanceMode(string(mm)); err != nil {
		return invalidState(id, "%s", err)
	}
	return g.modify(id, func(o *model.Object) { o.MaintenanceMode = mm })
}

func (g *Graph) SetConfig(id ObjectId, cfg model.Config) error {
	return g.modify(id, func(o *model.Object) { o.Config = cfg.Copy() })
}

// SetImports replaces the import bindings of a cluster or service.
// Every binding must refer to a declared import and to an existing
// cluster or service with a matching prototype name.
func (g *Graph) SetImports(target ObjectId, bindings []model.ImportBinding) error {
	t, err := g.expect(target, model.KindCluster, model.KindService)
	if err != nil {
		return err
	}
	count := map[string]int{}
	for _, b := range bindings {
		var imp *model.Import
		for i := range t.Prototype.Imports {
			if t.Prototype.Imports[i].Name == b.Import {
				imp = &t.Prototype.Imports[i]
			}
		}
		if imp == nil {
			return fmt.Errorf("%w: %s does not import %q", ErrInvalidImport, target, b.Import)
		}
		count[b.Import]++
		if count[b.Import] > 1 && !imp.Multibind {
			return fmt.Errorf("%w: import %q of %s is not multibind", ErrInvalidImport, b.Import, target)
		}
		s := g.objects[b.Source]
		if s == nil || (b.Source.Kind != model.KindCluster && b.Source.Kind != model.KindService) {
			return fmt.Errorf("%w: invalid export source %s", ErrInvalidImport, b.Source)
		}
		if s.Prototype.Name != b.Import {
			return fmt.Errorf("%w: %s does not export %q", ErrInvalidImport, b.Source, b.Import)
		}
		if g.ClusterOf(b.Source) == g.ClusterOf(target) {
			return fmt.Errorf("%w: %s: import from own cluster", ErrInvalidImport, target)
		}
	}
	return g.modify(target, func(o *model.Object) { o.Imports = slices.Clone(bindings) })
}

// Delete deletes an object. Services and components of a deleted
// cluster are deleted with it, its hosts are released. Providers can
// only be deleted if they do not own hosts anymore. Bindings of other
// objects referring to deleted objects are removed.
// The list of all deleted objects is returned.
func (g *Graph) Delete(id ObjectId) ([]ObjectId, error) {
	o, err := g.expect(id)
	if err != nil {
		return nil, err
	}
	var deleted []ObjectId
	switch id.Kind {
	case model.KindProvider:
		if len(g.children[id]) > 0 {
			return nil, fmt.Errorf("%w: %s still owns hosts", ErrHasDependents, id)
		}
	case model.KindHost:
		if !o.Cluster.IsZero() {
			if err := g.MoveHost(id, ObjectId{}); err != nil {
				return nil, err
			}
		}
	case model.KindCluster:
		for _, h := range g.ClusterHosts(id) {
			if err := g.MoveHost(h, ObjectId{}); err != nil {
				return nil, err
			}
		}
		for _, s := range g.ClusterServices(id) {
			d, err := g.Delete(s)
			if err != nil {
				return nil, err
			}
			deleted = append(deleted, d...)
		}
		delete(g.mapping, id)
	case model.KindService:
		for _, c := range g.ServiceComponents(id) {
			d, err := g.Delete(c)
			if err != nil {
				return nil, err
			}
			deleted = append(deleted, d...)
		}
	case model.KindComponent:
		g.filterMapping(o.Cluster, func(hc model.HostComponent) bool { return hc.Component != id })
	}

	for _, imp := range g.Importers(id) {
		err := g.modify(imp, func(o *model.Object) {
			o.Imports = slices.DeleteFunc(o.Imports, func(b model.ImportBinding) bool { return b.Source == id })
		})
		if err != nil {
			return nil, err
		}
	}
	if !o.Owner.IsZero() {
		if c := g.children[o.Owner]; c != nil {
			c.Delete(id)
			if len(c) == 0 {
				delete(g.children, o.Owner)
			}
		}
	}
	delete(g.children, id)
	delete(g.members, id)
	delete(g.objects, id)
	deleted = append(deleted, id)
	slices.SortFunc(deleted, model.CompareObjectId)
	return deleted, nil
}

func assure[K comparable, E comparable](m map[K]sets.Set[E], k K) sets.Set[E] {
	s := m[k]
	if s == nil {
		s = sets.New[E]()
		m[k] = s
	}
	return s
}
