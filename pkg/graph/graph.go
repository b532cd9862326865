package graph

import (
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/model"
	"github.com/mandelsoft/concerns/pkg/utils"
)

type ObjectId = model.ObjectId

// Reader is the read access to an object graph. All lists are
// ordered by model.CompareObjectId.
type Reader interface {
	Get(id ObjectId) *model.Object
	Exists(id ObjectId) bool
	Objects(kinds ...model.Kind) []ObjectId

	// OwnerChain provides the ordered list from the object up to its
	// root cluster or provider.
	OwnerChain(id ObjectId) []ObjectId
	// ClusterOf provides the cluster of a service or component, or the
	// cluster a host is member of.
	ClusterOf(id ObjectId) ObjectId
	ProviderOf(host ObjectId) ObjectId

	ClusterServices(cluster ObjectId) []ObjectId
	ClusterComponents(cluster ObjectId) []ObjectId
	ServiceComponents(service ObjectId) []ObjectId
	ClusterHosts(cluster ObjectId) []ObjectId
	ProviderHosts(provider ObjectId) []ObjectId

	Mapping(cluster ObjectId) []model.HostComponent
	HostsOfComponent(component ObjectId) []ObjectId
	ComponentsOfHost(host ObjectId) []ObjectId

	FindService(cluster ObjectId, prototype string) ObjectId
	FindComponent(service ObjectId, prototype string) ObjectId
	// Importers lists the clusters and services binding an import to
	// the given source.
	Importers(source ObjectId) []ObjectId
}

// Graph is the adjacency store of the object graph. A Graph
// is not synchronized, concurrent access is organized by
// working on clones (see Clone) and publishing them as a whole.
type Graph struct {
	nextId   map[model.Kind]int64
	objects  map[ObjectId]*model.Object
	children map[ObjectId]sets.Set[ObjectId]
	members  map[ObjectId]sets.Set[ObjectId]
	mapping  map[ObjectId]sets.Set[model.HostComponent]
}

var _ Reader = (*Graph)(nil)

func New() *Graph {
	return &Graph{
		nextId:   map[model.Kind]int64{},
		objects:  map[ObjectId]*model.Object{},
		children: map[ObjectId]sets.Set[ObjectId]{},
		members:  map[ObjectId]sets.Set[ObjectId]{},
		mapping:  map[ObjectId]sets.Set[model.HostComponent]{},
	}
}

// Clone provides an independent copy. Objects are shared, because
// they are never modified in place.
func (g *Graph) Clone() *Graph {
	n := &Graph{
		nextId:   map[model.Kind]int64{},
		objects:  make(map[ObjectId]*model.Object, len(g.objects)),
		children: make(map[ObjectId]sets.Set[ObjectId], len(g.children)),
		members:  make(map[ObjectId]sets.Set[ObjectId], len(g.members)),
		mapping:  make(map[ObjectId]sets.Set[model.HostComponent], len(g.mapping)),
	}
	for k, v := range g.nextId {
		n.nextId[k] = v
	}
	for k, v := range g.objects {
		n.objects[k] = v
	}
	for k, v := range g.children {
		n.children[k] = v.Clone()
	}
	for k, v := range g.members {
		n.members[k] = v.Clone()
	}
	for k, v := range g.mapping {
		n.mapping[k] = v.Clone()
	}
	return n
}

func (g *Graph) Get(id ObjectId) *model.Object {
	return g.objects[id]
}

func (g *Graph) Exists(id ObjectId) bool {
	return g.objects[id] != nil
}

func (g *Graph) Objects(kinds ...model.Kind) []ObjectId {
	var r []ObjectId
	for id := range g.objects {
		if len(kinds) == 0 || slices.Contains(kinds, id.Kind) {
			r = append(r, id)
		}
	}
	slices.SortFunc(r, model.CompareObjectId)
	return r
}

func (g *Graph) OwnerChain(id ObjectId) []ObjectId {
	var r []ObjectId
	for o := g.objects[id]; o != nil; o = g.objects[o.Owner] {
		r = append(r, o.Id)
		if o.Owner.IsZero() {
			break
		}
	}
	return r
}

func (g *Graph) ClusterOf(id ObjectId) ObjectId {
	if o := g.objects[id]; o != nil {
		if id.Kind == model.KindCluster {
			return id
		}
		return o.Cluster
	}
	return ObjectId{}
}

func (g *Graph) ProviderOf(host ObjectId) ObjectId {
	if o := g.objects[host]; o != nil && host.Kind == model.KindHost {
		return o.Owner
	}
	return ObjectId{}
}

func (g *Graph) ClusterServices(cluster ObjectId) []ObjectId {
	return g.list(g.children[cluster])
}

func (g *Graph) ClusterComponents(cluster ObjectId) []ObjectId {
	var r []ObjectId
	for _, s := range g.ClusterServices(cluster) {
		r = append(r, g.ServiceComponents(s)...)
	}
	slices.SortFunc(r, model.CompareObjectId)
	return r
}

func (g *Graph) ServiceComponents(service ObjectId) []ObjectId {
	if service.Kind != model.KindService {
		return nil
	}
	return g.list(g.children[service])
}

func (g *Graph) ClusterHosts(cluster ObjectId) []ObjectId {
	return g.list(g.members[cluster])
}

func (g *Graph) ProviderHosts(provider ObjectId) []ObjectId {
	if provider.Kind != model.KindProvider {
		return nil
	}
	return g.list(g.children[provider])
}

func (g *Graph) Mapping(cluster ObjectId) []model.HostComponent {
	m := g.mapping[cluster]
	if m == nil {
		return nil
	}
	return utils.SortedList(m, model.CompareHostComponent)
}

func (g *Graph) HostsOfComponent(component ObjectId) []ObjectId {
	o := g.objects[component]
	if o == nil || component.Kind != model.KindComponent {
		return nil
	}
	r := sets.New[ObjectId]()
	for hc := range g.mapping[o.Cluster] {
		if hc.Component == component {
			r.Insert(hc.Host)
		}
	}
	return g.list(r)
}

func (g *Graph) ComponentsOfHost(host ObjectId) []ObjectId {
	o := g.objects[host]
	if o == nil || host.Kind != model.KindHost || o.Cluster.IsZero() {
		return nil
	}
	r := sets.New[ObjectId]()
	for hc := range g.mapping[o.Cluster] {
		if hc.Host == host {
			r.Insert(hc.Component)
		}
	}
	return g.list(r)
}

func (g *Graph) FindService(cluster ObjectId, prototype string) ObjectId {
	for s := range g.children[cluster] {
		if o := g.objects[s]; o != nil && o.Prototype.Name == prototype {
			return s
		}
	}
	return ObjectId{}
}

func (g *Graph) FindComponent(service ObjectId, prototype string) ObjectId {
	if service.Kind != model.KindService {
		return ObjectId{}
	}
	for c := range g.children[service] {
		if o := g.objects[c]; o != nil && o.Prototype.Name == prototype {
			return c
		}
	}
	return ObjectId{}
}

func (g *Graph) Importers(source ObjectId) []ObjectId {
	var r []ObjectId
	for id, o := range g.objects {
		for _, b := range o.Imports {
			if b.Source == source {
				r = append(r, id)
				break
			}
		}
	}
	slices.SortFunc(r, model.CompareObjectId)
	return r
}

func (g *Graph) list(s sets.Set[ObjectId]) []ObjectId {
	if len(s) == 0 {
		return nil
	}
	return utils.SortedList(s, model.CompareObjectId)
}
