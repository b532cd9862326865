package graph_test

import (
	"errors"

	. "github.com/mandelsoft/goutils/testutils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/concerns/pkg/model"

	me "github.com/mandelsoft/concerns/pkg/graph"
)

func bundles() (*model.Bundle, *model.Bundle) {
	c := &model.Bundle{
		Name:    "cluster",
		Cluster: &model.Prototype{Name: "cluster", Imports: []model.Import{{Name: "cluster"}}},
		Services: []*model.Prototype{
			{Name: "s1", Components: []*model.Prototype{{Name: "a"}, {Name: "b"}}},
			{Name: "s2", Components: []*model.Prototype{{Name: "c"}}},
		},
	}
	p := &model.Bundle{
		Name:     "provider",
		Provider: &model.Prototype{Name: "provider"},
	}
	ExpectWithOffset(1, c.Complete()).To(Succeed())
	ExpectWithOffset(1, p.Complete()).To(Succeed())
	return c, p
}

var _ = Describe("graph", func() {
	var g *me.Graph
	var cb, pb *model.Bundle
	var c, p, h1, h2 model.ObjectId

	BeforeEach(func() {
		cb, pb = bundles()
		g = me.New()
		c = Must(g.AddCluster(cb.Cluster, "c")).Id
		p = Must(g.AddProvider(pb.Provider, "p")).Id
		h1 = Must(g.AddHost(p, "h1")).Id
		h2 = Must(g.AddHost(p, "h2")).Id
	})

	It("creates objects", func() {
		o := g.Get(c)
		Expect(o.State).To(Equal(model.StateCreated))
		Expect(o.MaintenanceMode).To(BeEmpty())
		Expect(g.Get(h1).MaintenanceMode).To(Equal(model.MaintenanceModeOff))
		Expect(g.Get(h1).Owner).To(Equal(p))
		Expect(g.ProviderOf(h1)).To(Equal(p))
		Expect(g.ProviderHosts(p)).To(Equal([]model.ObjectId{h1, h2}))

		_, err := g.AddCluster(pb.Provider, "x")
		Expect(errors.Is(err, me.ErrInvalidState)).To(BeTrue())
		_, err = g.AddHost(c, "x")
		Expect(errors.Is(err, me.ErrInvalidState)).To(BeTrue())
	})

	It("adds services with components", func() {
		s := Must(g.AddService(c, "s1"))
		Expect(s.Cluster).To(Equal(c))
		Expect(g.FindService(c, "s1")).To(Equal(s.Id))
		comps := g.ServiceComponents(s.Id)
		Expect(comps).To(HaveLen(2))
		a := g.FindComponent(s.Id, "a")
		Expect(comps).To(ContainElement(a))
		Expect(g.OwnerChain(a)).To(Equal([]model.ObjectId{a, s.Id, c}))
		Expect(g.ClusterOf(a)).To(Equal(c))

		_, err := g.AddService(c, "s1")
		Expect(errors.Is(err, me.ErrAlreadyExists)).To(BeTrue())
		_, err = g.AddService(c, "unknown")
		Expect(errors.Is(err, me.ErrInvalidState)).To(BeTrue())
	})

	It("maps members only", func() {
		s := Must(g.AddService(c, "s1")).Id
		a := g.FindComponent(s, "a")
		b := g.FindComponent(s, "b")

		err := g.SetMapping(c, []model.HostComponent{{Host: h1, Component: a}})
		Expect(errors.Is(err, me.ErrMappingConflict)).To(BeTrue())

		MustBeSuccessful(g.MoveHost(h1, c))
		MustBeSuccessful(g.MoveHost(h2, c))
		Expect(g.ClusterHosts(c)).To(Equal([]model.ObjectId{h1, h2}))
		MustBeSuccessful(g.SetMapping(c, []model.HostComponent{
			{Host: h1, Component: a},
			{Host: h2, Component: a},
			{Host: h2, Component: b},
		}))
		Expect(g.HostsOfComponent(a)).To(Equal([]model.ObjectId{h1, h2}))
		Expect(g.ComponentsOfHost(h2)).To(ConsistOf(a, b))

		By("clearing the mapping of leaving hosts")
		MustBeSuccessful(g.MoveHost(h2, model.ObjectId{}))
		Expect(g.Mapping(c)).To(Equal([]model.HostComponent{{Host: h1, Component: a}}))
		Expect(g.ComponentsOfHost(h2)).To(BeEmpty())
		Expect(g.ClusterOf(h2).IsZero()).To(BeTrue())
	})

	It("keeps clones independent", func() {
		n := g.Clone()
		Must(n.AddService(c, "s1"))
		MustBeSuccessful(n.MoveHost(h1, c))
		Expect(g.ClusterServices(c)).To(BeEmpty())
		Expect(g.ClusterHosts(c)).To(BeEmpty())
		Expect(g.Get(h1).Cluster.IsZero()).To(BeTrue())
		Expect(n.Get(h1).Cluster).To(Equal(c))

		id := Must(g.AddCluster(cb.Cluster, "other")).Id
		Expect(n.Exists(id)).To(BeFalse())
	})

	It("deletes clusters", func() {
		s := Must(g.AddService(c, "s1")).Id
		a := g.FindComponent(s, "a")
		b := g.FindComponent(s, "b")
		MustBeSuccessful(g.MoveHost(h1, c))
		MustBeSuccessful(g.SetMapping(c, []model.HostComponent{{Host: h1, Component: a}}))

		other := Must(g.AddCluster(cb.Cluster, "other")).Id
		MustBeSuccessful(g.SetImports(other, []model.ImportBinding{{Import: "cluster", Source: c}}))
		Expect(g.Importers(c)).To(Equal([]model.ObjectId{other}))

		deleted := Must(g.Delete(c))
		Expect(deleted).To(ConsistOf(c, s, a, b))
		Expect(g.Mapping(c)).To(BeEmpty())
		Expect(g.Get(h1).Cluster.IsZero()).To(BeTrue())
		Expect(g.Get(other).Imports).To(BeEmpty())
		Expect(g.Objects(model.KindService, model.KindComponent)).To(BeEmpty())

		_, err := g.Delete(p)
		Expect(errors.Is(err, me.ErrHasDependents)).To(BeTrue())
		Must(g.Delete(h1))
		Must(g.Delete(h2))
		Must(g.Delete(p))
		Expect(g.Objects()).To(Equal([]model.ObjectId{other}))
	})

	It("validates imports", func() {
		other := Must(g.AddCluster(cb.Cluster, "other")).Id
		s := Must(g.AddService(other, "s1")).Id

		err := g.SetImports(c, []model.ImportBinding{{Import: "s1", Source: s}})
		Expect(errors.Is(err, me.ErrInvalidImport)).To(BeTrue())
		err = g.SetImports(c, []model.ImportBinding{{Import: "cluster", Source: c}})
		Expect(errors.Is(err, me.ErrInvalidImport)).To(BeTrue())
		err = g.SetImports(c, []model.ImportBinding{{Import: "cluster", Source: other}, {Import: "cluster", Source: other}})
		Expect(errors.Is(err, me.ErrInvalidImport)).To(BeTrue())
		err = g.SetImports(c, []model.ImportBinding{{Import: "cluster", Source: h1}})
		Expect(errors.Is(err, me.ErrInvalidImport)).To(BeTrue())
	})

	It("validates state changes", func() {
		Expect(errors.Is(g.SetState(c, ""), me.ErrInvalidState)).To(BeTrue())
		Expect(errors.Is(g.SetMaintenanceMode(c, model.MaintenanceModeOn), me.ErrInvalidState)).To(BeTrue())
		Expect(errors.Is(g.SetMaintenanceMode(h1, "maybe"), me.ErrInvalidState)).To(BeTrue())
		Expect(errors.Is(g.SetState(model.NewObjectId(model.KindHost, 42), "x"), me.ErrInvalidState)).To(BeTrue())

		old := g.Get(h1)
		MustBeSuccessful(g.SetMaintenanceMode(h1, model.MaintenanceModeOn))
		Expect(old.MaintenanceMode).To(Equal(model.MaintenanceModeOff))
		Expect(g.Get(h1).MaintenanceMode).To(Equal(model.MaintenanceModeOn))
	})
})
