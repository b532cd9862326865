package engine_test

import (
	"context"
	"errors"

	. "github.com/mandelsoft/goutils/testutils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/landscape"
	"github.com/mandelsoft/concerns/pkg/model"

	me "github.com/mandelsoft/concerns/pkg/engine"
)

var _ = Describe("scenarios", func() {
	var ctx context.Context
	var e *me.Engine
	var bundles *landscape.Landscape

	BeforeEach(func() {
		ctx = context.Background()
		e = me.New(me.Settings{Authorizer: me.Users("admin")})
		bundles = Must(landscape.Load("testdata/bundles.yaml"))
	})

	AfterEach(func() {
		checkInvariants(e)
	})

	It("requires a required service", func() {
		c := Must(e.CreateCluster(ctx, bundles.Bundle("required").Cluster, "cluster"))

		list := e.ConcernsOf(c)
		Expect(describe(list)).To(ConsistOf(issue(concern.CauseService, c)))
		Expect(list[0].Reason.Placeholder.Source.Type).To(Equal(concern.RefClusterServices))
		Expect(list[0].Reason.Placeholder.Target.Type).To(Equal(concern.RefPrototype))
		Expect(list[0].Reason.Placeholder.Target.Name).To(Equal("S_req"))
		Expect(list[0].Name).To(Equal("service_issue"))
		Expect(e.IsReady(c)).To(BeFalse())

		Must(e.AddService(ctx, c, "optional"))
		Expect(describe(e.ConcernsOf(c))).To(ConsistOf(issue(concern.CauseService, c)))

		s := Must(e.AddService(ctx, c, "S_req"))
		Expect(e.ConcernsOf(c)).To(BeEmpty())
		Expect(e.ConcernsOf(s)).To(BeEmpty())
		Expect(e.IsReady(c)).To(BeTrue())
	})

	It("auto-raises the outdated config flag", func() {
		c := Must(e.CreateCluster(ctx, bundles.Bundle("flags").Cluster, "cluster"))
		MustBeSuccessful(e.SetState(ctx, c, "notcreated"))

		MustBeSuccessful(e.SaveConfig(ctx, c, model.NewConfig(map[string]any{"enabled": false, "port": 8080})))
		Expect(e.ConcernsOf(c)).To(BeEmpty())

		changed := model.NewConfig(map[string]any{"enabled": true, "port": 8080})
		MustBeSuccessful(e.SaveConfig(ctx, c, changed))
		list := e.ConcernsOf(c)
		Expect(list).To(HaveLen(1))
		Expect(list[0].Type).To(Equal(concern.TypeFlag))
		Expect(list[0].Cause).To(Equal(concern.CauseConfig))
		Expect(list[0].Name).To(Equal(concern.NameAdcmOutdatedConfig))
		Expect(e.IsReady(c)).To(BeTrue())

		changed.Meta = map[string]any{"/enabled": map[string]any{"isActive": true}}
		MustBeSuccessful(e.SaveConfig(ctx, c, changed))
		Expect(e.ConcernsOf(c)).To(HaveLen(1))
		Expect(e.ConcernsOf(c)[0].Id).To(Equal(list[0].Id))

		err := e.RemoveConcern(ctx, "guest", list[0].Id)
		Expect(errors.Is(err, me.ErrNotAuthorized)).To(BeTrue())
		Expect(e.ConcernsOf(c)).To(HaveLen(1))

		MustBeSuccessful(e.RemoveConcern(ctx, "admin", list[0].Id))
		Expect(e.ConcernsOf(c)).To(BeEmpty())
	})

	It("never raises the outdated flag in the created state", func() {
		c := Must(e.CreateCluster(ctx, bundles.Bundle("flags").Cluster, "cluster"))
		for i := 0; i < 5; i++ {
			MustBeSuccessful(e.SaveConfig(ctx, c, model.NewConfig(map[string]any{"enabled": i%2 == 0, "port": 8080 + i})))
			Expect(e.ConcernsOf(c)).To(BeEmpty())
		}
		MustBeSuccessful(e.SetState(ctx, c, "installed"))
		MustBeSuccessful(e.SaveConfig(ctx, c, model.NewConfig(map[string]any{"enabled": true, "port": 1})))
		Expect(describe(e.ConcernsOf(c))).To(ConsistOf(flag(c)))
	})

	It("resolves service requirements", func() {
		c := Must(e.CreateCluster(ctx, bundles.Bundle("requirements").Cluster, "cluster"))
		s := Must(e.AddService(ctx, c, "require_dummy"))
		g := e.Snapshot().Graph()
		comps := g.ServiceComponents(s)
		Expect(comps).To(HaveLen(2))

		expected := []string{issue(concern.CauseRequirement, s)}
		for _, id := range append([]model.ObjectId{c, s}, comps...) {
			Expect(describe(e.ConcernsOf(id))).To(Equal(expected), "on %s", id)
		}
		i := e.Snapshot().Concerns().FindOwn(s, concern.CauseRequirement)
		Expect(i.Reason.Placeholder.Target.Name).To(Equal("dummy"))

		Must(e.AddService(ctx, c, "dummy"))
		for _, id := range append([]model.ObjectId{c, s}, comps...) {
			Expect(e.ConcernsOf(id)).To(BeEmpty(), "on %s", id)
		}
	})

	It("tracks import bindings", func() {
		c := Must(e.CreateCluster(ctx, bundles.Bundle("imports").Cluster, "importer"))
		Expect(describe(e.ConcernsOf(c))).To(ConsistOf(issue(concern.CauseImport, c)))
		s := Must(e.AddService(ctx, c, "importer"))
		Expect(describe(e.ConcernsOf(s))).To(ConsistOf(issue(concern.CauseImport, c), issue(concern.CauseImport, s)))

		x := Must(e.CreateCluster(ctx, bundles.Bundle("exports").Cluster, "exporter"))
		xs := Must(e.AddService(ctx, x, "exporter"))

		MustBeSuccessful(e.SaveImports(ctx, c, []model.ImportBinding{{Import: "export_cluster", Source: x}}))
		MustBeSuccessful(e.SaveImports(ctx, s, []model.ImportBinding{{Import: "exporter", Source: xs}}))
		Expect(e.ConcernsOf(c)).To(BeEmpty())

		err := e.SaveImports(ctx, s, []model.ImportBinding{{Import: "exporter", Source: x}})
		Expect(errors.Is(err, graph.ErrInvalidImport)).To(BeTrue())

		MustBeSuccessful(e.RemoveService(ctx, xs))
		Expect(describe(e.ConcernsOf(c))).To(ConsistOf(issue(concern.CauseImport, s)))
		MustBeSuccessful(e.DeleteObject(ctx, x))
		Expect(describe(e.ConcernsOf(c))).To(ConsistOf(issue(concern.CauseImport, c), issue(concern.CauseImport, s)))
	})

	It("handles explicit flags", func() {
		c := Must(e.CreateCluster(ctx, bundles.Bundle("flags").Cluster, "cluster"))
		id := Must(e.RaiseFlag(ctx, c, "custom", "please check"))
		Expect(Must(e.RaiseFlag(ctx, c, "custom", "again"))).To(Equal(id))

		f := e.GetConcern(id)
		Expect(f.Type).To(Equal(concern.TypeFlag))
		Expect(f.Reason.Message).To(Equal(concern.MsgFlag + "please check"))
		Expect(e.IsReady(c)).To(BeTrue())

		Expect(Must(e.LowerFlag(ctx, c, "custom"))).To(BeTrue())
		Expect(Must(e.LowerFlag(ctx, c, "custom"))).To(BeFalse())
		Expect(e.ConcernsOf(c)).To(BeEmpty())
	})

	It("refuses the manual removal of other concerns", func() {
		c := Must(e.CreateCluster(ctx, bundles.Bundle("required").Cluster, "cluster"))
		i := e.ConcernsOf(c)[0]

		err := e.RemoveConcern(ctx, "admin", i.Id)
		Expect(errors.Is(err, me.ErrNotRemovable)).To(BeTrue())

		err = e.RemoveConcern(ctx, "admin", "unknown")
		Expect(errors.Is(err, concern.ErrConcernNotFound)).To(BeTrue())
	})
})
