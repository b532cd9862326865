package landscape_test

import (
	"context"

	. "github.com/mandelsoft/goutils/testutils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/engine"
	"github.com/mandelsoft/concerns/pkg/model"

	me "github.com/mandelsoft/concerns/pkg/landscape"
)

const document = `
bundles:
- name: ldap
  cluster:
    name: ldap
- name: app
  version: "2.1"
  cluster:
    name: app
    import:
    - name: ldap
      required: true
  services:
  - name: web
    components:
    - name: server
      constraint: [1, "+"]
- name: infra
  provider:
    name: infra
  host:
    name: vm
providers:
- name: infra
  bundle: infra
  hosts:
  - name: vm1
    maintenanceMode: "on"
  - name: vm2
clusters:
- name: directory
  bundle: ldap
  state: installed
- name: shop
  bundle: app
  hosts: [vm1, vm2]
  services:
  - name: web
    components:
    - name: server
      config:
        port: 8080
  mapping:
  - host: vm1
    component: web/server
  - host: vm2
    component: web/server
  imports:
  - import: ldap
    source: directory
`

var _ = Describe("landscape", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("parses and completes bundles", func() {
		l := Must(me.Parse([]byte(document)))
		Expect(l.Bundles).To(HaveLen(3))
		b := l.Bundle("app")
		Expect(b.Cluster.Kind).To(Equal(model.KindCluster))
		Expect(b.Service("web").Component("server").Version).To(Equal("2.1"))
		Expect(b.Service("web").Component("server").Constraint.All).To(BeTrue())
		Expect(l.Bundle("infra").Host.Name).To(Equal("vm"))
		Expect(l.Clusters[1].Mapping).To(HaveLen(2))
	})

	It("loads from a filesystem", func() {
		fs := memoryfs.New()
		MustBeSuccessful(vfs.WriteFile(fs, "/landscape.yaml", []byte(document), 0o600))
		l := Must(me.Load("/landscape.yaml", fs))
		Expect(l.Providers[0].Hosts[0].MaintenanceMode).To(Equal(model.MaintenanceModeOn))

		_, err := me.Load("/missing.yaml", fs)
		Expect(err).To(HaveOccurred())
	})

	It("rejects invalid references", func() {
		for _, doc := range []string{
			"bundles: []\nclusters:\n- name: c\n  bundle: unknown\n",
			"bundles: []\nproviders:\n- name: p\n  bundle: unknown\n",
			"bundles:\n- name: b\n  cluster:\n    name: b\nclusters:\n- name: c\n  bundle: b\n  hosts: [h]\n",
			"bundles:\n- name: b\n  cluster:\n    name: b\nclusters:\n- name: c\n  bundle: b\n  services:\n  - name: s\n",
			"bundles:\n- name: b\n  cluster:\n    name: b\nclusters:\n- name: c\n  bundle: b\n  mapping:\n  - host: h\n    component: s\n",
			"bundles:\n- name: b\n  cluster:\n    name: b\n  unknown: field\n",
		} {
			_, err := me.Parse([]byte(doc))
			Expect(err).To(HaveOccurred(), doc)
		}
	})

	It("applies the landscape", func() {
		l := Must(me.Parse([]byte(document)))
		e := engine.New(engine.Settings{})
		idx := Must(l.Apply(ctx, e))

		s := e.Snapshot()
		shop := idx.Cluster("shop")
		Expect(idx.Name(shop)).To(Equal("shop"))
		Expect(s.Object(idx.Cluster("directory")).State).To(Equal("installed"))
		Expect(s.Object(idx.Host("vm1")).MaintenanceMode).To(Equal(model.MaintenanceModeOn))
		Expect(s.Graph().ClusterHosts(shop)).To(ConsistOf(idx.Host("vm1"), idx.Host("vm2")))

		server := idx.Component("shop", "web", "server")
		Expect(s.Graph().HostsOfComponent(server)).To(ConsistOf(idx.Host("vm1"), idx.Host("vm2")))
		Expect(s.Object(server).Config.Values).To(HaveKeyWithValue("port", BeNumerically("==", 8080)))
		Expect(s.Object(shop).Imports).To(Equal([]model.ImportBinding{{Import: "ldap", Source: idx.Cluster("directory")}}))

		Expect(s.Concerns().All()).To(BeEmpty())
		Expect(s.IsReady(shop)).To(BeTrue())
	})

	It("reports unsatisfied imports", func() {
		l := Must(me.Parse([]byte(document)))
		l.Clusters[1].Imports = nil
		e := engine.New(engine.Settings{})
		idx := Must(l.Apply(ctx, e))

		list := e.ConcernsOf(idx.Cluster("shop"))
		Expect(list).To(HaveLen(1))
		Expect(list[0].Cause).To(Equal(concern.CauseImport))
		Expect(list[0].Reason.Placeholder.Target.Name).To(Equal("ldap"))
	})
})
