package engine_test

import (
	"context"
	"errors"
	"sync"

	"github.com/go-test/deep"
	. "github.com/mandelsoft/goutils/testutils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/landscape"
	"github.com/mandelsoft/concerns/pkg/model"

	me "github.com/mandelsoft/concerns/pkg/engine"
)

type recorder struct {
	lock sync.Mutex
	ids  []model.ObjectId
}

func (r *recorder) HandleEvent(id model.ObjectId) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.ids = append(r.ids, id)
}

func (r *recorder) Reset() []model.ObjectId {
	r.lock.Lock()
	defer r.lock.Unlock()
	ids := r.ids
	r.ids = nil
	return ids
}

var _ = Describe("actions", func() {
	var ctx context.Context
	var e *me.Engine
	var idx *landscape.Index

	BeforeEach(func() {
		ctx = context.Background()
		e = me.New(me.Settings{Authorizer: me.AllowAll})
		l := Must(landscape.Load("testdata/landscape.yaml"))
		idx = Must(l.Apply(ctx, e))
	})

	AfterEach(func() {
		checkInvariants(e)
	})

	lockSet := func(a *me.Action) []model.ObjectId {
		return e.GetConcern(a.Concern).RelatedObjects()
	}

	It("locks the propagation set of a provider", func() {
		P := idx.Provider("P")
		C1, C2, C3 := idx.Cluster("C1"), idx.Cluster("C2"), idx.Cluster("C3")

		flagId := Must(e.RaiseFlag(ctx, C2, "custom", "manual check"))
		before := concern.Records(e.Snapshot().Concerns().All())

		a := Must(e.StartAction(ctx, 1, P, "check", me.ScopeHint{}))
		Expect(lockSet(a)).To(ConsistOf(
			P, idx.Host("h1"), idx.Host("h2"), idx.Host("h3"),
			C1, idx.Service("C1", "first_service"),
			idx.Component("C1", "first_service", "single"),
			idx.Component("C1", "first_service", "free"),
			idx.Component("C1", "first_service", "silent"),
			C2, idx.Service("C2", "first_service"),
			idx.Component("C2", "first_service", "single"),
		))
		Expect(describe(e.ConcernsOf(idx.Host("q2")))).To(BeEmpty())
		Expect(describe(e.ConcernsOf(C3))).To(BeEmpty())
		Expect(describe(e.ConcernsOf(C2))).To(ConsistOf(lock(P), flag(C2)))
		Expect(e.IsReady(C2)).To(BeFalse())
		Expect(e.Snapshot().Actions()).To(HaveLen(1))

		By("refusing topology changes inside the lock set")
		err := e.MoveHost(ctx, idx.Host("h1"), model.ObjectId{})
		Expect(errors.Is(err, me.ErrHostBusy)).To(BeTrue())
		Expect(errors.Is(err, me.ErrBlocked)).To(BeTrue())

		err = e.SetMapping(ctx, C1, e.Snapshot().Graph().Mapping(C1))
		b, ok := me.IsBlocked(err)
		Expect(ok).To(BeTrue())
		Expect(b.Object).To(Equal(C1))
		Expect(describe(b.Concerns)).To(ConsistOf(lock(P)))

		MustBeSuccessful(e.SetMapping(ctx, C3, e.Snapshot().Graph().Mapping(C3)))
		err = e.SetMapping(ctx, C2, nil)
		Expect(errors.Is(err, me.ErrBlocked)).To(BeTrue())

		By("refusing the removal of flags of locked owners")
		err = e.RemoveConcern(ctx, "admin", flagId)
		Expect(errors.Is(err, me.ErrConcernLockedByJob)).To(BeTrue())

		By("refusing a second start")
		_, err = e.StartAction(ctx, 1, C3, "check", me.ScopeHint{})
		Expect(errors.Is(err, me.ErrActionExists)).To(BeTrue())

		By("refusing actions on locked objects")
		_, err = e.StartAction(ctx, 2, C2, "check", me.ScopeHint{})
		Expect(errors.Is(err, me.ErrBlocked)).To(BeTrue())
		Must(e.StartAction(ctx, 3, C3, "check", me.ScopeHint{}))

		MustBeSuccessful(e.FinishAction(ctx, 1, me.ActionSucceeded, ""))
		MustBeSuccessful(e.FinishAction(ctx, 3, me.ActionSucceeded, ""))
		Expect(e.Snapshot().Actions()).To(BeEmpty())
		Expect(deep.Equal(concern.Records(e.Snapshot().Concerns().All()), before)).To(BeNil())
		Expect(e.IsReady(C2)).To(BeTrue())

		MustBeSuccessful(e.RemoveConcern(ctx, "admin", flagId))
	})

	It("keeps flag names apart from locks and issues", func() {
		C3 := idx.Cluster("C3")
		single := idx.Component("C1", "first_service", "single")

		_, err := e.RaiseFlag(ctx, C3, concern.NameJobLock, "manual check")
		Expect(errors.Is(err, graph.ErrInvalidState)).To(BeTrue())
		_, err = e.RaiseFlag(ctx, single, concern.IssueName(concern.CauseConfig), "manual check")
		Expect(errors.Is(err, graph.ErrInvalidState)).To(BeTrue())
		Expect(describe(e.Snapshot().Concerns().OwnConcernsOf(single))).To(ConsistOf(issue(concern.CauseConfig, single)))

		Expect(Must(e.LowerFlag(ctx, single, concern.IssueName(concern.CauseConfig)))).To(BeFalse())
		Expect(describe(e.Snapshot().Concerns().OwnConcernsOf(single))).To(ConsistOf(issue(concern.CauseConfig, single)))

		flagId := Must(e.RaiseFlag(ctx, C3, "review", "manual check"))
		Expect(e.IsReady(C3)).To(BeTrue())
		a := Must(e.StartAction(ctx, 1, C3, "check", me.ScopeHint{}))
		Expect(a.Concern).NotTo(Equal(flagId))
		Expect(e.GetConcern(a.Concern).Type).To(Equal(concern.TypeLock))
		Expect(e.IsReady(C3)).To(BeFalse())

		MustBeSuccessful(e.FinishAction(ctx, 1, me.ActionSucceeded, ""))
		Expect(e.GetConcern(flagId)).NotTo(BeNil())
		Expect(e.GetConcern(a.Concern)).To(BeNil())
		Expect(Must(e.LowerFlag(ctx, C3, "review"))).To(BeTrue())
	})

	It("refuses host moves into and out of locked clusters", func() {
		C2, C3 := idx.Cluster("C2"), idx.Cluster("C3")
		fresh := Must(e.CreateHost(ctx, idx.Provider("P2"), "q3"))

		Must(e.StartAction(ctx, 1, C3, "check", me.ScopeHint{}))
		err := e.MoveHost(ctx, fresh, C3)
		b, ok := me.IsBlocked(err)
		Expect(ok).To(BeTrue())
		Expect(b.Object).To(Equal(C3))
		Expect(errors.Is(err, me.ErrHostBusy)).To(BeFalse())
		Expect(e.Snapshot().Graph().ClusterHosts(C3)).To(ConsistOf(idx.Host("q1")))

		Must(e.StartAction(ctx, 2, idx.Component("C2", "first_service", "single"), "restart", me.ScopeHint{}))
		err = e.MoveHost(ctx, idx.Host("q2"), model.ObjectId{})
		b, ok = me.IsBlocked(err)
		Expect(ok).To(BeTrue())
		Expect(b.Object).To(Equal(C2))
		Expect(e.Snapshot().Object(idx.Host("q2")).Cluster).To(Equal(C2))

		MustBeSuccessful(e.FinishAction(ctx, 1, me.ActionSucceeded, ""))
		MustBeSuccessful(e.FinishAction(ctx, 2, me.ActionSucceeded, ""))
		MustBeSuccessful(e.MoveHost(ctx, fresh, C3))
		Expect(e.Snapshot().Graph().ClusterHosts(C3)).To(ConsistOf(idx.Host("q1"), fresh))
	})

	It("refuses import changes on locked targets", func() {
		C3 := idx.Cluster("C3")
		s3 := idx.Service("C3", "first_service")

		Must(e.StartAction(ctx, 1, C3, "check", me.ScopeHint{}))
		Expect(errors.Is(e.SaveImports(ctx, C3, nil), me.ErrBlocked)).To(BeTrue())
		Expect(errors.Is(e.SaveImports(ctx, s3, nil), me.ErrBlocked)).To(BeTrue())

		MustBeSuccessful(e.FinishAction(ctx, 1, me.ActionSucceeded, ""))
		MustBeSuccessful(e.SaveImports(ctx, C3, nil))
	})

	It("locks the provider for cluster wide host actions", func() {
		h3 := idx.Host("h3")
		C2 := idx.Cluster("C2")
		s2 := idx.Service("C2", "first_service")
		c4 := idx.Component("C2", "first_service", "single")

		a := Must(e.StartAction(ctx, 1, h3, "reboot", me.ScopeHint{}))
		Expect(lockSet(a)).To(ConsistOf(h3, C2, s2, c4))
		MustBeSuccessful(e.FinishAction(ctx, 1, me.ActionAborted, ""))

		a = Must(e.StartAction(ctx, 2, h3, "reboot", me.ScopeHint{ClusterWide: true}))
		Expect(lockSet(a)).To(ConsistOf(h3, C2, s2, c4, idx.Provider("P")))
		Expect(describe(e.ConcernsOf(idx.Provider("P")))).To(ConsistOf(lock(h3)))
		MustBeSuccessful(e.FinishAction(ctx, 2, me.ActionAborted, ""))
	})

	It("locks components and services", func() {
		C2 := idx.Cluster("C2")
		s2 := idx.Service("C2", "first_service")
		c4 := idx.Component("C2", "first_service", "single")
		c5 := idx.Component("C2", "first_service", "free")
		c6 := idx.Component("C2", "first_service", "silent")

		a := Must(e.StartAction(ctx, 1, c4, "restart", me.ScopeHint{}))
		Expect(lockSet(a)).To(ConsistOf(c4, s2, C2, idx.Host("h3")))
		MustBeSuccessful(e.FinishAction(ctx, 1, me.ActionFailed, "broken"))
		Expect(e.Snapshot().Object(c4).State).To(Equal(model.StateCreated))

		a = Must(e.StartAction(ctx, 2, s2, "restart", me.ScopeHint{}))
		Expect(lockSet(a)).To(ConsistOf(s2, C2, c4, c5, c6, idx.Host("h3"), idx.Host("q2")))

		By("keeping the lock set stable")
		MustBeSuccessful(e.SaveConfig(ctx, idx.Provider("P2"), model.Config{}))
		Expect(lockSet(a)).To(ConsistOf(s2, C2, c4, c5, c6, idx.Host("h3"), idx.Host("q2")))
		MustBeSuccessful(e.FinishAction(ctx, 2, me.ActionSucceeded, "running"))
		Expect(e.Snapshot().Object(s2).State).To(Equal("running"))
	})

	It("refuses actions on blocked owners", func() {
		C1 := idx.Cluster("C1")
		_, err := e.StartAction(ctx, 1, C1, "install", me.ScopeHint{})
		b, ok := me.IsBlocked(err)
		Expect(ok).To(BeTrue())
		Expect(describe(b.Concerns)).To(ConsistOf(issue(concern.CauseConfig, idx.Component("C1", "first_service", "single"))))
		Expect(e.Snapshot().Actions()).To(BeEmpty())

		Must(e.StartAction(ctx, 1, idx.Cluster("C3"), "install", me.ScopeHint{}))
		MustBeSuccessful(e.FinishAction(ctx, 1, me.ActionSucceeded, "installed"))
		Expect(e.Snapshot().Object(idx.Cluster("C3")).State).To(Equal("installed"))
	})

	It("rejects unknown actions", func() {
		err := e.FinishAction(ctx, 42, me.ActionSucceeded, "")
		Expect(errors.Is(err, me.ErrActionNotFound)).To(BeTrue())
	})

	It("refuses the deletion of locked objects", func() {
		C3 := idx.Cluster("C3")
		Must(e.StartAction(ctx, 1, idx.Host("q1"), "reboot", me.ScopeHint{}))
		err := e.DeleteObject(ctx, C3)
		Expect(errors.Is(err, me.ErrBlocked)).To(BeTrue())

		MustBeSuccessful(e.FinishAction(ctx, 1, me.ActionSucceeded, ""))
		MustBeSuccessful(e.DeleteObject(ctx, C3))
		Expect(e.Snapshot().Object(idx.Host("q1")).Cluster.IsZero()).To(BeTrue())
	})

	It("notifies about changed objects", func() {
		r := &recorder{}
		Expect(e.EventRegistration().RegisterHandler(r, false).Wait(ctx)).To(BeTrue())
		r.Reset()

		P2 := idx.Provider("P2")
		MustBeSuccessful(e.SaveConfig(ctx, P2, model.Config{}))
		Expect(r.Reset()).To(ConsistOf(
			P2, idx.Host("q1"), idx.Host("q2"),
			idx.Cluster("C2"), idx.Service("C2", "first_service"), idx.Component("C2", "first_service", "silent"),
			idx.Cluster("C3"), idx.Service("C3", "first_service"), idx.Component("C3", "first_service", "free"),
		))

		MustBeSuccessful(e.SetState(ctx, P2, "running"))
		Expect(r.Reset()).To(BeEmpty())
	})
})
