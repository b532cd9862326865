package filesystem_test

import (
	"github.com/go-test/deep"
	. "github.com/mandelsoft/goutils/testutils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/database"
	"github.com/mandelsoft/concerns/pkg/model"
	. "github.com/mandelsoft/concerns/pkg/testutils"

	me "github.com/mandelsoft/concerns/pkg/impl/database/filesystem"
)

var (
	c1 = model.NewObjectId(model.KindCluster, 1)
	h2 = model.NewObjectId(model.KindHost, 2)
	p1 = model.NewObjectId(model.KindProvider, 1)
)

func flag(id string, owner model.ObjectId, related ...model.ObjectId) *concern.Item {
	return &concern.Item{
		Id:      id,
		Owner:   owner,
		Type:    concern.TypeFlag,
		Cause:   concern.CauseConfig,
		Name:    concern.NameAdcmOutdatedConfig,
		Reason:  concern.Reason{Message: concern.MsgOutdatedConfig},
		Related: sets.New(append(related, owner)...),
	}
}

var _ = Describe("filesystem database", func() {
	var fs vfs.FileSystem
	var db *me.Database

	Context("testdata", func() {
		BeforeEach(func() {
			fs = Must(TestFileSystem("testdata", false))
			db = Must(me.New("/", fs))
		})

		It("loads concerns and relations", func() {
			content := Must(db.Load())
			Expect(content.Concerns).To(HaveLen(1))
			r := content.Concerns[0]
			Expect(r.Id).To(Equal("c1"))
			Expect(r.Owner).To(Equal(c1))
			Expect(r.Type).To(Equal(concern.TypeIssue))
			Expect(r.Cause).To(Equal(concern.CauseService))
			Expect(r.Reason.Placeholder.Target.Name).To(Equal("zookeeper"))
			Expect(content.Relations).To(ConsistOf(
				database.Relation{Concern: "c1", Object: c1},
				database.Relation{Concern: "c1", Object: h2},
			))

			items := Must(content.Items())
			Expect(items).To(HaveLen(1))
			Expect(items[0].RelatedObjects()).To(Equal([]model.ObjectId{c1, h2}))
		})

		It("deletes without touching the original", func() {
			change := &database.Change{}
			change.AddDeleted("c1")
			MustBeSuccessful(db.Apply(change))
			Expect(Must(db.ListConcernIds())).To(BeEmpty())

			ro := Must(me.New("/", Must(TestFileSystem("testdata", true))))
			Expect(Must(ro.ListConcernIds())).To(Equal([]string{"c1"}))
		})
	})

	Context("memory", func() {
		BeforeEach(func() {
			fs = memoryfs.New()
			db = Must(me.New("/db", fs))
		})

		It("starts empty", func() {
			content := Must(db.Load())
			Expect(content.Concerns).To(BeEmpty())
			Expect(content.Relations).To(BeEmpty())
		})

		It("writes and reads concerns", func() {
			item := flag("f1", p1, h2)
			change := &database.Change{}
			change.AddItem(item)
			MustBeSuccessful(db.Apply(change))

			Expect(Must(db.ListConcernIds())).To(Equal([]string{"f1"}))
			items := Must(Must(db.Load()).Items())
			Expect(items).To(HaveLen(1))
			Expect(deep.Equal(items[0], item)).To(BeNil())
		})

		It("replaces relations", func() {
			item := flag("f1", p1, h2)
			change := &database.Change{}
			change.AddItem(item)
			MustBeSuccessful(db.Apply(change))

			item = flag("f1", p1)
			change = &database.Change{}
			change.AddItem(item)
			MustBeSuccessful(db.Apply(change))

			content := Must(db.Load())
			Expect(content.Relations).To(Equal([]database.Relation{{Concern: "f1", Object: p1}}))
		})

		It("deletes concerns", func() {
			change := &database.Change{}
			change.AddItem(flag("f1", p1))
			change.AddItem(flag("f2", c1))
			MustBeSuccessful(db.Apply(change))

			change = &database.Change{}
			change.AddDeleted("f1")
			MustBeSuccessful(db.Apply(change))
			Expect(Must(db.ListConcernIds())).To(Equal([]string{"f2"}))
			Expect(vfs.FileExists(fs, "/db/related/f1.yaml")).To(BeFalse())
		})

		It("rejects invalid ids without partial writes", func() {
			change := &database.Change{}
			change.AddItem(flag("f1", p1))
			change.AddItem(flag("../f2", c1))
			Expect(db.Apply(change)).To(HaveOccurred())
			Expect(Must(db.ListConcernIds())).To(BeEmpty())
			entries := Must(vfs.ReadDir(fs, "/db/concerns"))
			Expect(entries).To(BeEmpty())
		})

		It("detects corrupted records", func() {
			MustBeSuccessful(vfs.WriteFile(fs, "/db/concerns/x.yaml", []byte("id: y\n"), 0o600))
			_, err := db.Load()
			Expect(err).To(MatchError(database.ErrCorrupted))
		})
	})

	Context("ids", func() {
		It("checks ids", func() {
			Expect(me.CheckId("0b5e9ac0-1d8e-4a8e-9a51-6f3d2f1c7d11")).To(BeTrue())
			Expect(me.CheckId("A_1")).To(BeTrue())
			Expect(me.CheckId("")).To(BeFalse())
			Expect(me.CheckId("-a")).To(BeFalse())
			Expect(me.CheckId("a/b")).To(BeFalse())
			Expect(me.CheckId("../a")).To(BeFalse())
		})
	})
})
