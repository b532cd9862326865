package locks_test

import (
	"cmp"
	"context"
	"runtime"
	"time"

	. "github.com/mandelsoft/goutils/testutils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/concerns/pkg/ctxutil"
	"github.com/mandelsoft/concerns/pkg/future"

	me "github.com/mandelsoft/concerns/pkg/locks"
)

var _ = Describe("locks", func() {
	Context("element locks", func() {
		var locks *me.ElementLocks[string]
		var ctx context.Context

		BeforeEach(func() {
			ctx = ctxutil.CancelContext(ctxutil.TimeoutContext(context.Background(), 10*time.Second))
			locks = me.NewElementLocks[string]()
		})

		It("locks and unlocks", func() {
			MustBeSuccessful(locks.Lock(ctx, "A"))
			MustBeSuccessful(locks.Lock(ctx, "B"))

			Expect(locks.TryLock("A")).To(BeFalse())
			Expect(locks.TryLock("B")).To(BeFalse())
			Expect(locks.TryLock("C")).To(BeTrue())
			Expect(locks.TryLock("C")).To(BeFalse())

			locks.Unlock("A")
			Expect(locks.TryLock("A")).To(BeTrue())
			Expect(locks.TryLock("B")).To(BeFalse())
			Expect(locks.TryLock("C")).To(BeFalse())

			locks.Unlock("B")
			Expect(locks.TryLock("A")).To(BeFalse())
			Expect(locks.TryLock("B")).To(BeTrue())
			Expect(locks.TryLock("C")).To(BeFalse())

			locks.Unlock("C")
			Expect(locks.TryLock("A")).To(BeFalse())
			Expect(locks.TryLock("B")).To(BeFalse())
			Expect(locks.TryLock("C")).To(BeTrue())
		})

		It("blocks and unlocks", func() {
			MustBeSuccessful(locks.Lock(ctx, "A"))

			fA := future.NewFuture(false)
			fB := future.NewFuture(false)

			go func() {
				defer GinkgoRecover()
				MustBeSuccessful(locks.Lock(ctx, "A"))
				fA.Trigger()
				locks.Unlock("A")
			}()
			go func() {
				defer GinkgoRecover()
				MustBeSuccessful(locks.Lock(ctx, "A"))
				fB.Trigger()
				locks.Unlock("A")
			}()

			for i := 0; i < 10; i++ {
				runtime.Gosched()
				if locks.HasWaiting("A") {
					break
				}
			}
			locks.Unlock("A")
			Expect(fA.Wait(ctx)).To(BeTrue())
			Expect(fB.Wait(ctx)).To(BeTrue())
		})

		It("locks sets in order", func() {
			unlock := Must(locks.LockAll(ctx, cmp.Compare[string], "C", "A", "B", "A"))
			Expect(locks.IsLocked("A")).To(BeTrue())
			Expect(locks.IsLocked("B")).To(BeTrue())
			Expect(locks.IsLocked("C")).To(BeTrue())

			f := future.NewFuture(false)
			go func() {
				defer GinkgoRecover()
				u := Must(locks.LockAll(ctx, cmp.Compare[string], "B", "D"))
				f.Trigger()
				u()
			}()
			Expect(f.Wait(ctxutil.TimeoutContext(ctx, 200*time.Millisecond))).To(BeFalse())
			Expect(locks.IsLocked("D")).To(BeFalse())

			unlock()
			Expect(f.Wait(ctx)).To(BeTrue())
			Eventually(func() bool { return locks.IsLocked("B") || locks.IsLocked("D") }).Should(BeFalse())
		})

		It("releases partial sets on cancellation", func() {
			MustBeSuccessful(locks.Lock(ctx, "B"))

			cctx := ctxutil.TimeoutContext(ctx, 100*time.Millisecond)
			_, err := locks.LockAll(cctx, cmp.Compare[string], "A", "B")
			Expect(err).To(HaveOccurred())
			Expect(locks.IsLocked("A")).To(BeFalse())
			Expect(locks.HasWaiting("B")).To(BeFalse())
			locks.Unlock("B")
		})
	})

	Context("mutex", func() {
		It("serializes", func() {
			var m me.Mutex
			ctx := ctxutil.TimeoutContext(context.Background(), 10*time.Second)

			MustBeSuccessful(m.Lock(ctx))
			Expect(m.TryLock()).To(BeFalse())

			f := future.NewFuture(false)
			go func() {
				defer GinkgoRecover()
				MustBeSuccessful(m.Lock(ctx))
				f.Trigger()
				m.Unlock()
			}()
			Eventually(m.HasWaiting).Should(BeTrue())
			m.Unlock()
			Expect(f.Wait(ctx)).To(BeTrue())
			Eventually(m.IsLocked).Should(BeFalse())
		})

		It("gives up on cancellation", func() {
			var m me.Mutex
			MustBeSuccessful(m.Lock(nil))
			ctx := ctxutil.TimeoutContext(context.Background(), 100*time.Millisecond)
			Expect(m.Lock(ctx)).To(HaveOccurred())
			Expect(m.HasWaiting()).To(BeFalse())
			m.Unlock()
			Expect(m.IsLocked()).To(BeFalse())
		})
	})
})
