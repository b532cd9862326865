package healthz_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/concerns/pkg/healthz"
)

var _ = Describe("health checks", func() {
	AfterEach(func() {
		healthz.End("fresh")
		healthz.End("stale")
	})

	It("reports healthy checks", func() {
		healthz.Start("fresh", time.Minute)
		healthz.Tick("fresh")
		healthz.Tick("unknown")

		rec := httptest.NewRecorder()
		healthz.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("fresh: "))
	})

	It("reports outdated checks", func() {
		healthz.Start("stale", time.Millisecond)
		time.Sleep(10 * time.Millisecond)

		Expect(healthz.IsHealthy()).To(BeFalse())
		rec := httptest.NewRecorder()
		healthz.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))

		healthz.Tick("stale")
		Expect(healthz.IsHealthy()).To(BeTrue())
	})
})
