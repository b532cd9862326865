package server_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/mandelsoft/goutils/testutils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/mandelsoft/concerns/pkg/healthz"
	"github.com/mandelsoft/concerns/pkg/server"
)

func get(url string) (int, string) {
	r := Must(http.Get(url))
	defer r.Body.Close()
	data := Must(io.ReadAll(r.Body))
	return r.StatusCode, string(data)
}

var _ = Describe("server", func() {
	Context("service", func() {
		var srv *server.Server
		var ctx context.Context
		var cancel context.CancelFunc
		var base string

		BeforeEach(func() {
			ctx, cancel = context.WithCancel(context.Background())
			srv = server.NewServer(logging.DefaultContext(), 0, true, time.Second)
			srv.Handle("/test", http.HandlerFunc(testHandler))
			ready, done, err := srv.Start(ctx)
			MustBeSuccessful(err)
			Expect(ready).To(BeNil())
			Expect(done).NotTo(BeNil())
			_, port, err := net.SplitHostPort(srv.Address())
			MustBeSuccessful(err)
			base = "http://127.0.0.1:" + port
		})

		AfterEach(func() {
			cancel()
		})

		It("serves registered handlers", func() {
			code, body := get(base + "/test")
			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(Equal("test handler\n"))
		})

		It("serves default handlers", func() {
			healthz.Start("server-test", time.Minute)
			defer healthz.End("server-test")

			code, body := get(base + "/healthz")
			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("server-test: "))
		})

		It("stops on cancellation", func() {
			cancel()
			MustBeSuccessful(srv.Wait())
			_, err := http.Get(base + "/test")
			Expect(err).To(HaveOccurred())
		})

		It("is started once", func() {
			_, _, err := srv.Start(ctx)
			Expect(err).To(MatchError("server already started"))
		})
	})

	Context("directory handler", func() {
		var fs vfs.FileSystem

		BeforeEach(func() {
			fs = memoryfs.New()
			MustBeSuccessful(fs.MkdirAll("concerns", 0o755))
			MustBeSuccessful(vfs.WriteFile(fs, "concerns/c1.yaml", []byte("id: c1\n"), 0o644))
		})

		It("serves files", func() {
			srv := server.NewServer(nil, 0, false, 0)
			server.NewDirectoryHandler(fs, "/db").RegisterHandler(srv)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/db/concerns/c1.yaml", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("id: c1\n"))
		})

		It("is read-only", func() {
			h := server.NewDirectoryHandler(fs, "/db")

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/db/concerns/c1.yaml", nil))
			Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(vfs.FileExists(fs, "concerns/c1.yaml")).To(BeTrue())
		})
	})
})

func testHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "test handler\n")
}
