package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDashboard(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "dashboard")
}

var _ = Describe("Publish", func() {
	It("enqueues a marshaled progress payload onto the broadcast channel", func() {
		s := New()
		s.Publish(Progress{Total: 10, Checked: 4, Alive: 3, Dead: 1})

		msg := <-s.broadcast
		var p payload
		Expect(json.Unmarshal(msg, &p)).To(Succeed())
		Expect(p.Kind).To(Equal("progress"))
	})

	It("drops a snapshot rather than blocking when no client is draining", func() {
		s := New()
		for i := 0; i < cap(s.broadcast)+5; i++ {
			s.Publish(Progress{Checked: i})
		}
		Expect(len(s.broadcast)).To(Equal(cap(s.broadcast)))
	})
})

var _ = Describe("serveIndex", func() {
	It("serves the dashboard page as html", func() {
		s := New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.serveIndex(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(ContainSubstring("text/html"))
		Expect(rec.Body.String()).To(ContainSubstring("xraycheck"))
	})
})
