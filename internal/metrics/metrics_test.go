package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/rewriting-gateway/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("IncrementRequests", func() {
		It("should track routes separately", func() {
			m.IncrementRequests("/api")
			m.IncrementRequests("/static")
			m.IncrementRequests("/api")

			snap := m.Snapshot()
			Expect(snap.TotalRequests).To(Equal(int64(3)))
			Expect(snap.Routes["/api"].Requests).To(Equal(int64(2)))
			Expect(snap.Routes["/static"].Requests).To(Equal(int64(1)))
		})
	})

	Describe("IncrementDelegated", func() {
		It("should count delegated requests outside any route", func() {
			m.IncrementDelegated()
			m.IncrementDelegated()

			snap := m.Snapshot()
			Expect(snap.Delegated).To(Equal(int64(2)))
			Expect(snap.TotalRequests).To(BeZero())
			Expect(snap.Routes).To(BeEmpty())
		})
	})

	Describe("RecordResponse", func() {
		It("should record response time, status code and branch", func() {
			m.RecordResponse("/api", 100*time.Millisecond, 200, metrics.BranchRewritten)
			m.RecordResponse("/api", 200*time.Millisecond, 200, metrics.BranchPassthrough)

			route := m.Snapshot().Routes["/api"]
			Expect(route.AvgResponse).To(Equal(150 * time.Millisecond))
			Expect(route.StatusCodes[200]).To(Equal(int64(2)))
			Expect(route.Rewritten).To(Equal(int64(1)))
			Expect(route.Passthrough).To(Equal(int64(1)))
		})

		It("should calculate percentiles correctly", func() {
			for i := 1; i <= 100; i++ {
				m.RecordResponse("/api", time.Duration(i)*time.Millisecond, 200, metrics.BranchPassthrough)
			}

			route := m.Snapshot().Routes["/api"]
			Expect(route.P50Response).To(BeNumerically("~", 50*time.Millisecond, 1*time.Millisecond))
			Expect(route.P95Response).To(BeNumerically("~", 95*time.Millisecond, 1*time.Millisecond))
			Expect(route.P99Response).To(BeNumerically("~", 99*time.Millisecond, 1*time.Millisecond))
		})

		It("should limit stored response times to 1000", func() {
			for i := 1; i <= 1500; i++ {
				m.RecordResponse("/api", time.Duration(i)*time.Millisecond, 200, metrics.BranchPassthrough)
			}

			route := m.Snapshot().Routes["/api"]
			Expect(route.AvgResponse).To(BeNumerically(">", 500*time.Millisecond))
			Expect(route.Passthrough).To(Equal(int64(1500)))
		})
	})

	Describe("RecordUpstreamError", func() {
		It("should count failures by reason", func() {
			m.RecordUpstreamError("/api", "unavailable")
			m.RecordUpstreamError("/api", "unavailable")
			m.RecordUpstreamError("/api", "malformed_body")

			route := m.Snapshot().Routes["/api"]
			Expect(route.UpstreamErrors).To(Equal(map[string]int64{
				"unavailable":    2,
				"malformed_body": 1,
			}))
		})
	})

	Describe("UpdateHealthStatus", func() {
		It("should keep the latest status per backend", func() {
			m.UpdateHealthStatus("http://api.internal", true)
			m.UpdateHealthStatus("http://api.internal", false)

			snap := m.Snapshot()
			Expect(snap.Backends["http://api.internal"].Healthy).To(BeFalse())
		})
	})

	Describe("Snapshot", func() {
		It("should not share maps with the live store", func() {
			m.RecordResponse("/api", time.Millisecond, 200, metrics.BranchRewritten)
			snap := m.Snapshot()

			m.RecordResponse("/api", time.Millisecond, 200, metrics.BranchRewritten)
			Expect(snap.Routes["/api"].StatusCodes[200]).To(Equal(int64(1)))
		})

		It("should report uptime", func() {
			time.Sleep(5 * time.Millisecond)
			Expect(m.Snapshot().Uptime).To(BeNumerically(">", 0))
		})
	})
})
