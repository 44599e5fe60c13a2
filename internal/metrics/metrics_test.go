package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zombor/invoice-analyzer/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var (
		reg *prometheus.Registry
		m   *metrics.Metrics
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		m = metrics.New(reg)
	})

	It("counts outcomes", func() {
		m.IncrementOutcome("success")
		m.IncrementOutcome("success")
		m.IncrementOutcome("company_not_found")

		Expect(testutil.ToFloat64(m.AnalysisOutcome.WithLabelValues("success"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.AnalysisOutcome.WithLabelValues("company_not_found"))).To(Equal(1.0))
	})

	It("observes durations", func() {
		m.ObserveModelCall("company", 2*time.Second)
		m.ObserveAnalysisLatency(3 * time.Second)

		Expect(testutil.CollectAndCount(m.ModelCallLatency)).To(Equal(1))
		Expect(testutil.CollectAndCount(m.AnalysisLatency)).To(Equal(1))
	})

	It("counts debt queries and parse strategies", func() {
		m.IncrementDebtQuery("2xx")
		m.IncrementParseStrategy("identifiers", "lines")

		Expect(testutil.ToFloat64(m.DebtQueries.WithLabelValues("2xx"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.ParseStrategy.WithLabelValues("identifiers", "lines"))).To(Equal(1.0))
	})

	It("ignores calls on a nil receiver", func() {
		var nilMetrics *metrics.Metrics
		Expect(func() {
			nilMetrics.IncrementOutcome("success")
			nilMetrics.ObserveModelCall("company", time.Second)
			nilMetrics.ObserveAnalysisLatency(time.Second)
			nilMetrics.IncrementParseStrategy("company", "fenced_json")
			nilMetrics.IncrementDebtQuery("5xx")
		}).NotTo(Panic())
	})
})
