// Package metrics holds the Prometheus instruments of the analyzer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for invoice analysis. A nil *Metrics
// records nothing.
type Metrics struct {
	// Analysis outcomes: "success" or a failure reason code
	AnalysisOutcome *prometheus.CounterVec

	// End to end duration of one analysis
	AnalysisLatency prometheus.Histogram

	// Model round trips by stage: "company", "identifiers"
	ModelCallLatency *prometheus.HistogramVec

	// Which parse strategy turned a model response into fields
	ParseStrategy *prometheus.CounterVec

	// Debt queries by HTTP status class
	DebtQueries *prometheus.CounterVec
}

// New registers the analyzer metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AnalysisOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_analyzer_analyses_total",
			Help: "Total invoice analyses by outcome",
		}, []string{"outcome"}),

		AnalysisLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoice_analyzer_analysis_duration_seconds",
			Help:    "Duration of a full invoice analysis including both model calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),

		ModelCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoice_analyzer_model_call_duration_seconds",
			Help:    "Duration of vision model calls by stage",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"stage"}),

		ParseStrategy: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_analyzer_parse_strategy_total",
			Help: "Model responses parsed by stage and strategy",
		}, []string{"stage", "strategy"}),

		DebtQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_analyzer_debt_queries_total",
			Help: "Debt queries sent to the debt service by status",
		}, []string{"status"}),
	}
}

// IncrementOutcome records an analysis outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.AnalysisOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveAnalysisLatency records the duration of a full analysis.
func (m *Metrics) ObserveAnalysisLatency(d time.Duration) {
	if m != nil {
		m.AnalysisLatency.Observe(d.Seconds())
	}
}

// ObserveModelCall records the duration of one model call.
func (m *Metrics) ObserveModelCall(stage string, d time.Duration) {
	if m != nil {
		m.ModelCallLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementParseStrategy records which strategy parsed a response.
func (m *Metrics) IncrementParseStrategy(stage, strategy string) {
	if m != nil {
		m.ParseStrategy.WithLabelValues(stage, strategy).Inc()
	}
}

// IncrementDebtQuery records a debt query result.
func (m *Metrics) IncrementDebtQuery(status string) {
	if m != nil {
		m.DebtQueries.WithLabelValues(status).Inc()
	}
}
